// Package records defines the business and customer records the console
// edits, the store keys they live under, and helpers for filtering raw
// record JSON without a full decode.
//
// Records are stored as JSON strings under "business:<id>" and
// "customer:<id>". The membership sets "businesses:all" and "customers:all"
// index known IDs but are not authoritative: they can drift from the keys
// actually present. See the drift audit in services/console.
package records
