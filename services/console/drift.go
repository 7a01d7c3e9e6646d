package console

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/httputil"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/logging"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/metrics"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/records"
)

// DriftReport compares one kind's index set with the keys actually stored.
type DriftReport struct {
	Kind    string `json:"kind"`
	Indexed int    `json:"indexed"`
	Stored  int    `json:"stored"`
	// IndexedMissing are IDs in the index set with no record key.
	IndexedMissing []string `json:"indexedMissing"`
	// Unindexed are record keys whose ID is absent from the index set.
	Unindexed []string `json:"unindexed"`
}

// InSync reports whether index and keys agree.
func (r DriftReport) InSync() bool {
	return len(r.IndexedMissing) == 0 && len(r.Unindexed) == 0
}

// DriftResponse is the body of GET /api/index/drift.
type DriftResponse struct {
	InSync    bool          `json:"inSync"`
	CheckedAt string        `json:"checkedAt"`
	Reports   []DriftReport `json:"reports"`
}

// DriftAuditor reports index drift. It never modifies the store.
type DriftAuditor struct {
	store   kvstore.Store
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	last    []DriftReport
	lastRun time.Time
}

// NewDriftAuditor creates an auditor. metrics may be nil.
func NewDriftAuditor(store kvstore.Store, logger *logging.Logger, m *metrics.Metrics) *DriftAuditor {
	if logger == nil {
		logger = logging.Default()
	}
	return &DriftAuditor{store: store, logger: logger, metrics: m}
}

// Audit compares kind's index set with its stored keys.
func (a *DriftAuditor) Audit(ctx context.Context, kind records.Kind) (DriftReport, error) {
	members, err := a.store.SMembers(ctx, kind.IndexSet)
	if err != nil {
		return DriftReport{}, fmt.Errorf("read index %s: %w", kind.IndexSet, err)
	}
	keys, err := a.store.Keys(ctx, kind.KeyPattern())
	if err != nil {
		return DriftReport{}, fmt.Errorf("scan %s: %w", kind.KeyPattern(), err)
	}

	indexed := make(map[string]struct{}, len(members))
	for _, id := range members {
		indexed[id] = struct{}{}
	}
	stored := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if id, ok := kind.IDFromKey(key); ok {
			stored[id] = struct{}{}
		}
	}

	report := DriftReport{
		Kind:           kind.Name,
		Indexed:        len(indexed),
		Stored:         len(stored),
		IndexedMissing: difference(indexed, stored),
		Unindexed:      difference(stored, indexed),
	}

	if a.metrics != nil {
		a.metrics.SetIndexDrift(kind.Name, len(report.IndexedMissing), len(report.Unindexed))
	}

	entry := a.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"kind":            kind.Name,
		"indexed":         report.Indexed,
		"stored":          report.Stored,
		"indexed_missing": len(report.IndexedMissing),
		"unindexed":       len(report.Unindexed),
	})
	if report.InSync() {
		entry.Info("index in sync")
	} else {
		entry.Warn("index drift detected")
	}
	return report, nil
}

// AuditAll audits every record kind and remembers the result.
func (a *DriftAuditor) AuditAll(ctx context.Context) ([]DriftReport, error) {
	reports := make([]DriftReport, 0, len(records.Kinds))
	for _, kind := range records.Kinds {
		report, err := a.Audit(ctx, kind)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	a.mu.Lock()
	a.last = reports
	a.lastRun = time.Now()
	a.mu.Unlock()
	return reports, nil
}

// Last returns the most recent AuditAll result and when it ran.
func (a *DriftAuditor) Last() ([]DriftReport, time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last, a.lastRun
}

func (s *Service) handleDrift(w http.ResponseWriter, r *http.Request) {
	reports, err := s.auditor.AuditAll(r.Context())
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Warn("index drift audit failed")
		httputil.WriteServiceError(w, r, storeError(r.Context(), err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DriftResponse{
		InSync:    allInSync(reports),
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
		Reports:   reports,
	})
}

func allInSync(reports []DriftReport) bool {
	for _, r := range reports {
		if !r.InSync() {
			return false
		}
	}
	return true
}

// difference returns the sorted members of a not in b.
func difference(a, b map[string]struct{}) []string {
	out := []string{}
	for id := range a {
		if _, ok := b[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
