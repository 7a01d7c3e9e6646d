package console

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/gorilla/mux"

	svcerrors "github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/errors"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/httputil"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/logging"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/records"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/writeverify"
)

const (
	// mgetBatch bounds the keys sent in one MGET.
	mgetBatch = 200
	maxIDLen  = 256
)

// ListResponse is the body of GET /api/{kind}.
type ListResponse struct {
	Kind  string            `json:"kind"`
	Items []records.Summary `json:"items"`
	Total int               `json:"total"`
	// Indexed is the size of the index set before filtering.
	Indexed int `json:"indexed"`
	// Missing lists indexed IDs whose record key does not exist.
	Missing []string `json:"missing,omitempty"`
	// Invalid lists IDs whose stored value is not a JSON object.
	Invalid []string `json:"invalid,omitempty"`
}

// DeleteResponse is the body of DELETE /api/{kind}/{id}.
type DeleteResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// resource serves one record kind.
type resource[T records.Record] struct {
	kind     records.Kind
	store    kvstore.Store
	verifier *writeverify.Verifier[T]
	logger   *logging.Logger

	deletes        *atomic.Int64
	deleteFailures *atomic.Int64
}

func newResource[T records.Record](store kvstore.Store, v *writeverify.Verifier[T], logger *logging.Logger, deletes, deleteFailures *atomic.Int64) *resource[T] {
	return &resource[T]{
		kind:           v.Kind(),
		store:          store,
		verifier:       v,
		logger:         logger,
		deletes:        deletes,
		deleteFailures: deleteFailures,
	}
}

func (h *resource[T]) register(r *mux.Router, guard mux.MiddlewareFunc) {
	base := "/api/" + h.kind.Plural
	r.HandleFunc(base, h.list).Methods(http.MethodGet)
	r.HandleFunc(base+"/{id}", h.get).Methods(http.MethodGet)
	r.Handle(base+"/{id}", guard(http.HandlerFunc(h.put))).Methods(http.MethodPut)
	r.Handle(base+"/{id}", guard(http.HandlerFunc(h.delete))).Methods(http.MethodDelete)
}

func (h *resource[T]) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := records.Filter{
		Query:  q.Get("q"),
		Status: q.Get("status"),
		Tier:   q.Get("tier"),
	}

	ids, err := h.store.SMembers(ctx, h.kind.IndexSet)
	if err != nil {
		h.storeFailure(w, r, "list", err)
		return
	}
	ids = uniqueSorted(ids)

	values, err := h.mget(ctx, ids)
	if err != nil {
		h.storeFailure(w, r, "list", err)
		return
	}

	resp := ListResponse{Kind: h.kind.Plural, Items: []records.Summary{}, Indexed: len(ids)}
	for i, id := range ids {
		if values[i] == nil {
			resp.Missing = append(resp.Missing, id)
			continue
		}
		summary, ok := records.Summarize(*values[i])
		if !ok {
			resp.Invalid = append(resp.Invalid, id)
			continue
		}
		if summary.ID == "" {
			summary.ID = id
		}
		if filter.Match(summary) {
			resp.Items = append(resp.Items, summary)
		}
	}

	sort.SliceStable(resp.Items, func(i, j int) bool {
		a, b := strings.ToLower(resp.Items[i].DisplayName()), strings.ToLower(resp.Items[j].DisplayName())
		if a != b {
			return a < b
		}
		return resp.Items[i].ID < resp.Items[j].ID
	})
	resp.Total = len(resp.Items)

	if len(resp.Missing) > 0 {
		h.logger.WithContext(ctx).WithField("kind", h.kind.Name).WithField("missing", len(resp.Missing)).
			Warn("index lists ids without records")
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *resource[T]) mget(ctx context.Context, ids []string) ([]*string, error) {
	out := make([]*string, 0, len(ids))
	for start := 0; start < len(ids); start += mgetBatch {
		end := start + mgetBatch
		if end > len(ids) {
			end = len(ids)
		}
		keys := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, h.kind.Key(id))
		}
		values, err := h.store.MGet(ctx, keys...)
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	return out, nil
}

func (h *resource[T]) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	raw, found, err := h.store.Get(r.Context(), h.kind.Key(id))
	if err != nil {
		h.storeFailure(w, r, "get", err)
		return
	}
	if !found {
		httputil.WriteServiceError(w, r, svcerrors.NotFound(h.kind.Name, id))
		return
	}

	var rec T
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).WithField("key", h.kind.Key(id)).Error("stored record is not decodable")
		httputil.WriteServiceError(w, r, svcerrors.Internal("Stored record is not valid", err).WithDetails("id", id))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *resource[T]) put(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var rec T
	if !httputil.DecodeJSON(w, r, &rec) {
		return
	}

	saved, err := h.verifier.WriteAndVerify(r.Context(), id, rec)
	if err != nil {
		httputil.WriteServiceError(w, r, verifyError(h.kind, id, err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, saved)
}

// delete removes the key and its index membership without verification.
// Store failures are logged, never reported to the caller.
func (h *resource[T]) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	entry := h.logger.WithContext(ctx).WithField("kind", h.kind.Name).WithField("id", id)

	h.deletes.Add(1)
	if err := h.store.Del(ctx, h.kind.Key(id)); err != nil {
		h.deleteFailures.Add(1)
		entry.WithError(err).Warn("delete record failed")
	}
	if err := h.store.SRem(ctx, h.kind.IndexSet, id); err != nil {
		h.deleteFailures.Add(1)
		entry.WithError(err).Warn("remove index membership failed")
	}
	entry.Info("delete requested")

	httputil.WriteJSON(w, http.StatusAccepted, DeleteResponse{ID: id, Status: "requested"})
}

func (h *resource[T]) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" || len(id) > maxIDLen || strings.ContainsAny(id, "*?[]") {
		httputil.WriteServiceError(w, r, svcerrors.BadRequest("Invalid "+h.kind.Name+" id").WithDetails("id", id))
		return "", false
	}
	return id, true
}

func (h *resource[T]) storeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.WithContext(r.Context()).WithError(err).WithField("kind", h.kind.Name).WithField("op", op).Warn("store call failed")
	httputil.WriteServiceError(w, r, storeError(r.Context(), err))
}

func uniqueSorted(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
