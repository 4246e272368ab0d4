package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brunobiangulo/qoyllur"
	"github.com/brunobiangulo/qoyllur/graph"
)

const (
	maxQuestionBytes = 4 << 10
	maxTopK          = 100
	maxDepth         = 3
)

type handler struct {
	box     *engineBox
	metrics *metrics
}

func newHandler(box *engineBox, m *metrics) *handler {
	return &handler{box: box, metrics: m}
}

type askRequest struct {
	Question string   `json:"question"`
	Mode     string   `json:"mode,omitempty"`
	TopK     int      `json:"top_k,omitempty"`
	Alpha    *float64 `json:"alpha,omitempty"`
	Trace    bool     `json:"trace,omitempty"`
}

// POST /ask
func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	opts := queryOptions(req.Mode, req.TopK, req.Alpha)
	if req.Trace {
		opts = append(opts, qoyllur.WithTrace())
	}

	answer, err := h.box.load().engine.Answer(ctx, req.Question, opts...)
	if err != nil {
		h.queryError(w, r, err)
		return
	}
	h.metrics.answers.WithLabelValues(string(answer.Intent), string(answer.Provenance)).Inc()
	writeJSON(w, http.StatusOK, answer)
}

// GET /search?q=...&mode=...&k=...&alpha=...
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	k, err := optionalInt(q.Get("k"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "k must be an integer")
		return
	}
	var alpha *float64
	if s := q.Get("alpha"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 1 {
			writeError(w, http.StatusBadRequest, "alpha must be between 0 and 1")
			return
		}
		alpha = &v
	}

	cands, trace, err := h.box.load().engine.Search(r.Context(), query, queryOptions(q.Get("mode"), k, alpha)...)
	if err != nil {
		h.queryError(w, r, err)
		return
	}
	if cands == nil {
		cands = []qoyllur.Candidate{}
	}
	resp := map[string]any{"query": query, "candidates": cands}
	if q.Get("trace") == "true" {
		resp["trace"] = trace
	}
	writeJSON(w, http.StatusOK, resp)
}

type entityResponse struct {
	*graph.Entity
	Neighbours []graph.Neighbour `json:"neighbours,omitempty"`
}

// GET /entities/{id}?depth=1
func (h *handler) handleEntity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	depth, err := optionalInt(r.URL.Query().Get("depth"))
	if err != nil || depth < 0 || depth > maxDepth {
		writeError(w, http.StatusBadRequest, "depth must be between 0 and 3")
		return
	}

	engine := h.box.load().engine
	ent, err := engine.Entity(id)
	if errors.Is(err, qoyllur.ErrEntityNotFound) {
		writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "entity lookup failed")
		slog.Error("entity error", "id", id, "error", err, "request_id", requestID(r.Context()))
		return
	}

	resp := entityResponse{Entity: ent}
	if depth > 0 {
		if resp.Neighbours, err = engine.Neighbours(id, depth); err != nil {
			writeError(w, http.StatusInternalServerError, "neighbour lookup failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	cur := h.box.load()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"stats":     cur.engine.Stats(),
		"loaded_at": cur.loadedAt.UTC().Format(time.RFC3339),
	})
}

func (h *handler) queryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, qoyllur.ErrUnknownMode), errors.Is(err, qoyllur.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "query failed")
		slog.Error("query error", "path", r.URL.Path, "error", err, "request_id", requestID(r.Context()))
	}
}

// queryOptions bounds client parameters; out-of-range values fall back to
// the configured defaults.
func queryOptions(mode string, topK int, alpha *float64) []qoyllur.QueryOption {
	var opts []qoyllur.QueryOption
	if mode != "" {
		opts = append(opts, qoyllur.WithMode(mode))
	}
	if topK > 0 && topK <= maxTopK {
		opts = append(opts, qoyllur.WithTopK(topK))
	}
	if alpha != nil && *alpha >= 0 && *alpha <= 1 {
		opts = append(opts, qoyllur.WithAlpha(*alpha))
	}
	return opts
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
