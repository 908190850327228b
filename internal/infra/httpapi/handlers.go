package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"omnisearch/internal/domain"
	"omnisearch/internal/infra/telemetry"
)

type handlers struct {
	engine Engine
	logs   *telemetry.LogBroadcaster
	logger *zap.Logger
}

func (h *handlers) registerRoutes(r chi.Router) {
	r.Get("/tools", h.listTools)
	r.Post("/tools/{toolID}/connect", h.connectTool)
	r.Post("/tools/{toolID}/disconnect", h.disconnectTool)
	r.Post("/tools/{toolID}/sync", h.syncTool)
	r.Post("/sync", h.syncAll)

	r.Get("/connections", h.listConnections)
	r.Get("/connections/{toolID}", h.getConnection)
	r.Get("/stats", h.stats)

	r.Get("/health", h.listHealth)
	r.Post("/health/check", h.checkHealth)

	r.Get("/search", h.search)
}

func (h *handlers) listTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.engine.Tools()})
}

func (h *handlers) connectTool(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")
	if err := h.engine.Connect(r.Context(), toolID); err != nil {
		writeError(w, err)
		return
	}
	h.writeConnection(w, toolID)
}

func (h *handlers) disconnectTool(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")
	if err := h.engine.Disconnect(r.Context(), toolID); err != nil {
		writeError(w, err)
		return
	}
	h.writeConnection(w, toolID)
}

func (h *handlers) syncTool(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")
	if err := h.engine.SyncTool(r.Context(), toolID); err != nil {
		writeError(w, err)
		return
	}
	h.writeConnection(w, toolID)
}

func (h *handlers) syncAll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.SyncAllConnectedTools(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": h.engine.Connections()})
}

func (h *handlers) listConnections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"connections": h.engine.Connections()})
}

func (h *handlers) getConnection(w http.ResponseWriter, r *http.Request) {
	h.writeConnection(w, chi.URLParam(r, "toolID"))
}

func (h *handlers) writeConnection(w http.ResponseWriter, toolID string) {
	conn, err := h.engine.Connection(toolID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *handlers) listHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"health": h.engine.HealthStatuses()})
}

func (h *handlers) checkHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.CheckHealth(r.Context()))
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	opts, err := parseSearchOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := h.engine.Search(r.Context(), opts)
	if len(resp.Failures) > 0 {
		h.logger.Debug("search completed with failures",
			telemetry.SearchIDField(resp.SearchID),
			zap.Int("failures", len(resp.Failures)),
		)
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseSearchOptions reads q, type, max, from and to. type may repeat or hold
// a comma-separated list; from and to are RFC 3339.
func parseSearchOptions(r *http.Request) (domain.SearchOptions, error) {
	query := r.URL.Query()
	opts := domain.SearchOptions{Query: strings.TrimSpace(query.Get("q"))}

	for _, raw := range query["type"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				opts.ContentTypes = append(opts.ContentTypes, part)
			}
		}
	}

	if raw := query.Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, badRequest(fmt.Sprintf("max must be a non-negative integer, got %q", raw))
		}
		opts.MaxResults = n
	}

	start, err := parseTimeParam(query.Get("from"), "from")
	if err != nil {
		return opts, err
	}
	end, err := parseTimeParam(query.Get("to"), "to")
	if err != nil {
		return opts, err
	}
	if !start.IsZero() || !end.IsZero() {
		if !start.IsZero() && !end.IsZero() && start.After(end) {
			return opts, badRequest("from must not be after to")
		}
		opts.DateRange = &domain.DateRange{Start: start, End: end}
	}
	return opts, nil
}

func parseTimeParam(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, badRequest(fmt.Sprintf("%s must be an RFC 3339 timestamp, got %q", name, raw))
	}
	return t, nil
}
