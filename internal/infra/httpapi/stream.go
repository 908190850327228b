package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"omnisearch/internal/domain"
)

const streamHeartbeat = 15 * time.Second

// streamEvents serves connection snapshots and health updates as server-sent
// events. ?kind= limits the stream to a comma-separated list of kinds.
func (h *handlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	kinds, err := parseEventKinds(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	flusher, ok := startStream(w)
	if !ok {
		writeError(w, &APIError{Code: string(domain.CodeInternal), Message: "streaming unsupported", HTTPCode: http.StatusInternalServerError})
		return
	}

	ctx := r.Context()
	events := h.engine.Events().Subscribe(ctx, kinds...)
	openStream(w, flusher)

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if !writeComment(w, flusher, "ping") {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			var payload any = event.Health
			if event.Kind == domain.EventConnections {
				payload = event.Snapshot
			}
			if !h.writeEvent(w, flusher, string(event.Kind), payload) {
				return
			}
		}
	}
}

// streamLogs serves structured log entries as server-sent events.
func (h *handlers) streamLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		writeError(w, &APIError{Code: string(domain.CodeNotFound), Message: "log streaming is disabled", HTTPCode: http.StatusNotFound})
		return
	}
	flusher, ok := startStream(w)
	if !ok {
		writeError(w, &APIError{Code: string(domain.CodeInternal), Message: "streaming unsupported", HTTPCode: http.StatusInternalServerError})
		return
	}

	ctx := r.Context()
	entries := h.logs.Subscribe(ctx)
	openStream(w, flusher)

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if !writeComment(w, flusher, "ping") {
				return
			}
		case entry, ok := <-entries:
			if !ok {
				return
			}
			if !h.writeEvent(w, flusher, "log", entry) {
				return
			}
		}
	}
}

func parseEventKinds(raw string) ([]domain.EventKind, error) {
	var kinds []domain.EventKind
	for _, part := range strings.Split(raw, ",") {
		switch kind := domain.EventKind(strings.TrimSpace(part)); kind {
		case "":
		case domain.EventConnections, domain.EventHealth:
			kinds = append(kinds, kind)
		default:
			return nil, badRequest(fmt.Sprintf("unknown event kind %q", kind))
		}
	}
	return kinds, nil
}

func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return flusher, true
}

// openStream commits the headers once the subscription is live.
func openStream(w http.ResponseWriter, flusher http.Flusher) {
	w.WriteHeader(http.StatusOK)
	writeComment(w, flusher, "stream open")
}

func writeComment(w http.ResponseWriter, flusher http.Flusher, text string) bool {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func (h *handlers) writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("failed to encode stream event", zap.String("event", name), zap.Error(err))
		return true
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
