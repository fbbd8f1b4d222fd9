package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
)

// HistoryReader lists recent history entries, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]SearchEvent, error)
}

type Handler struct {
	aggregator *Aggregator
	history    HistoryReader
	logger     *slog.Logger
}

// NewHandler serves live statistics and, when history is not nil, the
// persisted search history.
func NewHandler(aggregator *Aggregator, history HistoryReader) *Handler {
	return &Handler{
		aggregator: aggregator,
		history:    history,
		logger:     logger.WithComponent("analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "search history is not enabled"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	events, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("listing search history failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if events == nil {
		events = []SearchEvent{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": events})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
