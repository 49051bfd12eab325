package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/domain"
)

// CallReader is the read side of the call service the API exposes.
type CallReader interface {
	GetCall(ctx context.Context, id uuid.UUID) (*domain.CallRecord, error)
	ListCalls(ctx context.Context, page, pageSize int) ([]*domain.CallRecord, int, error)
	ActiveCalls() int
}

// CallAPIHandler exposes call records and learned patterns over JSON.
type CallAPIHandler struct {
	calls    CallReader
	patterns domain.PatternRepository
	logger   *zap.Logger
}

// NewCallAPIHandler creates a new CallAPIHandler.
func NewCallAPIHandler(calls CallReader, patterns domain.PatternRepository, logger *zap.Logger) *CallAPIHandler {
	return &CallAPIHandler{
		calls:    calls,
		patterns: patterns,
		logger:   logger,
	}
}

// RegisterRoutes registers call API routes.
func (h *CallAPIHandler) RegisterRoutes(r chi.Router) {
	r.Route("/calls", func(r chi.Router) {
		r.Get("/", h.ListCalls)
		r.Get("/active", h.GetActiveCalls)
		r.Get("/{callID}", h.GetCall)
	})
	r.Get("/patterns/{kind}", h.ListPatterns)
}

// ListCalls handles GET /api/v1/calls with page/page_size pagination.
func (h *CallAPIHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)

	records, total, err := h.calls.ListCalls(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list calls", zap.Error(err))
		APIError(w, r, http.StatusInternalServerError, "failed to list calls")
		return
	}

	resp := CallListResponse{
		Calls: make([]CallResponse, len(records)),
		Total: total,
		Page:  page,
	}
	for i, record := range records {
		resp.Calls[i] = toCallResponse(record)
	}

	JSON(w, http.StatusOK, resp)
}

// GetCall handles GET /api/v1/calls/{callID}.
func (h *CallAPIHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "callID"))
	if err != nil {
		APIError(w, r, http.StatusBadRequest, "invalid call id")
		return
	}

	record, err := h.calls.GetCall(r.Context(), id)
	if err != nil {
		APIError(w, r, http.StatusNotFound, "call not found")
		return
	}

	JSON(w, http.StatusOK, toCallResponse(record))
}

// GetActiveCalls handles GET /api/v1/calls/active.
func (h *CallAPIHandler) GetActiveCalls(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]int{"active_calls": h.calls.ActiveCalls()})
}

// ListPatterns handles GET /api/v1/patterns/{kind}.
func (h *CallAPIHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	kind := domain.PatternKind(chi.URLParam(r, "kind"))
	if kind != domain.PatternSuccess && kind != domain.PatternFailure {
		APIError(w, r, http.StatusBadRequest, "kind must be success or failure")
		return
	}

	limit := queryInt(r, "limit", 50)
	patterns, err := h.patterns.ListByKind(r.Context(), kind, limit)
	if err != nil {
		h.logger.Error("failed to list patterns", zap.Error(err))
		APIError(w, r, http.StatusInternalServerError, "failed to list patterns")
		return
	}

	resp := make([]PatternResponse, len(patterns))
	for i, p := range patterns {
		resp[i] = PatternResponse{
			ID:         p.ID,
			Kind:       string(p.Kind),
			Phrase:     p.Phrase,
			Stage:      string(p.Stage),
			Score:      p.Score,
			SourceCall: p.SourceCall.String(),
		}
	}

	JSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
