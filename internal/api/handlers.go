package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/example/webhook-messaging/internal/model"
	"github.com/example/webhook-messaging/internal/scheduler"
	"github.com/example/webhook-messaging/internal/store"
)

// MessageAPI is the slice of the message service the handlers need.
type MessageAPI interface {
	CreateMessage(ctx context.Context, to, content string) (*model.Message, error)
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	ListSent(ctx context.Context, limit int) ([]model.Message, error)
}

// PendingDispatcher triggers one dispatch pass on demand.
type PendingDispatcher interface {
	DispatchPending(ctx context.Context, limit int) (int, error)
}

type Handler struct {
	sched        *scheduler.Scheduler
	messages     MessageAPI
	dispatcher   PendingDispatcher
	pendingLimit int
	validate     *validator.Validate
	logger       zerolog.Logger
}

func NewHandler(s *scheduler.Scheduler, messages MessageAPI, d PendingDispatcher, pendingLimit int, logger zerolog.Logger) *Handler {
	return &Handler{
		sched:        s,
		messages:     messages,
		dispatcher:   d,
		pendingLimit: pendingLimit,
		validate:     validator.New(),
		logger:       logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

type createMessageRequest struct {
	To      string `json:"to" validate:"required"`
	Content string `json:"content" validate:"required"`
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.messages.CreateMessage(r.Context(), req.To, req.Content)
	if err != nil {
		h.logger.Error().Err(err).Msg("create message failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messages.GetMessage(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "message not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *Handler) ListSentMessages(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)

	items, err := h.messages.ListSent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Dispatch runs one claim-and-enqueue pass outside the scheduler cadence.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), h.pendingLimit)

	count, err := h.dispatcher.DispatchPending(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("manual dispatch failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"dispatched": count})
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
