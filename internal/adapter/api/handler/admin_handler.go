package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/medallion/internal/domain"
)

// QueueAdmin is the admin surface the handler needs.
type QueueAdmin interface {
	QueueStatus(ctx context.Context) (domain.QueueStatus, error)
	GroupInfo(ctx context.Context) ([]domain.ConsumerGroupInfo, error)
	PendingInvocations(ctx context.Context, count int64) ([]domain.PendingInvocation, error)
	DeadLetters(ctx context.Context, count int64) ([]domain.DeadLetter, error)
	TrimDeadLetters(ctx context.Context, maxLen int64) (int64, error)
	LatestRuns(ctx context.Context, limit int) ([]domain.StageRun, error)
}

// AdminHandler handles HTTP requests for queue administration and the run ledger.
type AdminHandler struct {
	uc     QueueAdmin
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(uc QueueAdmin, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{uc: uc, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetQueueStatus reports the depth of the stage queue.
// GET /admin/queue
func (h *AdminHandler) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.uc.QueueStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to get queue status", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, status)
}

// GetGroupInfo handles requests to get consumer group info.
// GET /admin/queue/groups
func (h *AdminHandler) GetGroupInfo(w http.ResponseWriter, r *http.Request) {
	groups, err := h.uc.GroupInfo(r.Context())
	if err != nil {
		h.logger.Error("failed to get group info", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, groups)
}

// GetPending lists delivered but unacknowledged invocations.
// GET /admin/queue/pending?count=N
func (h *AdminHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	count, ok := queryInt64(r, "count", 0)
	if !ok {
		http.Error(w, "Invalid count parameter", http.StatusBadRequest)
		return
	}
	pending, err := h.uc.PendingInvocations(r.Context(), count)
	if err != nil {
		h.logger.Error("failed to get pending invocations", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, pending)
}

// GetDeadLetters lists the newest failed invocations.
// GET /admin/dead-letters?count=N
func (h *AdminHandler) GetDeadLetters(w http.ResponseWriter, r *http.Request) {
	count, ok := queryInt64(r, "count", 0)
	if !ok {
		http.Error(w, "Invalid count parameter", http.StatusBadRequest)
		return
	}
	letters, err := h.uc.DeadLetters(r.Context(), count)
	if err != nil {
		h.logger.Error("failed to get dead letters", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, letters)
}

// TrimDeadLetters caps the dead-letter stream.
// POST /admin/dead-letters/trim?max_len=N
func (h *AdminHandler) TrimDeadLetters(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("max_len") == "" {
		http.Error(w, "max_len query parameter is required", http.StatusBadRequest)
		return
	}
	maxLen, ok := queryInt64(r, "max_len", 0)
	if !ok {
		http.Error(w, "Invalid max_len parameter", http.StatusBadRequest)
		return
	}
	trimmed, err := h.uc.TrimDeadLetters(r.Context(), maxLen)
	if err != nil {
		h.logger.Error("failed to trim dead letters", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]int64{"trimmed": trimmed})
}

// GetRuns lists the latest stage runs.
// GET /admin/runs?limit=N
func (h *AdminHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt64(r, "limit", 0)
	if !ok {
		http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
		return
	}
	runs, err := h.uc.LatestRuns(r.Context(), int(limit))
	if err != nil {
		if errors.Is(err, domain.ErrNotConfigured) {
			http.Error(w, "Run ledger not configured", http.StatusNotImplemented)
			return
		}
		h.logger.Error("failed to get runs", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, runs)
}
