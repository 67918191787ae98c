package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/V4T54L/medallion/internal/adapter/api/middleware"
	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/usecase"
)

// Notifier handles a raw upload notification body.
type Notifier interface {
	HandleEvent(ctx context.Context, body []byte) ([]usecase.TriggerResult, error)
}

// NotifyHandler accepts object-store upload notifications over HTTP.
type NotifyHandler struct {
	notifier Notifier
	logger   *slog.Logger
	maxBody  int64
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(notifier Notifier, logger *slog.Logger, maxBody int64) *NotifyHandler {
	return &NotifyHandler{notifier: notifier, logger: logger, maxBody: maxBody}
}

// ServeHTTP handles POST /notify.
func (h *NotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	results, err := h.notifier.HandleEvent(r.Context(), body)
	annotateResults(r.Context(), results)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidNotification) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to handle upload notification", "error", err)
		http.Error(w, "Failed to launch stage", http.StatusBadGateway)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{
		"message": "notification processed",
		"results": results,
	})
}

func annotateResults(ctx context.Context, results []usecase.TriggerResult) {
	keys := make([]string, 0, len(results))
	launched := 0
	for _, res := range results {
		keys = append(keys, res.Key)
		if res.Launched {
			launched++
		}
	}
	middleware.Annotate(ctx, "notification_keys", keys, "launched", launched)
}
