package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/artshelf/internal/app"
	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/extractor"
	"github.com/cesargomez89/artshelf/internal/http/dto"
	"github.com/cesargomez89/artshelf/internal/logger"
	"github.com/cesargomez89/artshelf/internal/maintenance"
	"github.com/cesargomez89/artshelf/internal/pipeline"
	"github.com/cesargomez89/artshelf/internal/store"
)

// Pipeline is the producer side of the processing pipeline.
type Pipeline interface {
	EnqueueFile(ctx context.Context, path string) (bool, error)
	Trigger(qt domain.QueueType)
}

type Handler struct {
	Queue       *app.QueueService
	Library     *app.LibraryService
	Settings    *app.SettingsService
	Pipeline    Pipeline
	Maintenance *maintenance.Service
	Logger      *logger.Logger
}

func NewHandler(qs *app.QueueService, ls *app.LibraryService, ss *app.SettingsService, p Pipeline, ms *maintenance.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Queue:       qs,
		Library:     ls,
		Settings:    ss,
		Pipeline:    p,
		Maintenance: ms,
		Logger:      log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/queue/files", h.EnqueueFile)
		r.Get("/queue/stats", h.QueueStats)
		r.Get("/queue/items", h.ListQueueItems)
		r.Get("/queue/items/{id}", h.GetQueueItem)
		r.Post("/queue/items/{id}/retry", h.RetryQueueItem)
		r.Delete("/queue/finished", h.ClearFinished)

		r.Get("/library/stats", h.LibraryStats)
		r.Get("/library/files/{id}/similar", h.SimilarFiles)

		r.Post("/maintenance/similarity", h.RecomputeSimilarity)
		r.Post("/maintenance/color-tags", h.RecomputeColorTags)
		r.Post("/maintenance/clear-temp", h.ClearTemp)

		r.Get("/settings/color-tagging", h.GetColorTagging)
		r.Put("/settings/color-tagging", h.UpdateColorTagging)
		r.Delete("/settings/color-tagging", h.ResetColorTagging)
	})
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("Failed to write response", "error", err)
	}
}

func (h *Handler) writeValidation(w http.ResponseWriter, errs ...dto.ValidationError) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  dto.ToResponse(errs),
		Fields: dto.ToMap(errs),
	})
}

// writeError maps domain errors to status codes. Anything unrecognized is a
// 500 and gets logged.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrUnknownQueueType),
		errors.Is(err, pipeline.ErrUnsupportedFile):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNotRetryable),
		errors.Is(err, maintenance.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, extractor.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, extractor.ErrExtractor):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
