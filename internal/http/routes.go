package httpapp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/http/dto"
	"github.com/cesargomez89/artshelf/internal/maintenance"
	"github.com/cesargomez89/artshelf/internal/store"
)

func (h *Handler) EnqueueFile(w http.ResponseWriter, r *http.Request) {
	var req dto.EnqueueRequest
	if verr := decodeJSON(w, r, &req); verr != nil {
		h.writeValidation(w, *verr)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs...)
		return
	}

	path := strings.TrimSpace(req.Path)
	added, err := h.Pipeline.EnqueueFile(r.Context(), path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if !added {
		status = http.StatusOK
	}
	h.writeJSON(w, status, dto.EnqueueResponse{Path: path, Added: added})
}

func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Queue.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewStatsResponse(stats))
}

func (h *Handler) ListQueueItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := dto.QueueListQuery{Type: q.Get("type"), Status: q.Get("status")}
	errs := query.Validate()

	limit, verr := dto.ParseLimit(q.Get("limit"), constants.DefaultQueueList, constants.MaxQueueListItems)
	if verr != nil {
		errs = append(errs, *verr)
	}
	if len(errs) > 0 {
		h.writeValidation(w, errs...)
		return
	}

	items, err := h.Queue.ListItems(r.Context(), store.QueueFilter{
		Type:   domain.QueueType(query.Type),
		Status: domain.QueueStatus(query.Status),
		Limit:  limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewQueueListResponse(items, limit))
}

func (h *Handler) GetQueueItem(w http.ResponseWriter, r *http.Request) {
	id, verr := dto.ParseID(chi.URLParam(r, "id"))
	if verr != nil {
		h.writeValidation(w, *verr)
		return
	}

	item, err := h.Queue.GetItem(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewQueueItemResponse(item))
}

func (h *Handler) RetryQueueItem(w http.ResponseWriter, r *http.Request) {
	id, verr := dto.ParseID(chi.URLParam(r, "id"))
	if verr != nil {
		h.writeValidation(w, *verr)
		return
	}

	item, err := h.Queue.RetryItem(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Pipeline.Trigger(item.QueueType)
	h.writeJSON(w, http.StatusOK, dto.NewQueueItemResponse(item))
}

func (h *Handler) ClearFinished(w http.ResponseWriter, r *http.Request) {
	var olderThan time.Duration
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			h.writeValidation(w, dto.ValidationError{Field: "older_than", Message: "must be a non-negative duration such as 24h"})
			return
		}
		olderThan = d
	}

	removed, err := h.Queue.ClearFinished(r.Context(), olderThan)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.ClearFinishedResponse{Removed: removed})
}

func (h *Handler) RecomputeSimilarity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var errs []dto.ValidationError
	dryRun, verr := dto.ParseBool("dry_run", q.Get("dry_run"))
	if verr != nil {
		errs = append(errs, *verr)
	}
	regenerate, verr := dto.ParseBool("regenerate_vectors", q.Get("regenerate_vectors"))
	if verr != nil {
		errs = append(errs, *verr)
	}
	if len(errs) > 0 {
		h.writeValidation(w, errs...)
		return
	}

	report, err := h.Maintenance.RecomputeSimilarity(r.Context(), maintenance.Options{DryRun: dryRun, RegenerateVectors: regenerate})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) RecomputeColorTags(w http.ResponseWriter, r *http.Request) {
	dryRun, verr := dto.ParseBool("dry_run", r.URL.Query().Get("dry_run"))
	if verr != nil {
		h.writeValidation(w, *verr)
		return
	}

	report, err := h.Maintenance.RecomputeColorTags(r.Context(), maintenance.Options{DryRun: dryRun})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) ClearTemp(w http.ResponseWriter, r *http.Request) {
	days, verr := dto.ParseDays(r.URL.Query().Get("days"))
	if verr != nil {
		h.writeValidation(w, *verr)
		return
	}

	res, err := h.Maintenance.ClearTemp(r.Context(), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetColorTagging(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Settings.ColorTagging(r.Context()))
}

func (h *Handler) UpdateColorTagging(w http.ResponseWriter, r *http.Request) {
	var req dto.ColorTaggingRequest
	if verr := decodeJSON(w, r, &req); verr != nil {
		h.writeValidation(w, *verr)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs...)
		return
	}

	opts, err := h.Settings.UpdateColorTagging(r.Context(), req.ToUpdate())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.Info("Color tagging settings updated", "enabled", opts.Enabled, "min_confidence", opts.MinConfidence, "limit", opts.Limit)
	h.writeJSON(w, http.StatusOK, opts)
}

func (h *Handler) ResetColorTagging(w http.ResponseWriter, r *http.Request) {
	if err := h.Settings.ResetColorTagging(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.Settings.ColorTagging(r.Context()))
}

func (h *Handler) LibraryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Library.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) SimilarFiles(w http.ResponseWriter, r *http.Request) {
	id, verr := dto.ParseID(chi.URLParam(r, "id"))
	if verr != nil {
		h.writeValidation(w, *verr)
		return
	}
	limit, verr := dto.ParseLimit(r.URL.Query().Get("limit"), constants.DefaultSimilarList, constants.MaxSimilarList)
	if verr != nil {
		h.writeValidation(w, *verr)
		return
	}

	similar, err := h.Library.Similar(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.SimilarResponse{
		FileID:     id,
		Similar:    similar,
		Pagination: dto.NewPagination(limit, len(similar)),
	})
}
