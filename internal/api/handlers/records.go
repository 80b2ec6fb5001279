// Package handlers implements the HTTP endpoints of the reconciliation API.
// Handlers stay thin: all semantics live in the engine.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/recon-engine/internal/api/middleware"
	"github.com/dvloznov/recon-engine/internal/domain"
	"github.com/dvloznov/recon-engine/internal/engine"
	"github.com/dvloznov/recon-engine/internal/jobs"
	"github.com/dvloznov/recon-engine/internal/store"
)

// RecordsHandler handles record-related endpoints.
type RecordsHandler struct {
	engine    *engine.Engine
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(e *engine.Engine, publisher jobs.Publisher, log zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{
		engine:    e,
		publisher: publisher,
		log:       log,
	}
}

// Submit handles POST /api/records. By default the candidate is enqueued for
// background reconciliation and a job ID is returned; ?sync=true runs the
// pipeline inline and returns the full result.
func (h *RecordsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var candidate domain.TransactionRecord
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if candidate.Vendor == "" {
		middleware.WriteError(w, http.StatusBadRequest, "vendor is required")
		return
	}

	ctx := r.Context()

	if r.URL.Query().Get("sync") == "true" {
		result, err := h.engine.Submit(ctx, &candidate)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to reconcile record")
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, result)
		return
	}

	job := &jobs.ReconcileRecordJob{Candidate: &candidate}
	if err := h.publisher.PublishReconcile(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue reconciliation job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue reconciliation job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("vendor", candidate.Vendor).Msg("Reconciliation job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// List handles GET /api/records.
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.Filter{}
	query := r.URL.Query()

	if v := query.Get("needs_review"); v != "" {
		needsReview := v == "true"
		filter.NeedsReview = &needsReview
	}
	if v := query.Get("is_duplicate"); v != "" {
		isDuplicate := v == "true"
		filter.IsDuplicate = &isDuplicate
	}
	filter.Category = query.Get("category")
	if v := query.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}
	if v := query.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil {
			filter.Offset = offset
		}
	}

	records, err := h.engine.List(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list records")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// Get handles GET /api/records/{id}.
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := h.engine.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Record not found")
			return
		}
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to get record")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get record")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, rec)
}

// Update handles PUT /api/records/{id}. Every update triggers a full ledger
// recalculation.
func (h *RecordsHandler) Update(w http.ResponseWriter, r *http.Request, id int64) {
	var rec domain.TransactionRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rec.ID = id

	updated, err := h.engine.Update(r.Context(), &rec)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Record not found")
			return
		}
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to update record")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update record")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/records/{id}.
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.engine.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Record not found")
			return
		}
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to delete record")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete record")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// MarkReviewed handles POST /api/records/mark-reviewed.
func (h *RecordsHandler) MarkReviewed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "ids is required")
		return
	}

	changed, err := h.engine.MarkReviewed(r.Context(), req.IDs)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Record not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to mark records reviewed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to mark records reviewed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"updated": changed})
}

// RemoveDuplicates handles POST /api/records/remove-duplicates.
func (h *RecordsHandler) RemoveDuplicates(w http.ResponseWriter, r *http.Request) {
	removed, err := h.engine.RemoveDuplicates(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to remove duplicates")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to remove duplicates")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
