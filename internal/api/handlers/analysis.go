package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/api/middleware"
	"github.com/dvloznov/recon-engine/internal/engine"
	"github.com/dvloznov/recon-engine/internal/export"
	"github.com/dvloznov/recon-engine/internal/jobs"
)

// AnalysisHandler serves the balance, risk, dashboard and export endpoints.
type AnalysisHandler struct {
	engine   *engine.Engine
	uploader export.Uploader
	log      zerolog.Logger
}

// NewAnalysisHandler creates a new analysis handler. uploader may be nil when
// no export bucket is configured.
func NewAnalysisHandler(e *engine.Engine, uploader export.Uploader, log zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		engine:   e,
		uploader: uploader,
		log:      log,
	}
}

// GetBalance handles GET /api/balance.
func (h *AnalysisHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.engine.Balance(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get balance")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get balance")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, balance)
}

// SetBalance handles PUT /api/balance.
func (h *AnalysisHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OpeningBalance string `json:"opening_balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	opening, err := decimal.NewFromString(req.OpeningBalance)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid opening_balance")
		return
	}

	totals, err := h.engine.SetOpeningBalance(r.Context(), opening)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to set opening balance")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to set opening balance")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, totals)
}

// Recalculate handles POST /api/recalculate.
func (h *AnalysisHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	totals, err := h.engine.Recalculate(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Recalculation failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Recalculation failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, totals)
}

// Risk handles GET /api/risk.
func (h *AnalysisHandler) Risk(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.RiskReport(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Risk analysis failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Risk analysis failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// Dashboard handles GET /api/dashboard.
func (h *AnalysisHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.engine.Dashboard(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute dashboard")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute dashboard")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dash)
}

// Export handles GET /api/export?format=csv|json. With ?upload=true the file
// is also shipped to the configured bucket and its URI returned in a header.
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatJSON {
		middleware.WriteError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}

	var uploader export.Uploader
	if r.URL.Query().Get("upload") == "true" {
		if h.uploader == nil {
			middleware.WriteError(w, http.StatusBadRequest, "no export bucket configured")
			return
		}
		uploader = h.uploader
	}

	switch format {
	case export.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="records.csv"`)
	case export.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	}

	uri, err := h.engine.Export(r.Context(), w, format, uploader)
	if err != nil {
		// Headers are out; all we can do is log.
		h.log.Error().Err(err).Msg("Export failed")
		return
	}
	if uri != "" {
		h.log.Info().Str("uri", uri).Msg("Export uploaded")
	}
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// Get handles GET /api/jobs/{id}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/jobs.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}
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

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
