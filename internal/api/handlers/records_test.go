package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/recon-engine/internal/config"
	"github.com/dvloznov/recon-engine/internal/engine"
	"github.com/dvloznov/recon-engine/internal/jobs"
	jobsmem "github.com/dvloznov/recon-engine/internal/jobs/inmemory"
	"github.com/dvloznov/recon-engine/internal/logger"
	"github.com/dvloznov/recon-engine/internal/store/inmemory"
)

type testAPI struct {
	records  *RecordsHandler
	analysis *AnalysisHandler
	jobs     *JobsHandler
	queue    *jobsmem.Queue
	jobStore *jobsmem.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	e, err := engine.New(config.Default(), inmemory.NewStore())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	jobStore := jobsmem.NewStore()
	queue := jobsmem.NewQueue(10, 1, jobStore)
	t.Cleanup(func() { queue.Close() })

	log := logger.NewWithWriter(&bytes.Buffer{})
	return &testAPI{
		records:  NewRecordsHandler(e, queue, log),
		analysis: NewAnalysisHandler(e, nil, log),
		jobs:     NewJobsHandler(jobStore, log),
		queue:    queue,
		jobStore: jobStore,
	}
}

func submitSync(t *testing.T, api *testAPI, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/records?sync=true", strings.NewReader(body))
	w := httptest.NewRecorder()
	api.records.Submit(w, req)
	return w
}

func TestSubmitSyncReturnsResult(t *testing.T) {
	api := newTestAPI(t)

	w := submitSync(t, api, `{"date":"2024-06-01","vendor":"KFC Johar Town","expense":"1450"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var result engine.SubmitResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if result.Record.ID == 0 {
		t.Error("record has no ID")
	}
	if result.Record.Category != "Food" {
		t.Errorf("category = %q, want Food", result.Record.Category)
	}
}

func TestSubmitAsyncEnqueues(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/records",
		strings.NewReader(`{"date":"2024-06-01","vendor":"Careem","expense":"350"}`))
	w := httptest.NewRecorder()
	api.records.Submit(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["job_id"] == "" {
		t.Fatal("no job_id in response")
	}

	job, err := api.jobStore.GetJob(req.Context(), resp["job_id"])
	if err != nil {
		t.Fatalf("job not saved: %v", err)
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("job status = %s, want pending", job.Status)
	}
}

func TestSubmitRejectsMissingVendor(t *testing.T) {
	api := newTestAPI(t)

	w := submitSync(t, api, `{"date":"2024-06-01","expense":"100"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListFiltersNeedsReview(t *testing.T) {
	api := newTestAPI(t)

	submitSync(t, api, `{"date":"2024-06-01","vendor":"KFC","expense":"500"}`)
	submitSync(t, api, `{"date":"someday","vendor":"Mystery Shop","expense":"100"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/records?needs_review=true", nil)
	w := httptest.NewRecorder()
	api.records.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1 flagged record", resp.Count)
	}
}

func TestGetMissingRecordIs404(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/records/99", nil)
	w := httptest.NewRecorder()
	api.records.Get(w, req, 99)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestMarkReviewedEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := submitSync(t, api, `{"date":"someday","vendor":"Mystery Shop","expense":"100"}`)
	var result engine.SubmitResult
	json.Unmarshal(w.Body.Bytes(), &result)

	body, _ := json.Marshal(map[string][]int64{"ids": {result.Record.ID}})
	req := httptest.NewRequest(http.MethodPost, "/api/records/mark-reviewed", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	api.records.MarkReviewed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]int
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["updated"] != 1 {
		t.Errorf("updated = %d, want 1", resp["updated"])
	}
}

func TestBalanceEndpoints(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPut, "/api/balance",
		strings.NewReader(`{"opening_balance":"1000"}`))
	w := httptest.NewRecorder()
	api.analysis.SetBalance(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("SetBalance status = %d, body = %s", w.Code, w.Body.String())
	}

	submitSync(t, api, `{"date":"2024-06-01","vendor":"Careem","expense":"200"}`)

	req = httptest.NewRequest(http.MethodGet, "/api/balance", nil)
	w = httptest.NewRecorder()
	api.analysis.GetBalance(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GetBalance status = %d", w.Code)
	}
	var balance struct {
		CurrentBalance string `json:"current_balance"`
	}
	json.Unmarshal(w.Body.Bytes(), &balance)
	if balance.CurrentBalance != "800" {
		t.Errorf("current balance = %q, want 800", balance.CurrentBalance)
	}
}

func TestRiskEndpoint(t *testing.T) {
	api := newTestAPI(t)

	submitSync(t, api, `{"date":"2024-03-15","vendor":"KFC Johar","expense":"1450"}`)
	submitSync(t, api, `{"date":"2024-03-15","vendor":"KFC Johar Town","expense":"1450"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/risk", nil)
	w := httptest.NewRecorder()
	api.analysis.Risk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var report struct {
		Alerts []struct {
			Type string `json:"type"`
		} `json:"alerts"`
	}
	json.Unmarshal(w.Body.Bytes(), &report)
	if len(report.Alerts) == 0 {
		t.Fatal("expected duplicate alert in risk report")
	}
}

func TestExportEndpointCSV(t *testing.T) {
	api := newTestAPI(t)

	submitSync(t, api, `{"date":"2024-06-01","vendor":"KFC Johar Town","expense":"1450"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/export?format=csv", nil)
	w := httptest.NewRecorder()
	api.analysis.Export(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "KFC Johar Town") {
		t.Error("export missing record")
	}
}

func TestExportUploadWithoutBucketFails(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/export?format=csv&upload=true", nil)
	w := httptest.NewRecorder()
	api.analysis.Export(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
