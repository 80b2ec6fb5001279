// Command api runs the reconciliation HTTP server with its background
// worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/recon-engine/internal/api/handlers"
	"github.com/dvloznov/recon-engine/internal/api/middleware"
	"github.com/dvloznov/recon-engine/internal/config"
	"github.com/dvloznov/recon-engine/internal/engine"
	"github.com/dvloznov/recon-engine/internal/export"
	"github.com/dvloznov/recon-engine/internal/jobs"
	jobsmem "github.com/dvloznov/recon-engine/internal/jobs/inmemory"
	"github.com/dvloznov/recon-engine/internal/logger"
	"github.com/dvloznov/recon-engine/internal/store"
	bqstore "github.com/dvloznov/recon-engine/internal/store/bigquery"
	"github.com/dvloznov/recon-engine/internal/store/boltstore"
	"github.com/dvloznov/recon-engine/internal/store/inmemory"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("RECON_CONFIG"), "Path to YAML config (or set RECON_CONFIG env)")
		addr       = flag.String("addr", "", "Listen address, overrides config")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logJSON    = flag.Bool("log-json", false, "Emit JSON logs")
	)
	flag.Parse()

	log := logger.New(logger.Options{Level: *logLevel, JSON: *logJSON})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	eng, err := engine.New(cfg, st)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}

	// Job infrastructure: submissions run in background workers.
	jobStore := jobsmem.NewStore()
	jobQueue := jobsmem.NewQueue(100, cfg.Server.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		reconJob, ok := job.(*jobs.ReconcileRecordJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		result, err := eng.Submit(ctx, reconJob.Candidate)
		if err != nil {
			log.Error().Err(err).Str("job_id", reconJob.JobID).Msg("Reconciliation failed")
			return err
		}

		reconJob.RecordID = result.Record.ID
		reconJob.IsDuplicate = result.Record.IsDuplicate
		return nil
	}

	go func() {
		log.Info().Int("workers", cfg.Server.Workers).Msg("Starting reconciliation workers")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job workers stopped with error")
		}
	}()

	var uploader export.Uploader
	if cfg.Export.GCSBucket != "" {
		uploader = export.NewGCSUploader(cfg.Export.GCSBucket)
		log.Info().Str("bucket", cfg.Export.GCSBucket).Msg("Export uploads enabled")
	}

	recordsHandler := handlers.NewRecordsHandler(eng, jobQueue, log)
	analysisHandler := handlers.NewAnalysisHandler(eng, uploader, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/records", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			recordsHandler.Submit(w, r)
		case http.MethodGet:
			recordsHandler.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/records/mark-reviewed", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recordsHandler.MarkReviewed(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/records/remove-duplicates", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recordsHandler.RemoveDuplicates(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/records/", func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/api/records/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid record ID")
			return
		}
		switch r.Method {
		case http.MethodGet:
			recordsHandler.Get(w, r, id)
		case http.MethodPut:
			recordsHandler.Update(w, r, id)
		case http.MethodDelete:
			recordsHandler.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/balance", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			analysisHandler.GetBalance(w, r)
		case http.MethodPut:
			analysisHandler.SetBalance(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recalculate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			analysisHandler.Recalculate(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/risk", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			analysisHandler.Risk(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			analysisHandler.Dashboard(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			analysisHandler.Export(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.Get(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(log)(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

// openStore builds the configured store backend.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		return inmemory.NewStore(), func() {}, nil
	case "bolt":
		st, err := boltstore.Open(cfg.Storage.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	case "bigquery":
		st, err := bqstore.Open(ctx, cfg.Storage.BigQuery, cfg.Dates())
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
