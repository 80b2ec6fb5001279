// Package engine wires the analyzers, the duplicate detector and the store
// into the operations the API and CLI expose. Submission runs as a fixed
// pipeline; the bulk operations and reports are plain methods.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/categorize"
	"github.com/dvloznov/recon-engine/internal/config"
	"github.com/dvloznov/recon-engine/internal/domain"
	"github.com/dvloznov/recon-engine/internal/export"
	"github.com/dvloznov/recon-engine/internal/ledger"
	"github.com/dvloznov/recon-engine/internal/logger"
	"github.com/dvloznov/recon-engine/internal/recon"
	"github.com/dvloznov/recon-engine/internal/review"
	"github.com/dvloznov/recon-engine/internal/risk"
	"github.com/dvloznov/recon-engine/internal/stats"
	"github.com/dvloznov/recon-engine/internal/store"
)

// Engine exposes every reconciliation operation over one store.
type Engine struct {
	store       store.Store
	detector    *recon.Detector
	analyzer    *review.Analyzer
	categorizer *categorize.Categorizer
	riskAn      *risk.Analyzer
	recalc      *ledger.Recalculator

	currency  string
	threshold float64
	now       func() time.Time
}

// New assembles an engine from configuration. The store's lifecycle is owned
// by the caller.
func New(cfg config.Config, st store.Store) (*Engine, error) {
	dates := cfg.Dates()

	reviewCfg, err := cfg.ReviewConfig()
	if err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}
	riskCfg, err := cfg.RiskConfig()
	if err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}

	scorer := recon.NewScorer(recon.DefaultWeights(), dates)
	detector := recon.NewDetector(scorer)

	return &Engine{
		store:       st,
		detector:    detector,
		analyzer:    review.New(reviewCfg, dates),
		categorizer: categorize.New(cfg.CategoryTable()),
		riskAn:      risk.NewDefaultAnalyzer(riskCfg, detector),
		recalc:      ledger.New(dates, nil),
		currency:    cfg.DefaultCurrency,
		threshold:   cfg.Recon.DuplicateThreshold,
		now:         time.Now,
	}, nil
}

// SubmitResult is everything the submission pipeline learned about a record.
type SubmitResult struct {
	Record         *domain.TransactionRecord `json:"record"`
	Matches        []recon.Match             `json:"duplicate_matches,omitempty"`
	Review         review.Result             `json:"review"`
	Categorization *categorize.Result        `json:"categorization,omitempty"`
	Totals         domain.Balance            `json:"totals"`
}

// Submit reconciles one candidate record: normalize, categorize, analyze,
// check for duplicates, persist, recalculate.
func (e *Engine) Submit(ctx context.Context, candidate *domain.TransactionRecord) (*SubmitResult, error) {
	state := &State{Candidate: candidate.Clone()}
	steps := []Step{
		&NormalizeStep{Currency: e.currency},
		&CategorizeStep{Categorizer: e.categorizer},
		&AnalyzeStep{Analyzer: e.analyzer},
		&DuplicateStep{Store: e.store, Detector: e.detector, Threshold: e.threshold},
		&PersistStep{Store: e.store},
		&RecalculateStep{Store: e.store, Recalc: e.recalc},
	}
	if err := runPipeline(ctx, steps, state); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)

	log.Info().
		Int64("id", state.Candidate.ID).
		Str("vendor", state.Candidate.Vendor).
		Bool("duplicate", state.Candidate.IsDuplicate).
		Bool("needs_review", state.Candidate.NeedsReview).
		Msg("record reconciled")

	return &SubmitResult{
		Record:         state.Candidate,
		Matches:        state.Matches,
		Review:         state.Review,
		Categorization: state.Categorization,
		Totals:         state.Totals,
	}, nil
}

// Get returns one record.
func (e *Engine) Get(ctx context.Context, id int64) (*domain.TransactionRecord, error) {
	return e.store.Get(ctx, id)
}

// List returns records matching the filter.
func (e *Engine) List(ctx context.Context, filter store.Filter) ([]*domain.TransactionRecord, error) {
	return e.store.List(ctx, filter)
}

// Update replaces a record and reruns the ledger pass, since edited amounts
// or dates shift every balance after the edit.
func (e *Engine) Update(ctx context.Context, rec *domain.TransactionRecord) (*domain.TransactionRecord, error) {
	if err := e.store.Update(ctx, rec); err != nil {
		return nil, err
	}
	if _, err := recalculate(ctx, e.store, e.recalc); err != nil {
		return nil, err
	}
	return e.store.Get(ctx, rec.ID)
}

// Delete removes a record and reruns the ledger pass.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	_, err := recalculate(ctx, e.store, e.recalc)
	return err
}

// MarkReviewed clears the needs-review flag on the given records. It returns
// how many records actually changed.
func (e *Engine) MarkReviewed(ctx context.Context, ids []int64) (int, error) {
	changed := 0
	for _, id := range ids {
		rec, err := e.store.Get(ctx, id)
		if err != nil {
			return changed, fmt.Errorf("MarkReviewed: record %d: %w", id, err)
		}
		if !rec.NeedsReview {
			continue
		}
		rec.NeedsReview = false
		if err := e.store.Update(ctx, rec); err != nil {
			return changed, fmt.Errorf("MarkReviewed: record %d: %w", id, err)
		}
		changed++
	}
	return changed, nil
}

// RemoveDuplicates deletes every record flagged as a duplicate, then reruns
// the ledger pass once. It returns how many records were removed.
func (e *Engine) RemoveDuplicates(ctx context.Context) (int, error) {
	flagged := true
	dups, err := e.store.List(ctx, store.Filter{IsDuplicate: &flagged})
	if err != nil {
		return 0, fmt.Errorf("RemoveDuplicates: %w", err)
	}
	for _, rec := range dups {
		if err := e.store.Delete(ctx, rec.ID); err != nil {
			return 0, fmt.Errorf("RemoveDuplicates: delete %d: %w", rec.ID, err)
		}
	}
	if len(dups) > 0 {
		if _, err := recalculate(ctx, e.store, e.recalc); err != nil {
			return len(dups), err
		}
	}
	log := logger.FromContext(ctx)
	log.Info().Int("removed", len(dups)).Msg("duplicates removed")
	return len(dups), nil
}

// Recalculate reruns the full ledger pass and returns the resulting totals.
func (e *Engine) Recalculate(ctx context.Context) (domain.Balance, error) {
	return recalculate(ctx, e.store, e.recalc)
}

// Balance returns the current ledger totals.
func (e *Engine) Balance(ctx context.Context) (*domain.Balance, error) {
	return e.store.GetBalance(ctx)
}

// SetOpeningBalance stores a new opening balance and reruns the ledger pass.
func (e *Engine) SetOpeningBalance(ctx context.Context, opening decimal.Decimal) (domain.Balance, error) {
	balance, err := e.store.GetBalance(ctx)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("SetOpeningBalance: %w", err)
	}
	balance.OpeningBalance = opening
	if err := e.store.SaveBalance(ctx, balance); err != nil {
		return domain.Balance{}, fmt.Errorf("SetOpeningBalance: %w", err)
	}
	return recalculate(ctx, e.store, e.recalc)
}

// RiskReport runs every risk rule over the full snapshot.
func (e *Engine) RiskReport(ctx context.Context) (risk.Report, error) {
	records, err := e.store.List(ctx, store.Filter{})
	if err != nil {
		return risk.Report{}, fmt.Errorf("RiskReport: %w", err)
	}
	report := e.riskAn.Analyze(records)
	log := logger.FromContext(ctx)
	log.Info().
		Int("records", len(records)).
		Int("alerts", len(report.Alerts)).
		Msg("risk analysis complete")
	return report, nil
}

// Dashboard aggregates the snapshot into summary statistics.
func (e *Engine) Dashboard(ctx context.Context) (stats.Dashboard, error) {
	records, err := e.store.List(ctx, store.Filter{})
	if err != nil {
		return stats.Dashboard{}, fmt.Errorf("Dashboard: %w", err)
	}
	return stats.Compute(records), nil
}

// Export writes the full snapshot to w in the given format and, when an
// uploader is provided, ships a copy and returns its URI.
func (e *Engine) Export(ctx context.Context, w io.Writer, format export.Format, uploader export.Uploader) (string, error) {
	records, err := e.store.List(ctx, store.Filter{})
	if err != nil {
		return "", fmt.Errorf("Export: %w", err)
	}

	now := e.now()
	if uploader == nil {
		return "", export.Write(w, format, records, now)
	}

	var buf bytes.Buffer
	if err := export.Write(io.MultiWriter(w, &buf), format, records, now); err != nil {
		return "", err
	}
	uri, err := uploader.Upload(ctx, export.ObjectName(format, now), buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("Export: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("uri", uri).Msg("export uploaded")
	return uri, nil
}
