package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/recon-engine/internal/categorize"
	"github.com/dvloznov/recon-engine/internal/domain"
	"github.com/dvloznov/recon-engine/internal/ledger"
	"github.com/dvloznov/recon-engine/internal/logger"
	"github.com/dvloznov/recon-engine/internal/recon"
	"github.com/dvloznov/recon-engine/internal/review"
	"github.com/dvloznov/recon-engine/internal/store"
)

// Step is a single stage of the submission pipeline.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State is the shared state threaded through the pipeline steps.
type State struct {
	// Candidate is the record being reconciled; steps mutate it in place.
	Candidate *domain.TransactionRecord

	// Existing is the snapshot the candidate is checked against.
	Existing []*domain.TransactionRecord

	Matches        []recon.Match
	Review         review.Result
	Categorization *categorize.Result

	// Totals is the ledger state after the final recalculation.
	Totals domain.Balance
}

// NormalizeStep fills the defaults a sparse submission omits.
type NormalizeStep struct {
	Currency string
}

func (s *NormalizeStep) Name() string { return "normalize" }

func (s *NormalizeStep) Execute(ctx context.Context, state *State) error {
	rec := state.Candidate
	rec.Vendor = strings.TrimSpace(rec.Vendor)
	rec.Date = strings.TrimSpace(rec.Date)

	if rec.Currency == "" {
		rec.Currency = s.Currency
	}
	if rec.Type == "" {
		if rec.Income.IsPositive() {
			rec.Type = domain.TransactionTypeIncome
		} else {
			rec.Type = domain.TransactionTypeExpense
		}
	}
	if rec.Income.IsNegative() || rec.Expense.IsNegative() {
		return fmt.Errorf("normalize: negative amount on %q", rec.Vendor)
	}
	// A record with no confidence vector was entered by hand, not extracted;
	// treat every field as certain so it is judged on content alone.
	if len(rec.Confidence) == 0 {
		rec.Confidence = domain.ConfidenceVector{
			domain.FieldVendor:   1.0,
			domain.FieldAmount:   1.0,
			domain.FieldDate:     1.0,
			domain.FieldCategory: 1.0,
		}
	}
	return nil
}

// CategorizeStep assigns a category when the submission has none.
type CategorizeStep struct {
	Categorizer *categorize.Categorizer
}

func (s *CategorizeStep) Name() string { return "categorize" }

func (s *CategorizeStep) Execute(ctx context.Context, state *State) error {
	rec := state.Candidate
	if rec.Category != "" {
		return nil
	}
	result := s.Categorizer.Categorize(rec.Vendor, rec.Notes)
	rec.Category = result.Category
	if rec.Confidence != nil {
		rec.Confidence[domain.FieldCategory] = result.Confidence
	}
	state.Categorization = &result
	return nil
}

// AnalyzeStep runs the confidence analysis and sets the review flag.
type AnalyzeStep struct {
	Analyzer *review.Analyzer
}

func (s *AnalyzeStep) Name() string { return "analyze" }

func (s *AnalyzeStep) Execute(ctx context.Context, state *State) error {
	result := s.Analyzer.Analyze(state.Candidate)
	state.Review = result
	state.Candidate.NeedsReview = result.NeedsReview
	return nil
}

// DuplicateStep loads the current snapshot and marks the candidate when it
// scores at or above the threshold against an existing record.
type DuplicateStep struct {
	Store     store.RecordStore
	Detector  *recon.Detector
	Threshold float64
}

func (s *DuplicateStep) Name() string { return "detect-duplicates" }

func (s *DuplicateStep) Execute(ctx context.Context, state *State) error {
	existing, err := s.Store.List(ctx, store.Filter{})
	if err != nil {
		return fmt.Errorf("detect-duplicates: load snapshot: %w", err)
	}
	state.Existing = existing

	matches := s.Detector.FindDuplicates(state.Candidate, existing, s.Threshold)
	state.Matches = matches
	if len(matches) > 0 {
		state.Candidate.IsDuplicate = true
		state.Candidate.DuplicateOf = matches[0].MatchedID
		state.Candidate.NeedsReview = true
	}
	return nil
}

// PersistStep writes the candidate through the store, which assigns its ID.
type PersistStep struct {
	Store store.RecordStore
}

func (s *PersistStep) Name() string { return "persist" }

func (s *PersistStep) Execute(ctx context.Context, state *State) error {
	created, err := s.Store.Create(ctx, state.Candidate)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	state.Candidate = created
	return nil
}

// RecalculateStep reruns the full ledger pass now that the snapshot changed.
type RecalculateStep struct {
	Store  store.Store
	Recalc *ledger.Recalculator
}

func (s *RecalculateStep) Name() string { return "recalculate" }

func (s *RecalculateStep) Execute(ctx context.Context, state *State) error {
	totals, err := recalculate(ctx, s.Store, s.Recalc)
	if err != nil {
		return fmt.Errorf("recalculate: %w", err)
	}
	state.Totals = totals

	// Refresh the candidate so it carries its remaining balance.
	updated, err := s.Store.Get(ctx, state.Candidate.ID)
	if err != nil {
		return fmt.Errorf("recalculate: reload candidate: %w", err)
	}
	state.Candidate = updated
	return nil
}

// recalculate loads everything, recomputes running balances and writes the
// results back, including the balance row.
func recalculate(ctx context.Context, st store.Store, recalc *ledger.Recalculator) (domain.Balance, error) {
	records, err := st.List(ctx, store.Filter{})
	if err != nil {
		return domain.Balance{}, fmt.Errorf("load records: %w", err)
	}
	balance, err := st.GetBalance(ctx)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("load balance: %w", err)
	}

	result, err := recalc.Recalculate(balance.OpeningBalance, records)
	if err != nil {
		return domain.Balance{}, err
	}

	for _, rec := range result.Records {
		if err := st.Update(ctx, rec); err != nil {
			return domain.Balance{}, fmt.Errorf("write back record %d: %w", rec.ID, err)
		}
	}
	if err := st.SaveBalance(ctx, &result.Totals); err != nil {
		return domain.Balance{}, fmt.Errorf("save balance: %w", err)
	}
	return result.Totals, nil
}

// runPipeline executes the steps in order, logging each stage.
func runPipeline(ctx context.Context, steps []Step, state *State) error {
	log := logger.FromContext(ctx)
	for _, step := range steps {
		if err := step.Execute(ctx, state); err != nil {
			log.Error().Err(err).Str("step", step.Name()).Msg("pipeline step failed")
			return err
		}
		log.Debug().Str("step", step.Name()).Msg("pipeline step done")
	}
	return nil
}
