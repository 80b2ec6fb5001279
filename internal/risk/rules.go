package risk

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/dateparse"
	"github.com/dvloznov/recon-engine/internal/domain"
	"github.com/dvloznov/recon-engine/internal/recon"
)

// magnitude is the amount a rule reasons about; records with neither income
// nor expense contribute zero.
func magnitude(rec *domain.TransactionRecord) decimal.Decimal {
	amt, ok := rec.Amount()
	if !ok {
		return decimal.Zero
	}
	return amt
}

func meanMagnitude(records []*domain.TransactionRecord, positiveOnly bool) (decimal.Decimal, bool) {
	sum := decimal.Zero
	count := 0
	for _, rec := range records {
		m := magnitude(rec)
		if positiveOnly && !m.IsPositive() {
			continue
		}
		sum = sum.Add(m)
		count++
	}
	if count == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(count))), true
}

func mulFloat(d decimal.Decimal, f float64) decimal.Decimal {
	return d.Mul(decimal.NewFromFloat(f))
}

// DuplicateChargesRule reuses the duplicate detector at the audit threshold,
// clustering: once a record and its matches are reported, none of them are
// reported again.
type DuplicateChargesRule struct {
	Detector *recon.Detector
}

func (r *DuplicateChargesRule) Name() string { return "duplicate_charges" }

func (r *DuplicateChargesRule) Evaluate(records []*domain.TransactionRecord, cfg Config) []domain.RiskAlert {
	var alerts []domain.RiskAlert
	processed := make(map[int64]bool, len(records))

	for i, rec := range records {
		if processed[rec.ID] {
			continue
		}
		others := make([]*domain.TransactionRecord, 0, len(records)-1)
		others = append(others, records[:i]...)
		others = append(others, records[i+1:]...)

		matches := r.Detector.FindDuplicates(rec, others, cfg.DuplicateThreshold)
		if len(matches) == 0 {
			continue
		}

		ids := make([]int64, 0, len(matches)+1)
		for _, m := range matches {
			ids = append(ids, m.MatchedID)
		}
		ids = append(ids, rec.ID)
		for _, id := range ids {
			processed[id] = true
		}

		alerts = append(alerts, domain.RiskAlert{
			Severity: domain.SeverityMedium,
			Type:     domain.AlertDuplicateCharges,
			Message: fmt.Sprintf("potential duplicate transactions detected for %s with amount %s",
				rec.Vendor, magnitude(rec).String()),
			TransactionIDs:    ids,
			RecommendedAction: "Review and merge duplicate transactions",
		})
	}
	return alerts
}

// LargeTransactionRule flags amounts above a multiple of the mean of all
// positive amounts.
type LargeTransactionRule struct{}

func (r *LargeTransactionRule) Name() string { return "unusually_large_transaction" }

func (r *LargeTransactionRule) Evaluate(records []*domain.TransactionRecord, cfg Config) []domain.RiskAlert {
	mean, ok := meanMagnitude(records, true)
	if !ok {
		return nil
	}
	threshold := mulFloat(mean, cfg.LargeMultiplier)

	var alerts []domain.RiskAlert
	for _, rec := range records {
		if m := magnitude(rec); m.GreaterThan(threshold) {
			alerts = append(alerts, domain.RiskAlert{
				Severity: domain.SeverityHigh,
				Type:     domain.AlertLargeTransaction,
				Message: fmt.Sprintf("transaction amount %s is unusually large compared to historical average of %s",
					m.String(), mean.StringFixed(2)),
				TransactionIDs:    []int64{rec.ID},
				RecommendedAction: "Verify the transaction details and source",
			})
		}
	}
	return alerts
}

// LowConfidenceRule is a proactive audit over the confidence vectors,
// stricter than the ingestion gate.
type LowConfidenceRule struct{}

func (r *LowConfidenceRule) Name() string { return "low_confidence_fields" }

func (r *LowConfidenceRule) Evaluate(records []*domain.TransactionRecord, cfg Config) []domain.RiskAlert {
	var alerts []domain.RiskAlert
	for _, rec := range records {
		var low []string
		for field, score := range rec.Confidence {
			if score < cfg.LowConfidenceCutoff {
				low = append(low, field)
			}
		}
		if len(low) == 0 {
			continue
		}
		sort.Strings(low)
		alerts = append(alerts, domain.RiskAlert{
			Severity: domain.SeverityMedium,
			Type:     domain.AlertLowConfidenceFields,
			Message: fmt.Sprintf("low confidence in fields: %s for transaction %d",
				strings.Join(low, ", "), rec.ID),
			TransactionIDs:    []int64{rec.ID},
			RecommendedAction: "Review and correct the low-confidence fields",
		})
	}
	return alerts
}

// CategoryChangeRule compares per-category spend between consecutive months.
type CategoryChangeRule struct{}

func (r *CategoryChangeRule) Name() string { return "sudden_category_change" }

func (r *CategoryChangeRule) Evaluate(records []*domain.TransactionRecord, cfg Config) []domain.RiskAlert {
	type monthCat struct {
		month    string
		category string
	}
	spend := make(map[monthCat]decimal.Decimal)
	months := make(map[string]bool)
	recMonth := make(map[int64]string, len(records))

	for _, rec := range records {
		d, ok := cfg.Dates.Parse(rec.Date)
		if !ok {
			continue
		}
		month := d.Format("2006-01")
		months[month] = true
		recMonth[rec.ID] = month
		key := monthCat{month: month, category: rec.Category}
		spend[key] = spend[key].Add(magnitude(rec))
	}

	ordered := make([]string, 0, len(months))
	for m := range months {
		ordered = append(ordered, m)
	}
	sort.Strings(ordered)

	var alerts []domain.RiskAlert
	for i := 1; i < len(ordered); i++ {
		prev, curr := ordered[i-1], ordered[i]

		cats := make(map[string]bool)
		for key := range spend {
			if key.month == prev || key.month == curr {
				cats[key.category] = true
			}
		}
		orderedCats := make([]string, 0, len(cats))
		for c := range cats {
			orderedCats = append(orderedCats, c)
		}
		sort.Strings(orderedCats)

		for _, cat := range orderedCats {
			prevAmt := spend[monthCat{month: prev, category: cat}]
			currAmt := spend[monthCat{month: curr, category: cat}]
			if !prevAmt.IsPositive() {
				continue
			}
			changePct, _ := currAmt.Sub(prevAmt).Div(prevAmt).Mul(decimal.NewFromInt(100)).Float64()
			abs := changePct
			if abs < 0 {
				abs = -abs
			}
			if abs <= cfg.CategoryChangePct {
				continue
			}

			var ids []int64
			for _, rec := range records {
				if rec.Category == cat && recMonth[rec.ID] == curr {
					ids = append(ids, rec.ID)
				}
			}
			if len(ids) == 0 {
				continue
			}
			alerts = append(alerts, domain.RiskAlert{
				Severity: domain.SeverityMedium,
				Type:     domain.AlertCategoryChange,
				Message: fmt.Sprintf("sudden %.1f%% change in %s spending from %s to %s in %s",
					changePct, cat, prevAmt.StringFixed(2), currAmt.StringFixed(2), curr),
				TransactionIDs:    ids,
				RecommendedAction: "Investigate the reason for the spending change",
			})
		}
	}
	return alerts
}

// SubscriptionRule looks for vendors charging the same amount on a roughly
// monthly cadence.
type SubscriptionRule struct{}

func (r *SubscriptionRule) Name() string { return "subscription_detected" }

func (r *SubscriptionRule) Evaluate(records []*domain.TransactionRecord, cfg Config) []domain.RiskAlert {
	byVendor := make(map[string][]*domain.TransactionRecord)
	for _, rec := range records {
		byVendor[rec.Vendor] = append(byVendor[rec.Vendor], rec)
	}

	vendors := make([]string, 0, len(byVendor))
	for v := range byVendor {
		vendors = append(vendors, v)
	}
	sort.Strings(vendors)

	var alerts []domain.RiskAlert
	for _, vendor := range vendors {
		txs := byVendor[vendor]
		if len(txs) < cfg.SubscriptionMinCount {
			continue
		}

		amount := magnitude(txs[0])
		same := true
		for _, tx := range txs[1:] {
			if !magnitude(tx).Equal(amount) {
				same = false
				break
			}
		}
		if !same {
			continue
		}

		var dates []time.Time
		for _, tx := range txs {
			d, ok := cfg.Dates.Parse(tx.Date)
			if !ok {
				break
			}
			dates = append(dates, d)
		}
		if len(dates) != len(txs) {
			continue
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		var totalDays float64
		for i := 1; i < len(dates); i++ {
			totalDays += float64(dateparse.DaysBetween(dates[i], dates[i-1]))
		}
		avgInterval := totalDays / float64(len(dates)-1)
		if avgInterval < cfg.SubscriptionMinIntervalDays || avgInterval > cfg.SubscriptionMaxIntervalDays {
			continue
		}

		ids := make([]int64, len(txs))
		for i, tx := range txs {
			ids[i] = tx.ID
		}
		alerts = append(alerts, domain.RiskAlert{
			Severity: domain.SeverityLow,
			Type:     domain.AlertSubscription,
			Message: fmt.Sprintf("potential monthly subscription detected for %s with amount %s",
				vendor, amount.String()),
			TransactionIDs:    ids,
			RecommendedAction: "Confirm if this is a subscription and categorize accordingly",
		})
	}
	return alerts
}

// BalanceRiskRule projects the running balance forward through future-dated
// transactions and flags depletion within the horizon.
type BalanceRiskRule struct{}

func (r *BalanceRiskRule) Name() string { return "projected_balance_risk" }

func (r *BalanceRiskRule) Evaluate(records []*domain.TransactionRecord, cfg Config) []domain.RiskAlert {
	type dated struct {
		rec  *domain.TransactionRecord
		date time.Time
	}
	var parsed []dated
	for _, rec := range records {
		if d, ok := cfg.Dates.Parse(rec.Date); ok {
			parsed = append(parsed, dated{rec: rec, date: d})
		}
	}
	if len(parsed) == 0 {
		return nil
	}
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].date.Before(parsed[j].date) })

	// The projection starts from the earliest known running balance.
	balance := parsed[0].rec.RemainingBalance
	now := cfg.Now()

	var depletion time.Time
	for _, d := range parsed {
		if !d.date.After(now) {
			continue
		}
		balance = balance.Add(d.rec.Signed())
		if balance.IsNegative() {
			depletion = d.date
			break
		}
	}
	if depletion.IsZero() {
		return nil
	}

	days := int(depletion.Sub(now).Hours() / 24)
	if days > cfg.DepletionHorizonDays {
		return nil
	}
	return []domain.RiskAlert{{
		Severity: domain.SeverityHigh,
		Type:     domain.AlertBalanceRisk,
		Message: fmt.Sprintf("projected cash depletion within %d days based on upcoming expenses",
			days),
		TransactionIDs:    []int64{},
		RecommendedAction: "Review upcoming expenses and adjust budget",
	}}
}

// FirstTimeVendorRule flags single-appearance vendors with an amount well
// above the overall mean.
type FirstTimeVendorRule struct{}

func (r *FirstTimeVendorRule) Name() string { return "first_time_high_value_vendor" }

func (r *FirstTimeVendorRule) Evaluate(records []*domain.TransactionRecord, cfg Config) []domain.RiskAlert {
	mean, ok := meanMagnitude(records, false)
	if !ok {
		return nil
	}
	threshold := mulFloat(mean, cfg.FirstTimeMultiplier)

	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Vendor]++
	}

	var alerts []domain.RiskAlert
	for _, rec := range records {
		if counts[rec.Vendor] != 1 {
			continue
		}
		if m := magnitude(rec); m.GreaterThan(threshold) {
			alerts = append(alerts, domain.RiskAlert{
				Severity: domain.SeverityMedium,
				Type:     domain.AlertFirstTimeVendor,
				Message: fmt.Sprintf("first-time vendor %s with high value transaction of %s",
					rec.Vendor, m.String()),
				TransactionIDs:    []int64{rec.ID},
				RecommendedAction: "Verify the legitimacy of this new vendor transaction",
			})
		}
	}
	return alerts
}

// WeekendSpikeRule compares average weekend spend against weekdays.
type WeekendSpikeRule struct{}

func (r *WeekendSpikeRule) Name() string { return "weekend_spending_spike" }

func (r *WeekendSpikeRule) Evaluate(records []*domain.TransactionRecord, cfg Config) []domain.RiskAlert {
	weekendSum, weekdaySum := decimal.Zero, decimal.Zero
	weekendCount, weekdayCount := 0, 0
	var weekendIDs []int64

	for _, rec := range records {
		d, ok := cfg.Dates.Parse(rec.Date)
		if !ok {
			continue
		}
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekendSum = weekendSum.Add(magnitude(rec))
			weekendCount++
			weekendIDs = append(weekendIDs, rec.ID)
		} else {
			weekdaySum = weekdaySum.Add(magnitude(rec))
			weekdayCount++
		}
	}
	if weekendCount == 0 || weekdayCount == 0 {
		return nil
	}

	avgWeekend := weekendSum.Div(decimal.NewFromInt(int64(weekendCount)))
	avgWeekday := weekdaySum.Div(decimal.NewFromInt(int64(weekdayCount)))
	if !avgWeekend.GreaterThan(mulFloat(avgWeekday, cfg.WeekendMultiplier)) {
		return nil
	}

	return []domain.RiskAlert{{
		Severity: domain.SeverityLow,
		Type:     domain.AlertWeekendSpike,
		Message: fmt.Sprintf("unusual spending spike on weekends: %s vs weekday average %s",
			avgWeekend.StringFixed(2), avgWeekday.StringFixed(2)),
		TransactionIDs:    weekendIDs,
		RecommendedAction: "Review weekend transactions for unusual activity",
	}}
}

// TaxDeductibleRule surfaces transactions in deductible categories worth a
// second look at filing time.
type TaxDeductibleRule struct{}

func (r *TaxDeductibleRule) Name() string { return "potential_tax_deductible" }

func (r *TaxDeductibleRule) Evaluate(records []*domain.TransactionRecord, cfg Config) []domain.RiskAlert {
	deductible := make(map[string]bool, len(cfg.TaxDeductibleCategories))
	for _, cat := range cfg.TaxDeductibleCategories {
		deductible[strings.ToLower(cat)] = true
	}

	var alerts []domain.RiskAlert
	for _, rec := range records {
		if !deductible[strings.ToLower(rec.Category)] {
			continue
		}
		if m := magnitude(rec); m.GreaterThan(cfg.TaxDeductibleMinimum) {
			alerts = append(alerts, domain.RiskAlert{
				Severity: domain.SeverityLow,
				Type:     domain.AlertTaxDeductible,
				Message: fmt.Sprintf("potential tax-deductible expense in category %s for amount %s",
					rec.Category, m.String()),
				TransactionIDs:    []int64{rec.ID},
				RecommendedAction: "Check if this expense qualifies for tax deduction",
			})
		}
	}
	return alerts
}
