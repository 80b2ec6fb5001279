package domain

// Severity is a coarse alert priority used for triage ordering.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertType identifies which detection rule produced an alert.
type AlertType string

const (
	AlertDuplicateCharges     AlertType = "duplicate_charges"
	AlertLargeTransaction     AlertType = "unusually_large_transaction"
	AlertLowConfidenceFields  AlertType = "low_confidence_fields"
	AlertCategoryChange       AlertType = "sudden_category_change"
	AlertSubscription         AlertType = "subscription_detected"
	AlertBalanceRisk          AlertType = "projected_balance_risk"
	AlertFirstTimeVendor      AlertType = "first_time_high_value_vendor"
	AlertWeekendSpike         AlertType = "weekend_spending_spike"
	AlertTaxDeductible        AlertType = "potential_tax_deductible"
)

// RiskAlert is one finding from a risk rule. Alerts are ephemeral: computed
// fresh on every analysis run and never persisted by the engine.
type RiskAlert struct {
	Severity          Severity  `json:"severity"`
	Type              AlertType `json:"type"`
	Message           string    `json:"message"`
	TransactionIDs    []int64   `json:"transaction_ids"` // may be empty for forward-looking projections
	RecommendedAction string    `json:"recommended_action"`
}
