package export

// The cell map below is a private, versioned contract between this package
// and the model input template: coordinates only change together with the
// template file stored alongside a release.

// TargetSheetName is the single sheet in the template that receives writes.
const TargetSheetName = "PERPETUITY MIDDLEMAN INPUT TAB"

// ScalarCell binds one canonical scalar field to a fixed cell coordinate.
type ScalarCell struct {
	Section string
	Field   string
	Cell    string
}

// scalarCells lists every scalar write target in a stable order so the
// applied-field audit trail is reproducible across exports.
var scalarCells = []ScalarCell{
	// Growth assumptions
	{"growth_assumptions", "market_rent_growth", "I35"},
	{"growth_assumptions", "affordable_rent_growth", "I36"},
	{"growth_assumptions", "other_income_growth", "I37"},
	{"growth_assumptions", "controllables_growth", "I38"},
	{"growth_assumptions", "taxes_growth", "I39"},
	{"growth_assumptions", "insurance_growth", "I40"},
	// Project timeline
	{"project_timeline", "land_closing_date", "C11"},
	{"project_timeline", "construction_start_month", "C13"},
	{"project_timeline", "first_units_delivered_month", "C16"},
	// Revenue and lease-up
	{"revenue_and_leaseup", "vacancy_pct", "C22"},
	{"revenue_and_leaseup", "loss_to_lease_pct", "C23"},
	{"revenue_and_leaseup", "bad_debt_pct", "C24"},
	{"revenue_and_leaseup", "model_units", "C25"},
	{"revenue_and_leaseup", "concessions_lease_up_months", "C27"},
	{"revenue_and_leaseup", "leased_units_per_month", "C36"},
	{"revenue_and_leaseup", "renewal_probability_pct", "C37"},
	{"revenue_and_leaseup", "lease_term_months", "C38"},
	// Operating expenses
	{"operating_expenses", "payroll", "C48"},
	{"operating_expenses", "utilities", "C49"},
	{"operating_expenses", "turnover", "C50"},
	{"operating_expenses", "contract_services", "C51"},
	{"operating_expenses", "repairs_maintenance", "C52"},
	{"operating_expenses", "leasing_marketing", "C53"},
	{"operating_expenses", "general_admin", "C54"},
	{"operating_expenses", "other_expenses", "C55"},
	{"operating_expenses", "management_fee_pct", "C58"},
	{"operating_expenses", "insurance", "C59"},
	{"operating_expenses", "property_taxes", "C60"},
	{"operating_expenses", "other_taxes_fees", "C61"},
	{"operating_expenses", "replacement_reserves", "C64"},
	// Senior loan terms
	{"senior_loan_terms", "loan_to_cost_pct", "F5"},
	{"senior_loan_terms", "interest_type", "F6"},
	{"senior_loan_terms", "curve", "F7"},
	{"senior_loan_terms", "sofr_spread_pct", "F8"},
	{"senior_loan_terms", "sofr_floor_pct", "F9"},
	{"senior_loan_terms", "sofr_cap_pct", "F10"},
	{"senior_loan_terms", "interest_only_period_months", "F11"},
	{"senior_loan_terms", "amortization_schedule_years", "F12"},
	{"senior_loan_terms", "initial_term_months", "F13"},
	{"senior_loan_terms", "origination_fee_pct", "F15"},
	{"senior_loan_terms", "rate_stepdown_dscr_multiple", "F16"},
	{"senior_loan_terms", "rate_stepdown_dy_pct", "F17"},
	{"senior_loan_terms", "stepdown_rate_pct", "F18"},
	{"senior_loan_terms", "exit_fee_pct", "F20"},
	// Preferred equity terms
	{"preferred_equity_terms", "has_preferred_equity", "C93"},
	{"preferred_equity_terms", "loan_to_cost_pct", "C94"},
	{"preferred_equity_terms", "initial_term_months", "C95"},
	{"preferred_equity_terms", "interest_type", "C96"},
	{"preferred_equity_terms", "sofr_spread_pct", "C97"},
	{"preferred_equity_terms", "sofr_floor_pct", "C98"},
	{"preferred_equity_terms", "total_interest_rate_pct", "C99"},
	{"preferred_equity_terms", "minimum_multiple", "C100"},
	{"preferred_equity_terms", "current_pay_pct", "C101"},
	{"preferred_equity_terms", "accrual_pct", "C102"},
	// Exit assumptions
	{"exit_assumptions", "sale_month", "F25"},
	{"exit_assumptions", "noi_type", "F26"},
	{"exit_assumptions", "sale_costs_pct", "F27"},
	{"exit_assumptions", "exit_cap_rate_mf_pct", "F28"},
	{"exit_assumptions", "exit_cap_rate_retail_pct", "F29"},
	// Tax reassessment at exit
	{"tax_reassessment_at_exit", "reassess_at_sale", "E33"},
	{"tax_reassessment_at_exit", "property_tax_millage_rate_pct", "F34"},
	{"tax_reassessment_at_exit", "county_assessment_pct", "F35"},
	{"tax_reassessment_at_exit", "market_value_as_pct_of_sale_price", "F36"},
	// Sources and uses
	{"sources_and_uses", "land_acquisition_cost", "J13"},
	{"sources_and_uses", "hard_costs_total", "J14"},
	{"sources_and_uses", "soft_costs_total", "J15"},
	{"sources_and_uses", "financing_costs", "J16"},
	{"sources_and_uses", "operating_reserve", "J17"},
	{"sources_and_uses", "senior_interest_reserve", "J18"},
}

// BandColumn binds one table column to a template column letter.
type BandColumn struct {
	Field  string
	Column string
	// Text columns bypass numeric coercion so row labels like "2BR/2BA"
	// are never mangled.
	Text bool
}

// TableBand describes the fixed row range a table section occupies.
type TableBand struct {
	Section  string
	StartRow int
	MaxRows  int
	Columns  []BandColumn
}

// columnLetters returns the distinct column letters of the band, for the
// pre-write clearing pass.
func (b TableBand) columnLetters() []string {
	seen := make(map[string]bool, len(b.Columns))
	letters := make([]string, 0, len(b.Columns))
	for _, c := range b.Columns {
		if seen[c.Column] {
			continue
		}
		seen[c.Column] = true
		letters = append(letters, c.Column)
	}
	return letters
}

// tableBands lists the repeating-row sections in export order. Column order
// within a band matters: unit_mix writes original_label after unit_type into
// the same column, so the source label wins when both are present.
var tableBands = []TableBand{
	{
		Section:  "unit_mix",
		StartRow: 23,
		MaxRows:  6,
		Columns: []BandColumn{
			{Field: "unit_type", Column: "H"},
			{Field: "num_units", Column: "I"},
			{Field: "avg_sf", Column: "J"},
			{Field: "rent", Column: "K"},
			{Field: "original_label", Column: "H"},
		},
	},
	{
		Section:  "other_income",
		StartRow: 70,
		MaxRows:  16,
		Columns: []BandColumn{
			{Field: "item_name", Column: "B", Text: true},
			{Field: "num_units", Column: "C"},
			{Field: "amount_per_month", Column: "D"},
		},
	},
	{
		Section:  "waterfall",
		StartRow: 45,
		MaxRows:  5,
		Columns: []BandColumn{
			{Field: "tier_name", Column: "H", Text: true},
			{Field: "lp_split_pct", Column: "I"},
			{Field: "gp_split_pct", Column: "J"},
			{Field: "hurdle_irr_pct", Column: "L"},
			{Field: "moic_multiple", Column: "M"},
			{Field: "dollar_amount", Column: "N"},
		},
	},
}
