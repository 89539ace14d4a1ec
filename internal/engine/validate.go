package engine

import (
	"fmt"

	"github.com/sells-group/prequal-cli/internal/config"
	"github.com/sells-group/prequal-cli/internal/model"
)

// floatSlack absorbs float representation error at rule boundaries so a down
// payment of exactly the minimum percentage passes.
const floatSlack = 1e-9

// Validator is the single place qualification logic lives. Every call site
// that needs a decision goes through it; no other code recomputes thresholds.
type Validator struct {
	store Store
	cfg   config.EngineConfig
}

// NewValidator creates a Validator over the given store and engine config.
func NewValidator(store Store, cfg config.EngineConfig) Validator {
	return Validator{store: store, cfg: cfg}
}

// Validate re-checks every business rule against the filled slots and returns
// the violations found. It is pure: no caching, no mutation, fresh output on
// every pass. Rules whose inputs are not yet filled are skipped — the
// decision layer handles incompleteness as NeedsReview.
func (v Validator) Validate(state *model.ConversationState) []model.RuleViolation {
	var violations []model.RuleViolation

	if rv := v.checkLTV(state); rv != nil {
		violations = append(violations, *rv)
	}
	violations = append(violations, v.checkDocumentation(state)...)
	if rv := v.checkIncome(state); rv != nil {
		violations = append(violations, *rv)
	}
	if rv := v.checkReserves(state); rv != nil {
		violations = append(violations, *rv)
	}
	if rv := v.checkPurpose(state); rv != nil {
		violations = append(violations, *rv)
	}

	return violations
}

// checkLTV enforces down_payment / property_price >= MinDownPct. The message
// reports both percentages to a tenth of a percent and the exact additional
// down payment that would close the gap.
func (v Validator) checkLTV(state *model.ConversationState) *model.RuleViolation {
	down, okD := v.store.NumberValue(state, model.SlotDownPayment)
	price, okP := v.store.NumberValue(state, model.SlotPropertyPrice)
	if !okD || !okP || price <= 0 {
		return nil
	}

	pct := down / price
	if pct+floatSlack >= v.cfg.MinDownPct {
		return nil
	}

	shortfall := price*v.cfg.MinDownPct - down
	return &model.RuleViolation{
		RuleID: "ltv_minimum",
		Message: fmt.Sprintf("Down payment of %.1f%% is below the required minimum of %.1f%%; an additional %s down would be needed.",
			pct*100, v.cfg.MinDownPct*100, FormatMoney(shortfall)),
		Severity: model.SeverityError,
	}
}

func (v Validator) checkDocumentation(state *model.ConversationState) []model.RuleViolation {
	var violations []model.RuleViolation
	if passport, ok := v.store.BoolValue(state, model.SlotHasPassport); ok && !passport {
		violations = append(violations, model.RuleViolation{
			RuleID:   "documentation_passport",
			Message:  "A valid passport is required for a foreign-national program.",
			Severity: model.SeverityError,
		})
	}
	if visa, ok := v.store.BoolValue(state, model.SlotHasVisa); ok && !visa {
		violations = append(violations, model.RuleViolation{
			RuleID:   "documentation_visa",
			Message:  "A valid U.S. visa is required for a foreign-national program.",
			Severity: model.SeverityError,
		})
	}
	return violations
}

// checkIncome requires documentable income unless the loan purpose is the
// income-flexible category, where the property's cash flow qualifies instead.
func (v Validator) checkIncome(state *model.ConversationState) *model.RuleViolation {
	if purpose, ok := v.store.TextValue(state, model.SlotLoanPurpose); ok && model.IncomeFlexiblePurpose(purpose) {
		return nil
	}
	documentable, ok := v.store.BoolValue(state, model.SlotIncomeDocumentable)
	if !ok || documentable {
		return nil
	}
	return &model.RuleViolation{
		RuleID:   "income_documentation",
		Message:  "Income must be documentable (bank statements, tax returns, or an accountant letter) for this loan purpose.",
		Severity: model.SeverityError,
	}
}

func (v Validator) checkReserves(state *model.ConversationState) *model.RuleViolation {
	held, ok := v.store.BoolValue(state, model.SlotReservesHeld)
	if !ok || held {
		return nil
	}
	return &model.RuleViolation{
		RuleID:   "reserves_minimum",
		Message:  fmt.Sprintf("At least %d months of payment reserves are required beyond the down payment.", v.cfg.MinReserveMonths),
		Severity: model.SeverityError,
	}
}

// checkPurpose flags an out-of-enum purpose as a validation gap, not a
// rejection.
func (v Validator) checkPurpose(state *model.ConversationState) *model.RuleViolation {
	purpose, ok := v.store.TextValue(state, model.SlotLoanPurpose)
	if !ok || model.ValidPurposes[purpose] {
		return nil
	}
	return &model.RuleViolation{
		RuleID:   "purpose_validity",
		Message:  fmt.Sprintf("Loan purpose %q is not a recognized program category.", purpose),
		Severity: model.SeverityWarning,
	}
}

// FinalDecision computes the terminal outcome. Deterministic and
// side-effect-free: NeedsReview exactly when required slots remain unfilled,
// Rejected when any hard rule fails, PreApproved otherwise.
func (v Validator) FinalDecision(state *model.ConversationState) model.Decision {
	if len(v.store.Missing(state)) > 0 {
		return model.DecisionNeedsReview
	}
	for _, rv := range v.Validate(state) {
		if rv.Severity == model.SeverityError {
			return model.DecisionRejected
		}
	}
	return model.DecisionPreApproved
}
