package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prequal-cli/internal/model"
)

// fillQualified populates a state that passes every rule.
func fillQualified(s Store, state *model.ConversationState) {
	s.Set(state, model.SlotDownPayment, 300_000.0, 0.95, model.SourceUserConfirmed)
	s.Set(state, model.SlotPropertyPrice, 1_000_000.0, 0.95, model.SourceUserConfirmed)
	s.Set(state, model.SlotLoanPurpose, model.PurposePrimary, 0.95, model.SourceUserConfirmed)
	s.Set(state, model.SlotPropertyCity, "Miami", 0.9, model.SourceUserConfirmed)
	s.Set(state, model.SlotPropertyState, "FL", 0.9, model.SourceUserConfirmed)
	s.Set(state, model.SlotHasPassport, true, 0.95, model.SourceUserConfirmed)
	s.Set(state, model.SlotHasVisa, true, 0.95, model.SourceUserConfirmed)
	s.Set(state, model.SlotCurrentCountry, "Brazil", 0.9, model.SourceUserConfirmed)
	s.Set(state, model.SlotIncomeDocumentable, true, 0.95, model.SourceUserConfirmed)
	s.Set(state, model.SlotReservesHeld, true, 0.95, model.SourceUserConfirmed)
}

func findViolation(vs []model.RuleViolation, ruleID string) *model.RuleViolation {
	for i := range vs {
		if vs[i].RuleID == ruleID {
			return &vs[i]
		}
	}
	return nil
}

func TestValidateCleanPass(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")
	fillQualified(s, state)

	assert.Empty(t, v.Validate(state))
	assert.Equal(t, model.DecisionPreApproved, v.FinalDecision(state))
}

func TestValidateLTVExactBoundaryPasses(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")
	fillQualified(s, state)

	// Exactly 25% down must pass despite float division.
	s.Set(state, model.SlotDownPayment, 250_000.0, 0.95, model.SourceUserConfirmed)
	s.Set(state, model.SlotPropertyPrice, 1_000_000.0, 0.95, model.SourceUserConfirmed)

	assert.Nil(t, findViolation(v.Validate(state), "ltv_minimum"))
}

func TestValidateLTVBelowMinimum(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")
	fillQualified(s, state)

	s.Set(state, model.SlotDownPayment, 200_000.0, 0.95, model.SourceUserConfirmed)
	s.Set(state, model.SlotPropertyPrice, 1_000_000.0, 0.95, model.SourceUserConfirmed)

	rv := findViolation(v.Validate(state), "ltv_minimum")
	require.NotNil(t, rv)
	assert.Equal(t, model.SeverityError, rv.Severity)
	// Percentages to a tenth of a percent, shortfall as exact dollars.
	assert.Contains(t, rv.Message, "20.0%")
	assert.Contains(t, rv.Message, "25.0%")
	assert.Contains(t, rv.Message, "$50,000")

	assert.Equal(t, model.DecisionRejected, v.FinalDecision(state))
}

func TestValidateLTVOneCentBelowFails(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")
	fillQualified(s, state)

	// One cent under the minimum is still under the minimum; the slack only
	// absorbs float representation error, never a real shortfall.
	s.Set(state, model.SlotDownPayment, 249_999.99, 0.95, model.SourceUserConfirmed)
	s.Set(state, model.SlotPropertyPrice, 1_000_000.0, 0.95, model.SourceUserConfirmed)

	rv := findViolation(v.Validate(state), "ltv_minimum")
	require.NotNil(t, rv)
	assert.Equal(t, model.SeverityError, rv.Severity)
	assert.Contains(t, rv.Message, "25.0%")
	assert.Contains(t, rv.Message, "$0.01")
	assert.Equal(t, model.DecisionRejected, v.FinalDecision(state))
}

func TestValidateLTVSkippedWhenInputsMissing(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")

	s.Set(state, model.SlotDownPayment, 100_000.0, 0.95, model.SourceUserConfirmed)
	assert.Nil(t, findViolation(v.Validate(state), "ltv_minimum"))
}

func TestValidateDocumentation(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")
	fillQualified(s, state)

	s.Set(state, model.SlotHasPassport, false, 0.95, model.SourceUserConfirmed)
	s.Set(state, model.SlotHasVisa, false, 0.95, model.SourceUserConfirmed)

	vs := v.Validate(state)
	assert.NotNil(t, findViolation(vs, "documentation_passport"))
	assert.NotNil(t, findViolation(vs, "documentation_visa"))
}

func TestValidateIncomeWaivedForInvestment(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")
	fillQualified(s, state)

	s.Set(state, model.SlotIncomeDocumentable, false, 0.95, model.SourceUserConfirmed)

	// Primary residence: undocumentable income is a hard failure.
	rv := findViolation(v.Validate(state), "income_documentation")
	require.NotNil(t, rv)
	assert.Equal(t, model.SeverityError, rv.Severity)

	// Investment purpose waives the rule.
	s.Set(state, model.SlotLoanPurpose, model.PurposeInvestment, 0.95, model.SourceUserConfirmed)
	assert.Nil(t, findViolation(v.Validate(state), "income_documentation"))
}

func TestValidateReserves(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")
	fillQualified(s, state)

	s.Set(state, model.SlotReservesHeld, false, 0.95, model.SourceUserConfirmed)

	rv := findViolation(v.Validate(state), "reserves_minimum")
	require.NotNil(t, rv)
	assert.Contains(t, rv.Message, "6 months")
}

func TestValidatePurposeWarningOnly(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")
	fillQualified(s, state)

	s.Set(state, model.SlotLoanPurpose, "flipping", 0.95, model.SourceUserConfirmed)

	rv := findViolation(v.Validate(state), "purpose_validity")
	require.NotNil(t, rv)
	assert.Equal(t, model.SeverityWarning, rv.Severity)

	// A warning alone never rejects.
	assert.Equal(t, model.DecisionPreApproved, v.FinalDecision(state))
}

func TestFinalDecisionNeedsReviewWhenIncomplete(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")

	s.Set(state, model.SlotDownPayment, 300_000.0, 0.95, model.SourceUserConfirmed)
	assert.Equal(t, model.DecisionNeedsReview, v.FinalDecision(state))
}

func TestValidateIsFreshEachPass(t *testing.T) {
	s := newTestStore()
	v := NewValidator(s, testCfg())
	state := model.NewConversationState("c-1")
	fillQualified(s, state)

	s.Set(state, model.SlotHasVisa, false, 0.95, model.SourceUserConfirmed)
	require.NotNil(t, findViolation(v.Validate(state), "documentation_visa"))

	// Fixing the fact clears the violation on the next pass.
	s.Set(state, model.SlotHasVisa, true, 0.95, model.SourceUserConfirmed)
	assert.Nil(t, findViolation(v.Validate(state), "documentation_visa"))
}
