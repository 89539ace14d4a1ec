package export

import (
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prequal-cli/internal/model"
)

func decidedState(id string, decision model.Decision) model.ConversationState {
	state := model.NewConversationState(id)
	state.Phase = model.PhaseComplete
	state.TurnNumber = 8
	state.FinalDecision = decision
	state.Slots[model.SlotPropertyPrice] = model.SlotValue{Value: 1_000_000.0, Confidence: 1.0, Source: model.SourceUserConfirmed}
	state.Slots[model.SlotDownPayment] = model.SlotValue{Value: 300_000.0, Confidence: 1.0, Source: model.SourceUserConfirmed}
	state.Slots[model.SlotPropertyCity] = model.SlotValue{Value: "Miami", Confidence: 1.0, Source: model.SourceUserConfirmed}
	state.Slots[model.SlotPropertyState] = model.SlotValue{Value: "FL", Confidence: 1.0, Source: model.SourceUserConfirmed}
	if decision == model.DecisionRejected {
		state.ValidationErrors = []model.RuleViolation{
			{RuleID: "min_down_payment", Message: "down payment below minimum", Severity: model.SeverityError},
			{RuleID: "purpose_validity", Message: "unusual purpose", Severity: model.SeverityWarning},
		}
	}
	return *state
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()

	states := []model.ConversationState{
		decidedState("c-1", model.DecisionPreApproved),
		*model.NewConversationState("c-undecided"),
		decidedState("c-2", model.DecisionRejected),
	}

	path, err := WriteCSV(dir, states)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	// Header plus the two decided conversations; the in-flight one is skipped.
	require.Len(t, rows, 3)
	assert.Equal(t, "conversation_id", rows[0][0])
	assert.Equal(t, "c-1", rows[1][0])
	assert.Equal(t, "pre_approved", rows[1][1])
	assert.Equal(t, "1000000.00", rows[1][4])
	assert.Equal(t, "300000.00", rows[1][5])
	assert.Equal(t, "Miami", rows[1][6])
	assert.Equal(t, "FL", rows[1][7])
	assert.Equal(t, "", rows[1][10])
	assert.Equal(t, "c-2", rows[2][0])
	assert.Equal(t, "rejected", rows[2][1])
	assert.Equal(t, "down payment below minimum", rows[2][10])
}

func TestWriteCSVEmpty(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteCSV(dir, nil)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
