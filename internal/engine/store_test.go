package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prequal-cli/internal/config"
	"github.com/sells-group/prequal-cli/internal/model"
)

func testCfg() config.EngineConfig {
	return config.EngineConfig{
		FilledThreshold:           0.6,
		MinDownPct:                0.25,
		ConfirmThreshold:          0.4,
		FinancialConfirmThreshold: 0.7,
		ImmediateRepeatPenalty:    15,
		RepetitionPenaltyWeight:   3,
		RecencyBoost:              7,
		MinReserveMonths:          6,
	}
}

func newTestStore() Store {
	return NewStore(model.DefaultRegistry(), 0.6)
}

func TestStoreSetAndGet(t *testing.T) {
	s := newTestStore()
	state := model.NewConversationState("c-1")
	state.TurnNumber = 3

	s.Set(state, model.SlotDownPayment, 300_000.0, 0.9, model.SourceDeterministic)

	v, ok := s.Get(state, model.SlotDownPayment)
	require.True(t, ok)
	assert.InDelta(t, 300_000, v.(float64), 0.001)
	assert.InDelta(t, 0.9, s.Confidence(state, model.SlotDownPayment), 0.001)
	assert.Equal(t, 3, state.Slots[model.SlotDownPayment].LastSeenTurn)
	assert.Nil(t, state.Slots[model.SlotDownPayment].LastConfirmedTurn)

	_, ok = s.Get(state, model.SlotHasVisa)
	assert.False(t, ok)
	assert.InDelta(t, 0.0, s.Confidence(state, model.SlotHasVisa), 0.001)
}

func TestStoreConfirmedStampsTurn(t *testing.T) {
	s := newTestStore()
	state := model.NewConversationState("c-1")

	state.TurnNumber = 2
	s.Set(state, model.SlotPropertyPrice, 1_000_000.0, 0.8, model.SourceModel)
	require.Nil(t, state.Slots[model.SlotPropertyPrice].LastConfirmedTurn)

	state.TurnNumber = 4
	s.Set(state, model.SlotPropertyPrice, 1_000_000.0, 1.0, model.SourceUserConfirmed)
	require.NotNil(t, state.Slots[model.SlotPropertyPrice].LastConfirmedTurn)
	assert.Equal(t, 4, *state.Slots[model.SlotPropertyPrice].LastConfirmedTurn)

	// A later unconfirmed update keeps the confirmation stamp.
	state.TurnNumber = 6
	s.Set(state, model.SlotPropertyPrice, 1_000_000.0, 0.9, model.SourceModel)
	require.NotNil(t, state.Slots[model.SlotPropertyPrice].LastConfirmedTurn)
	assert.Equal(t, 4, *state.Slots[model.SlotPropertyPrice].LastConfirmedTurn)
}

func TestStoreIsFilled(t *testing.T) {
	s := newTestStore()
	state := model.NewConversationState("c-1")

	s.Set(state, model.SlotPropertyCity, "Miami", 0.59, model.SourceModel)
	assert.False(t, s.IsFilled(state, model.SlotPropertyCity))

	s.Set(state, model.SlotPropertyCity, "Miami", 0.6, model.SourceModel)
	assert.True(t, s.IsFilled(state, model.SlotPropertyCity))
}

func TestStoreMissingPriorityOrder(t *testing.T) {
	s := newTestStore()
	state := model.NewConversationState("c-1")

	missing := s.Missing(state)
	require.Len(t, missing, 10)
	assert.Equal(t, model.SlotDownPayment, missing[0])
	assert.Equal(t, model.SlotPropertyPrice, missing[1])

	s.Set(state, model.SlotDownPayment, 300_000.0, 0.9, model.SourceDeterministic)
	missing = s.Missing(state)
	require.Len(t, missing, 9)
	assert.Equal(t, model.SlotPropertyPrice, missing[0])
}

func TestStoreTypedAccessors(t *testing.T) {
	s := newTestStore()
	state := model.NewConversationState("c-1")

	s.Set(state, model.SlotDownPayment, 300_000.0, 0.9, model.SourceDeterministic)
	s.Set(state, model.SlotHasVisa, true, 0.95, model.SourceDeterministic)
	s.Set(state, model.SlotPropertyCity, "Miami", 0.8, model.SourceModel)
	s.Set(state, model.SlotPropertyState, "FL", 0.3, model.SourceModel) // below threshold

	n, ok := s.NumberValue(state, model.SlotDownPayment)
	require.True(t, ok)
	assert.InDelta(t, 300_000, n, 0.001)

	b, ok := s.BoolValue(state, model.SlotHasVisa)
	require.True(t, ok)
	assert.True(t, b)

	txt, ok := s.TextValue(state, model.SlotPropertyCity)
	require.True(t, ok)
	assert.Equal(t, "Miami", txt)

	_, ok = s.TextValue(state, model.SlotPropertyState)
	assert.False(t, ok)
}

func TestNewStoreDefaultThreshold(t *testing.T) {
	s := NewStore(model.DefaultRegistry(), 0)
	assert.InDelta(t, 0.6, s.FilledThreshold, 0.001)
}
