// Package engine implements the slot-filling dialogue core: the slot store,
// the per-turn delta calculator, the confirmation policy, the priority
// scheduler, the business-rule validator, and the turn orchestrator.
package engine

import (
	"github.com/sells-group/prequal-cli/internal/model"
)

// Store provides the slot-store operations over a conversation state. It is a
// dumb container: magnitude and sanity checks happen in the delta pass before
// Set is ever called, so the store's invariants stay trivially checkable.
type Store struct {
	Reg             *model.SlotRegistry
	FilledThreshold float64
}

// NewStore creates a Store with the given fill threshold (0 falls back to 0.6).
func NewStore(reg *model.SlotRegistry, filledThreshold float64) Store {
	if filledThreshold <= 0 {
		filledThreshold = 0.6
	}
	return Store{Reg: reg, FilledThreshold: filledThreshold}
}

// Get returns the stored value for a slot, or (nil, false) if absent.
func (s Store) Get(state *model.ConversationState, name model.SlotName) (any, bool) {
	sv, ok := state.Slots[name]
	if !ok {
		return nil, false
	}
	return sv.Value, true
}

// Confidence returns the stored confidence for a slot, 0.0 if absent.
func (s Store) Confidence(state *model.ConversationState, name model.SlotName) float64 {
	if sv, ok := state.Slots[name]; ok {
		return sv.Confidence
	}
	return 0.0
}

// Set overwrites the whole SlotValue atomically, stamping the current turn.
func (s Store) Set(state *model.ConversationState, name model.SlotName, value any, confidence float64, source model.ValueSource) {
	sv := model.SlotValue{
		Value:        value,
		Confidence:   confidence,
		Source:       source,
		LastSeenTurn: state.TurnNumber,
	}
	if source == model.SourceUserConfirmed {
		turn := state.TurnNumber
		sv.LastConfirmedTurn = &turn
	} else if prev, ok := state.Slots[name]; ok {
		sv.LastConfirmedTurn = prev.LastConfirmedTurn
	}
	state.Slots[name] = sv
}

// IsFilled reports whether the slot holds a value at or above the threshold.
func (s Store) IsFilled(state *model.ConversationState, name model.SlotName) bool {
	return s.Confidence(state, name) >= s.FilledThreshold
}

// Missing returns the unfilled slots in business-priority order.
func (s Store) Missing(state *model.ConversationState) []model.SlotName {
	var missing []model.SlotName
	for _, d := range s.Reg.Slots {
		if !s.IsFilled(state, d.Name) {
			missing = append(missing, d.Name)
		}
	}
	return missing
}

// NumberValue returns a slot's value as float64 when it is a filled number.
func (s Store) NumberValue(state *model.ConversationState, name model.SlotName) (float64, bool) {
	if !s.IsFilled(state, name) {
		return 0, false
	}
	n, ok := state.Slots[name].Value.(float64)
	return n, ok
}

// BoolValue returns a slot's value as bool when it is a filled boolean.
func (s Store) BoolValue(state *model.ConversationState, name model.SlotName) (bool, bool) {
	if !s.IsFilled(state, name) {
		return false, false
	}
	b, ok := state.Slots[name].Value.(bool)
	return b, ok
}

// TextValue returns a slot's value as string when it is a filled text slot.
func (s Store) TextValue(state *model.ConversationState, name model.SlotName) (string, bool) {
	if !s.IsFilled(state, name) {
		return "", false
	}
	t, ok := state.Slots[name].Value.(string)
	return t, ok
}
