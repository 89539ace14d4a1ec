package engine

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prequal-cli/internal/extract"
	"github.com/sells-group/prequal-cli/internal/model"
)

// ComputeDeltas diffs a sanitized extraction against the stored slots,
// classifying each candidate as new, changed, or confirmed. Candidates that
// trip the zero/negative guard are dropped here, before anything touches the
// store, and never generate a confirmation prompt. Output order follows the
// registry's priority order so downstream prompts are deterministic.
func (s Store) ComputeDeltas(state *model.ConversationState, ext extract.Extraction) []model.Delta {
	var deltas []model.Delta
	for _, def := range s.Reg.Slots {
		cand, ok := ext[def.Name]
		if !ok {
			continue
		}

		existing, held := state.Slots[def.Name]
		if held && guardRejects(def, existing.Value, cand.Value) {
			zap.L().Warn("delta: guard rejected candidate",
				zap.String("conversation", state.ConversationID),
				zap.String("slot", string(def.Name)),
				zap.Any("candidate", cand.Value),
				zap.Any("held", existing.Value),
			)
			continue
		}

		change := model.ChangeNew
		if held {
			if valuesEqual(def.Kind, existing.Value, cand.Value) {
				change = model.ChangeConfirmed
			} else {
				change = model.ChangeChanged
			}
		}

		deltas = append(deltas, model.Delta{
			Slot:       def.Name,
			Value:      cand.Value,
			Confidence: cand.Confidence,
			Source:     cand.Source,
			Change:     change,
		})
	}
	return deltas
}

// guardRejects blocks a zero or negative numeric candidate from overwriting a
// held positive value, so an extraction glitch cannot silently erase a good
// figure.
func guardRejects(def model.SlotDefinition, held, candidate any) bool {
	if def.Kind != model.KindNumber {
		return false
	}
	heldN, ok1 := held.(float64)
	candN, ok2 := candidate.(float64)
	if !ok1 || !ok2 {
		return false
	}
	return heldN > 0 && candN <= 0
}

// valuesEqual compares a candidate against the held value per the slot kind.
// Numbers tolerate float representation error; text compares case-insensitively.
func valuesEqual(kind model.SlotKind, a, b any) bool {
	switch kind {
	case model.KindNumber:
		x, ok1 := a.(float64)
		y, ok2 := b.(float64)
		return ok1 && ok2 && math.Abs(x-y) < 1e-9
	case model.KindBoolean:
		x, ok1 := a.(bool)
		y, ok2 := b.(bool)
		return ok1 && ok2 && x == y
	case model.KindText:
		x, ok1 := a.(string)
		y, ok2 := b.(string)
		return ok1 && ok2 && strings.EqualFold(strings.TrimSpace(x), strings.TrimSpace(y))
	default:
		return false
	}
}

// Commit applies a delta to the store. A confirmed repetition only refreshes
// the stored value when the new confidence is strictly higher; repetition by
// itself is not a confidence bump.
func (s Store) Commit(state *model.ConversationState, d model.Delta) {
	if d.Change == model.ChangeConfirmed {
		existing := state.Slots[d.Slot]
		if d.Confidence <= existing.Confidence {
			return
		}
	}
	s.Set(state, d.Slot, d.Value, d.Confidence, d.Source)
}
