package engine

import (
	"strings"

	"github.com/sells-group/prequal-cli/internal/config"
	"github.com/sells-group/prequal-cli/internal/model"
)

// NeedsConfirmation decides whether a delta must be explicitly confirmed by
// the user before it is committed.
//
// Changing a previously held fact always requires confirmation; that is a
// hard rule. Repetition of the same value never does. A brand-new value needs
// confirmation only when its confidence falls below the bar for its slot —
// the two financial slots carry a stricter bar because they drive the
// business-rule validator.
func NeedsConfirmation(def model.SlotDefinition, d model.Delta, cfg config.EngineConfig) bool {
	switch d.Change {
	case model.ChangeChanged:
		return true
	case model.ChangeConfirmed:
		return false
	case model.ChangeNew:
		threshold := cfg.ConfirmThreshold
		if def.Financial() {
			threshold = cfg.FinancialConfirmThreshold
		}
		return d.Confidence < threshold
	default:
		return false
	}
}

// SplitByConfirmation partitions deltas into those that commit immediately
// and those that must be held for an explicit yes/no.
func (s Store) SplitByConfirmation(deltas []model.Delta, cfg config.EngineConfig) (commit, hold []model.Delta) {
	for _, d := range deltas {
		def := s.Reg.ByName(d.Slot)
		if def != nil && NeedsConfirmation(*def, d, cfg) {
			hold = append(hold, d)
		} else {
			commit = append(commit, d)
		}
	}
	return commit, hold
}

// ConfirmationPrompt renders the held deltas as a structured confirmation
// question. It is generated from slot labels and formatted values only, never
// from the raw extracted text, so the user sees exactly what would be stored.
func (s Store) ConfirmationPrompt(deltas []model.Delta) string {
	var b strings.Builder
	b.WriteString("Before I note that down, let me double-check:\n")
	for _, d := range deltas {
		def := s.Reg.ByName(d.Slot)
		if def == nil {
			continue
		}
		b.WriteString("- ")
		b.WriteString(def.Label)
		b.WriteString(": ")
		b.WriteString(formatValue(def.Kind, d.Value))
		b.WriteString("\n")
	}
	b.WriteString("Is that right? (yes/no)")
	return b.String()
}
