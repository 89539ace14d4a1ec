package engine

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prequal-cli/internal/config"
	"github.com/sells-group/prequal-cli/internal/extract"
	"github.com/sells-group/prequal-cli/internal/model"
)

// Scheduling score terms that are not operator-tunable. The tunable ones
// (recency boost, repetition weight, immediate-repeat penalty) live in
// EngineConfig.
const (
	missingBoost      = 10.0 // confidence below the filled threshold
	improvableBoost   = 5.0  // filled but still below strong confidence
	strongConfidence  = 0.8  // at or above this a slot leaves the candidate set
	prereqMetBoost    = 4.0
	prereqAbsentPen   = 2.0
	financialCatBoost = 3.0
)

// Scheduler scores missing slots and picks the next one to ask about.
type Scheduler struct {
	store Store
	cfg   config.EngineConfig
}

// NewScheduler creates a Scheduler over the given store and engine config.
func NewScheduler(store Store, cfg config.EngineConfig) Scheduler {
	return Scheduler{store: store, cfg: cfg}
}

// score computes the priority score for one candidate slot.
func (sc Scheduler) score(state *model.ConversationState, def model.SlotDefinition, userText string) float64 {
	conf := sc.store.Confidence(state, def.Name)

	var s float64
	switch {
	case conf < sc.store.FilledThreshold:
		s += missingBoost
	case conf < strongConfidence:
		s += improvableBoost
	}

	if len(def.Prereqs) > 0 {
		met := true
		for _, p := range def.Prereqs {
			if !sc.store.IsFilled(state, p) {
				met = false
				break
			}
		}
		if met {
			s += prereqMetBoost
		} else {
			s -= prereqAbsentPen
		}
	}

	if def.Category == model.CategoryFinancial {
		s += financialCatBoost
	}

	// Recency reacts to the topic being mentioned, whether or not a value was
	// successfully extracted from the mention.
	if topicMentioned(def, userText) {
		s += sc.cfg.RecencyBoost
	}

	s -= sc.cfg.RepetitionPenaltyWeight * float64(state.AskCounts[def.Name])

	if def.Name == state.LastSlotAsked {
		s -= sc.cfg.ImmediateRepeatPenalty
	}

	return s
}

func topicMentioned(def model.SlotDefinition, userText string) bool {
	lower := strings.ToLower(userText)
	for _, kw := range def.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Next selects the highest-scoring candidate slot, or false when nothing
// needs asking. If every score is non-positive it falls back to the first
// missing slot in priority order so the scheduler never stalls.
func (sc Scheduler) Next(state *model.ConversationState, userText string) (model.SlotName, bool) {
	best := model.SlotName("")
	bestScore := 0.0
	found := false

	for _, def := range sc.store.Reg.Slots {
		if sc.store.Confidence(state, def.Name) >= strongConfidence {
			continue
		}
		s := sc.score(state, def, userText)
		if !found || s > bestScore {
			best, bestScore, found = def.Name, s, true
		}
	}

	if !found {
		return "", false
	}

	if bestScore <= 0 {
		missing := sc.store.Missing(state)
		if len(missing) == 0 {
			return "", false
		}
		// Skip the slot just asked; repeating it back-to-back is only
		// acceptable when it is the sole slot left.
		for _, name := range missing {
			if name != state.LastSlotAsked {
				return name, true
			}
		}
		return missing[0], true
	}

	return best, true
}

// Ask picks the next slot, renders its question, and applies duplicate
// suppression: a question whose text hashes identically to the previous
// prompt triggers a re-score with that slot's ask-count already incremented,
// at most once per missing slot. The chosen slot becomes last_slot_asked and
// its ask count increments. Extraction results for the turn do not influence
// the hash, only the rendered text does.
func (sc Scheduler) Ask(state *model.ConversationState, userText string, _ extract.Extraction) (string, bool) {
	attempts := len(sc.store.Missing(state)) + 1

	for i := 0; i < attempts; i++ {
		slot, ok := sc.Next(state, userText)
		if !ok {
			return "", false
		}

		question := sc.store.QuestionFor(state, slot)
		hash := PromptHash(question)
		if hash == state.LastPromptHash {
			zap.L().Debug("schedule: duplicate question suppressed",
				zap.String("conversation", state.ConversationID),
				zap.String("slot", string(slot)),
			)
			state.AskCounts[slot]++
			continue
		}

		state.LastSlotAsked = slot
		state.AskCounts[slot]++
		state.LastPromptHash = hash
		return question, true
	}

	// Every candidate re-rendered to the same text. Vary the phrasing so the
	// user never sees a verbatim repeat.
	slot, ok := sc.Next(state, userText)
	if !ok {
		return "", false
	}
	question := "To make sure I have it right: " + strings.ToLower(sc.store.QuestionFor(state, slot)[:1]) + sc.store.QuestionFor(state, slot)[1:]
	state.LastSlotAsked = slot
	state.AskCounts[slot]++
	state.LastPromptHash = PromptHash(question)
	return question, true
}
