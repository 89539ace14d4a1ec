// Package extract implements the extraction adapter boundary: a deterministic
// pre-pass for numbers, booleans, and enumerated text, a model-based pass for
// everything else, and a composite that layers them first-match-wins.
package extract

import (
	"context"
	"strings"

	"github.com/sells-group/prequal-cli/internal/model"
)

// Candidate is one extracted value for a slot.
type Candidate struct {
	Value      any               `json:"value"`
	Confidence float64           `json:"confidence"`
	Source     model.ValueSource `json:"source"`
}

// Extraction is the per-message adapter output, keyed by slot name.
type Extraction map[model.SlotName]Candidate

// Context carries the conversation context an extractor may condition on.
type Context struct {
	LastSlotAsked model.SlotName
	KnownSlots    map[model.SlotName]any
}

// Extractor turns the latest user utterance into candidate slot values. It
// must only report slots that plausibly appear in the text; confidence is the
// extractor's own [0,1] estimate and is trusted directly.
type Extractor interface {
	Extract(ctx context.Context, userText string, ec Context) (Extraction, error)
}

// Answerer responds to a clarification question from the user. Informational
// only; implementations never touch conversation state.
type Answerer interface {
	Answer(ctx context.Context, question string, state *model.ConversationState) (string, error)
}

// Sanitize enforces the closed slot universe and value discriminators at the
// adapter boundary: unknown slots are dropped, confidences clamped to [0,1],
// and values coerced to the slot's kind. Anything that cannot be coerced is
// dropped so downstream code never sees a mistyped value.
func Sanitize(reg *model.SlotRegistry, ext Extraction) Extraction {
	out := make(Extraction, len(ext))
	for name, c := range ext {
		def := reg.ByName(name)
		if def == nil {
			continue
		}
		v, ok := coerce(def.Kind, c.Value)
		if !ok {
			continue
		}
		c.Value = v
		if c.Confidence < 0 {
			c.Confidence = 0
		}
		if c.Confidence > 1 {
			c.Confidence = 1
		}
		out[name] = c
	}
	return out
}

func coerce(kind model.SlotKind, v any) (any, bool) {
	switch kind {
	case model.KindNumber:
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
		if s, ok := v.(string); ok {
			if amt, ok := ParseAmount(s); ok {
				return amt, true
			}
		}
		return nil, false
	case model.KindBoolean:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			if yn, ok := parseYesNo(b); ok {
				return yn, true
			}
		}
		return nil, false
	case model.KindText:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, false
		}
		return s, true
	default:
		return nil, false
	}
}
