package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/prequal-cli/internal/model"
)

// moneyPrinter renders dollar figures with US digit grouping.
var moneyPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatMoney renders a dollar amount like $1,000,000. Cents are shown only
// when present.
func FormatMoney(amount float64) string {
	if amount == float64(int64(amount)) {
		return moneyPrinter.Sprintf("$%d", int64(amount))
	}
	return moneyPrinter.Sprintf("$%.2f", amount)
}

func formatValue(kind model.SlotKind, v any) string {
	switch kind {
	case model.KindNumber:
		if n, ok := v.(float64); ok {
			return FormatMoney(n)
		}
	case model.KindBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return "yes"
			}
			return "no"
		}
	case model.KindText:
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fmt.Sprintf("%v", v)
}

// GreetingText is the fixed opening of every conversation.
const GreetingText = "Hi! I can check whether you pre-qualify for a foreign-national mortgage in a few quick questions. " +
	"To start: what is the approximate purchase price of the property, and how much are you planning to put down?"

// QuestionFor builds the question text for a slot. When the slot's
// prerequisites are filled the question cites concrete figures instead of the
// generic phrasing, so the reserves question can name a dollar amount once
// price and down payment are known.
func (s Store) QuestionFor(state *model.ConversationState, name model.SlotName) string {
	def := s.Reg.ByName(name)
	if def == nil {
		return ""
	}

	if name == model.SlotReservesHeld {
		price, okP := s.NumberValue(state, model.SlotPropertyPrice)
		down, okD := s.NumberValue(state, model.SlotDownPayment)
		if okP && okD && price > down {
			loan := price - down
			return fmt.Sprintf("Your loan amount would be about %s. Beyond the down payment, do you have reserves to cover several months of payments on that?", FormatMoney(loan))
		}
	}

	return def.Question
}

// PromptHash fingerprints a question's final text for duplicate suppression.
func PromptHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:8])
}

// VerificationSummary renders every held slot as a structured summary for the
// verification phase, in priority order.
func (s Store) VerificationSummary(state *model.ConversationState) string {
	var b strings.Builder
	b.WriteString("Here is everything I have — please confirm it's all correct:\n")
	for _, def := range s.Reg.Slots {
		sv, ok := state.Slots[def.Name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", def.Label, formatValue(def.Kind, sv.Value))
	}
	b.WriteString("Is all of that right? (yes/no)")
	return b.String()
}
