package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prequal-cli/internal/config"
	"github.com/sells-group/prequal-cli/internal/model"
	"github.com/sells-group/prequal-cli/pkg/anthropic"
)

const extractSystemText = "You are a mortgage intake analyst. Extract facts from a single applicant message. " +
	"Only report slots that clearly appear in the message; never infer values for topics the message does not mention. " +
	"Return a valid JSON object mapping slot names to {\"value\": ..., \"confidence\": 0.0-1.0}."

const extractPrompt = `Slot universe (name, type, meaning):
%s

Conversation context:
- Last question asked was about: %s
- Already known: %s

Applicant message:
%s

Extract slot values present in the message. Return only JSON, e.g.
{"down_payment": {"value": 300000, "confidence": 0.9}}`

const answerSystemText = "You are a helpful mortgage pre-qualification assistant for foreign-national applicants. " +
	"Answer the applicant's question briefly and factually, then steer back to the qualification conversation. " +
	"Never invent program terms you were not given."

// LLM is the model-based extractor and clarification answerer.
type LLM struct {
	client  anthropic.Client
	reg     *model.SlotRegistry
	cfg     config.AnthropicConfig
	limiter *rate.Limiter
}

// NewLLM creates the model-backed extractor. Outbound calls are throttled to
// cfg.RequestsPerS.
func NewLLM(client anthropic.Client, reg *model.SlotRegistry, cfg config.AnthropicConfig) *LLM {
	rps := cfg.RequestsPerS
	if rps <= 0 {
		rps = 5
	}
	return &LLM{
		client:  client,
		reg:     reg,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), max(int(rps), 1)),
	}
}

// Extract asks the model for candidate slot values in the latest message.
func (l *LLM) Extract(ctx context.Context, userText string, ec Context) (Extraction, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "extract: rate limit")
	}

	prompt := fmt.Sprintf(extractPrompt,
		l.slotSchema(),
		lastAskedLabel(l.reg, ec.LastSlotAsked),
		knownSummary(ec.KnownSlots),
		userText,
	)

	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     l.cfg.Model,
		MaxTokens: 512,
		System:    []anthropic.SystemBlock{{Text: extractSystemText}},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: create message")
	}
	resp.Usage.LogCost(l.cfg.Model, "extract")

	return l.parse(extractText(resp)), nil
}

// Answer responds to a clarification question using the current state as
// context. Read-only with respect to the conversation.
func (l *LLM) Answer(ctx context.Context, question string, state *model.ConversationState) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "extract: rate limit")
	}

	known := make(map[model.SlotName]any, len(state.Slots))
	for name, sv := range state.Slots {
		known[name] = sv.Value
	}

	prompt := fmt.Sprintf("Known applicant facts: %s\n\nApplicant question: %s", knownSummary(known), question)
	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     l.cfg.Model,
		MaxTokens: 400,
		System:    []anthropic.SystemBlock{{Text: answerSystemText}},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "extract: answer question")
	}
	resp.Usage.LogCost(l.cfg.Model, "clarify")

	return strings.TrimSpace(extractText(resp)), nil
}

// parse decodes the model's JSON into an Extraction, dropping anything that
// fails the boundary checks. A malformed response yields an empty extraction,
// not an error; the turn proceeds with whatever the pre-pass found.
func (l *LLM) parse(text string) Extraction {
	cleaned := cleanJSON(text)

	var raw map[string]struct {
		Value      any     `json:"value"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		zap.L().Warn("extract: failed to parse model JSON", zap.Error(err))
		return Extraction{}
	}

	out := make(Extraction, len(raw))
	for name, c := range raw {
		if c.Value == nil {
			continue
		}
		out[model.SlotName(name)] = Candidate{
			Value:      c.Value,
			Confidence: c.Confidence,
			Source:     model.SourceModel,
		}
	}
	return Sanitize(l.reg, out)
}

func (l *LLM) slotSchema() string {
	var b strings.Builder
	for _, d := range l.reg.Slots {
		fmt.Fprintf(&b, "- %s (%s): %s\n", d.Name, d.Kind, d.Label)
	}
	return b.String()
}

func lastAskedLabel(reg *model.SlotRegistry, name model.SlotName) string {
	if def := reg.ByName(name); def != nil {
		return def.Label
	}
	return "nothing yet"
}

func knownSummary(known map[model.SlotName]any) string {
	if len(known) == 0 {
		return "nothing yet"
	}
	var parts []string
	for name, v := range known {
		parts = append(parts, fmt.Sprintf("%s=%v", name, v))
	}
	return strings.Join(parts, ", ")
}

// extractText concatenates text blocks from a message response.
func extractText(resp *anthropic.MessageResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// cleanJSON strips markdown fences and surrounding prose from a model reply.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
