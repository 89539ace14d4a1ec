package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prequal-cli/internal/config"
	"github.com/sells-group/prequal-cli/internal/convstore"
	"github.com/sells-group/prequal-cli/internal/extract"
	"github.com/sells-group/prequal-cli/internal/model"
)

const apologyText = "Sorry — something went wrong on my end. Could you say that again?"

// Notifier publishes a completed conversation's decision to downstream
// systems. Implementations log their own failures; publishing never affects
// the user-visible response.
type Notifier interface {
	PublishDecision(ctx context.Context, state *model.ConversationState)
}

// Orchestrator is the per-turn state machine. All conversation state is
// explicit: loaded at turn start, threaded through every component, saved at
// turn end. There are no process-wide conversation singletons.
type Orchestrator struct {
	store         Store
	sched         Scheduler
	validator     Validator
	extractor     extract.Extractor
	answerer      extract.Answerer
	conversations convstore.Store
	notifier      Notifier
	cfg           config.EngineConfig
}

// NewOrchestrator wires the dialogue engine. notifier may be nil.
func NewOrchestrator(store Store, extractor extract.Extractor, answerer extract.Answerer, conversations convstore.Store, notifier Notifier, cfg config.EngineConfig) *Orchestrator {
	return &Orchestrator{
		store:         store,
		sched:         NewScheduler(store, cfg),
		validator:     NewValidator(store, cfg),
		extractor:     extractor,
		answerer:      answerer,
		conversations: conversations,
		notifier:      notifier,
		cfg:           cfg,
	}
}

// ProcessTurn is the sole public operation of the core: one user message in,
// one assistant response out. The turn runs synchronously; only the model
// call may block, and it is bounded by the extraction timeout.
func (o *Orchestrator) ProcessTurn(ctx context.Context, conversationID, userMessage string) (string, error) {
	state, err := o.conversations.Load(ctx, conversationID)
	if err != nil {
		return "", eris.Wrap(err, "orchestrator: load conversation")
	}
	if state == nil {
		state = model.NewConversationState(conversationID)
	}

	if malformed(state) {
		// Do not advance turn_number or save: a corrupted record must not
		// corrupt scheduling state further.
		zap.L().Error("orchestrator: malformed conversation state",
			zap.String("conversation", conversationID),
		)
		return apologyText, nil
	}

	if state.Complete() {
		return o.completedText(state), nil
	}

	state.TurnNumber++

	var response string
	switch state.Phase {
	case model.PhaseGreeting:
		state.Phase = model.PhaseCollecting
		response = GreetingText
		state.LastPromptHash = PromptHash(response)
	case model.PhasePendingConfirmation:
		response = o.handleConfirmation(ctx, state, userMessage)
	case model.PhaseVerifying:
		response = o.handleVerification(ctx, state, userMessage)
	case model.PhaseCollecting:
		response = o.handleCollecting(ctx, state, userMessage)
	default:
		zap.L().Error("orchestrator: unknown phase",
			zap.String("conversation", conversationID),
			zap.String("phase", string(state.Phase)),
		)
		return apologyText, nil
	}

	state.UpdatedAt = time.Now().UTC()
	if err := o.conversations.Save(ctx, state); err != nil {
		// Degraded mode: the response is still returned, but the turn may not
		// survive a restart. Operators see this; the user never does.
		zap.L().Error("orchestrator: save failed, response returned without durability",
			zap.String("conversation", conversationID),
			zap.Error(err),
		)
	}

	return response, nil
}

func malformed(state *model.ConversationState) bool {
	return state.Slots == nil || state.AskCounts == nil || state.TurnNumber < 0
}

// handleCollecting runs the extraction → delta → confirmation → scheduling
// sequence for a normal collecting turn.
func (o *Orchestrator) handleCollecting(ctx context.Context, state *model.ConversationState, userMessage string) string {
	if state.CorrectionMode {
		if resp, handled := o.applyCorrection(state, userMessage); handled {
			return resp
		}
		// Not a "field: value" shape; fall through to normal extraction.
		state.CorrectionMode = false
	}

	ext := o.runExtraction(ctx, state, userMessage)

	// Only a fact-free question is a clarification. A message like "I can put
	// down $300k, is that enough?" carries a value and must not skip the store.
	if len(ext) == 0 && isUserQuestion(userMessage) {
		return o.answerClarification(ctx, state, userMessage)
	}

	deltas := o.store.ComputeDeltas(state, ext)
	commit, hold := o.store.SplitByConfirmation(deltas, o.cfg)
	for _, d := range commit {
		o.store.Commit(state, d)
	}

	state.ValidationErrors = o.validator.Validate(state)

	if len(hold) > 0 {
		state.PendingDeltas = hold
		state.Phase = model.PhasePendingConfirmation
		prompt := o.store.ConfirmationPrompt(hold)
		state.LastPromptHash = PromptHash(prompt)
		return prompt
	}

	return o.advance(state, userMessage, ext)
}

// advance moves the conversation forward after commits: into verification
// when every slot is filled, otherwise to the next scheduled question.
func (o *Orchestrator) advance(state *model.ConversationState, userMessage string, ext extract.Extraction) string {
	if len(o.store.Missing(state)) == 0 {
		state.Phase = model.PhaseVerifying
		summary := o.store.VerificationSummary(state)
		state.LastPromptHash = PromptHash(summary)
		return summary
	}

	question, ok := o.sched.Ask(state, userMessage, ext)
	if !ok {
		// Nothing below strong confidence yet missing is non-empty cannot
		// happen; verify defensively rather than stall.
		state.Phase = model.PhaseVerifying
		summary := o.store.VerificationSummary(state)
		state.LastPromptHash = PromptHash(summary)
		return summary
	}
	return question
}

// runExtraction calls the adapter with a wall-clock timeout. Failure degrades
// to an empty extraction: the turn proceeds, the store stays untouched, and a
// single operator-facing entry is logged.
func (o *Orchestrator) runExtraction(ctx context.Context, state *model.ConversationState, userMessage string) extract.Extraction {
	timeout := time.Duration(o.cfg.ExtractTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	extCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	known := make(map[model.SlotName]any, len(state.Slots))
	for name, sv := range state.Slots {
		known[name] = sv.Value
	}

	ext, err := o.extractor.Extract(extCtx, userMessage, extract.Context{
		LastSlotAsked: state.LastSlotAsked,
		KnownSlots:    known,
	})
	if err != nil {
		zap.L().Warn("orchestrator: extraction failed, continuing with empty result",
			zap.String("conversation", state.ConversationID),
			zap.Error(err),
		)
		return extract.Extraction{}
	}
	return ext
}

// answerClarification handles a message classified as a question rather than
// an answer. It never mutates last_slot_asked or ask counts, so clarifying
// does not count against the repetition penalty.
func (o *Orchestrator) answerClarification(ctx context.Context, state *model.ConversationState, userMessage string) string {
	const fallback = "That's a good question — a licensed loan officer can give you the specifics."
	if o.answerer == nil {
		if state.LastSlotAsked != "" {
			return fallback + "\n\nBack to where we were: " + o.store.QuestionFor(state, state.LastSlotAsked)
		}
		return fallback
	}

	answer, err := o.answerer.Answer(ctx, userMessage, state)
	if err != nil {
		zap.L().Warn("orchestrator: clarification answer failed",
			zap.String("conversation", state.ConversationID),
			zap.Error(err),
		)
		answer = fallback
	}

	if state.LastSlotAsked != "" {
		return answer + "\n\nBack to where we were: " + o.store.QuestionFor(state, state.LastSlotAsked)
	}
	return answer
}

// applyCorrection parses a "field: new value" message after a "no" at
// verification. The corrected value is stored as user-confirmed.
func (o *Orchestrator) applyCorrection(state *model.ConversationState, userMessage string) (string, bool) {
	idx := strings.Index(userMessage, ":")
	if idx <= 0 {
		return "", false
	}

	field := strings.TrimSpace(userMessage[:idx])
	raw := strings.TrimSpace(userMessage[idx+1:])
	def := o.matchSlot(field)
	if def == nil || raw == "" {
		return "", false
	}

	sanitized := extract.Sanitize(o.store.Reg, extract.Extraction{
		def.Name: {Value: raw, Confidence: 1.0, Source: model.SourceUserConfirmed},
	})
	cand, ok := sanitized[def.Name]
	if !ok {
		return fmt.Sprintf("I couldn't read that as a value for %s — could you rephrase it?", strings.ToLower(def.Label)), true
	}

	o.store.Set(state, def.Name, cand.Value, 1.0, model.SourceUserConfirmed)
	state.CorrectionMode = false
	state.ValidationErrors = o.validator.Validate(state)

	return o.advance(state, userMessage, nil), true
}

// matchSlot resolves a user-typed field reference against slot names and
// labels.
func (o *Orchestrator) matchSlot(field string) *model.SlotDefinition {
	norm := strings.ToLower(strings.TrimSpace(field))
	norm = strings.ReplaceAll(norm, " ", "_")
	if def := o.store.Reg.ByName(model.SlotName(norm)); def != nil {
		return def
	}
	for i := range o.store.Reg.Slots {
		d := &o.store.Reg.Slots[i]
		if strings.EqualFold(strings.TrimSpace(field), d.Label) {
			return d
		}
	}
	return nil
}

// handleConfirmation processes a turn while a confirmation is pending. Only
// an explicit yes or no moves the conversation; anything else re-issues the
// prompt.
func (o *Orchestrator) handleConfirmation(ctx context.Context, state *model.ConversationState, userMessage string) string {
	if len(state.PendingDeltas) == 0 {
		state.Phase = model.PhaseCollecting
		return o.handleCollecting(ctx, state, userMessage)
	}

	switch {
	case extract.IsAffirmative(userMessage):
		for _, d := range state.PendingDeltas {
			o.store.Set(state, d.Slot, d.Value, 1.0, model.SourceUserConfirmed)
		}
		state.PendingDeltas = nil
		state.Phase = model.PhaseCollecting
		state.ValidationErrors = o.validator.Validate(state)
		return o.advance(state, userMessage, nil)

	case extract.IsNegative(userMessage):
		slot := state.PendingDeltas[0].Slot
		state.PendingDeltas = nil
		state.Phase = model.PhaseCollecting
		return o.reAsk(state, slot)

	default:
		prompt := o.store.ConfirmationPrompt(state.PendingDeltas)
		if PromptHash(prompt) == state.LastPromptHash {
			prompt = "Sorry — I just need a quick yes or no first.\n\n" + prompt
		}
		state.LastPromptHash = PromptHash(prompt)
		return prompt
	}
}

// reAsk re-prompts for a slot whose candidate value the user rejected.
func (o *Orchestrator) reAsk(state *model.ConversationState, slot model.SlotName) string {
	question := "Got it, let's try again. " + o.store.QuestionFor(state, slot)
	state.LastSlotAsked = slot
	state.AskCounts[slot]++
	state.LastPromptHash = PromptHash(question)
	return question
}

// handleVerification processes the yes/no on the full summary.
func (o *Orchestrator) handleVerification(ctx context.Context, state *model.ConversationState, userMessage string) string {
	switch {
	case extract.IsAffirmative(userMessage):
		state.ValidationErrors = o.validator.Validate(state)
		state.FinalDecision = o.validator.FinalDecision(state)
		state.Phase = model.PhaseComplete

		if o.notifier != nil {
			// Publishing is fire-and-forget relative to the turn; it must
			// never delay or alter the user-visible response.
			snapshot := *state
			go o.notifier.PublishDecision(context.WithoutCancel(ctx), &snapshot)
		}

		return o.decisionText(state)

	case extract.IsNegative(userMessage):
		state.Phase = model.PhaseCollecting
		state.CorrectionMode = true
		return "No problem — tell me what to fix, like \"Down payment: $350,000\"."

	default:
		summary := o.store.VerificationSummary(state)
		if PromptHash(summary) == state.LastPromptHash {
			summary = "Whenever you're ready — just yes or no.\n\n" + summary
		}
		state.LastPromptHash = PromptHash(summary)
		return summary
	}
}

// decisionText renders the terminal response, including the specific violated
// rules on a rejection.
func (o *Orchestrator) decisionText(state *model.ConversationState) string {
	switch state.FinalDecision {
	case model.DecisionPreApproved:
		price, okP := o.store.NumberValue(state, model.SlotPropertyPrice)
		down, okD := o.store.NumberValue(state, model.SlotDownPayment)
		if okP && okD && price > down {
			return fmt.Sprintf("Great news — you're pre-qualified! Based on what you've told me, your loan amount would be about %s. A loan officer will reach out with a formal pre-approval letter.",
				FormatMoney(price-down))
		}
		return "Great news — you're pre-qualified! A loan officer will reach out with a formal pre-approval letter."

	case model.DecisionRejected:
		var b strings.Builder
		b.WriteString("Unfortunately this doesn't fit our current programs:\n")
		for _, rv := range state.ValidationErrors {
			if rv.Severity == model.SeverityError {
				b.WriteString("- ")
				b.WriteString(rv.Message)
				b.WriteString("\n")
			}
		}
		b.WriteString("If anything above changes, I'd be glad to take another look.")
		return b.String()

	default:
		return "Thanks — I have what I need, but a licensed loan officer needs to review a couple of details. You'll hear back shortly."
	}
}

func (o *Orchestrator) completedText(state *model.ConversationState) string {
	return "This conversation is wrapped up — thanks! If anything changes, start a new chat and I'll re-check your numbers."
}

var interrogatives = map[string]bool{
	"what": true, "how": true, "why": true, "who": true, "when": true,
	"where": true, "which": true, "can": true, "could": true, "do": true,
	"does": true, "is": true, "are": true, "will": true, "would": true,
	"should": true,
}

// isUserQuestion classifies input as seeking clarification rather than
// answering: a trailing question mark or a leading interrogative word. A "?"
// buried mid-message does not qualify on its own.
func isUserQuestion(msg string) bool {
	t := strings.ToLower(strings.TrimSpace(msg))
	if strings.HasSuffix(t, "?") {
		return true
	}
	first, _, _ := strings.Cut(t, " ")
	return interrogatives[strings.Trim(first, ",.!")]
}
