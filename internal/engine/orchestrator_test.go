package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prequal-cli/internal/convstore"
	"github.com/sells-group/prequal-cli/internal/extract"
	"github.com/sells-group/prequal-cli/internal/model"
)

// scriptedExtractor returns queued extractions in order, then empties.
type scriptedExtractor struct {
	queue []extract.Extraction
	err   error
}

func (s *scriptedExtractor) Extract(context.Context, string, extract.Context) (extract.Extraction, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.queue) == 0 {
		return extract.Extraction{}, nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next, nil
}

type stubAnswerer struct {
	answer string
	err    error
	called bool
}

func (s *stubAnswerer) Answer(context.Context, string, *model.ConversationState) (string, error) {
	s.called = true
	return s.answer, s.err
}

type captureNotifier struct {
	ch chan *model.ConversationState
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{ch: make(chan *model.ConversationState, 1)}
}

func (n *captureNotifier) PublishDecision(_ context.Context, state *model.ConversationState) {
	n.ch <- state
}

func newTestOrchestrator(ext extract.Extractor, ans extract.Answerer, notifier Notifier) (*Orchestrator, convstore.Store) {
	conversations := convstore.NewMemory()
	store := newTestStore()
	if ext == nil {
		ext = &scriptedExtractor{}
	}
	o := NewOrchestrator(store, ext, ans, conversations, notifier, testCfg())
	return o, conversations
}

func cand(v any, conf float64) extract.Candidate {
	return extract.Candidate{Value: v, Confidence: conf, Source: model.SourceModel}
}

func TestProcessTurnGreeting(t *testing.T) {
	o, conversations := newTestOrchestrator(nil, nil, nil)

	resp, err := o.ProcessTurn(context.Background(), "c-1", "hello there")
	require.NoError(t, err)
	assert.Equal(t, GreetingText, resp)

	state, err := conversations.Load(context.Background(), "c-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, model.PhaseCollecting, state.Phase)
	assert.Equal(t, 1, state.TurnNumber)
}

func TestProcessTurnOpportunisticCapture(t *testing.T) {
	ext := &scriptedExtractor{queue: []extract.Extraction{{
		model.SlotDownPayment:   cand(300_000.0, 0.9),
		model.SlotPropertyPrice: cand(1_000_000.0, 0.9),
		model.SlotLoanPurpose:   cand(model.PurposePrimary, 0.85),
	}}}
	o, conversations := newTestOrchestrator(ext, nil, nil)

	_, err := o.ProcessTurn(context.Background(), "c-1", "hi")
	require.NoError(t, err)

	resp, err := o.ProcessTurn(context.Background(), "c-1", "I have $300k down for a $1M home to live in")
	require.NoError(t, err)

	state, _ := conversations.Load(context.Background(), "c-1")
	// All three confident facts commit in one turn without confirmation.
	assert.InDelta(t, 300_000, state.Slots[model.SlotDownPayment].Value.(float64), 0.001)
	assert.InDelta(t, 1_000_000, state.Slots[model.SlotPropertyPrice].Value.(float64), 0.001)
	assert.Equal(t, model.PurposePrimary, state.Slots[model.SlotLoanPurpose].Value)

	// And the engine moves on to a question about something else.
	assert.Equal(t, model.PhaseCollecting, state.Phase)
	assert.NotEmpty(t, resp)
	assert.NotEqual(t, model.SlotDownPayment, state.LastSlotAsked)
	assert.NotEqual(t, model.SlotPropertyPrice, state.LastSlotAsked)
}

func TestProcessTurnLowConfidenceFinancialNeedsConfirmation(t *testing.T) {
	ext := &scriptedExtractor{queue: []extract.Extraction{{
		model.SlotDownPayment: cand(300_000.0, 0.5),
	}}}
	o, conversations := newTestOrchestrator(ext, nil, nil)

	_, err := o.ProcessTurn(context.Background(), "c-1", "hi")
	require.NoError(t, err)

	resp, err := o.ProcessTurn(context.Background(), "c-1", "maybe 300 grand?")
	require.NoError(t, err)
	assert.Contains(t, resp, "Down payment: $300,000")
	assert.Contains(t, resp, "(yes/no)")

	state, _ := conversations.Load(context.Background(), "c-1")
	assert.Equal(t, model.PhasePendingConfirmation, state.Phase)
	// The doubtful value is held, not stored.
	_, held := state.Slots[model.SlotDownPayment]
	assert.False(t, held)

	// Confirming commits at full confidence as user-confirmed.
	_, err = o.ProcessTurn(context.Background(), "c-1", "yes")
	require.NoError(t, err)

	state, _ = conversations.Load(context.Background(), "c-1")
	assert.Equal(t, model.PhaseCollecting, state.Phase)
	sv := state.Slots[model.SlotDownPayment]
	assert.InDelta(t, 1.0, sv.Confidence, 0.001)
	assert.Equal(t, model.SourceUserConfirmed, sv.Source)
	assert.Empty(t, state.PendingDeltas)
}

func TestProcessTurnConfirmationRejected(t *testing.T) {
	ext := &scriptedExtractor{queue: []extract.Extraction{{
		model.SlotDownPayment: cand(300_000.0, 0.5),
	}}}
	o, conversations := newTestOrchestrator(ext, nil, nil)

	_, _ = o.ProcessTurn(context.Background(), "c-1", "hi")
	_, _ = o.ProcessTurn(context.Background(), "c-1", "maybe 300 grand?")

	resp, err := o.ProcessTurn(context.Background(), "c-1", "no")
	require.NoError(t, err)
	assert.Contains(t, resp, "put down")

	state, _ := conversations.Load(context.Background(), "c-1")
	_, held := state.Slots[model.SlotDownPayment]
	assert.False(t, held)
	assert.Equal(t, model.PhaseCollecting, state.Phase)
	assert.Equal(t, model.SlotDownPayment, state.LastSlotAsked)
}

func TestProcessTurnConfirmationNonAnswerReprompts(t *testing.T) {
	ext := &scriptedExtractor{queue: []extract.Extraction{{
		model.SlotDownPayment: cand(300_000.0, 0.5),
	}}}
	o, conversations := newTestOrchestrator(ext, nil, nil)

	_, _ = o.ProcessTurn(context.Background(), "c-1", "hi")
	first, _ := o.ProcessTurn(context.Background(), "c-1", "maybe 300 grand?")

	resp, err := o.ProcessTurn(context.Background(), "c-1", "well it depends")
	require.NoError(t, err)
	// Same substance, varied phrasing: never a verbatim repeat.
	assert.Contains(t, resp, "Down payment: $300,000")
	assert.NotEqual(t, first, resp)

	state, _ := conversations.Load(context.Background(), "c-1")
	assert.Equal(t, model.PhasePendingConfirmation, state.Phase)
	assert.Len(t, state.PendingDeltas, 1)
}

func TestProcessTurnChangedValueNeedsConfirmation(t *testing.T) {
	ext := &scriptedExtractor{queue: []extract.Extraction{
		{model.SlotDownPayment: cand(300_000.0, 0.9)},
		{model.SlotDownPayment: cand(350_000.0, 0.95)},
	}}
	o, conversations := newTestOrchestrator(ext, nil, nil)

	_, _ = o.ProcessTurn(context.Background(), "c-1", "hi")
	_, _ = o.ProcessTurn(context.Background(), "c-1", "300k down")

	resp, err := o.ProcessTurn(context.Background(), "c-1", "actually make it 350k")
	require.NoError(t, err)
	assert.Contains(t, resp, "$350,000")

	state, _ := conversations.Load(context.Background(), "c-1")
	assert.Equal(t, model.PhasePendingConfirmation, state.Phase)
	// The old value stays until the change is confirmed.
	assert.InDelta(t, 300_000, state.Slots[model.SlotDownPayment].Value.(float64), 0.001)
}

func completeHappyPath(t *testing.T, o *Orchestrator) string {
	t.Helper()
	ctx := context.Background()

	turns := []string{
		"hi",
		"I want to buy a $1M home in Miami, FL with $300k down, primary residence",
		"yes I have a passport",
		"yes I have a visa",
		"Brazil",
		"yes I can document my income",
		"yes I have reserves",
	}
	var resp string
	var err error
	for _, msg := range turns {
		resp, err = o.ProcessTurn(ctx, "c-happy", msg)
		require.NoError(t, err)
	}
	return resp
}

func happyExtractor() *scriptedExtractor {
	return &scriptedExtractor{queue: []extract.Extraction{
		{
			model.SlotDownPayment:   cand(300_000.0, 0.9),
			model.SlotPropertyPrice: cand(1_000_000.0, 0.9),
			model.SlotPropertyCity:  cand("Miami", 0.85),
			model.SlotPropertyState: cand("FL", 0.9),
			model.SlotLoanPurpose:   cand(model.PurposePrimary, 0.85),
		},
		{model.SlotHasPassport: cand(true, 0.95)},
		{model.SlotHasVisa: cand(true, 0.95)},
		{model.SlotCurrentCountry: cand("Brazil", 0.8)},
		{model.SlotIncomeDocumentable: cand(true, 0.95)},
		{model.SlotReservesHeld: cand(true, 0.95)},
	}}
}

func TestFullConversationPreApproved(t *testing.T) {
	notifier := newCaptureNotifier()
	o, conversations := newTestOrchestrator(happyExtractor(), nil, notifier)

	resp := completeHappyPath(t, o)
	// After the last fact the engine shows the verification summary.
	assert.Contains(t, resp, "please confirm")

	resp, err := o.ProcessTurn(context.Background(), "c-happy", "yes")
	require.NoError(t, err)
	assert.Contains(t, resp, "pre-qualified")
	assert.Contains(t, resp, "$700,000") // loan amount = price - down

	state, _ := conversations.Load(context.Background(), "c-happy")
	assert.Equal(t, model.PhaseComplete, state.Phase)
	assert.Equal(t, model.DecisionPreApproved, state.FinalDecision)

	// The decision is published downstream.
	select {
	case published := <-notifier.ch:
		assert.Equal(t, model.DecisionPreApproved, published.FinalDecision)
	case <-time.After(time.Second):
		t.Fatal("decision was not published")
	}

	// A completed conversation stays terminal.
	resp, err = o.ProcessTurn(context.Background(), "c-happy", "can you re-run it?")
	require.NoError(t, err)
	assert.Contains(t, resp, "wrapped up")
	state2, _ := conversations.Load(context.Background(), "c-happy")
	assert.Equal(t, state.TurnNumber, state2.TurnNumber)
}

func TestFullConversationRejectedOnLTV(t *testing.T) {
	ext := happyExtractor()
	// 20% down: below the 25% minimum.
	ext.queue[0][model.SlotDownPayment] = cand(200_000.0, 0.9)
	o, conversations := newTestOrchestrator(ext, nil, nil)

	completeHappyPath(t, o)
	resp, err := o.ProcessTurn(context.Background(), "c-happy", "yes")
	require.NoError(t, err)

	assert.Contains(t, resp, "doesn't fit")
	assert.Contains(t, resp, "20.0%")
	assert.Contains(t, resp, "$50,000")

	state, _ := conversations.Load(context.Background(), "c-happy")
	assert.Equal(t, model.DecisionRejected, state.FinalDecision)
}

func TestVerificationNoEntersCorrectionMode(t *testing.T) {
	o, conversations := newTestOrchestrator(happyExtractor(), nil, nil)

	completeHappyPath(t, o)
	resp, err := o.ProcessTurn(context.Background(), "c-happy", "no")
	require.NoError(t, err)
	assert.Contains(t, resp, "tell me what to fix")

	state, _ := conversations.Load(context.Background(), "c-happy")
	assert.True(t, state.CorrectionMode)
	assert.Equal(t, model.PhaseCollecting, state.Phase)

	// A "field: value" correction is stored as user-confirmed.
	resp, err = o.ProcessTurn(context.Background(), "c-happy", "Down payment: $350,000")
	require.NoError(t, err)

	state, _ = conversations.Load(context.Background(), "c-happy")
	sv := state.Slots[model.SlotDownPayment]
	assert.InDelta(t, 350_000, sv.Value.(float64), 0.001)
	assert.InDelta(t, 1.0, sv.Confidence, 0.001)
	assert.Equal(t, model.SourceUserConfirmed, sv.Source)
	assert.False(t, state.CorrectionMode)

	// Everything is filled again, so the summary comes back for re-approval.
	assert.Contains(t, resp, "please confirm")
}

func TestClarificationQuestionDoesNotAdvanceScheduling(t *testing.T) {
	ans := &stubAnswerer{answer: "LTV is the loan amount divided by the property value."}
	o, conversations := newTestOrchestrator(&scriptedExtractor{}, ans, nil)

	_, _ = o.ProcessTurn(context.Background(), "c-1", "hi")
	_, _ = o.ProcessTurn(context.Background(), "c-1", "ok")

	state, _ := conversations.Load(context.Background(), "c-1")
	asked := state.LastSlotAsked
	counts := state.AskCounts[asked]

	resp, err := o.ProcessTurn(context.Background(), "c-1", "what does LTV mean?")
	require.NoError(t, err)
	assert.True(t, ans.called)
	assert.Contains(t, resp, "LTV is the loan amount")
	assert.Contains(t, resp, "Back to where we were")

	state, _ = conversations.Load(context.Background(), "c-1")
	assert.Equal(t, asked, state.LastSlotAsked)
	assert.Equal(t, counts, state.AskCounts[asked])
}

func TestQuestionCarryingFactsStillExtracts(t *testing.T) {
	ext := &scriptedExtractor{queue: []extract.Extraction{{
		model.SlotDownPayment: cand(300_000.0, 0.9),
	}}}
	ans := &stubAnswerer{answer: "should not be used"}
	o, conversations := newTestOrchestrator(ext, ans, nil)

	_, _ = o.ProcessTurn(context.Background(), "c-1", "hi")

	// A value riding inside a question must reach the store; the turn is an
	// answer first and a question second.
	resp, err := o.ProcessTurn(context.Background(), "c-1", "I can put down $300k, is that enough?")
	require.NoError(t, err)
	assert.False(t, ans.called)
	assert.NotEmpty(t, resp)

	state, _ := conversations.Load(context.Background(), "c-1")
	assert.InDelta(t, 300_000, state.Slots[model.SlotDownPayment].Value.(float64), 0.001)
}

func TestIsUserQuestion(t *testing.T) {
	assert.True(t, isUserQuestion("what does LTV mean?"))
	assert.True(t, isUserQuestion("What does LTV mean"))
	assert.True(t, isUserQuestion("do you work with Brazilian banks"))
	assert.False(t, isUserQuestion("maybe 300 grand"))
	assert.False(t, isUserQuestion("hmm? let me think it over"))
	assert.False(t, isUserQuestion("yes"))
}

func TestClarificationAnswerFailureFallsBack(t *testing.T) {
	ans := &stubAnswerer{err: errors.New("model unavailable")}
	o, _ := newTestOrchestrator(&scriptedExtractor{}, ans, nil)

	_, _ = o.ProcessTurn(context.Background(), "c-1", "hi")
	resp, err := o.ProcessTurn(context.Background(), "c-1", "what are your rates?")
	require.NoError(t, err)
	assert.Contains(t, resp, "loan officer")
}

func TestExtractionFailureProceedsWithQuestion(t *testing.T) {
	ext := &scriptedExtractor{err: errors.New("timeout")}
	o, conversations := newTestOrchestrator(ext, nil, nil)

	_, _ = o.ProcessTurn(context.Background(), "c-1", "hi")
	resp, err := o.ProcessTurn(context.Background(), "c-1", "I have 300k down")
	require.NoError(t, err)
	assert.NotEmpty(t, resp)

	state, _ := conversations.Load(context.Background(), "c-1")
	assert.Empty(t, state.Slots)
	assert.Equal(t, model.PhaseCollecting, state.Phase)
}

func TestMalformedStateApologizesWithoutAdvancing(t *testing.T) {
	o, conversations := newTestOrchestrator(nil, nil, nil)

	broken := &model.ConversationState{ConversationID: "c-bad", Phase: model.PhaseCollecting, TurnNumber: 5}
	require.NoError(t, conversations.Save(context.Background(), broken))

	resp, err := o.ProcessTurn(context.Background(), "c-bad", "hello")
	require.NoError(t, err)
	assert.Equal(t, apologyText, resp)

	state, _ := conversations.Load(context.Background(), "c-bad")
	assert.Equal(t, 5, state.TurnNumber)
}

func TestSaveFailureStillReturnsResponse(t *testing.T) {
	conversations := &failingStore{}
	store := newTestStore()
	o := NewOrchestrator(store, &scriptedExtractor{}, nil, conversations, nil, testCfg())

	resp, err := o.ProcessTurn(context.Background(), "c-1", "hi")
	require.NoError(t, err)
	assert.Equal(t, GreetingText, resp)
}

// failingStore loads nothing and fails every save.
type failingStore struct{}

func (f *failingStore) Load(context.Context, string) (*model.ConversationState, error) {
	return nil, nil
}

func (f *failingStore) Save(context.Context, *model.ConversationState) error {
	return errors.New("disk full")
}

func (f *failingStore) List(context.Context) ([]model.ConversationState, error) { return nil, nil }
func (f *failingStore) Migrate(context.Context) error                           { return nil }
func (f *failingStore) Close() error                                            { return nil }
