package model

import "time"

// ValueSource records where a slot value came from.
type ValueSource string

const (
	SourceDeterministic ValueSource = "deterministic"
	SourceModel         ValueSource = "model"
	SourceUserConfirmed ValueSource = "user_confirmed"
)

// SlotValue is one collected fact. Updates replace the whole value atomically;
// there is no partial application.
type SlotValue struct {
	Value             any         `json:"value"`
	Confidence        float64     `json:"confidence"`
	Source            ValueSource `json:"source"`
	LastSeenTurn      int         `json:"last_seen_turn"`
	LastConfirmedTurn *int        `json:"last_confirmed_turn,omitempty"`
}

// Phase is the orchestrator's turn state machine position.
type Phase string

const (
	PhaseGreeting            Phase = "greeting"
	PhaseCollecting          Phase = "collecting"
	PhasePendingConfirmation Phase = "pending_confirmation"
	PhaseVerifying           Phase = "verifying"
	PhaseComplete            Phase = "complete"
)

// ChangeType classifies a freshly extracted value against the stored one.
type ChangeType string

const (
	ChangeNew       ChangeType = "new"
	ChangeChanged   ChangeType = "changed"
	ChangeConfirmed ChangeType = "confirmed"
)

// Delta is one entry of a turn's extraction diff.
type Delta struct {
	Slot       SlotName    `json:"slot"`
	Value      any         `json:"value"`
	Confidence float64     `json:"confidence"`
	Source     ValueSource `json:"source"`
	Change     ChangeType  `json:"change"`
}

// ConversationState is the full per-conversation record. It is owned by
// exactly one conversation, mutated only by the orchestrator, and becomes
// immutable once Phase is PhaseComplete.
type ConversationState struct {
	ConversationID string                 `json:"conversation_id"`
	Slots          map[SlotName]SlotValue `json:"slots"`
	Phase          Phase                  `json:"phase"`
	TurnNumber     int                    `json:"turn_number"`

	LastSlotAsked  SlotName         `json:"last_slot_asked,omitempty"`
	AskCounts      map[SlotName]int `json:"ask_counts"`
	LastPromptHash string           `json:"last_prompt_hash,omitempty"`

	// PendingDeltas holds the deltas awaiting an explicit yes/no while the
	// phase is PhasePendingConfirmation.
	PendingDeltas []Delta `json:"pending_deltas,omitempty"`

	// CorrectionMode accepts "field: value" input after a "no" at verification.
	CorrectionMode bool `json:"correction_mode,omitempty"`

	ValidationErrors []RuleViolation `json:"validation_errors,omitempty"`
	FinalDecision    Decision        `json:"final_decision,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationState creates an empty state for a first contact.
func NewConversationState(id string) *ConversationState {
	now := time.Now().UTC()
	return &ConversationState{
		ConversationID: id,
		Slots:          make(map[SlotName]SlotValue),
		Phase:          PhaseGreeting,
		AskCounts:      make(map[SlotName]int),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AwaitingVerification reports whether the conversation is waiting on the
// user's yes/no to the full summary.
func (s *ConversationState) AwaitingVerification() bool {
	return s.Phase == PhaseVerifying
}

// Complete reports whether the conversation reached a terminal decision.
func (s *ConversationState) Complete() bool {
	return s.Phase == PhaseComplete
}
