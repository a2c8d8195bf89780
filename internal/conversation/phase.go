package conversation

import "github.com/hthomas22/size-agent/internal/store"

// Phase is where a sizing dialogue currently stands. The transcript is the
// source of truth: each persisted message is tagged with the phase that
// produced or received it, and the current phase is re-derived from the last
// entry.
type Phase string

const (
	// PhaseConfirmation asks whether the ordered size is correct.
	PhaseConfirmation Phase = "CONFIRMATION"
	// PhaseSizingQuestions gathers usual size, height and weight.
	PhaseSizingQuestions Phase = "SIZING_QUESTIONS"
	// PhaseRecommendation proposes a size and waits for a yes/no.
	PhaseRecommendation Phase = "RECOMMENDATION"
	// PhaseComplete is terminal.
	PhaseComplete Phase = "COMPLETE"
)

// ParsePhase maps a stored phase tag back to a Phase. Unknown or empty tags
// default to CONFIRMATION so an empty transcript starts at the beginning.
func ParsePhase(s string) Phase {
	switch Phase(s) {
	case PhaseConfirmation, PhaseSizingQuestions, PhaseRecommendation, PhaseComplete:
		return Phase(s)
	default:
		return PhaseConfirmation
	}
}

// Terminal reports whether the phase has no outbound transitions.
func (p Phase) Terminal() bool {
	return p == PhaseComplete
}

// StatusForPhase maps a phase onto the conversation status persisted
// alongside it. Keeping the two in sync is what makes Conversation.status
// trustworthy.
func StatusForPhase(p Phase) store.ConversationStatus {
	switch p {
	case PhaseSizingQuestions:
		return store.StatusAwaitingSizingInfo
	case PhaseRecommendation:
		return store.StatusAwaitingRecommendationConfirmation
	case PhaseComplete:
		return store.StatusCompleted
	default:
		return store.StatusAwaitingSizeConfirmation
	}
}
