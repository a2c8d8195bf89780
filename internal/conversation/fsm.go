package conversation

import "github.com/hthomas22/size-agent/internal/store"

// Intent tags the classifier can assign to an inbound message.
const (
	IntentConfirm     = "CONFIRM"
	IntentUnsure      = "UNSURE"
	IntentChangeSize  = "CHANGE_SIZE"
	IntentProvideInfo = "PROVIDE_INFO"
	IntentOther       = "OTHER"
)

// Event is the abstract vocabulary for the event-driven formulation of the
// phase machine. NextPhase is the canonical transition function; the event
// machine must agree with it for every (phase, intent, entities) input.
type Event string

const (
	EventStart                  Event = "START"
	EventConfirm                Event = "CONFIRM"
	EventDeny                   Event = "DENY"
	EventInfoProvided           Event = "INFO_PROVIDED"
	EventRecommendationAccepted Event = "RECOMMENDATION_ACCEPTED"
	EventRecommendationRejected Event = "RECOMMENDATION_REJECTED"
	// EventNone means the message maps to no defined transition and the
	// phase stays put.
	EventNone Event = "NONE"
)

// HasSizingInfo reports whether the extracted entities are enough to make a
// recommendation: a usual size, or both height and weight.
func HasSizingInfo(e store.Entities) bool {
	return e.UsualSize != "" || (e.Height != "" && e.Weight != "")
}

// NextPhase is the canonical transition table.
//
// The RECOMMENDATION reject edge goes back to SIZING_QUESTIONS so the
// customer can supply different measurements and get a new proposal.
func NextPhase(current Phase, intent string, entities store.Entities) Phase {
	switch current {
	case PhaseConfirmation:
		switch intent {
		case IntentConfirm:
			return PhaseComplete
		case IntentUnsure, IntentChangeSize:
			return PhaseSizingQuestions
		}
		return PhaseConfirmation

	case PhaseSizingQuestions:
		if HasSizingInfo(entities) {
			return PhaseRecommendation
		}
		return PhaseSizingQuestions

	case PhaseRecommendation:
		switch intent {
		case IntentConfirm:
			return PhaseComplete
		case IntentUnsure, IntentChangeSize:
			return PhaseSizingQuestions
		}
		return PhaseRecommendation
	}

	// Terminal: no outbound transitions.
	return PhaseComplete
}

// StateMachine is the explicit event-driven formulation of the same policy.
type StateMachine struct {
	transitions map[Phase]map[Event]Phase
}

// NewStateMachine builds the phase transition table.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		transitions: map[Phase]map[Event]Phase{
			PhaseConfirmation: {
				EventConfirm: PhaseComplete,
				EventDeny:    PhaseSizingQuestions,
			},
			PhaseSizingQuestions: {
				EventInfoProvided: PhaseRecommendation,
			},
			PhaseRecommendation: {
				EventRecommendationAccepted: PhaseComplete,
				EventRecommendationRejected: PhaseSizingQuestions,
			},
		},
	}
}

// Next returns the phase the event leads to, or the current phase when the
// transition is undefined.
func (m *StateMachine) Next(current Phase, event Event) (Phase, bool) {
	if next, ok := m.transitions[current][event]; ok {
		return next, true
	}
	return current, false
}

// AvailableEvents lists the events with a defined transition out of the phase.
func (m *StateMachine) AvailableEvents(current Phase) []Event {
	events := make([]Event, 0, len(m.transitions[current]))
	for event := range m.transitions[current] {
		events = append(events, event)
	}
	return events
}

// MapIntentToEvent translates a classifier result into the event vocabulary.
// It is phase-aware: in SIZING_QUESTIONS sizing entities outrank the intent,
// and in RECOMMENDATION confirm/deny become accept/reject.
func MapIntentToEvent(phase Phase, intent string, entities store.Entities) Event {
	switch phase {
	case PhaseSizingQuestions:
		if HasSizingInfo(entities) {
			return EventInfoProvided
		}
	case PhaseRecommendation:
		switch intent {
		case IntentConfirm:
			return EventRecommendationAccepted
		case IntentUnsure, IntentChangeSize:
			return EventRecommendationRejected
		}
		return EventNone
	}

	switch intent {
	case IntentConfirm:
		return EventConfirm
	case IntentUnsure, IntentChangeSize:
		return EventDeny
	}
	return EventNone
}
