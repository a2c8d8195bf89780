package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hthomas22/size-agent/internal/store"
)

var allPhases = []Phase{PhaseConfirmation, PhaseSizingQuestions, PhaseRecommendation, PhaseComplete}

var allIntents = []string{IntentConfirm, IntentUnsure, IntentChangeSize, IntentProvideInfo, IntentOther}

var entityVariants = map[string]store.Entities{
	"none":          {},
	"usual_size":    {UsualSize: "M"},
	"height_only":   {Height: "180cm"},
	"height_weight": {Height: "180cm", Weight: "75kg"},
	"preferred":     {PreferredSize: "L"},
}

func TestHasSizingInfo(t *testing.T) {
	assert.False(t, HasSizingInfo(store.Entities{}))
	assert.True(t, HasSizingInfo(store.Entities{UsualSize: "M"}))
	assert.False(t, HasSizingInfo(store.Entities{Height: "180cm"}))
	assert.False(t, HasSizingInfo(store.Entities{Weight: "75kg"}))
	assert.True(t, HasSizingInfo(store.Entities{Height: "180cm", Weight: "75kg"}))
	assert.False(t, HasSizingInfo(store.Entities{PreferredSize: "L"}))
}

func TestNextPhaseTable(t *testing.T) {
	tests := []struct {
		current  Phase
		intent   string
		entities store.Entities
		want     Phase
	}{
		{PhaseConfirmation, IntentConfirm, store.Entities{}, PhaseComplete},
		{PhaseConfirmation, IntentUnsure, store.Entities{}, PhaseSizingQuestions},
		{PhaseConfirmation, IntentChangeSize, store.Entities{}, PhaseSizingQuestions},
		{PhaseConfirmation, IntentOther, store.Entities{}, PhaseConfirmation},
		{PhaseConfirmation, IntentProvideInfo, store.Entities{UsualSize: "M"}, PhaseConfirmation},

		{PhaseSizingQuestions, IntentProvideInfo, store.Entities{UsualSize: "M"}, PhaseRecommendation},
		{PhaseSizingQuestions, IntentProvideInfo, store.Entities{Height: "180cm", Weight: "75kg"}, PhaseRecommendation},
		{PhaseSizingQuestions, IntentProvideInfo, store.Entities{Height: "180cm"}, PhaseSizingQuestions},
		{PhaseSizingQuestions, IntentOther, store.Entities{}, PhaseSizingQuestions},
		// Entities outrank intent while gathering measurements.
		{PhaseSizingQuestions, IntentOther, store.Entities{UsualSize: "M"}, PhaseRecommendation},

		{PhaseRecommendation, IntentConfirm, store.Entities{}, PhaseComplete},
		{PhaseRecommendation, IntentUnsure, store.Entities{}, PhaseSizingQuestions},
		{PhaseRecommendation, IntentChangeSize, store.Entities{}, PhaseSizingQuestions},
		{PhaseRecommendation, IntentOther, store.Entities{}, PhaseRecommendation},

		{PhaseComplete, IntentConfirm, store.Entities{}, PhaseComplete},
		{PhaseComplete, IntentChangeSize, store.Entities{}, PhaseComplete},
	}

	for _, tc := range tests {
		got := NextPhase(tc.current, tc.intent, tc.entities)
		assert.Equal(t, tc.want, got, "%s + %s", tc.current, tc.intent)
	}
}

// The event machine and the transition table are two formulations of the same
// policy. Walk the whole input space and check they never disagree.
func TestStateMachineAgreesWithTable(t *testing.T) {
	sm := NewStateMachine()

	for _, phase := range allPhases {
		for _, intent := range allIntents {
			for name, entities := range entityVariants {
				t.Run(fmt.Sprintf("%s/%s/%s", phase, intent, name), func(t *testing.T) {
					want := NextPhase(phase, intent, entities)
					event := MapIntentToEvent(phase, intent, entities)
					got, _ := sm.Next(phase, event)
					assert.Equal(t, want, got)
				})
			}
		}
	}
}

func TestStateMachineRejectionReturnsToSizing(t *testing.T) {
	sm := NewStateMachine()
	next, ok := sm.Next(PhaseRecommendation, EventRecommendationRejected)
	assert.True(t, ok)
	assert.Equal(t, PhaseSizingQuestions, next)
}

func TestStateMachineCompleteIsTerminal(t *testing.T) {
	sm := NewStateMachine()
	assert.Empty(t, sm.AvailableEvents(PhaseComplete))
	for _, event := range []Event{EventConfirm, EventDeny, EventInfoProvided, EventRecommendationAccepted, EventRecommendationRejected, EventNone} {
		next, ok := sm.Next(PhaseComplete, event)
		assert.False(t, ok)
		assert.Equal(t, PhaseComplete, next)
	}
}

func TestParsePhaseDefaultsToConfirmation(t *testing.T) {
	assert.Equal(t, PhaseConfirmation, ParsePhase(""))
	assert.Equal(t, PhaseConfirmation, ParsePhase("bogus"))
	assert.Equal(t, PhaseRecommendation, ParsePhase("RECOMMENDATION"))
}

func TestStatusForPhase(t *testing.T) {
	assert.Equal(t, store.StatusAwaitingSizeConfirmation, StatusForPhase(PhaseConfirmation))
	assert.Equal(t, store.StatusAwaitingSizingInfo, StatusForPhase(PhaseSizingQuestions))
	assert.Equal(t, store.StatusAwaitingRecommendationConfirmation, StatusForPhase(PhaseRecommendation))
	assert.Equal(t, store.StatusCompleted, StatusForPhase(PhaseComplete))
}

func TestTerminal(t *testing.T) {
	assert.True(t, PhaseComplete.Terminal())
	assert.False(t, PhaseRecommendation.Terminal())
}
