package nlu

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hthomas22/size-agent/internal/conversation"
	"github.com/hthomas22/size-agent/internal/store"
)

func TestGeneratorBuildsPromptFromOrderContext(t *testing.T) {
	llm := &fakeLLM{resp: LLMResponse{Text: "Hi! You ordered the Linen Shirt in M. Does that size work for you?"}}
	g := NewGenerator(llm, "test-model", nil)

	text, err := g.Generate(context.Background(), conversation.GenerateRequest{
		ProductTitle: "Linen Shirt",
		OriginalSize: "M",
		Phase:        conversation.PhaseConfirmation,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, text)

	require.Len(t, llm.lastReq.System, 1)
	assert.Contains(t, llm.lastReq.System[0], "Linen Shirt")
	assert.Contains(t, llm.lastReq.System[0], "Size ordered: M")
	assert.Contains(t, llm.lastReq.System[0], "CONFIRMATION")
}

func TestGeneratorMapsTranscriptRoles(t *testing.T) {
	llm := &fakeLLM{resp: LLMResponse{Text: "Got it, thanks!"}}
	g := NewGenerator(llm, "test-model", nil)

	_, err := g.Generate(context.Background(), conversation.GenerateRequest{
		ProductTitle: "Linen Shirt",
		OriginalSize: "M",
		Phase:        conversation.PhaseSizingQuestions,
		Transcript: []store.Message{
			{Direction: store.DirectionOutbound, Content: "Is M the right size?"},
			{Direction: store.DirectionInbound, Content: "Not sure"},
		},
	})
	require.NoError(t, err)

	require.Len(t, llm.lastReq.Messages, 2)
	assert.Equal(t, ChatRoleAssistant, llm.lastReq.Messages[0].Role)
	assert.Equal(t, ChatRoleUser, llm.lastReq.Messages[1].Role)
	assert.Equal(t, "Not sure", llm.lastReq.Messages[1].Content)
}

func TestGeneratorAppendsUserTurnWhenTranscriptEndsWithAssistant(t *testing.T) {
	llm := &fakeLLM{resp: LLMResponse{Text: "Anything else?"}}
	g := NewGenerator(llm, "test-model", nil)

	_, err := g.Generate(context.Background(), conversation.GenerateRequest{
		ProductTitle: "Linen Shirt",
		OriginalSize: "M",
		Phase:        conversation.PhaseConfirmation,
		Transcript: []store.Message{
			{Direction: store.DirectionOutbound, Content: "Is M the right size?"},
		},
	})
	require.NoError(t, err)

	last := llm.lastReq.Messages[len(llm.lastReq.Messages)-1]
	assert.Equal(t, ChatRoleUser, last.Role)
}

func TestGeneratorFallsBackOnLLMError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model unavailable")}
	g := NewGenerator(llm, "test-model", nil)

	text, err := g.Generate(context.Background(), conversation.GenerateRequest{
		ProductTitle: "Linen Shirt",
		OriginalSize: "M",
		Phase:        conversation.PhaseConfirmation,
	})
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, text)
}

func TestGeneratorFallsBackOnEmptyResponse(t *testing.T) {
	llm := &fakeLLM{resp: LLMResponse{Text: "   "}}
	g := NewGenerator(llm, "test-model", nil)

	text, err := g.Generate(context.Background(), conversation.GenerateRequest{
		ProductTitle: "Linen Shirt",
		OriginalSize: "M",
		Phase:        conversation.PhaseRecommendation,
	})
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, text)
}
