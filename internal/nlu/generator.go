package nlu

import (
	"context"
	"fmt"
	"strings"

	"github.com/hthomas22/size-agent/internal/conversation"
	"github.com/hthomas22/size-agent/internal/store"
	"github.com/hthomas22/size-agent/pkg/logging"
)

const sizingSystemPrompt = `You are a helpful sizing assistant for a clothing store. Your job is to confirm if the customer's order size is correct.

ORDER INFORMATION:
- Product: %s
- Size ordered: %s

INTERACTION GUIDELINES:
1. Be friendly, brief, and conversational
2. Always start by confirming their purchase and asking about the size
3. If they're unsure about their size, ask helpful questions about:
   - Their usual size at common retailers (Zara, H&M)
   - Their height and weight
4. Make a sizing recommendation based on their responses

CURRENT CONVERSATION PHASE: %s

Respond only with your next message to the customer. Keep it friendly, helpful, and concise.`

// fallbackReply goes out when the model is unreachable so the customer is
// never left without a response.
const fallbackReply = "Sorry, I'm currently unable to process your request. Please contact customer support."

// Generator produces the assistant side of the sizing conversation. Model
// failures degrade to a canned apology instead of erroring, so the webhook
// path still acknowledges and the transcript stays consistent.
type Generator struct {
	llm     LLMClient
	modelID string
	logger  *logging.Logger
}

func NewGenerator(llm LLMClient, modelID string, logger *logging.Logger) *Generator {
	if llm == nil {
		panic("nlu: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{llm: llm, modelID: modelID, logger: logger}
}

var _ conversation.ResponseGenerator = (*Generator)(nil)

func (g *Generator) Generate(ctx context.Context, req conversation.GenerateRequest) (string, error) {
	system := fmt.Sprintf(sizingSystemPrompt, req.ProductTitle, req.OriginalSize, req.Phase)

	messages := transcriptToMessages(req.Transcript)
	if len(messages) == 0 || messages[len(messages)-1].Role != ChatRoleUser {
		// Gemini and Bedrock both require the turn to end on a user
		// message; an empty transcript means we open the conversation.
		messages = append(messages, ChatMessage{
			Role:    ChatRoleUser,
			Content: "Please send your next message to the customer.",
		})
	}

	resp, err := g.llm.Complete(ctx, LLMRequest{
		Model:       g.modelID,
		System:      []string{system},
		Messages:    messages,
		MaxTokens:   256,
		Temperature: 0.2,
	})
	if err != nil {
		g.logger.Error("reply generation failed", "error", err, "phase", string(req.Phase))
		return fallbackReply, nil
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		g.logger.Warn("reply generation returned empty text", "phase", string(req.Phase))
		return fallbackReply, nil
	}
	return text, nil
}

func transcriptToMessages(transcript []store.Message) []ChatMessage {
	messages := make([]ChatMessage, 0, len(transcript))
	for _, msg := range transcript {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := ChatRoleUser
		if msg.Direction == store.DirectionOutbound {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: content})
	}
	return messages
}
