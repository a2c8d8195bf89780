package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hthomas22/size-agent/internal/conversation"
	"github.com/hthomas22/size-agent/internal/store"
	"github.com/hthomas22/size-agent/pkg/logging"
)

const intentPrompt = `Analyze the customer's message below and extract:
1. Their main intent (CONFIRM, UNSURE, CHANGE_SIZE, PROVIDE_INFO, OTHER)
2. Any key information like usual sizes, height, weight, or preferred size

Customer message: %q

Respond in valid JSON format ONLY, like this:
{
  "intent": "INTENT_TYPE",
  "entities": {
    "usual_size": "Value if mentioned",
    "height": "Value if mentioned",
    "weight": "Value if mentioned",
    "preferred_size": "Value if mentioned"
  }
}`

// Classifier derives a customer intent and sizing entities from a single
// inbound message using an LLM with a strict-JSON prompt. A response the
// model fails to produce as valid JSON degrades to OTHER with no entities
// rather than failing the webhook.
type Classifier struct {
	llm     LLMClient
	modelID string
	logger  *logging.Logger
}

func NewClassifier(llm LLMClient, modelID string, logger *logging.Logger) *Classifier {
	if llm == nil {
		panic("nlu: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{llm: llm, modelID: modelID, logger: logger}
}

var _ conversation.IntentClassifier = (*Classifier)(nil)

type intentPayload struct {
	Intent   string `json:"intent"`
	Entities struct {
		UsualSize     string `json:"usual_size"`
		Height        string `json:"height"`
		Weight        string `json:"weight"`
		PreferredSize string `json:"preferred_size"`
	} `json:"entities"`
}

func (c *Classifier) Classify(ctx context.Context, text string) (string, store.Entities, error) {
	resp, err := c.llm.Complete(ctx, LLMRequest{
		Model:       c.modelID,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: fmt.Sprintf(intentPrompt, text)}},
		MaxTokens:   512,
		Temperature: 0.1,
	})
	if err != nil {
		return "", store.Entities{}, fmt.Errorf("nlu: intent completion failed: %w", err)
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Text)), &payload); err != nil {
		c.logger.Warn("intent response was not valid json", "error", err)
		return conversation.IntentOther, store.Entities{}, nil
	}

	return normalizeIntent(payload.Intent), store.Entities{
		UsualSize:     cleanEntity(payload.Entities.UsualSize),
		Height:        cleanEntity(payload.Entities.Height),
		Weight:        cleanEntity(payload.Entities.Weight),
		PreferredSize: cleanEntity(payload.Entities.PreferredSize),
	}, nil
}

func normalizeIntent(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case conversation.IntentConfirm:
		return conversation.IntentConfirm
	case conversation.IntentUnsure:
		return conversation.IntentUnsure
	case conversation.IntentChangeSize:
		return conversation.IntentChangeSize
	case conversation.IntentProvideInfo:
		return conversation.IntentProvideInfo
	default:
		return conversation.IntentOther
	}
}

// cleanEntity discards placeholder values models sometimes echo back
// from the prompt template instead of leaving the field empty.
func cleanEntity(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "null", "none", "n/a", "value if mentioned":
		return ""
	}
	return v
}

// stripCodeFences unwraps a markdown-fenced JSON body. Gemini in
// particular tends to fence JSON even when asked not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
