package router

import (
	"context"

	"github.com/hthomas22/size-agent/internal/conversation"
	"github.com/hthomas22/size-agent/internal/store"
)

type noopClassifier struct{}

func (noopClassifier) Classify(context.Context, string) (string, store.Entities, error) {
	return conversation.IntentOther, store.Entities{}, nil
}

type noopGenerator struct{}

func (noopGenerator) Generate(context.Context, conversation.GenerateRequest) (string, error) {
	return "ok", nil
}

type noopMessenger struct{}

func (noopMessenger) SendReply(context.Context, conversation.OutboundReply) error {
	return nil
}

type noopCommerce struct{}

func (noopCommerce) PushSize(context.Context, string, string, string) error { return nil }

func (noopCommerce) TriggerFulfillment(context.Context, string) error { return nil }
