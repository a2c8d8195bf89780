package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hthomas22/size-agent/internal/observability/metrics"
	"github.com/hthomas22/size-agent/internal/store"
	"github.com/hthomas22/size-agent/pkg/logging"
)

var engineTracer = otel.Tracer("sizeagent.internal.conversation.engine")

// Service describes the two entrypoints the webhook layer calls.
type Service interface {
	StartConversation(ctx context.Context, req StartRequest) error
	ProcessReply(ctx context.Context, req ReplyRequest) error
}

// StartRequest opens the dialogue for a freshly created order.
type StartRequest struct {
	OrderID      uuid.UUID
	CustomerID   uuid.UUID
	Phone        string
	ProductTitle string
	OriginalSize string
}

// ReplyRequest is one inbound customer message.
type ReplyRequest struct {
	FromPhone string
	Body      string
	MediaURL  *string
}

// IntentClassifier maps free text to an intent tag plus extracted entities.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (string, store.Entities, error)
}

// GenerateRequest is the context handed to the response generator.
type GenerateRequest struct {
	ProductTitle string
	OriginalSize string
	Transcript   []store.Message
	Phase        Phase
}

// ResponseGenerator produces the next outbound message text.
type ResponseGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// OutboundReply is a message to deliver over the chat channel.
type OutboundReply struct {
	To       string
	Body     string
	Metadata map[string]string
}

// ReplyMessenger delivers outbound messages.
type ReplyMessenger interface {
	SendReply(ctx context.Context, msg OutboundReply) error
}

// CommerceClient pushes confirmed sizes back to the platform and triggers
// fulfillment.
type CommerceClient interface {
	PushSize(ctx context.Context, orderID, lineItemID, newSize string) error
	TriggerFulfillment(ctx context.Context, orderID string) error
}

// Engine owns the phase machine and orchestrates the collaborators. It knows
// their contracts, never their implementations.
type Engine struct {
	store      store.Store
	classifier IntentClassifier
	generator  ResponseGenerator
	messenger  ReplyMessenger
	commerce   CommerceClient
	locks      Locker
	metrics    *metrics.ConversationMetrics
	logger     *logging.Logger
}

var _ Service = (*Engine)(nil)

// NewEngine wires the orchestrator. All collaborators are required except
// metrics; a nil locker falls back to in-process locking.
func NewEngine(
	st store.Store,
	classifier IntentClassifier,
	generator ResponseGenerator,
	messenger ReplyMessenger,
	commerce CommerceClient,
	locks Locker,
	m *metrics.ConversationMetrics,
	logger *logging.Logger,
) *Engine {
	if st == nil {
		panic("conversation: store cannot be nil")
	}
	if classifier == nil {
		panic("conversation: classifier cannot be nil")
	}
	if generator == nil {
		panic("conversation: generator cannot be nil")
	}
	if messenger == nil {
		panic("conversation: messenger cannot be nil")
	}
	if commerce == nil {
		panic("conversation: commerce client cannot be nil")
	}
	if locks == nil {
		locks = NewMemoryLocker()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:      st,
		classifier: classifier,
		generator:  generator,
		messenger:  messenger,
		commerce:   commerce,
		locks:      locks,
		metrics:    m,
		logger:     logger,
	}
}

// StartConversation generates and delivers the opening confirmation message
// and records it as the first transcript entry. Delivery failure is logged
// and swallowed; persistence failure propagates so order creation can
// surface it.
func (e *Engine) StartConversation(ctx context.Context, req StartRequest) error {
	ctx, span := engineTracer.Start(ctx, "conversation.start")
	defer span.End()
	span.SetAttributes(attribute.String("sizeagent.order_id", req.OrderID.String()))

	text, err := e.generator.Generate(ctx, GenerateRequest{
		ProductTitle: req.ProductTitle,
		OriginalSize: req.OriginalSize,
		Phase:        PhaseConfirmation,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: generate opening message: %w", err)
	}

	if err := e.messenger.SendReply(ctx, OutboundReply{To: req.Phone, Body: text}); err != nil {
		e.logger.Error("failed to deliver opening message", "error", err, "order_id", req.OrderID)
		e.metrics.ObserveOutbound("failed")
	} else {
		e.metrics.ObserveOutbound("sent")
	}

	_, err = e.store.CreateMessage(ctx, &store.MessageCreate{
		OrderID:           req.OrderID,
		CustomerID:        req.CustomerID,
		Direction:         store.DirectionOutbound,
		Content:           text,
		ConversationPhase: string(PhaseConfirmation),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: persist opening message: %w", err)
	}
	return nil
}

// ProcessReply runs one turn of the dialogue. Unknown senders, missing
// conversations and missing pending orders abort silently with zero side
// effects. Everything from transcript read to outbound write runs under the
// per-order lock so concurrent replies cannot derive the phase twice.
func (e *Engine) ProcessReply(ctx context.Context, req ReplyRequest) error {
	ctx, span := engineTracer.Start(ctx, "conversation.process_reply")
	defer span.End()

	customer, err := e.store.CustomerByPhone(ctx, req.FromPhone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Info("reply from unknown phone, ignoring", "from", req.FromPhone)
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("conversation: resolve customer: %w", err)
	}

	conv, err := e.store.ConversationByPhone(ctx, req.FromPhone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Info("no conversation for phone, ignoring", "from", req.FromPhone)
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("conversation: resolve conversation: %w", err)
	}

	order, err := e.store.PendingOrderByCustomer(ctx, customer.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Info("no pending order for customer, ignoring", "customer_id", customer.ID)
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("conversation: resolve pending order: %w", err)
	}
	span.SetAttributes(attribute.String("sizeagent.order_id", order.ID.String()))

	release, err := e.locks.Acquire(ctx, order.ID.String())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: acquire order lock: %w", err)
	}
	defer release()

	transcript, err := e.store.MessagesByOrder(ctx, order.ID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: load transcript: %w", err)
	}

	currentPhase := PhaseConfirmation
	if len(transcript) > 0 {
		currentPhase = ParsePhase(transcript[len(transcript)-1].ConversationPhase)
	}

	intent, entities, err := e.classifier.Classify(ctx, req.Body)
	if err != nil {
		// Degrade rather than drop: the reply is still recorded and the
		// phase stays put.
		e.logger.Error("intent classification failed", "error", err, "order_id", order.ID)
		intent = IntentOther
		entities = store.Entities{}
	}

	inbound := &store.MessageCreate{
		OrderID:           order.ID,
		CustomerID:        customer.ID,
		Direction:         store.DirectionInbound,
		Content:           req.Body,
		MediaURL:          req.MediaURL,
		ConversationPhase: string(currentPhase),
		Intent:            &intent,
	}
	if !entities.Empty() {
		entCopy := entities
		inbound.Entities = &entCopy
	}
	inboundMsg, err := e.store.CreateMessage(ctx, inbound)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: persist inbound message: %w", err)
	}
	transcript = append(transcript, *inboundMsg)

	e.updateCustomerFacts(ctx, customer.ID, entities)

	nextPhase := NextPhase(currentPhase, intent, entities)
	if nextPhase != currentPhase {
		e.metrics.ObserveTransition(string(currentPhase), string(nextPhase))
	}

	if err := e.applyTransitionEffects(ctx, conv, order, currentPhase, nextPhase, entities); err != nil {
		span.RecordError(err)
		return err
	}

	text, err := e.generator.Generate(ctx, GenerateRequest{
		ProductTitle: order.ProductTitle,
		OriginalSize: order.OriginalSize,
		Transcript:   transcript,
		Phase:        nextPhase,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: generate reply: %w", err)
	}

	if err := e.messenger.SendReply(ctx, OutboundReply{To: req.FromPhone, Body: text}); err != nil {
		e.logger.Error("failed to deliver reply", "error", err, "order_id", order.ID)
		e.metrics.ObserveOutbound("failed")
	} else {
		e.metrics.ObserveOutbound("sent")
	}

	_, err = e.store.CreateMessage(ctx, &store.MessageCreate{
		OrderID:           order.ID,
		CustomerID:        customer.ID,
		Direction:         store.DirectionOutbound,
		Content:           text,
		ConversationPhase: string(nextPhase),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: persist outbound message: %w", err)
	}
	return nil
}

// updateCustomerFacts merges extracted measurement hints into the customer
// record. Failure here is logged and contained: the sizing turn continues.
func (e *Engine) updateCustomerFacts(ctx context.Context, customerID uuid.UUID, entities store.Entities) {
	upd := store.CustomerUpdate{}
	if entities.UsualSize != "" {
		v := entities.UsualSize
		upd.UsualSize = &v
	}
	if entities.Height != "" {
		v := entities.Height
		upd.Height = &v
	}
	if entities.Weight != "" {
		v := entities.Weight
		upd.Weight = &v
	}
	if upd.Empty() {
		return
	}
	if _, err := e.store.UpdateCustomer(ctx, customerID, upd); err != nil {
		e.logger.Error("failed to update customer measurements", "error", err, "customer_id", customerID)
	}
}

// applyTransitionEffects executes the side effects the transition table
// attaches to reaching COMPLETE: conversation status, order confirmation,
// and (from RECOMMENDATION) the commerce push plus fulfillment.
func (e *Engine) applyTransitionEffects(ctx context.Context, conv *store.Conversation, order *store.Order, from, to Phase, entities store.Entities) error {
	if to == from {
		return nil
	}

	if _, err := e.store.UpdateConversationStatus(ctx, conv.ID, StatusForPhase(to)); err != nil {
		e.logger.Error("failed to update conversation status", "error", err, "conversation_id", conv.ID)
	}

	if to != PhaseComplete {
		return nil
	}

	newSize := entities.PreferredSize
	if newSize == "" {
		newSize = order.OriginalSize
	}

	confirmed := true
	status := "confirmed"
	if _, err := e.store.UpdateOrder(ctx, order.ID, store.OrderUpdate{
		ConfirmedSize: &newSize,
		Status:        &status,
		SizeConfirmed: &confirmed,
	}); err != nil {
		return fmt.Errorf("conversation: confirm order: %w", err)
	}

	if from != PhaseRecommendation {
		return nil
	}

	// Size went through the recommendation flow: best-effort push to the
	// platform, then fulfillment.
	if err := e.commerce.PushSize(ctx, order.ShopifyOrderID, order.LineItemID, newSize); err != nil {
		e.logger.Error("failed to push confirmed size to shopify", "error", err, "order_id", order.ID)
	}

	if err := e.commerce.TriggerFulfillment(ctx, order.ShopifyOrderID); err != nil {
		e.logger.Error("failed to trigger fulfillment", "error", err, "order_id", order.ID)
		return nil
	}

	fulfilled := true
	if _, err := e.store.UpdateOrder(ctx, order.ID, store.OrderUpdate{Fulfilled: &fulfilled}); err != nil {
		e.logger.Error("failed to mark order fulfilled", "error", err, "order_id", order.ID)
	}
	return nil
}
