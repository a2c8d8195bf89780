package shopify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hthomas22/size-agent/internal/conversation"
	"github.com/hthomas22/size-agent/internal/messaging"
	"github.com/hthomas22/size-agent/internal/observability/metrics"
	"github.com/hthomas22/size-agent/internal/store"
	"github.com/hthomas22/size-agent/pkg/logging"
)

var handlerTracer = otel.Tracer("sizeagent.internal.shopify.handler")

const maxWebhookBody = 1 << 20

// Handler handles Shopify webhook requests.
type Handler struct {
	webhookSecret string
	store         store.Store
	service       conversation.Service
	metrics       *metrics.ConversationMetrics
	logger        *logging.Logger

	// degraded acknowledges order webhooks even when persistence fails,
	// so Shopify does not retry into a known-bad backend.
	degraded bool
}

// NewHandler creates a new Shopify webhook handler.
func NewHandler(webhookSecret string, st store.Store, service conversation.Service, m *metrics.ConversationMetrics, degraded bool, logger *logging.Logger) *Handler {
	if st == nil {
		panic("shopify: store cannot be nil")
	}
	if service == nil {
		panic("shopify: conversation service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		webhookSecret: webhookSecret,
		store:         st,
		service:       service,
		metrics:       m,
		degraded:      degraded,
		logger:        logger,
	}
}

// OrderWebhook handles POST /webhook/order requests for order creation.
func (h *Handler) OrderWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := handlerTracer.Start(r.Context(), "shopify.order_webhook")
	defer span.End()
	defer func() {
		h.metrics.ObserveWebhookLatency("order", time.Since(start).Seconds())
	}()

	if h.webhookSecret == "" {
		err := errors.New("shopify webhook secret not configured")
		h.logger.Error("rejecting order webhook", "error", err)
		h.metrics.ObserveWebhook("order", "error")
		span.RecordError(err)
		http.Error(w, "Webhook verification unavailable", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read order webhook body", "error", err)
		h.metrics.ObserveWebhook("order", "bad_request")
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if !VerifyWebhook(body, r.Header.Get(HmacHeader), h.webhookSecret) {
		h.logger.Warn("invalid shopify webhook signature")
		h.metrics.ObserveWebhook("order", "unauthorized")
		span.RecordError(errors.New("invalid shopify signature"))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	facts, details, err := ParseOrder(body)
	if err != nil {
		h.logger.Error("failed to parse order webhook", "error", err)
		h.metrics.ObserveWebhook("order", "bad_request")
		span.RecordError(err)
		http.Error(w, "Could not parse order data", http.StatusBadRequest)
		return
	}

	if details == nil {
		h.logger.Info("order webhook had no line items", "shopify_customer_id", facts.ShopifyCustomerID)
		h.metrics.ObserveWebhook("order", "skipped")
		writeAck(w, "No order details found, skipping size confirmation")
		return
	}

	span.SetAttributes(
		attribute.String("sizeagent.shopify_order_id", details.ShopifyOrderID),
		attribute.String("sizeagent.product_id", details.ProductID),
	)

	phone := messaging.NormalizeE164(facts.Phone)
	if phone == "" {
		h.logger.Info("customer has no phone number, skipping conversation",
			"shopify_order_id", details.ShopifyOrderID)
		h.metrics.ObserveWebhook("order", "skipped")
		writeAck(w, "Customer has no phone number, skipping WhatsApp notification")
		return
	}

	if err := h.ingestOrder(ctx, facts, details, phone); err != nil {
		span.RecordError(err)
		if h.degraded {
			h.logger.Error("order ingest failed, acknowledging anyway", "error", err,
				"shopify_order_id", details.ShopifyOrderID)
			h.metrics.ObserveWebhook("order", "degraded")
			writeAck(w, "")
			return
		}
		h.logger.Error("order ingest failed", "error", err, "shopify_order_id", details.ShopifyOrderID)
		h.metrics.ObserveWebhook("order", "error")
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveWebhook("order", "ok")
	writeAck(w, "")
}

// ingestOrder persists the customer, order, and conversation rows, then kicks
// off the opening WhatsApp message. The opening message is best effort; the
// rows must land.
func (h *Handler) ingestOrder(ctx context.Context, facts CustomerFacts, details *OrderDetails, phone string) error {
	customer, err := h.store.CustomerByShopifyID(ctx, facts.ShopifyCustomerID)
	if errors.Is(err, store.ErrNotFound) {
		customer, err = h.store.CreateCustomer(ctx, &store.CustomerCreate{
			ShopifyCustomerID: facts.ShopifyCustomerID,
			Phone:             phone,
			Email:             facts.Email,
			FirstName:         facts.FirstName,
			LastName:          facts.LastName,
		})
	}
	if err != nil {
		return fmt.Errorf("shopify: resolve customer: %w", err)
	}

	order, err := h.store.CreateOrder(ctx, &store.OrderCreate{
		ShopifyOrderID: details.ShopifyOrderID,
		CustomerID:     customer.ID,
		OrderNumber:    details.OrderNumber,
		OriginalSize:   details.OriginalSize,
		ProductID:      details.ProductID,
		VariantID:      details.VariantID,
		LineItemID:     details.LineItemID,
		ProductTitle:   details.ProductTitle,
	})
	if errors.Is(err, store.ErrConflict) {
		// Shopify redelivers webhooks; the first delivery already opened the
		// conversation.
		h.logger.Info("order already ingested, skipping",
			"shopify_order_id", details.ShopifyOrderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("shopify: create order: %w", err)
	}

	if _, err := h.store.CreateConversation(ctx, &store.ConversationCreate{
		OrderID:     order.ID,
		PhoneNumber: phone,
		Status:      store.StatusAwaitingSizeConfirmation,
	}); err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("shopify: create conversation: %w", err)
	}

	if err := h.service.StartConversation(ctx, conversation.StartRequest{
		OrderID:      order.ID,
		CustomerID:   customer.ID,
		Phone:        phone,
		ProductTitle: details.ProductTitle,
		OriginalSize: details.OriginalSize,
	}); err != nil {
		// The order is in; the opening message can be resent later.
		h.logger.Error("failed to start conversation", "error", err, "order_id", order.ID)
	}

	return nil
}

func writeAck(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusOK)
	if message != "" {
		_, _ = w.Write([]byte(message))
	}
}
