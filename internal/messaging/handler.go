package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hthomas22/size-agent/internal/conversation"
	"github.com/hthomas22/size-agent/internal/observability/metrics"
	"github.com/hthomas22/size-agent/pkg/logging"
)

var twilioTracer = otel.Tracer("sizeagent.internal.messaging.twilio")

const twimlEmptyAck = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Handler handles inbound WhatsApp webhook requests. Replies always get an
// empty TwiML acknowledgment; the actual response message goes out through
// the conversation engine's messenger, not the webhook body.
type Handler struct {
	authToken      string
	service        conversation.Service
	metrics        *metrics.ConversationMetrics
	logger         *logging.Logger
	processTimeout time.Duration
	publicBaseURL  string
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithProcessTimeout bounds how long a single inbound reply may spend in the
// conversation engine before the webhook acks anyway.
func WithProcessTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.processTimeout = d
		}
	}
}

// WithPublicBaseURL sets the externally visible base URL used when checking
// Twilio signatures. Proxies that rewrite Host break URL reconstruction, and
// Twilio signs the URL it actually called.
func WithPublicBaseURL(base string) HandlerOption {
	return func(h *Handler) {
		h.publicBaseURL = strings.TrimRight(base, "/")
	}
}

// NewHandler creates a new messaging handler.
func NewHandler(authToken string, service conversation.Service, m *metrics.ConversationMetrics, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if service == nil {
		panic("messaging: conversation service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		authToken: authToken,
		service:   service,
		metrics:   m,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ReplyWebhook handles POST /webhook/reply requests from Twilio.
func (h *Handler) ReplyWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()

	if h.authToken != "" {
		if !ValidateTwilioSignature(r, h.authToken, h.webhookURL(r)) {
			h.logger.Warn("invalid twilio signature")
			h.metrics.ObserveWebhook("reply", "unauthorized")
			span.RecordError(errors.New("invalid twilio signature"))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		h.metrics.ObserveWebhook("reply", "bad_request")
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	from := NormalizeE164(webhook.From)
	span.SetAttributes(
		attribute.String("sizeagent.twilio.message_sid", webhook.MessageSid),
		attribute.String("sizeagent.twilio.from", from),
	)

	if from == "" || webhook.Body == "" {
		err := errors.New("missing required twilio fields")
		h.logger.Error("invalid twilio payload", "error", err)
		h.metrics.ObserveWebhook("reply", "bad_request")
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	req := conversation.ReplyRequest{
		FromPhone: from,
		Body:      webhook.Body,
	}
	if len(webhook.MediaURLs) > 0 {
		req.MediaURL = &webhook.MediaURLs[0]
	}

	if h.processTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.processTimeout)
		defer cancel()
	}

	// Processing failures still ack with empty TwiML. Twilio retries
	// non-2xx responses and the customer never sees the error anyway.
	if err := h.service.ProcessReply(ctx, req); err != nil {
		h.logger.Error("failed to process reply", "error", err, "from", from)
		h.metrics.ObserveWebhook("reply", "error")
		span.RecordError(err)
	} else {
		h.metrics.ObserveWebhook("reply", "ok")
	}
	h.metrics.ObserveWebhookLatency("reply", time.Since(start).Seconds())

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(twimlEmptyAck))
}

func (h *Handler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" && r.URL != nil {
		return h.publicBaseURL + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
