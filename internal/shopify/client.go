package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hthomas22/size-agent/internal/conversation"
	"github.com/hthomas22/size-agent/pkg/logging"
)

var clientTracer = otel.Tracer("sizeagent.internal.shopify.client")

// Client talks to the Shopify Admin REST API for a single store.
type Client struct {
	storeURL    string
	accessToken string
	apiVersion  string
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewClient builds an Admin API client. storeURL is the myshopify domain
// without a scheme.
func NewClient(storeURL, accessToken, apiVersion string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if apiVersion == "" {
		apiVersion = "2024-07"
	}
	return &Client{
		storeURL:    strings.TrimSuffix(strings.TrimPrefix(storeURL, "https://"), "/"),
		accessToken: accessToken,
		apiVersion:  apiVersion,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

var _ conversation.CommerceClient = (*Client)(nil)

// PushSize records the confirmed size on the Shopify order as an appended
// order note plus a metafield. The line item itself is not swapped to a new
// variant; fulfillment staff work from the note and metafield.
func (c *Client) PushSize(ctx context.Context, orderID, lineItemID, newSize string) error {
	ctx, span := clientTracer.Start(ctx, "shopify.push_size")
	defer span.End()
	span.SetAttributes(
		attribute.String("sizeagent.shopify_order_id", orderID),
		attribute.String("sizeagent.new_size", newSize),
	)

	if err := c.checkConfigured(); err != nil {
		span.RecordError(err)
		return err
	}

	var current struct {
		Order struct {
			Note string `json:"note"`
		} `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("orders/%s.json", orderID), nil, &current); err != nil {
		span.RecordError(err)
		return fmt.Errorf("shopify: fetch order %s: %w", orderID, err)
	}

	note := fmt.Sprintf("Size confirmation: Changed to %s via WhatsApp conversation", newSize)
	if current.Order.Note != "" {
		note = current.Order.Note + "\n" + note
	}

	noteBody := map[string]any{
		"order": map[string]any{
			"id":   orderID,
			"note": note,
		},
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("orders/%s.json", orderID), noteBody, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("shopify: update order note %s: %w", orderID, err)
	}

	metafieldBody := map[string]any{
		"metafield": map[string]any{
			"namespace": "size_confirmation",
			"key":       "confirmed_size",
			"value":     newSize,
			"type":      "single_line_text_field",
		},
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("orders/%s/metafields.json", orderID), metafieldBody, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("shopify: set confirmed size metafield %s: %w", orderID, err)
	}

	c.logger.Info("pushed confirmed size to shopify", "shopify_order_id", orderID, "size", newSize)
	return nil
}

// TriggerFulfillment creates a fulfillment for every line item on the order
// and has Shopify notify the customer.
func (c *Client) TriggerFulfillment(ctx context.Context, orderID string) error {
	ctx, span := clientTracer.Start(ctx, "shopify.trigger_fulfillment")
	defer span.End()
	span.SetAttributes(attribute.String("sizeagent.shopify_order_id", orderID))

	if err := c.checkConfigured(); err != nil {
		span.RecordError(err)
		return err
	}

	var current struct {
		Order struct {
			LineItems []struct {
				ID int64 `json:"id"`
			} `json:"line_items"`
		} `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("orders/%s.json", orderID), nil, &current); err != nil {
		span.RecordError(err)
		return fmt.Errorf("shopify: fetch order %s: %w", orderID, err)
	}

	lineItems := make([]map[string]any, 0, len(current.Order.LineItems))
	for _, item := range current.Order.LineItems {
		lineItems = append(lineItems, map[string]any{"id": item.ID})
	}

	body := map[string]any{
		"fulfillment": map[string]any{
			"notify_customer": true,
			"tracking_info": map[string]any{
				"number":  "N/A",
				"company": "Size Confirmation Service",
			},
			"line_items": lineItems,
		},
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("orders/%s/fulfillments.json", orderID), body, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("shopify: create fulfillment %s: %w", orderID, err)
	}

	c.logger.Info("triggered shopify fulfillment", "shopify_order_id", orderID)
	return nil
}

func (c *Client) checkConfigured() error {
	if c.storeURL == "" || c.accessToken == "" {
		return errors.New("shopify: store url and access token required")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	endpoint := fmt.Sprintf("https://%s/admin/api/%s/%s", c.storeURL, c.apiVersion, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
