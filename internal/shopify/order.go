package shopify

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// OrderWebhook is the subset of Shopify's order payload this service reads.
type OrderWebhook struct {
	ID          int64           `json:"id"`
	OrderNumber int64           `json:"order_number"`
	Customer    WebhookCustomer `json:"customer"`
	LineItems   []LineItem      `json:"line_items"`
}

type WebhookCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type LineItem struct {
	ID           int64          `json:"id"`
	ProductID    int64          `json:"product_id"`
	VariantID    int64          `json:"variant_id"`
	Title        string         `json:"title"`
	VariantTitle string         `json:"variant_title"`
	Properties   []LineProperty `json:"properties"`
}

type LineProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CustomerFacts is what the order payload tells us about the shopper.
type CustomerFacts struct {
	ShopifyCustomerID string
	Email             string
	Phone             string
	FirstName         string
	LastName          string
}

// OrderDetails describes the line item the sizing conversation is about.
type OrderDetails struct {
	ShopifyOrderID string
	OrderNumber    int64
	OriginalSize   string
	ProductID      string
	VariantID      string
	LineItemID     string
	ProductTitle   string
}

// ParseOrder decodes an order webhook payload and extracts the customer plus
// the first line item. A payload with no line items yields customer facts and
// nil details, which is not an error: the webhook still acknowledges.
func ParseOrder(body []byte) (CustomerFacts, *OrderDetails, error) {
	var payload OrderWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return CustomerFacts{}, nil, fmt.Errorf("shopify: invalid order payload: %w", err)
	}
	if payload.Customer.ID == 0 {
		return CustomerFacts{}, nil, fmt.Errorf("shopify: order payload has no customer")
	}

	facts := CustomerFacts{
		ShopifyCustomerID: strconv.FormatInt(payload.Customer.ID, 10),
		Email:             payload.Customer.Email,
		Phone:             payload.Customer.Phone,
		FirstName:         payload.Customer.FirstName,
		LastName:          payload.Customer.LastName,
	}

	if len(payload.LineItems) == 0 {
		return facts, nil, nil
	}

	item := payload.LineItems[0]

	// Size comes from an explicit "Size" property when the storefront set
	// one, otherwise from the variant title.
	size := ""
	for _, prop := range item.Properties {
		if prop.Name == "Size" {
			size = prop.Value
			break
		}
	}
	if size == "" {
		size = item.VariantTitle
	}

	details := &OrderDetails{
		ShopifyOrderID: strconv.FormatInt(payload.ID, 10),
		OrderNumber:    payload.OrderNumber,
		OriginalSize:   size,
		ProductID:      strconv.FormatInt(item.ProductID, 10),
		VariantID:      strconv.FormatInt(item.VariantID, 10),
		LineItemID:     strconv.FormatInt(item.ID, 10),
		ProductTitle:   item.Title,
	}
	return facts, details, nil
}
