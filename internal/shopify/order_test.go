package shopify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOrderPayload = `{
	"id": 820982911946154508,
	"order_number": 1234,
	"customer": {
		"id": 115310627314723954,
		"email": "jane@example.com",
		"phone": "+15551234567",
		"first_name": "Jane",
		"last_name": "Doe"
	},
	"line_items": [
		{
			"id": 466157049,
			"product_id": 632910392,
			"variant_id": 39072856,
			"title": "Linen Shirt",
			"variant_title": "M",
			"properties": [{"name": "Size", "value": "L"}]
		},
		{
			"id": 466157050,
			"product_id": 632910393,
			"variant_id": 39072857,
			"title": "Second Item",
			"variant_title": "S",
			"properties": []
		}
	]
}`

func TestParseOrderExtractsFirstLineItem(t *testing.T) {
	facts, details, err := ParseOrder([]byte(sampleOrderPayload))
	require.NoError(t, err)
	require.NotNil(t, details)

	assert.Equal(t, "115310627314723954", facts.ShopifyCustomerID)
	assert.Equal(t, "jane@example.com", facts.Email)
	assert.Equal(t, "+15551234567", facts.Phone)
	assert.Equal(t, "Jane", facts.FirstName)

	assert.Equal(t, "820982911946154508", details.ShopifyOrderID)
	assert.Equal(t, int64(1234), details.OrderNumber)
	assert.Equal(t, "Linen Shirt", details.ProductTitle)
	assert.Equal(t, "466157049", details.LineItemID)
}

func TestParseOrderPrefersSizeProperty(t *testing.T) {
	_, details, err := ParseOrder([]byte(sampleOrderPayload))
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, "L", details.OriginalSize)
}

func TestParseOrderFallsBackToVariantTitle(t *testing.T) {
	payload := `{
		"id": 1, "order_number": 2,
		"customer": {"id": 3, "phone": "+15551234567"},
		"line_items": [{"id": 4, "product_id": 5, "variant_id": 6, "title": "Tee", "variant_title": "XL"}]
	}`
	_, details, err := ParseOrder([]byte(payload))
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, "XL", details.OriginalSize)
}

func TestParseOrderNoLineItems(t *testing.T) {
	payload := `{"id": 1, "order_number": 2, "customer": {"id": 3, "phone": "+15551234567"}}`
	facts, details, err := ParseOrder([]byte(payload))
	require.NoError(t, err)
	assert.Nil(t, details)
	assert.Equal(t, "3", facts.ShopifyCustomerID)
}

func TestParseOrderRejectsGarbage(t *testing.T) {
	_, _, err := ParseOrder([]byte("not json"))
	require.Error(t, err)
}

func TestParseOrderRejectsMissingCustomer(t *testing.T) {
	_, _, err := ParseOrder([]byte(`{"id": 1, "line_items": []}`))
	require.Error(t, err)
}
