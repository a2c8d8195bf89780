package shopify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hthomas22/size-agent/internal/conversation"
	"github.com/hthomas22/size-agent/internal/store"
)

type fakeService struct {
	startErr  error
	starts    int
	lastStart *conversation.StartRequest
}

func (f *fakeService) StartConversation(_ context.Context, req conversation.StartRequest) error {
	f.starts++
	f.lastStart = &req
	return f.startErr
}

func (f *fakeService) ProcessReply(context.Context, conversation.ReplyRequest) error {
	return nil
}

func postOrder(t *testing.T, h *Handler, body, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/order", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(HmacHeader, signBody([]byte(body), secret))
	}
	rec := httptest.NewRecorder()
	h.OrderWebhook(rec, req)
	return rec
}

func TestOrderWebhookCreatesRowsAndStartsConversation(t *testing.T) {
	st := store.NewMemoryStore()
	svc := &fakeService{}
	h := NewHandler("shh", st, svc, nil, false, nil)

	rec := postOrder(t, h, sampleOrderPayload, "shh")
	require.Equal(t, http.StatusOK, rec.Code)

	customer, err := st.CustomerByShopifyID(context.Background(), "115310627314723954")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", customer.Phone)

	order, err := st.PendingOrderByCustomer(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "820982911946154508", order.ShopifyOrderID)
	assert.Equal(t, "L", order.OriginalSize)

	conv, err := st.ConversationByPhone(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, order.ID, conv.OrderID)
	assert.Equal(t, store.StatusAwaitingSizeConfirmation, conv.Status)

	require.NotNil(t, svc.lastStart)
	assert.Equal(t, order.ID, svc.lastStart.OrderID)
	assert.Equal(t, "Linen Shirt", svc.lastStart.ProductTitle)
	assert.Equal(t, "L", svc.lastStart.OriginalSize)
}

func TestOrderWebhookReusesExistingCustomer(t *testing.T) {
	st := store.NewMemoryStore()
	existing, err := st.CreateCustomer(context.Background(), &store.CustomerCreate{
		ShopifyCustomerID: "115310627314723954",
		Phone:             "+15551234567",
	})
	require.NoError(t, err)

	svc := &fakeService{}
	h := NewHandler("shh", st, svc, nil, false, nil)

	rec := postOrder(t, h, sampleOrderPayload, "shh")
	require.Equal(t, http.StatusOK, rec.Code)

	order, err := st.PendingOrderByCustomer(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, order.CustomerID)
}

func TestOrderWebhookAcksRedelivery(t *testing.T) {
	st := store.NewMemoryStore()
	svc := &fakeService{}
	h := NewHandler("shh", st, svc, nil, false, nil)

	rec := postOrder(t, h, sampleOrderPayload, "shh")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, svc.starts)

	// Shopify redelivers the same webhook; the second delivery must not open
	// a second conversation.
	rec = postOrder(t, h, sampleOrderPayload, "shh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.starts)
}

func TestOrderWebhookSkipsCustomerWithoutPhone(t *testing.T) {
	payload := `{
		"id": 1, "order_number": 2,
		"customer": {"id": 3, "email": "jane@example.com"},
		"line_items": [{"id": 4, "product_id": 5, "variant_id": 6, "title": "Tee", "variant_title": "M"}]
	}`
	st := store.NewMemoryStore()
	svc := &fakeService{}
	h := NewHandler("shh", st, svc, nil, false, nil)

	rec := postOrder(t, h, payload, "shh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "no phone number")
	assert.Nil(t, svc.lastStart)

	_, err := st.CustomerByShopifyID(context.Background(), "3")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrderWebhookAcksWhenNoLineItems(t *testing.T) {
	payload := `{"id": 1, "order_number": 2, "customer": {"id": 3, "phone": "+15551234567"}}`
	st := store.NewMemoryStore()
	svc := &fakeService{}
	h := NewHandler("shh", st, svc, nil, false, nil)

	rec := postOrder(t, h, payload, "shh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.lastStart)
}

func TestOrderWebhookRejectsBadSignature(t *testing.T) {
	st := store.NewMemoryStore()
	h := NewHandler("shh", st, &fakeService{}, nil, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/order", strings.NewReader(sampleOrderPayload))
	req.Header.Set(HmacHeader, "bogus")
	rec := httptest.NewRecorder()
	h.OrderWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderWebhookRejectsWhenSecretMissing(t *testing.T) {
	st := store.NewMemoryStore()
	h := NewHandler("", st, &fakeService{}, nil, false, nil)

	rec := postOrder(t, h, sampleOrderPayload, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOrderWebhookRejectsInvalidJSON(t *testing.T) {
	st := store.NewMemoryStore()
	h := NewHandler("shh", st, &fakeService{}, nil, false, nil)

	rec := postOrder(t, h, "not json", "shh")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderWebhookAcksStartFailure(t *testing.T) {
	st := store.NewMemoryStore()
	svc := &fakeService{startErr: assert.AnError}
	h := NewHandler("shh", st, svc, nil, false, nil)

	rec := postOrder(t, h, sampleOrderPayload, "shh")
	assert.Equal(t, http.StatusOK, rec.Code)

	// The order still landed even though the opening message failed.
	customer, err := st.CustomerByShopifyID(context.Background(), "115310627314723954")
	require.NoError(t, err)
	_, err = st.PendingOrderByCustomer(context.Background(), customer.ID)
	require.NoError(t, err)
}
