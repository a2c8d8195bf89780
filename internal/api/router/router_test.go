package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hthomas22/size-agent/internal/conversation"
	"github.com/hthomas22/size-agent/internal/messaging"
	"github.com/hthomas22/size-agent/internal/shopify"
	"github.com/hthomas22/size-agent/internal/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	st := store.NewMemoryStore()
	engine := conversation.NewEngine(
		st,
		noopClassifier{},
		noopGenerator{},
		noopMessenger{},
		noopCommerce{},
		nil, nil, nil,
	)
	return New(&Config{
		ShopifyHandler:   shopify.NewHandler("secret", st, engine, nil, false, nil),
		MessagingHandler: messaging.NewHandler("", engine, nil, nil),
		MetricsHandler:   http.NotFoundHandler(),
	})
}

func TestRoutesAreWired(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodPost, "/webhook/order", http.StatusUnauthorized},
		{http.MethodPost, "/webhook/reply", http.StatusBadRequest},
		{http.MethodGet, "/webhook/order", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestHealthReportsOK(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
