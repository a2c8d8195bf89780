package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// HmacHeader is the header Shopify signs webhook deliveries with.
const HmacHeader = "X-Shopify-Hmac-SHA256"

// VerifyWebhook checks a webhook body against the signature Shopify sent.
// An empty secret always fails: an unsigned endpoint must not accept order
// payloads.
func VerifyWebhook(body []byte, hmacHeader, secret string) bool {
	if secret == "" || hmacHeader == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(hmacHeader))
}
