package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ValidateTwilioSignature validates that a request came from Twilio
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	if err := r.ParseForm(); err != nil {
		return false
	}

	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expectedSignature := computeSignature(payload, authToken)

	return hmac.Equal([]byte(signature), []byte(expectedSignature))
}

// buildSignaturePayload creates the payload string for signature verification
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Payload is the URL followed by key/value pairs in sorted key order.
	var payload strings.Builder
	payload.WriteString(url)

	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	return payload.String()
}

// computeSignature computes the HMAC-SHA1 signature
func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// TwilioWebhookRequest represents an incoming Twilio webhook
type TwilioWebhookRequest struct {
	MessageSid string
	AccountSid string
	From       string
	To         string
	Body       string
	NumMedia   int
	MediaURLs  []string
	MediaTypes []string
}

// ParseTwilioWebhook parses a Twilio webhook request. From and To have the
// whatsapp: channel prefix stripped so the rest of the system deals in plain
// phone numbers.
func ParseTwilioWebhook(r *http.Request) (*TwilioWebhookRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse form: %w", err)
	}

	req := &TwilioWebhookRequest{
		MessageSid: r.FormValue("MessageSid"),
		AccountSid: r.FormValue("AccountSid"),
		From:       StripWhatsAppPrefix(r.FormValue("From")),
		To:         StripWhatsAppPrefix(r.FormValue("To")),
		Body:       r.FormValue("Body"),
	}

	if n, err := strconv.Atoi(r.FormValue("NumMedia")); err == nil && n > 0 {
		req.NumMedia = n
		for i := 0; i < n; i++ {
			if u := r.FormValue(fmt.Sprintf("MediaUrl%d", i)); u != "" {
				req.MediaURLs = append(req.MediaURLs, u)
				req.MediaTypes = append(req.MediaTypes, r.FormValue(fmt.Sprintf("MediaContentType%d", i)))
			}
		}
	}

	return req, nil
}
