// Package main runs end-to-end tests of the WhatsApp size-confirmation flow
// against a locally running API server.
//
// Scenarios cover:
//   - Order webhook ingestion and opening message
//   - Immediate size confirmation
//   - Unsure customer walked through sizing questions
//   - Recommendation rejection and re-ask
//   - Order with no customer phone (skipped)
//
// Usage:
//
//	SHOPIFY_WEBHOOK_SECRET=... TWILIO_AUTH_TOKEN=... API_BASE_URL=... go run scripts/e2e/run_e2e.go [scenario-name]
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"
)

const testPhone = "+15005550002"

var (
	apiBase       string
	shopifySecret string
	twilioToken   string
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

func orderPayload(orderID, customerID int64, phone string) string {
	customer := fmt.Sprintf(`{"id": %d, "first_name": "E2E", "last_name": "Tester", "phone": %q}`, customerID, phone)
	if phone == "" {
		customer = fmt.Sprintf(`{"id": %d, "first_name": "E2E", "last_name": "Tester"}`, customerID)
	}
	return fmt.Sprintf(`{
		"id": %d,
		"customer": %s,
		"line_items": [
			{
				"id": 1,
				"title": "Linen Shirt",
				"variant_title": "M",
				"properties": [{"name": "Size", "value": "M"}]
			}
		]
	}`, orderID, customer)
}

func postOrder(body string) (*http.Response, error) {
	mac := hmac.New(sha256.New, []byte(shopifySecret))
	mac.Write([]byte(body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest("POST", apiBase+"/webhook/order", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Hmac-SHA256", sig)
	return http.DefaultClient.Do(req)
}

func postReply(text string) (*http.Response, error) {
	form := url.Values{}
	form.Set("MessageSid", fmt.Sprintf("SM%d", time.Now().UnixNano()))
	form.Set("From", "whatsapp:"+testPhone)
	form.Set("To", "whatsapp:+14155238886")
	form.Set("Body", text)
	form.Set("NumMedia", "0")

	fullURL := apiBase + "/webhook/reply"

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var payload bytes.Buffer
	payload.WriteString(fullURL)
	for _, k := range keys {
		payload.WriteString(k)
		payload.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(twilioToken))
	mac.Write(payload.Bytes())
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest("POST", fullURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sig)
	return http.DefaultClient.Do(req)
}

func expectStatus(t *T, name string, resp *http.Response, err error, want int) {
	if err != nil {
		t.fatalf("%s: %v", name, err)
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	t.check(fmt.Sprintf("%s returns %d", name, want), resp.StatusCode == want)
	if resp.StatusCode != want {
		fmt.Printf("    body: %s\n", string(body))
	}
}

func scenarioOrderIngestion(t *T) {
	resp, err := postOrder(orderPayload(time.Now().UnixNano(), 9001, testPhone))
	expectStatus(t, "order webhook", resp, err, http.StatusOK)
}

func scenarioImmediateConfirm(t *T) {
	resp, err := postOrder(orderPayload(time.Now().UnixNano(), 9002, testPhone))
	expectStatus(t, "order webhook", resp, err, http.StatusOK)

	resp, err = postReply("Yes, M is right for me")
	expectStatus(t, "confirm reply", resp, err, http.StatusOK)
}

func scenarioUnsureFlow(t *T) {
	resp, err := postOrder(orderPayload(time.Now().UnixNano(), 9003, testPhone))
	expectStatus(t, "order webhook", resp, err, http.StatusOK)

	for _, msg := range []string{
		"Not sure, I'm between sizes",
		"I'm 180cm and around 75kg",
		"Sounds good, let's go with that",
	} {
		resp, err = postReply(msg)
		expectStatus(t, fmt.Sprintf("reply %q", msg), resp, err, http.StatusOK)
	}
}

func scenarioRecommendationRejected(t *T) {
	resp, err := postOrder(orderPayload(time.Now().UnixNano(), 9004, testPhone))
	expectStatus(t, "order webhook", resp, err, http.StatusOK)

	for _, msg := range []string{
		"Hmm I don't know",
		"I usually wear a large",
		"No, that doesn't sound right",
		"Actually yes, large works",
	} {
		resp, err = postReply(msg)
		expectStatus(t, fmt.Sprintf("reply %q", msg), resp, err, http.StatusOK)
	}
}

func scenarioNoPhone(t *T) {
	resp, err := postOrder(orderPayload(time.Now().UnixNano(), 9005, ""))
	expectStatus(t, "order webhook without phone", resp, err, http.StatusOK)
}

func main() {
	apiBase = os.Getenv("API_BASE_URL")
	if apiBase == "" {
		apiBase = "http://localhost:8080"
	}
	shopifySecret = os.Getenv("SHOPIFY_WEBHOOK_SECRET")
	twilioToken = os.Getenv("TWILIO_AUTH_TOKEN")
	if shopifySecret == "" {
		fmt.Println("SHOPIFY_WEBHOOK_SECRET is required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"order-ingestion", scenarioOrderIngestion},
		{"immediate-confirm", scenarioImmediateConfirm},
		{"unsure-flow", scenarioUnsureFlow},
		{"recommendation-rejected", scenarioRecommendationRejected},
		{"no-phone", scenarioNoPhone},
	}

	only := ""
	if len(os.Args) > 1 {
		only = os.Args[1]
	}

	totalPassed, totalFailed := 0, 0
	for _, s := range scenarios {
		if only != "" && s.Name != only {
			continue
		}
		fmt.Printf("=== %s\n", s.Name)
		t := &T{name: s.Name}
		s.Fn(t)
		totalPassed += t.passed
		totalFailed += t.failed
	}

	fmt.Printf("\n%d passed, %d failed\n", totalPassed, totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
}
