package messaging

import (
	"regexp"
	"strings"
)

const whatsappPrefix = "whatsapp:"

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// StripWhatsAppPrefix removes the channel prefix Twilio puts on WhatsApp
// addresses, leaving a bare phone number.
func StripWhatsAppPrefix(value string) string {
	return strings.TrimPrefix(strings.TrimSpace(value), whatsappPrefix)
}

// WhatsAppAddress prefixes a phone number for delivery over the WhatsApp
// channel. Already-prefixed values pass through unchanged.
func WhatsAppAddress(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, whatsappPrefix) {
		return value
	}
	return whatsappPrefix + value
}

func sanitizePhone(value string) string {
	if value == "" {
		return ""
	}
	digits := phoneDigitsRe.FindAllString(value, -1)
	return strings.Join(digits, "")
}

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = StripWhatsAppPrefix(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}
