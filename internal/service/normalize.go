package service

import (
	"regexp"
	"strings"
)

var nonPhonePattern = regexp.MustCompile(`[^\d+]`)

// NormalizePhone coerces user input toward E.164. Ten-digit input
// without a country code is assumed to be US. Returns "" when the
// input cannot be normalized.
func NormalizePhone(phone string) string {
	cleaned := nonPhonePattern.ReplaceAllString(phone, "")
	if cleaned == "" {
		return ""
	}
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	digits := strings.TrimPrefix(cleaned, "1")
	if len(digits) == 10 {
		return "+1" + digits
	}
	return ""
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
