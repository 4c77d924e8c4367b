package provider

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	stopText  = "Reply STOP to unsubscribe"
	maxSMSLen = 1600
)

// ensureStopInstructions appends opt-out wording to an SMS body that
// lacks it. Compliance injection belongs to the adapter, not the
// dispatcher.
func ensureStopInstructions(body string) string {
	lower := strings.ToLower(body)
	if strings.Contains(lower, "stop") ||
		strings.Contains(lower, "unsubscribe") ||
		strings.Contains(lower, "opt-out") {
		return body
	}

	if len(body)+len(stopText)+2 <= maxSMSLen {
		return body + "\n\n" + stopText
	}

	max := maxSMSLen - len(stopText) - 5
	// back off to a rune boundary so the cut never splits a multi-byte
	// character
	for max > 0 && !utf8.RuneStart(body[max]) {
		max--
	}
	return body[:max] + "...\n\n" + stopText
}

// ensureUnsubscribeLink appends an unsubscribe footer to an email body
// that lacks one.
func ensureUnsubscribeLink(body, unsubscribeURL string) string {
	if strings.Contains(strings.ToLower(body), "unsubscribe") {
		return body
	}
	footer := `<p style="font-size: 12px; color: #666;"><a href="` +
		unsubscribeURL + `">Unsubscribe</a> from these emails.</p>`
	return body + "\n\n" + footer
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML produces the plain-text alternative of an HTML body.
func stripHTML(html string) string {
	text := htmlTagPattern.ReplaceAllString(html, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	return strings.TrimSpace(text)
}
