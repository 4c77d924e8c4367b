// Package provider holds the outbound channel adapters. The dispatcher
// only sees the capability interfaces and the uniform SendResult.
package provider

import "context"

type SMSMessage struct {
	To   string // E.164
	Body string
	From string // optional override
}

type EmailMessage struct {
	To             string
	Subject        string
	Body           string
	From           string // optional override
	UnsubscribeURL string
}

// SendResult is the uniform outcome of a provider call. A declined
// send comes back with Success false and Error set; transport-level
// failures surface as the adapter's returned error instead.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
	Provider  string
}

type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) (SendResult, error)
	Name() string
}

type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) (SendResult, error)
	Name() string
}
