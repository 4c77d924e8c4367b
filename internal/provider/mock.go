package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MockSender stands in for both channels when no real provider is
// configured. Every send succeeds with a fresh message id.
type MockSender struct{}

func (m *MockSender) Name() string { return "mock" }

func (m *MockSender) SendSMS(ctx context.Context, msg SMSMessage) (SendResult, error) {
	id := "mock-sms-" + uuid.NewString()
	log.Debug().Str("to", msg.To).Str("message_id", id).Msg("mock SMS send")
	return SendResult{Success: true, MessageID: id, Provider: m.Name()}, nil
}

func (m *MockSender) SendEmail(ctx context.Context, msg EmailMessage) (SendResult, error) {
	id := "mock-email-" + uuid.NewString()
	log.Debug().Str("to", msg.To).Str("message_id", id).Msg("mock email send")
	return SendResult{Success: true, MessageID: id, Provider: m.Name()}, nil
}

var (
	_ SMSSender   = (*MockSender)(nil)
	_ EmailSender = (*MockSender)(nil)
)
