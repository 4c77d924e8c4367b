package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioClient sends SMS through the Twilio Messages API.
type TwilioClient struct {
	httpClient *resty.Client
	accountSID string
	fromNumber string
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
}

func NewTwilioClient(accountSID, authToken, fromNumber string) (*TwilioClient, error) {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil, fmt.Errorf("twilio credentials not configured")
	}

	client := resty.New().
		SetBaseURL(twilioAPIBase).
		SetBasicAuth(accountSID, authToken).
		SetTimeout(15 * time.Second)

	return &TwilioClient{
		httpClient: client,
		accountSID: accountSID,
		fromNumber: fromNumber,
	}, nil
}

func (c *TwilioClient) Name() string { return "twilio" }

func (c *TwilioClient) SendSMS(ctx context.Context, msg SMSMessage) (SendResult, error) {
	from := msg.From
	if from == "" {
		from = c.fromNumber
	}

	var body twilioResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   msg.To,
			"From": from,
			"Body": ensureStopInstructions(msg.Body),
		}).
		SetResult(&body).
		SetError(&body).
		Post(fmt.Sprintf("/Accounts/%s/Messages.json", c.accountSID))
	if err != nil {
		return SendResult{Provider: c.Name()}, fmt.Errorf("twilio request failed: %w", err)
	}

	if resp.IsError() {
		errMsg := body.Message
		if errMsg == "" {
			errMsg = "twilio API error: " + resp.Status()
		}
		log.Warn().Str("to", msg.To).Int("status", resp.StatusCode()).Str("error", errMsg).Msg("twilio rejected SMS")
		return SendResult{Success: false, Error: errMsg, Provider: c.Name()}, nil
	}

	return SendResult{Success: true, MessageID: body.SID, Provider: c.Name()}, nil
}

var _ SMSSender = (*TwilioClient)(nil)
