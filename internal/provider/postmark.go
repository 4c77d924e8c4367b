package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const postmarkAPIBase = "https://api.postmarkapp.com"

// PostmarkClient sends transactional email through the Postmark API.
type PostmarkClient struct {
	httpClient *resty.Client
	fromEmail  string
}

type postmarkRequest struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HTMLBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

type postmarkResponse struct {
	MessageID string `json:"MessageID"`
	Message   string `json:"Message"`
}

func NewPostmarkClient(serverToken, fromEmail string) (*PostmarkClient, error) {
	if serverToken == "" {
		return nil, fmt.Errorf("postmark server token not configured")
	}

	client := resty.New().
		SetBaseURL(postmarkAPIBase).
		SetHeader("X-Postmark-Server-Token", serverToken).
		SetHeader("Accept", "application/json").
		SetTimeout(15 * time.Second)

	return &PostmarkClient{httpClient: client, fromEmail: fromEmail}, nil
}

func (c *PostmarkClient) Name() string { return "postmark" }

func (c *PostmarkClient) SendEmail(ctx context.Context, msg EmailMessage) (SendResult, error) {
	from := msg.From
	if from == "" {
		from = c.fromEmail
	}
	htmlBody := ensureUnsubscribeLink(msg.Body, msg.UnsubscribeURL)

	var body postmarkResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(postmarkRequest{
			From:          from,
			To:            msg.To,
			Subject:       msg.Subject,
			HTMLBody:      htmlBody,
			TextBody:      stripHTML(htmlBody),
			MessageStream: "outbound",
		}).
		SetResult(&body).
		SetError(&body).
		Post("/email")
	if err != nil {
		return SendResult{Provider: c.Name()}, fmt.Errorf("postmark request failed: %w", err)
	}

	if resp.IsError() {
		errMsg := body.Message
		if errMsg == "" {
			errMsg = "postmark API error: " + resp.Status()
		}
		log.Warn().Str("to", msg.To).Int("status", resp.StatusCode()).Str("error", errMsg).Msg("postmark rejected email")
		return SendResult{Success: false, Error: errMsg, Provider: c.Name()}, nil
	}

	return SendResult{Success: true, MessageID: body.MessageID, Provider: c.Name()}, nil
}

var _ EmailSender = (*PostmarkClient)(nil)
