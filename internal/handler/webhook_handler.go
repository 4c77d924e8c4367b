// internal/handler/webhook_handler.go
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/loxys/loxys-backend/internal/errors"
	"github.com/loxys/loxys-backend/internal/service"
	"github.com/loxys/loxys-backend/internal/webhook"
)

// WebhookHandler ingests provider status callbacks and inbound SMS.
type WebhookHandler struct {
	Dispatcher *service.Dispatcher
	Inbound    *service.InboundService

	TwilioAuthToken    string
	EmailWebhookSecret string
}

func NewWebhookHandler(d *service.Dispatcher, inbound *service.InboundService, twilioAuthToken, emailSecret string) *WebhookHandler {
	return &WebhookHandler{
		Dispatcher:         d,
		Inbound:            inbound,
		TwilioAuthToken:    twilioAuthToken,
		EmailWebhookSecret: emailSecret,
	}
}

// SMSStatusHandler handles Twilio delivery status callbacks. The
// payload is form-encoded and signed over the full URL plus the sorted
// params.
func (h *WebhookHandler) SMSStatusHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form payload", http.StatusBadRequest)
		return
	}

	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}

	signature := r.Header.Get("X-Twilio-Signature")
	if !webhook.VerifyTwilioSignature(requestURL(r), params, signature, h.TwilioAuthToken) {
		log.Warn().Msg("sms status webhook rejected: bad signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	messageSID := params["MessageSid"]
	messageStatus := params["MessageStatus"]

	var status string
	switch messageStatus {
	case "delivered":
		status = "delivered"
	case "failed", "undelivered":
		status = "failed"
	default:
		// Intermediate statuses (queued, sent, sending) carry no state
		// we track beyond our own send.
		w.WriteHeader(http.StatusOK)
		return
	}

	eventID := params["EventSid"]
	if eventID == "" {
		eventID = messageSID + "-" + messageStatus
	}

	h.applyEvent(w, messageSID, status, time.Now().UTC(), eventID, params["ErrorMessage"])
}

// EmailEventsHandler handles Postmark delivery and bounce callbacks,
// signed with an HMAC over the raw body.
func (h *WebhookHandler) EmailEventsHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Postmark-Signature")
	if !webhook.VerifyBodySignature(body, signature, h.EmailWebhookSecret) {
		log.Warn().Msg("email events webhook rejected: bad signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	var event struct {
		RecordType  string    `json:"RecordType"`
		MessageID   string    `json:"MessageID"`
		DeliveredAt time.Time `json:"DeliveredAt"`
		BouncedAt   time.Time `json:"BouncedAt"`
		ID          int64     `json:"ID"`
		Description string    `json:"Description"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	var status string
	var eventTime time.Time
	switch event.RecordType {
	case "Delivery":
		status = "delivered"
		eventTime = event.DeliveredAt
	case "Bounce":
		status = "bounced"
		eventTime = event.BouncedAt
	default:
		w.WriteHeader(http.StatusOK)
		return
	}
	if eventTime.IsZero() {
		eventTime = time.Now().UTC()
	}

	eventID := event.RecordType + "-" + event.MessageID
	if event.ID != 0 {
		eventID = event.RecordType + "-" + strconv.FormatInt(event.ID, 10)
	}

	h.applyEvent(w, event.MessageID, status, eventTime, eventID, event.Description)
}

// applyEvent forwards a verified provider event to the dispatcher.
// Stale and duplicate events are acknowledged with a 200 so providers
// stop retrying them.
func (h *WebhookHandler) applyEvent(w http.ResponseWriter, providerMessageID, status string, eventTime time.Time, eventID, providerError string) {
	err := h.Dispatcher.ApplyProviderEvent(providerMessageID, status, eventTime, eventID, providerError)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case apperrors.IsStaleWebhookEvent(err):
		log.Info().Str("provider_message_id", providerMessageID).Msg("stale provider event ignored")
		w.WriteHeader(http.StatusOK)
	case apperrors.IsValidation(err):
		// Unknown message id: likely a delivery from another
		// environment sharing provider credentials.
		log.Warn().Err(err).Msg("provider event for unknown delivery")
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, err)
	}
}

// SMSInboundHandler handles inbound SMS keywords (JOIN, STOP) from
// Twilio and answers with a plain-text reply.
func (h *WebhookHandler) SMSInboundHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form payload", http.StatusBadRequest)
		return
	}

	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}

	signature := r.Header.Get("X-Twilio-Signature")
	if !webhook.VerifyTwilioSignature(requestURL(r), params, signature, h.TwilioAuthToken) {
		log.Warn().Msg("inbound sms webhook rejected: bad signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	reply, err := h.Inbound.HandleKeyword(params["From"], params["Body"])
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(reply))
}

// requestURL reconstructs the externally visible URL Twilio signed,
// honoring the proxy's forwarded proto.
func requestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host + r.RequestURI
}
