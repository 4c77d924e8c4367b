// internal/service/dispatcher.go
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/loxys/loxys-backend/internal/errors"
	"github.com/loxys/loxys-backend/internal/model"
	"github.com/loxys/loxys-backend/internal/provider"
	"github.com/loxys/loxys-backend/internal/repository"
)

const DefaultBatchSize = 50

// errSkipped marks a delivery that was claimed elsewhere or belongs to
// a campaign no longer sending; it counts neither success nor failure.
var errSkipped = errors.New("delivery skipped")

// DispatchResult aggregates one batch drain. Skipped rows made no
// progress; a batch reporting only skips tells a scheduler the queue
// is not draining.
type DispatchResult struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Dispatcher drains queued deliveries in bounded batches. It holds no
// state of its own; the delivery table is the queue, and re-invoking
// it (cron, worker, manual trigger) is the retry mechanism.
type Dispatcher struct {
	Deliveries repository.DeliveryRepositoryInterface
	Campaigns  repository.CampaignRepositoryInterface
	Customers  repository.CustomerRepositoryInterface
	Accounts   repository.AccountRepositoryInterface
	SMS        provider.SMSSender
	Email      provider.EmailSender

	// Base URL for the unsubscribe links injected into emails.
	AppBaseURL string
}

// ProcessQueued drains up to batchSize queued deliveries, oldest
// first, one at a time. Per-delivery errors are recorded on the row
// and never abort the batch. Calling with nothing queued is a no-op.
func (d *Dispatcher) ProcessQueued(ctx context.Context, batchSize int) (DispatchResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	ids, err := d.Deliveries.ListQueuedIDs(batchSize)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("fetch queued deliveries: %w", err)
	}
	if len(ids) == 0 {
		return DispatchResult{}, nil
	}

	result := DispatchResult{Processed: len(ids)}
	touched := make(map[string]bool)

	for _, id := range ids {
		campaignID, err := d.sendOne(ctx, id)
		if campaignID != "" {
			touched[campaignID] = true
		}
		switch {
		case err == nil:
			result.Success++
		case errors.Is(err, errSkipped):
			// claimed by a racing invocation or campaign not sending
			result.Skipped++
		default:
			log.Error().Err(err).Str("delivery_id", id).Msg("delivery failed")
			result.Failed++
		}
	}

	d.completeDrained(touched)

	log.Info().
		Int("processed", result.Processed).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("delivery batch processed")
	return result, nil
}

// sendOne processes a single delivery: claim-check, resolve campaign
// and customer, call the channel provider, record the outcome. Any
// error past the claim check marks the row failed before returning.
func (d *Dispatcher) sendOne(ctx context.Context, id string) (campaignID string, err error) {
	// Re-fetch filtered by status: a row already advanced by a racing
	// invocation no longer matches and is silently skipped.
	delivery, err := d.Deliveries.GetQueued(id)
	if err != nil {
		return "", err
	}
	if delivery == nil {
		return "", errSkipped
	}
	campaignID = delivery.CampaignID

	campaign, err := d.Campaigns.Get(delivery.CampaignID)
	if err != nil {
		return campaignID, d.fail(id, err)
	}
	if campaign == nil {
		return campaignID, d.fail(id, fmt.Errorf("campaign %s not found", delivery.CampaignID))
	}
	if campaign.Status != model.CampaignSending {
		log.Debug().Str("delivery_id", id).Str("campaign_status", campaign.Status).Msg("campaign not sending, delivery skipped")
		return campaignID, errSkipped
	}

	customer, err := d.Customers.Get(delivery.CustomerID)
	if err != nil {
		return campaignID, d.fail(id, err)
	}
	if customer == nil {
		return campaignID, d.fail(id, fmt.Errorf("customer %s not found", delivery.CustomerID))
	}

	res, err := d.send(ctx, campaign, customer)
	if err != nil {
		return campaignID, d.fail(id, err)
	}
	if !res.Success {
		return campaignID, d.fail(id, errors.New(res.Error))
	}

	if _, err := d.Deliveries.MarkSent(id, res.MessageID); err != nil {
		return campaignID, err
	}
	return campaignID, nil
}

func (d *Dispatcher) send(ctx context.Context, campaign *model.Campaign, customer *model.Customer) (provider.SendResult, error) {
	switch campaign.Channel {
	case model.ChannelSMS:
		if customer.PhoneE164 == nil || *customer.PhoneE164 == "" {
			return provider.SendResult{}, errors.New("customer phone number not available")
		}
		return d.SMS.SendSMS(ctx, provider.SMSMessage{
			To:   *customer.PhoneE164,
			Body: campaign.Body,
		})
	case model.ChannelEmail:
		if customer.Email == nil || *customer.Email == "" {
			return provider.SendResult{}, errors.New("customer email not available")
		}
		return d.Email.SendEmail(ctx, provider.EmailMessage{
			To:             *customer.Email,
			Subject:        d.emailSubject(campaign.AccountID),
			Body:           campaign.Body,
			UnsubscribeURL: d.unsubscribeURL(*customer.Email, campaign.AccountID),
		})
	}
	return provider.SendResult{}, fmt.Errorf("unsupported channel: %s", campaign.Channel)
}

// fail records the error on the delivery row and passes it through.
func (d *Dispatcher) fail(id string, cause error) error {
	if _, markErr := d.Deliveries.MarkFailed(id, cause.Error()); markErr != nil {
		log.Error().Err(markErr).Str("delivery_id", id).Msg("could not mark delivery failed")
	}
	return cause
}

// completeDrained marks any touched campaign with nothing left to
// drain as completed. sent rows still awaiting webhooks do not hold a
// campaign open; completion means the queue for it is empty.
func (d *Dispatcher) completeDrained(campaignIDs map[string]bool) {
	for campaignID := range campaignIDs {
		hasQueued, err := d.Deliveries.HasQueued(campaignID)
		if err != nil {
			log.Error().Err(err).Str("campaign_id", campaignID).Msg("completion check failed")
			continue
		}
		if hasQueued {
			continue
		}
		done, err := d.Campaigns.MarkCompleted(campaignID)
		if err != nil {
			log.Error().Err(err).Str("campaign_id", campaignID).Msg("could not mark campaign completed")
			continue
		}
		if done {
			log.Info().Str("campaign_id", campaignID).Msg("campaign completed")
		}
	}
}

func (d *Dispatcher) emailSubject(accountID string) string {
	if d.Accounts != nil {
		if account, err := d.Accounts.GetByID(accountID); err == nil && account != nil {
			return "Message from " + account.Name
		}
	}
	return "You have a new message"
}

func (d *Dispatcher) unsubscribeURL(email, accountID string) string {
	return fmt.Sprintf("%s/unsubscribe?email=%s&account=%s", d.AppBaseURL, url.QueryEscape(email), accountID)
}

// ApplyProviderEvent advances a delivery from an asynchronous provider
// callback, keyed by provider message id because that is all the
// provider knows. A repeated event id is a no-op; an event older than
// the delivery's latest transition is rejected as stale so out-of-order
// webhooks cannot overwrite newer state.
func (d *Dispatcher) ApplyProviderEvent(providerMessageID, status string, eventTime time.Time, eventID, providerError string) error {
	switch status {
	case model.DeliveryDelivered, model.DeliveryFailed, model.DeliveryBounced:
	default:
		return apperrors.NewValidation("unsupported webhook status %q", status)
	}

	delivery, err := d.Deliveries.GetByProviderMessageID(providerMessageID)
	if err != nil {
		return err
	}
	if delivery == nil {
		return apperrors.NewValidation("no delivery for provider message id %q", providerMessageID)
	}

	if delivery.ProviderEventID != nil && *delivery.ProviderEventID == eventID {
		log.Debug().Str("event_id", eventID).Msg("duplicate webhook event ignored")
		return nil
	}
	if eventTime.Before(delivery.LastTransitionAt()) {
		return apperrors.NewStaleWebhookEvent(providerMessageID)
	}

	if _, err := d.Deliveries.ApplyProviderEvent(delivery.ID, status, eventTime, eventID, providerError); err != nil {
		return err
	}
	log.Info().
		Str("delivery_id", delivery.ID).
		Str("provider_message_id", providerMessageID).
		Str("status", status).
		Msg("delivery status updated from webhook")
	return nil
}
