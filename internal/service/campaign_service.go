// internal/service/campaign_service.go
package service

import (
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/loxys/loxys-backend/internal/errors"
	"github.com/loxys/loxys-backend/internal/model"
	"github.com/loxys/loxys-backend/internal/queue"
	"github.com/loxys/loxys-backend/internal/repository"
)

// CampaignService owns the campaign state machine:
// draft -> sending -> completed/cancelled.
type CampaignService struct {
	Campaigns  repository.CampaignRepositoryInterface
	Customers  repository.CustomerRepositoryInterface
	Deliveries repository.DeliveryRepositoryInterface
	Filter     *EligibilityFilter
	Trigger    queue.DispatchTrigger

	// Provider names stamped onto delivery rows per channel.
	SMSProvider   string
	EmailProvider string

	// Batch size passed to the trigger on start.
	TriggerBatchSize int
}

// StartCampaignResult reports what a start enqueued.
type StartCampaignResult struct {
	CampaignID        string `json:"campaign_id"`
	Status            string `json:"status"`
	EligibleCustomers int    `json:"eligible_customers"`
	DeliveriesQueued  int    `json:"deliveries_queued"`
}

// CampaignDetails is a campaign plus its delivery stats.
type CampaignDetails struct {
	model.Campaign
	Stats map[string]int `json:"stats"`
}

func (s *CampaignService) CreateCampaign(accountID, channel, body string) (*model.Campaign, error) {
	if !model.ValidChannel(channel) {
		return nil, apperrors.NewValidation("channel must be sms or email, got %q", channel)
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidation("campaign body cannot be empty")
	}

	c := &model.Campaign{
		AccountID: accountID,
		Channel:   channel,
		Body:      body,
		Status:    model.CampaignDraft,
	}
	if err := s.Campaigns.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// StartCampaign moves a draft campaign to sending. Eligibility is a
// snapshot taken here, not re-evaluated per recipient later. The
// sequence is: verify draft, compute the eligible set, win the
// draft->sending compare-and-swap, bulk-insert queued deliveries, then
// hand off to the dispatcher. A lost CAS means a concurrent start got
// there first and this call reports a state error without inserting
// anything.
func (s *CampaignService) StartCampaign(accountID, campaignID string) (*StartCampaignResult, error) {
	campaign, err := s.Campaigns.GetByID(accountID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, apperrors.NewCampaignNotFound(campaignID)
	}
	if campaign.Status != model.CampaignDraft {
		return nil, apperrors.NewInvalidCampaignState(campaignID, campaign.Status, model.CampaignDraft)
	}

	customers, err := s.Customers.ListActive(accountID)
	if err != nil {
		return nil, err
	}

	eligible, err := s.Filter.FilterEligible(accountID, campaign.Channel, customers)
	if err != nil {
		return nil, err
	}

	ok, err := s.Campaigns.MarkSending(campaignID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewInvalidCampaignState(campaignID, model.CampaignSending, model.CampaignDraft)
	}

	queued := 0
	if len(eligible) > 0 {
		ids := make([]string, len(eligible))
		for i, c := range eligible {
			ids[i] = c.ID
		}
		queued, err = s.Deliveries.BulkQueue(campaignID, s.providerFor(campaign.Channel), ids)
		if err != nil {
			// The campaign is already sending; surface the error but
			// leave the state alone for a retried start of the drain.
			return nil, err
		}
	}

	log.Info().
		Str("campaign_id", campaignID).
		Str("channel", campaign.Channel).
		Int("eligible", len(eligible)).
		Int("queued", queued).
		Msg("campaign started")

	// Fire-and-forget hand-off. A trigger failure must not roll back
	// the state transition; the rows stay queued for a scheduled or
	// manual drain.
	if queued > 0 && s.Trigger != nil {
		batch := s.TriggerBatchSize
		if batch <= 0 {
			batch = 50
		}
		if err := s.Trigger.Trigger(batch); err != nil {
			log.Error().Err(err).Str("campaign_id", campaignID).Msg("dispatch trigger failed, deliveries remain queued")
		}
	}

	return &StartCampaignResult{
		CampaignID:        campaignID,
		Status:            model.CampaignSending,
		EligibleCustomers: len(eligible),
		DeliveriesQueued:  queued,
	}, nil
}

// CancelCampaign is the operator action reaching the cancelled state.
// The dispatcher skips deliveries of non-sending campaigns, so any
// rows still queued drain nothing afterwards.
func (s *CampaignService) CancelCampaign(accountID, campaignID string) error {
	ok, err := s.Campaigns.Cancel(accountID, campaignID)
	if err != nil {
		return err
	}
	if !ok {
		campaign, err := s.Campaigns.GetByID(accountID, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return apperrors.NewCampaignNotFound(campaignID)
		}
		return apperrors.NewInvalidCampaignState(campaignID, campaign.Status, "draft or sending")
	}
	log.Info().Str("campaign_id", campaignID).Msg("campaign cancelled")
	return nil
}

// RequeueFailed puts a campaign's failed deliveries back in the queue.
func (s *CampaignService) RequeueFailed(accountID, campaignID string) (int, error) {
	campaign, err := s.Campaigns.GetByID(accountID, campaignID)
	if err != nil {
		return 0, err
	}
	if campaign == nil {
		return 0, apperrors.NewCampaignNotFound(campaignID)
	}
	if campaign.Status != model.CampaignSending {
		return 0, apperrors.NewInvalidCampaignState(campaignID, campaign.Status, model.CampaignSending)
	}
	return s.Deliveries.RequeueFailed(campaignID)
}

func (s *CampaignService) ListCampaigns(accountID, status string) ([]model.Campaign, error) {
	return s.Campaigns.List(accountID, status)
}

// ListDeliveries returns a campaign's delivery rows, queued first.
func (s *CampaignService) ListDeliveries(accountID, campaignID string) ([]model.Delivery, error) {
	campaign, err := s.Campaigns.GetByID(accountID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, apperrors.NewCampaignNotFound(campaignID)
	}
	return s.Deliveries.ListByCampaign(campaignID)
}

func (s *CampaignService) GetCampaignDetails(accountID, campaignID string) (*CampaignDetails, error) {
	campaign, err := s.Campaigns.GetByID(accountID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, apperrors.NewCampaignNotFound(campaignID)
	}
	stats, err := s.Campaigns.Stats(campaignID)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: *campaign, Stats: stats}, nil
}

func (s *CampaignService) providerFor(channel string) string {
	if channel == model.ChannelEmail {
		if s.EmailProvider != "" {
			return s.EmailProvider
		}
		return "postmark"
	}
	if s.SMSProvider != "" {
		return s.SMSProvider
	}
	return "twilio"
}
