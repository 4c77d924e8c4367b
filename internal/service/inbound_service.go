// internal/service/inbound_service.go
package service

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/loxys/loxys-backend/internal/model"
	"github.com/loxys/loxys-backend/internal/repository"
)

// Replies sent back to the SMS sender.
const (
	replyJoined       = "You have been added to our list. Reply STOP to unsubscribe."
	replyUnsubscribed = "You have been unsubscribed. You will no longer receive messages."
	replyUnknown      = "Unknown command. Reply JOIN to subscribe or STOP to unsubscribe."
)

// InboundService processes SMS keyword replies (JOIN/STOP) arriving on
// the shared inbound number.
type InboundService struct {
	Customers    repository.CustomerRepositoryInterface
	Consents     repository.ConsentRepositoryInterface
	Unsubscribes repository.UnsubscribeRepositoryInterface
}

// HandleKeyword routes an inbound SMS body. JOIN grants sms consent to
// the first matching active customer. STOP suppresses the phone number
// for every account that has it and revokes consent for every customer
// sharing it, because suppression is per-endpoint while consent is
// per-identity.
func (s *InboundService) HandleKeyword(fromPhone, body string) (string, error) {
	phone := fromPhone
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	keyword := strings.ToUpper(strings.TrimSpace(body))

	switch keyword {
	case "JOIN":
		return s.handleJoin(phone)
	case "STOP", "STOPALL", "UNSUBSCRIBE":
		return s.handleStop(phone)
	}
	return replyUnknown, nil
}

func (s *InboundService) handleJoin(phone string) (string, error) {
	customers, err := s.Customers.FindActiveByPhone(phone)
	if err != nil {
		return "", err
	}
	if len(customers) > 0 {
		customer := customers[0]
		err := s.Consents.Append(&model.Consent{
			CustomerID:  customer.ID,
			Channel:     model.ChannelSMS,
			Status:      model.ConsentGranted,
			CapturedVia: model.CapturedViaSMS,
		})
		if err != nil {
			return "", err
		}
		log.Info().Str("customer_id", customer.ID).Msg("sms consent granted via JOIN keyword")
	}
	return replyJoined, nil
}

func (s *InboundService) handleStop(phone string) (string, error) {
	customers, err := s.Customers.FindActiveByPhone(phone)
	if err != nil {
		return "", err
	}

	reason := "SMS keyword: STOP"
	seenAccounts := make(map[string]bool)
	for _, customer := range customers {
		if !seenAccounts[customer.AccountID] {
			seenAccounts[customer.AccountID] = true
			err := s.Unsubscribes.Insert(&model.Unsubscribe{
				AccountID: customer.AccountID,
				Channel:   model.ChannelSMS,
				PhoneE164: &phone,
				Reason:    &reason,
			})
			if err != nil {
				return "", err
			}
		}

		err := s.Consents.Append(&model.Consent{
			CustomerID:  customer.ID,
			Channel:     model.ChannelSMS,
			Status:      model.ConsentRevoked,
			CapturedVia: model.CapturedViaSMS,
		})
		if err != nil {
			log.Error().Err(err).Str("customer_id", customer.ID).Msg("consent revoke failed")
		}
	}

	if len(customers) > 0 {
		log.Info().Str("phone", phone).Int("customers", len(customers)).Msg("phone unsubscribed via STOP keyword")
	}
	return replyUnsubscribed, nil
}
