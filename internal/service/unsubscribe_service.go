// internal/service/unsubscribe_service.go
package service

import (
	"github.com/rs/zerolog/log"

	apperrors "github.com/loxys/loxys-backend/internal/errors"
	"github.com/loxys/loxys-backend/internal/model"
	"github.com/loxys/loxys-backend/internal/repository"
)

// UnsubscribeService handles web-initiated unsubscribes.
type UnsubscribeService struct {
	Unsubscribes repository.UnsubscribeRepositoryInterface
	Customers    repository.CustomerRepositoryInterface
	Consents     repository.ConsentRepositoryInterface
}

// Unsubscribe suppresses a contact value for an account+channel and
// revokes consent for every matching customer. The suppression insert
// is the primary operation; consent revocation failures are logged and
// do not abort it. Repeat unsubscribes are not errors.
func (s *UnsubscribeService) Unsubscribe(accountID, channel, contact, reason string) error {
	if accountID == "" {
		return apperrors.NewValidation("account id is required")
	}
	if !model.ValidChannel(channel) {
		return apperrors.NewValidation("valid channel (sms or email) is required")
	}
	if contact == "" {
		return apperrors.NewValidation("email or phone number is required")
	}

	unsub := &model.Unsubscribe{
		AccountID: accountID,
		Channel:   channel,
		Reason:    strPtrOrNil(reason),
	}
	if channel == model.ChannelSMS {
		phone := NormalizePhone(contact)
		if phone == "" {
			return apperrors.NewValidation("invalid phone number")
		}
		contact = phone
		unsub.PhoneE164 = &phone
	} else {
		email := NormalizeEmail(contact)
		contact = email
		unsub.Email = &email
	}

	if err := s.Unsubscribes.Insert(unsub); err != nil {
		return err
	}

	customers, err := s.Customers.FindByContact(accountID, channel, contact)
	if err != nil {
		log.Error().Err(err).Str("account_id", accountID).Msg("could not look up customers for consent revocation")
		return nil
	}
	for _, customer := range customers {
		err := s.Consents.Append(&model.Consent{
			CustomerID:  customer.ID,
			Channel:     channel,
			Status:      model.ConsentRevoked,
			CapturedVia: model.CapturedViaWeb,
		})
		if err != nil {
			log.Error().Err(err).Str("customer_id", customer.ID).Msg("consent revoke failed")
		}
	}

	log.Info().Str("account_id", accountID).Str("channel", channel).Msg("contact unsubscribed")
	return nil
}
