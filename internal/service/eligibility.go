package service

import (
	"github.com/rs/zerolog/log"

	"github.com/loxys/loxys-backend/internal/model"
	"github.com/loxys/loxys-backend/internal/repository"
)

// EligibilityFilter decides which candidates may receive a campaign on
// a channel. Suppression is keyed by the raw contact value (the
// endpoint itself), consent by customer identity; a candidate must
// clear both.
type EligibilityFilter struct {
	Unsubscribes repository.UnsubscribeRepositoryInterface
	Consents     repository.ConsentRepositoryInterface
}

// IsEligible answers the single-customer question the filter answers
// in bulk: reachable on the channel, not suppressed, latest consent
// granted.
func (f *EligibilityFilter) IsEligible(accountID, channel string, customer *model.Customer) (bool, error) {
	contact := customer.ContactValue(channel)
	if contact == "" {
		return false, nil
	}
	suppressed, err := f.Unsubscribes.IsSuppressed(accountID, channel, contact)
	if err != nil {
		return false, err
	}
	if suppressed {
		return false, nil
	}
	return f.Consents.HasConsent(customer.ID, channel)
}

// FilterEligible returns the subset of customers reachable on the
// channel: contact value present, not suppressed for this account, and
// latest consent granted. Membership is resolved with one suppression
// query and one consent query for the whole list. The suppression
// check runs first; it is the cheaper of the two.
func (f *EligibilityFilter) FilterEligible(accountID, channel string, customers []model.Customer) ([]model.Customer, error) {
	contactable := make([]model.Customer, 0, len(customers))
	contacts := make([]string, 0, len(customers))
	for _, c := range customers {
		if v := c.ContactValue(channel); v != "" {
			contactable = append(contactable, c)
			contacts = append(contacts, v)
		}
	}
	if len(contactable) == 0 {
		return nil, nil
	}

	suppressed, err := f.Unsubscribes.SuppressedContacts(accountID, channel, contacts)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.Customer, 0, len(contactable))
	candidateIDs := make([]string, 0, len(contactable))
	for _, c := range contactable {
		if suppressed[c.ContactValue(channel)] {
			continue
		}
		candidates = append(candidates, c)
		candidateIDs = append(candidateIDs, c.ID)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	granted, err := f.Consents.GrantedCustomers(candidateIDs, channel)
	if err != nil {
		return nil, err
	}

	eligible := make([]model.Customer, 0, len(candidates))
	for _, c := range candidates {
		if granted[c.ID] {
			eligible = append(eligible, c)
		}
	}

	log.Debug().
		Str("account_id", accountID).
		Str("channel", channel).
		Int("candidates", len(customers)).
		Int("eligible", len(eligible)).
		Msg("eligibility filter applied")
	return eligible, nil
}
