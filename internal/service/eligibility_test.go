package service

import (
	"testing"

	"github.com/loxys/loxys-backend/internal/model"
)

func TestFilterEligible(t *testing.T) {
	accountID := "acct-1"

	unsubs := &mockUnsubscribeRepo{}
	unsubs.Insert(&model.Unsubscribe{
		AccountID: accountID,
		Channel:   model.ChannelSMS,
		PhoneE164: strPtr("+15550000003"),
	})

	consents := &mockConsentRepo{}
	// granted
	consents.Append(&model.Consent{CustomerID: "c1", Channel: model.ChannelSMS, Status: model.ConsentGranted, CapturedVia: model.CapturedViaWeb})
	// granted then revoked: latest entry wins
	consents.Append(&model.Consent{CustomerID: "c2", Channel: model.ChannelSMS, Status: model.ConsentGranted, CapturedVia: model.CapturedViaWeb})
	consents.Append(&model.Consent{CustomerID: "c2", Channel: model.ChannelSMS, Status: model.ConsentRevoked, CapturedVia: model.CapturedViaSMS})
	// suppressed number, consent granted anyway
	consents.Append(&model.Consent{CustomerID: "c3", Channel: model.ChannelSMS, Status: model.ConsentGranted, CapturedVia: model.CapturedViaWeb})
	// c4 has no consent entry at all, c5 has no phone

	customers := []model.Customer{
		{ID: "c1", AccountID: accountID, Name: "Granted", PhoneE164: strPtr("+15550000001")},
		{ID: "c2", AccountID: accountID, Name: "Revoked", PhoneE164: strPtr("+15550000002")},
		{ID: "c3", AccountID: accountID, Name: "Suppressed", PhoneE164: strPtr("+15550000003")},
		{ID: "c4", AccountID: accountID, Name: "NoConsent", PhoneE164: strPtr("+15550000004")},
		{ID: "c5", AccountID: accountID, Name: "NoPhone", Email: strPtr("nophone@example.com")},
	}

	filter := &EligibilityFilter{Unsubscribes: unsubs, Consents: consents}
	eligible, err := filter.FilterEligible(accountID, model.ChannelSMS, customers)
	if err != nil {
		t.Fatal(err)
	}

	if len(eligible) != 1 {
		t.Fatalf("expected 1 eligible customer, got %d", len(eligible))
	}
	if eligible[0].ID != "c1" {
		t.Errorf("expected c1 to be eligible, got %s", eligible[0].ID)
	}
}

func TestFilterEligibleEmailChannel(t *testing.T) {
	accountID := "acct-1"

	consents := &mockConsentRepo{}
	consents.Append(&model.Consent{CustomerID: "c1", Channel: model.ChannelEmail, Status: model.ConsentGranted, CapturedVia: model.CapturedViaWeb})
	// sms consent does not carry over to email
	consents.Append(&model.Consent{CustomerID: "c2", Channel: model.ChannelSMS, Status: model.ConsentGranted, CapturedVia: model.CapturedViaWeb})

	customers := []model.Customer{
		{ID: "c1", AccountID: accountID, Name: "A", Email: strPtr("a@example.com")},
		{ID: "c2", AccountID: accountID, Name: "B", Email: strPtr("b@example.com"), PhoneE164: strPtr("+15550000002")},
	}

	filter := &EligibilityFilter{Unsubscribes: &mockUnsubscribeRepo{}, Consents: consents}
	eligible, err := filter.FilterEligible(accountID, model.ChannelEmail, customers)
	if err != nil {
		t.Fatal(err)
	}

	if len(eligible) != 1 || eligible[0].ID != "c1" {
		t.Fatalf("expected only c1 eligible on email, got %v", eligible)
	}
}

func TestIsEligible(t *testing.T) {
	accountID := "acct-1"

	unsubs := &mockUnsubscribeRepo{}
	consents := &mockConsentRepo{}
	consents.Append(&model.Consent{CustomerID: "c1", Channel: model.ChannelSMS, Status: model.ConsentGranted, CapturedVia: model.CapturedViaWeb})

	filter := &EligibilityFilter{Unsubscribes: unsubs, Consents: consents}

	customer := &model.Customer{ID: "c1", AccountID: accountID, PhoneE164: strPtr("+15550000001")}
	ok, err := filter.IsEligible(accountID, model.ChannelSMS, customer)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected eligible")
	}

	// suppression flips the answer even with consent granted
	unsubs.Insert(&model.Unsubscribe{AccountID: accountID, Channel: model.ChannelSMS, PhoneE164: strPtr("+15550000001")})
	ok, _ = filter.IsEligible(accountID, model.ChannelSMS, customer)
	if ok {
		t.Error("suppressed contact must not be eligible")
	}
}

func TestFilterEligibleNoCandidates(t *testing.T) {
	filter := &EligibilityFilter{Unsubscribes: &mockUnsubscribeRepo{}, Consents: &mockConsentRepo{}}

	eligible, err := filter.FilterEligible("acct-1", model.ChannelSMS, []model.Customer{
		{ID: "c1", Name: "NoPhone", Email: strPtr("x@example.com")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(eligible) != 0 {
		t.Errorf("expected no eligible customers, got %d", len(eligible))
	}
}
