package service

import (
	"testing"

	apperrors "github.com/loxys/loxys-backend/internal/errors"
	"github.com/loxys/loxys-backend/internal/model"
)

func TestUnsubscribeRevokesConsent(t *testing.T) {
	customers := &mockCustomerRepo{}
	consents := &mockConsentRepo{}
	unsubs := &mockUnsubscribeRepo{}
	svc := &UnsubscribeService{Unsubscribes: unsubs, Customers: customers, Consents: consents}

	cust := customers.add(model.Customer{AccountID: "acct-1", Name: "Ada", Email: strPtr("ada@example.com")})
	grantEmail := &model.Consent{CustomerID: cust.ID, Channel: model.ChannelEmail, Status: model.ConsentGranted, CapturedVia: model.CapturedViaWeb}
	consents.Append(grantEmail)

	if err := svc.Unsubscribe("acct-1", model.ChannelEmail, "Ada@Example.com", "footer link"); err != nil {
		t.Fatal(err)
	}

	ok, _ := unsubs.IsSuppressed("acct-1", model.ChannelEmail, "ada@example.com")
	if !ok {
		t.Error("expected email suppressed")
	}
	ok, _ = consents.HasConsent(cust.ID, model.ChannelEmail)
	if ok {
		t.Error("expected consent revoked")
	}

	// idempotent on repeat
	if err := svc.Unsubscribe("acct-1", model.ChannelEmail, "ada@example.com", ""); err != nil {
		t.Errorf("repeat unsubscribe must succeed, got %v", err)
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	svc := &UnsubscribeService{
		Unsubscribes: &mockUnsubscribeRepo{},
		Customers:    &mockCustomerRepo{},
		Consents:     &mockConsentRepo{},
	}

	if err := svc.Unsubscribe("", model.ChannelSMS, "+15550000001", ""); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error without account, got %v", err)
	}
	if err := svc.Unsubscribe("acct-1", "fax", "+15550000001", ""); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for bad channel, got %v", err)
	}
	if err := svc.Unsubscribe("acct-1", model.ChannelSMS, "", ""); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error without contact, got %v", err)
	}
}
