package service

import (
	"testing"

	"github.com/loxys/loxys-backend/internal/model"
)

func newInboundFixture() (*InboundService, *mockCustomerRepo, *mockConsentRepo, *mockUnsubscribeRepo) {
	customers := &mockCustomerRepo{}
	consents := &mockConsentRepo{}
	unsubs := &mockUnsubscribeRepo{}
	svc := &InboundService{Customers: customers, Consents: consents, Unsubscribes: unsubs}
	return svc, customers, consents, unsubs
}

func TestHandleKeywordJoin(t *testing.T) {
	svc, customers, consents, _ := newInboundFixture()
	cust := customers.add(model.Customer{AccountID: "acct-1", Name: "Ada", PhoneE164: strPtr("+15550000001")})

	reply, err := svc.HandleKeyword("15550000001", "join")
	if err != nil {
		t.Fatal(err)
	}
	if reply != replyJoined {
		t.Errorf("unexpected reply %q", reply)
	}

	ok, _ := consents.HasConsent(cust.ID, model.ChannelSMS)
	if !ok {
		t.Error("expected sms consent granted via JOIN")
	}
	entries, _ := consents.ListByCustomer(cust.ID)
	if entries[0].CapturedVia != model.CapturedViaSMS {
		t.Errorf("expected sms capture, got %s", entries[0].CapturedVia)
	}
}

func TestHandleKeywordJoinUnknownNumber(t *testing.T) {
	svc, _, consents, _ := newInboundFixture()

	// no matching customer: still reply, grant nothing
	reply, err := svc.HandleKeyword("+15559999999", "JOIN")
	if err != nil {
		t.Fatal(err)
	}
	if reply != replyJoined {
		t.Errorf("unexpected reply %q", reply)
	}
	if len(consents.consents) != 0 {
		t.Error("no consent must be granted for an unknown number")
	}
}

func TestHandleKeywordStop(t *testing.T) {
	svc, customers, consents, unsubs := newInboundFixture()

	// same number in two accounts
	a := customers.add(model.Customer{AccountID: "acct-1", Name: "Ada", PhoneE164: strPtr("+15550000001")})
	b := customers.add(model.Customer{AccountID: "acct-2", Name: "Ada", PhoneE164: strPtr("+15550000001")})
	grantSMS(consents, a.ID)
	grantSMS(consents, b.ID)

	reply, err := svc.HandleKeyword("+15550000001", "STOP")
	if err != nil {
		t.Fatal(err)
	}
	if reply != replyUnsubscribed {
		t.Errorf("unexpected reply %q", reply)
	}

	for _, accountID := range []string{"acct-1", "acct-2"} {
		ok, _ := unsubs.IsSuppressed(accountID, model.ChannelSMS, "+15550000001")
		if !ok {
			t.Errorf("expected phone suppressed in %s", accountID)
		}
	}
	for _, cust := range []*model.Customer{a, b} {
		ok, _ := consents.HasConsent(cust.ID, model.ChannelSMS)
		if ok {
			t.Errorf("expected consent revoked for %s", cust.ID)
		}
	}
}

func TestHandleKeywordUnknown(t *testing.T) {
	svc, _, _, _ := newInboundFixture()

	reply, err := svc.HandleKeyword("+15550000001", "PIZZA")
	if err != nil {
		t.Fatal(err)
	}
	if reply != replyUnknown {
		t.Errorf("unexpected reply %q", reply)
	}
}
