package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/loxys/loxys-backend/internal/errors"
	"github.com/loxys/loxys-backend/internal/model"
	"github.com/loxys/loxys-backend/internal/provider"
)

// In-memory repository doubles shared by the service tests. They mirror
// the conditional-write semantics of the SQL layer so state-machine
// behavior can be exercised without a database.

type mockAccountRepo struct {
	accounts map[string]*model.Account
}

func (m *mockAccountRepo) GetByID(id string) (*model.Account, error) {
	return m.accounts[id], nil
}

type mockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*model.Campaign
	nextID    int
}

func newMockCampaignRepo() *mockCampaignRepo {
	return &mockCampaignRepo{campaigns: make(map[string]*model.Campaign)}
}

func (m *mockCampaignRepo) Create(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = fmt.Sprintf("camp-%d", m.nextID)
	c.CreatedAt = time.Now()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *mockCampaignRepo) Get(id string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *mockCampaignRepo) GetByID(accountID, id string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok && c.AccountID == accountID {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *mockCampaignRepo) List(accountID, status string) ([]model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Campaign
	for _, c := range m.campaigns {
		if c.AccountID == accountID && (status == "" || c.Status == status) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCampaignRepo) MarkSending(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != model.CampaignDraft {
		return false, nil
	}
	c.Status = model.CampaignSending
	now := time.Now()
	c.StartedAt = &now
	return true, nil
}

func (m *mockCampaignRepo) MarkCompleted(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != model.CampaignSending {
		return false, nil
	}
	c.Status = model.CampaignCompleted
	now := time.Now()
	c.CompletedAt = &now
	return true, nil
}

func (m *mockCampaignRepo) Cancel(accountID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.AccountID != accountID {
		return false, nil
	}
	if c.Status != model.CampaignDraft && c.Status != model.CampaignSending {
		return false, nil
	}
	c.Status = model.CampaignCancelled
	return true, nil
}

func (m *mockCampaignRepo) Stats(campaignID string) (map[string]int, error) {
	return map[string]int{}, nil
}

type mockCustomerRepo struct {
	mu        sync.Mutex
	customers []*model.Customer
	nextID    int
}

func (m *mockCustomerRepo) add(c model.Customer) *model.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if c.ID == "" {
		c.ID = fmt.Sprintf("cust-%d", m.nextID)
	}
	if c.Status == "" {
		c.Status = model.CustomerActive
	}
	cp := c
	m.customers = append(m.customers, &cp)
	return &cp
}

func (m *mockCustomerRepo) Create(c *model.Customer) error {
	m.mu.Lock()
	for _, existing := range m.customers {
		if existing.AccountID != c.AccountID || existing.Name != c.Name {
			continue
		}
		if c.PhoneE164 != nil && existing.PhoneE164 != nil && *c.PhoneE164 == *existing.PhoneE164 {
			m.mu.Unlock()
			return apperrors.NewCustomerConflict("phone")
		}
		if c.Email != nil && existing.Email != nil && *c.Email == *existing.Email {
			m.mu.Unlock()
			return apperrors.NewCustomerConflict("email")
		}
	}
	m.mu.Unlock()
	created := m.add(*c)
	c.ID = created.ID
	c.Status = created.Status
	return nil
}

func (m *mockCustomerRepo) Get(id string) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockCustomerRepo) GetByID(accountID, id string) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.ID == id && c.AccountID == accountID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockCustomerRepo) List(accountID, status, search string) ([]model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Customer
	for _, c := range m.customers {
		if c.AccountID != accountID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCustomerRepo) ListActive(accountID string) ([]model.Customer, error) {
	return m.List(accountID, model.CustomerActive, "")
}

func (m *mockCustomerRepo) Update(c *model.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.customers {
		if existing.ID == c.ID && existing.AccountID == c.AccountID {
			cp := *c
			m.customers[i] = &cp
			return nil
		}
	}
	return apperrors.NewCustomerNotFound(c.ID)
}

func (m *mockCustomerRepo) SetStatus(accountID, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.ID == id && c.AccountID == accountID {
			c.Status = status
			return nil
		}
	}
	return apperrors.NewCustomerNotFound(id)
}

func (m *mockCustomerRepo) FindActiveByPhone(phone string) ([]model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Customer
	for _, c := range m.customers {
		if c.Status == model.CustomerActive && c.PhoneE164 != nil && *c.PhoneE164 == phone {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCustomerRepo) FindByContact(accountID, channel, contact string) ([]model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Customer
	for _, c := range m.customers {
		if c.AccountID == accountID && c.ContactValue(channel) == contact {
			out = append(out, *c)
		}
	}
	return out, nil
}

type mockDeliveryRepo struct {
	mu         sync.Mutex
	deliveries map[string]*model.Delivery
	order      []string
	nextID     int

	// campaigns backs the sending-only filter of ListQueuedIDs, same
	// as the SQL join. Nil means no filter, which models rows whose
	// campaign changed state after the batch was listed.
	campaigns *mockCampaignRepo
}

func newMockDeliveryRepo() *mockDeliveryRepo {
	return &mockDeliveryRepo{deliveries: make(map[string]*model.Delivery)}
}

func (m *mockDeliveryRepo) BulkQueue(campaignID, providerName string, customerIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queued := 0
	for _, customerID := range customerIDs {
		exists := false
		for _, d := range m.deliveries {
			if d.CampaignID == campaignID && d.CustomerID == customerID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		m.nextID++
		id := fmt.Sprintf("del-%d", m.nextID)
		m.deliveries[id] = &model.Delivery{
			ID:         id,
			CampaignID: campaignID,
			CustomerID: customerID,
			Provider:   providerName,
			Status:     model.DeliveryQueued,
			QueuedAt:   time.Now(),
		}
		m.order = append(m.order, id)
		queued++
	}
	return queued, nil
}

func (m *mockDeliveryRepo) ListQueuedIDs(limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, id := range m.order {
		d := m.deliveries[id]
		if d.Status != model.DeliveryQueued {
			continue
		}
		if m.campaigns != nil {
			c, _ := m.campaigns.Get(d.CampaignID)
			if c == nil || c.Status != model.CampaignSending {
				continue
			}
		}
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (m *mockDeliveryRepo) GetQueued(id string) (*model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok && d.Status == model.DeliveryQueued {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (m *mockDeliveryRepo) Get(id string) (*model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (m *mockDeliveryRepo) GetByProviderMessageID(pmid string) (*model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deliveries {
		if d.ProviderMessageID != nil && *d.ProviderMessageID == pmid {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockDeliveryRepo) MarkSent(id, providerMessageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok || d.Status != model.DeliveryQueued {
		return false, nil
	}
	d.Status = model.DeliverySent
	d.ProviderMessageID = &providerMessageID
	now := time.Now()
	d.SentAt = &now
	return true, nil
}

func (m *mockDeliveryRepo) MarkFailed(id, providerError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok || d.Status != model.DeliveryQueued {
		return false, nil
	}
	d.Status = model.DeliveryFailed
	d.ProviderError = &providerError
	now := time.Now()
	d.FailedAt = &now
	return true, nil
}

func (m *mockDeliveryRepo) ApplyProviderEvent(id, status string, eventTime time.Time, eventID, providerError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return false, nil
	}
	d.Status = status
	d.ProviderEventID = &eventID
	switch status {
	case model.DeliveryDelivered:
		d.DeliveredAt = &eventTime
	case model.DeliveryFailed, model.DeliveryBounced:
		d.FailedAt = &eventTime
		if providerError != "" {
			d.ProviderError = &providerError
		}
	}
	return true, nil
}

func (m *mockDeliveryRepo) HasQueued(campaignID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deliveries {
		if d.CampaignID == campaignID && d.Status == model.DeliveryQueued {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDeliveryRepo) RequeueFailed(campaignID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.deliveries {
		if d.CampaignID == campaignID && d.Status == model.DeliveryFailed {
			d.Status = model.DeliveryQueued
			d.ProviderError = nil
			d.FailedAt = nil
			n++
		}
	}
	return n, nil
}

func (m *mockDeliveryRepo) ListByCampaign(campaignID string) ([]model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Delivery
	for _, id := range m.order {
		if d := m.deliveries[id]; d.CampaignID == campaignID {
			out = append(out, *d)
		}
	}
	return out, nil
}

// byStatus counts a campaign's deliveries per status.
func (m *mockDeliveryRepo) byStatus(campaignID string) map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, d := range m.deliveries {
		if d.CampaignID == campaignID {
			counts[d.Status]++
		}
	}
	return counts
}

type mockConsentRepo struct {
	mu       sync.Mutex
	consents []model.Consent
	nextID   int
}

func (m *mockConsentRepo) Append(c *model.Consent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = fmt.Sprintf("consent-%d", m.nextID)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().Add(time.Duration(m.nextID) * time.Millisecond)
	}
	m.consents = append(m.consents, *c)
	return nil
}

func (m *mockConsentRepo) latest(customerID, channel string) *model.Consent {
	var latest *model.Consent
	for i := range m.consents {
		c := &m.consents[i]
		if c.CustomerID != customerID || c.Channel != channel {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) ||
			(c.CreatedAt.Equal(latest.CreatedAt) && c.ID > latest.ID) {
			latest = c
		}
	}
	return latest
}

func (m *mockConsentRepo) HasConsent(customerID, channel string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := m.latest(customerID, channel)
	return latest != nil && latest.Status == model.ConsentGranted, nil
}

func (m *mockConsentRepo) GrantedCustomers(customerIDs []string, channel string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	granted := make(map[string]bool)
	for _, id := range customerIDs {
		if latest := m.latest(id, channel); latest != nil && latest.Status == model.ConsentGranted {
			granted[id] = true
		}
	}
	return granted, nil
}

func (m *mockConsentRepo) ListByCustomer(customerID string) ([]model.Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Consent
	for _, c := range m.consents {
		if c.CustomerID == customerID {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockUnsubscribeRepo struct {
	mu      sync.Mutex
	entries []model.Unsubscribe
}

func (m *mockUnsubscribeRepo) Insert(u *model.Unsubscribe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.AccountID != u.AccountID || e.Channel != u.Channel {
			continue
		}
		if u.PhoneE164 != nil && e.PhoneE164 != nil && *u.PhoneE164 == *e.PhoneE164 {
			return nil
		}
		if u.Email != nil && e.Email != nil && *u.Email == *e.Email {
			return nil
		}
	}
	m.entries = append(m.entries, *u)
	return nil
}

func (m *mockUnsubscribeRepo) contact(e model.Unsubscribe) string {
	if e.PhoneE164 != nil {
		return *e.PhoneE164
	}
	if e.Email != nil {
		return *e.Email
	}
	return ""
}

func (m *mockUnsubscribeRepo) IsSuppressed(accountID, channel, contact string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.AccountID == accountID && e.Channel == channel && m.contact(e) == contact {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUnsubscribeRepo) SuppressedContacts(accountID, channel string, contacts []string) (map[string]bool, error) {
	suppressed := make(map[string]bool)
	for _, contact := range contacts {
		ok, _ := m.IsSuppressed(accountID, channel, contact)
		if ok {
			suppressed[contact] = true
		}
	}
	return suppressed, nil
}

type mockJoinTokenRepo struct {
	mu     sync.Mutex
	tokens []*model.JoinToken
	nextID int
}

func (m *mockJoinTokenRepo) Create(t *model.JoinToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = fmt.Sprintf("tok-%d", m.nextID)
	t.Active = true
	t.CreatedAt = time.Now()
	cp := *t
	m.tokens = append(m.tokens, &cp)
	return nil
}

func (m *mockJoinTokenRepo) GetByID(accountID, id string) (*model.JoinToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ID == id && t.AccountID == accountID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockJoinTokenRepo) List(accountID string) ([]model.JoinToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.JoinToken
	for _, t := range m.tokens {
		if t.AccountID == accountID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockJoinTokenRepo) Resolve(tokenOrSlug string) (*model.JoinToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Token == tokenOrSlug || (t.Slug != nil && *t.Slug == tokenOrSlug) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockJoinTokenRepo) SetActive(accountID, id string, active bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ID == id && t.AccountID == accountID {
			t.Active = active
			return true, nil
		}
	}
	return false, nil
}

func (m *mockJoinTokenRepo) Regenerate(accountID, id, newToken string) (*model.JoinToken, error) {
	m.mu.Lock()
	var old *model.JoinToken
	for _, t := range m.tokens {
		if t.ID == id && t.AccountID == accountID && t.Active {
			t.Active = false
			old = t
			break
		}
	}
	m.mu.Unlock()
	if old == nil {
		return nil, nil
	}
	fresh := &model.JoinToken{
		AccountID:   accountID,
		Token:       newToken,
		ChannelHint: old.ChannelHint,
	}
	if err := m.Create(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// fakeSMSSender records sends and can be scripted to decline or error.
type fakeSMSSender struct {
	mu       sync.Mutex
	sent     []provider.SMSMessage
	declined string // when set, every send is declined with this error
	err      error  // when set, every send fails at transport level
}

func (f *fakeSMSSender) Name() string { return "twilio" }

func (f *fakeSMSSender) SendSMS(ctx context.Context, msg provider.SMSMessage) (provider.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return provider.SendResult{}, f.err
	}
	if f.declined != "" {
		return provider.SendResult{Success: false, Error: f.declined, Provider: f.Name()}, nil
	}
	f.sent = append(f.sent, msg)
	return provider.SendResult{
		Success:   true,
		MessageID: fmt.Sprintf("SM%04d", len(f.sent)),
		Provider:  f.Name(),
	}, nil
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []provider.EmailMessage
}

func (f *fakeEmailSender) Name() string { return "postmark" }

func (f *fakeEmailSender) SendEmail(ctx context.Context, msg provider.EmailMessage) (provider.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return provider.SendResult{
		Success:   true,
		MessageID: fmt.Sprintf("pm-%04d", len(f.sent)),
		Provider:  f.Name(),
	}, nil
}

// recordingTrigger captures trigger calls; Err makes them fail.
type recordingTrigger struct {
	calls []int
	Err   error
}

func (t *recordingTrigger) Trigger(batchSize int) error {
	t.calls = append(t.calls, batchSize)
	return t.Err
}

var errBrokerDown = errors.New("broker unavailable")

func strPtr(s string) *string { return &s }
