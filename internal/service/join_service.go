// internal/service/join_service.go
package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	apperrors "github.com/loxys/loxys-backend/internal/errors"
	"github.com/loxys/loxys-backend/internal/model"
	"github.com/loxys/loxys-backend/internal/repository"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{1,50}$`)

// JoinService handles the public contact-collection surface: token
// resolution and self-service joins with consent capture.
type JoinService struct {
	Tokens    repository.JoinTokenRepositoryInterface
	Customers repository.CustomerRepositoryInterface
	Consents  repository.ConsentRepositoryInterface

	cache *gocache.Cache
}

func NewJoinService(
	tokens repository.JoinTokenRepositoryInterface,
	customers repository.CustomerRepositoryInterface,
	consents repository.ConsentRepositoryInterface,
) *JoinService {
	return &JoinService{
		Tokens:    tokens,
		Customers: customers,
		Consents:  consents,
		cache:     gocache.New(time.Minute, 5*time.Minute),
	}
}

// JoinRequest is a public join submission.
type JoinRequest struct {
	Token        string `json:"token"`
	Name         string `json:"name"`
	PhoneE164    string `json:"phone_e164"`
	Email        string `json:"email"`
	ConsentSMS   bool   `json:"consent_sms"`
	ConsentEmail bool   `json:"consent_email"`

	// Capture metadata recorded on consent rows.
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// ResolveToken resolves a token or slug to an active join token.
// Resolutions are cached briefly; the cache is invalidated on
// deactivate and regenerate.
func (s *JoinService) ResolveToken(tokenOrSlug string) (*model.JoinToken, error) {
	if tokenOrSlug == "" {
		return nil, apperrors.NewValidation("join token is required")
	}
	if cached, ok := s.cache.Get(tokenOrSlug); ok {
		return cached.(*model.JoinToken), nil
	}

	token, err := s.Tokens.Resolve(tokenOrSlug)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, apperrors.NewJoinTokenNotFound(tokenOrSlug)
	}
	if !token.Active {
		return nil, apperrors.NewJoinTokenInactive(tokenOrSlug)
	}

	s.cache.SetDefault(tokenOrSlug, token)
	return token, nil
}

// Join creates a customer via a public join token and appends a
// consent row for each explicitly consented channel.
func (s *JoinService) Join(req JoinRequest) (*model.Customer, error) {
	name := strings.TrimSpace(req.Name)
	phone := NormalizePhone(req.PhoneE164)
	email := NormalizeEmail(req.Email)

	if name == "" || (phone == "" && email == "") {
		return nil, apperrors.NewValidation("name and at least one contact method are required")
	}

	token, err := s.ResolveToken(req.Token)
	if err != nil {
		return nil, err
	}

	customer := &model.Customer{
		AccountID: token.AccountID,
		Name:      name,
		Status:    model.CustomerActive,
	}
	if phone != "" {
		customer.PhoneE164 = &phone
	}
	if email != "" {
		customer.Email = &email
	}
	if err := s.Customers.Create(customer); err != nil {
		return nil, err
	}

	ip := strPtrOrNil(req.IPAddress)
	ua := strPtrOrNil(req.UserAgent)

	if req.ConsentSMS && phone != "" {
		s.appendConsent(customer.ID, model.ChannelSMS, ip, ua)
	}
	if req.ConsentEmail && email != "" {
		s.appendConsent(customer.ID, model.ChannelEmail, ip, ua)
	}

	log.Info().
		Str("account_id", token.AccountID).
		Str("customer_id", customer.ID).
		Msg("customer joined via public token")
	return customer, nil
}

// appendConsent records a web-captured grant. A failed consent write
// is logged but does not undo the join; the customer simply stays
// ineligible until consent lands.
func (s *JoinService) appendConsent(customerID, channel string, ip, ua *string) {
	err := s.Consents.Append(&model.Consent{
		CustomerID:  customerID,
		Channel:     channel,
		Status:      model.ConsentGranted,
		CapturedVia: model.CapturedViaWeb,
		IPAddress:   ip,
		UserAgent:   ua,
	})
	if err != nil {
		log.Error().Err(err).Str("customer_id", customerID).Str("channel", channel).Msg("consent append failed")
	}
}

// CreateToken mints a join token. An optional slug must be lowercase
// alphanumeric plus hyphens, at most 50 chars.
func (s *JoinService) CreateToken(accountID, slug, channelHint string) (*model.JoinToken, error) {
	t := &model.JoinToken{
		AccountID: accountID,
		Token:     uuid.NewString(),
	}
	if slug != "" {
		if !slugPattern.MatchString(slug) {
			return nil, apperrors.NewValidation("slug must be lowercase letters, digits and hyphens, at most 50 characters")
		}
		t.Slug = &slug
	}
	if channelHint != "" {
		if !model.ValidChannel(channelHint) {
			return nil, apperrors.NewValidation("channel hint must be sms or email")
		}
		t.ChannelHint = &channelHint
	}
	if err := s.Tokens.Create(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *JoinService) ListTokens(accountID string) ([]model.JoinToken, error) {
	return s.Tokens.List(accountID)
}

func (s *JoinService) GetToken(accountID, id string) (*model.JoinToken, error) {
	token, err := s.Tokens.GetByID(accountID, id)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, apperrors.NewJoinTokenNotFound(id)
	}
	return token, nil
}

func (s *JoinService) SetTokenActive(accountID, id string, active bool) error {
	ok, err := s.Tokens.SetActive(accountID, id, active)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewJoinTokenNotFound(id)
	}
	s.invalidate(accountID, id)
	return nil
}

// RegenerateToken deactivates the token and mints a replacement with
// the same channel hint.
func (s *JoinService) RegenerateToken(accountID, id string) (*model.JoinToken, error) {
	fresh, err := s.Tokens.Regenerate(accountID, id, uuid.NewString())
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, apperrors.NewJoinTokenNotFound(id)
	}
	s.invalidate(accountID, id)
	return fresh, nil
}

// invalidate flushes cached resolutions of the token being changed.
// The id does not map back to the cached token/slug keys, so drop the
// account's token entries wholesale; resolution is cheap.
func (s *JoinService) invalidate(accountID, id string) {
	tokens, err := s.Tokens.List(accountID)
	if err != nil {
		s.cache.Flush()
		return
	}
	for _, t := range tokens {
		s.cache.Delete(t.Token)
		if t.Slug != nil {
			s.cache.Delete(*t.Slug)
		}
	}
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
