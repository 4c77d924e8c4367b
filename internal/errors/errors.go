// internal/errors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is returned when a campaign id does not resolve
// within the caller's account.
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign %s not found", e.CampaignID)
}

func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrCustomerNotFound struct {
	CustomerID string
}

func (e *ErrCustomerNotFound) Error() string {
	return fmt.Sprintf("customer %s not found", e.CustomerID)
}

func NewCustomerNotFound(id string) error {
	return &ErrCustomerNotFound{CustomerID: id}
}

type ErrJoinTokenNotFound struct {
	Token string
}

func (e *ErrJoinTokenNotFound) Error() string {
	return fmt.Sprintf("join token %q not found", e.Token)
}

func NewJoinTokenNotFound(token string) error {
	return &ErrJoinTokenNotFound{Token: token}
}

// ErrJoinTokenInactive means the token resolved but has been
// deactivated or regenerated away.
type ErrJoinTokenInactive struct {
	Token string
}

func (e *ErrJoinTokenInactive) Error() string {
	return fmt.Sprintf("join token %q is inactive", e.Token)
}

func NewJoinTokenInactive(token string) error {
	return &ErrJoinTokenInactive{Token: token}
}

// ErrInvalidCampaignState is a state error: the campaign is not in the
// status the requested action requires.
type ErrInvalidCampaignState struct {
	CampaignID string
	Status     string
	Required   string
}

func (e *ErrInvalidCampaignState) Error() string {
	return fmt.Sprintf("campaign %s is %s, must be %s", e.CampaignID, e.Status, e.Required)
}

func NewInvalidCampaignState(id, status, required string) error {
	return &ErrInvalidCampaignState{CampaignID: id, Status: status, Required: required}
}

// ErrCustomerConflict is a uniqueness violation on (account, name,
// phone) or (account, name, email). Field is "phone" or "email".
type ErrCustomerConflict struct {
	Field string
}

func (e *ErrCustomerConflict) Error() string {
	switch e.Field {
	case "phone":
		return "a customer with this name and phone number already exists"
	case "email":
		return "a customer with this name and email already exists"
	}
	return "a customer with this contact information already exists"
}

func NewCustomerConflict(field string) error {
	return &ErrCustomerConflict{Field: field}
}

// ErrValidation rejects malformed input before any mutation.
type ErrValidation struct {
	Msg string
}

func (e *ErrValidation) Error() string { return e.Msg }

func NewValidation(format string, args ...any) error {
	return &ErrValidation{Msg: fmt.Sprintf(format, args...)}
}

// ErrStaleWebhookEvent marks a provider event whose timestamp precedes
// the delivery's latest transition; applying it would overwrite newer
// state with older state.
type ErrStaleWebhookEvent struct {
	ProviderMessageID string
}

func (e *ErrStaleWebhookEvent) Error() string {
	return fmt.Sprintf("stale webhook event for message %s", e.ProviderMessageID)
}

func NewStaleWebhookEvent(pmid string) error {
	return &ErrStaleWebhookEvent{ProviderMessageID: pmid}
}

// Classification helpers for the HTTP layer.

func IsNotFound(err error) bool {
	var c *ErrCampaignNotFound
	var cu *ErrCustomerNotFound
	var jt *ErrJoinTokenNotFound
	return errors.As(err, &c) || errors.As(err, &cu) || errors.As(err, &jt)
}

func IsConflict(err error) bool {
	var e *ErrCustomerConflict
	return errors.As(err, &e)
}

func IsStateError(err error) bool {
	var e *ErrInvalidCampaignState
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ErrValidation
	return errors.As(err, &e)
}

func IsInactiveToken(err error) bool {
	var e *ErrJoinTokenInactive
	return errors.As(err, &e)
}

func IsStaleWebhookEvent(err error) bool {
	var e *ErrStaleWebhookEvent
	return errors.As(err, &e)
}
