// internal/model/consent.go
package model

import "time"

const (
	ConsentGranted = "granted"
	ConsentRevoked = "revoked"
)

// How a consent entry was captured.
const (
	CapturedViaWeb = "web"
	CapturedViaSMS = "sms"
)

// Consent is an append-only ledger entry. Rows are never updated in
// place; the current state for (customer, channel) is the most recent
// entry by creation time.
type Consent struct {
	ID                 string    `db:"id" json:"id"`
	CustomerID         string    `db:"customer_id" json:"customer_id"`
	Channel            string    `db:"channel" json:"channel"`
	Status             string    `db:"status" json:"status"`
	CapturedVia        string    `db:"captured_via" json:"captured_via"`
	IPAddress          *string   `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent          *string   `db:"user_agent" json:"user_agent,omitempty"`
	ConsentTextVersion *string   `db:"consent_text_version" json:"consent_text_version,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
