// internal/model/unsubscribe.go
package model

import "time"

// Unsubscribe is an account-wide, channel-scoped suppression keyed by
// the raw contact value. It is independent of customer identity: a
// phone number that unsubscribes is blocked for every customer row
// sharing it within the account.
type Unsubscribe struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Channel   string    `db:"channel" json:"channel"`
	PhoneE164 *string   `db:"phone_e164" json:"phone_e164,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
