// internal/model/join_token.go
package model

import "time"

// JoinToken is a public capability for self-service contact collection.
// It resolves to an account either by its random token or, when set, by
// a human-chosen slug.
type JoinToken struct {
	ID          string    `db:"id" json:"id"`
	AccountID   string    `db:"account_id" json:"account_id"`
	Token       string    `db:"token" json:"token"`
	Slug        *string   `db:"slug" json:"slug,omitempty"`
	ChannelHint *string   `db:"channel_hint" json:"channel_hint,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
