// internal/model/customer.go
package model

import "time"

const (
	CustomerActive   = "active"
	CustomerArchived = "archived"
)

type Customer struct {
	ID          string     `db:"id" json:"id"`
	AccountID   string     `db:"account_id" json:"account_id"`
	Name        string     `db:"name" json:"name"`
	PhoneE164   *string    `db:"phone_e164" json:"phone_e164,omitempty"`
	Email       *string    `db:"email" json:"email,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ContactValue returns the customer's contact value for a channel,
// or "" when the customer is not reachable on it.
func (c *Customer) ContactValue(channel string) string {
	switch channel {
	case ChannelSMS:
		if c.PhoneE164 != nil {
			return *c.PhoneE164
		}
	case ChannelEmail:
		if c.Email != nil {
			return *c.Email
		}
	}
	return ""
}
