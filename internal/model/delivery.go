// internal/model/delivery.go
package model

import "time"

// Delivery statuses. queued and sent are the only non-terminal states:
// queued rows are waiting for a dispatcher batch, sent rows are waiting
// for a provider webhook.
const (
	DeliveryQueued     = "queued"
	DeliverySent       = "sent"
	DeliveryDelivered  = "delivered"
	DeliveryFailed     = "failed"
	DeliveryBounced    = "bounced"
	DeliverySuppressed = "suppressed"
)

// Delivery is one send attempt of one campaign to one customer.
type Delivery struct {
	ID                string     `db:"id" json:"id"`
	CampaignID        string     `db:"campaign_id" json:"campaign_id"`
	CustomerID        string     `db:"customer_id" json:"customer_id"`
	Provider          string     `db:"provider" json:"provider"`
	Status            string     `db:"status" json:"status"`
	ProviderMessageID *string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ProviderError     *string    `db:"provider_error" json:"provider_error,omitempty"`
	ProviderEventID   *string    `db:"provider_event_id" json:"provider_event_id,omitempty"`
	QueuedAt          time.Time  `db:"queued_at" json:"queued_at"`
	SentAt            *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt       *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	FailedAt          *time.Time `db:"failed_at" json:"failed_at,omitempty"`
}

// Terminal reports whether the status will never change again
// without an explicit re-queue.
func (d *Delivery) Terminal() bool {
	return d.Status != DeliveryQueued && d.Status != DeliverySent
}

// LastTransitionAt is the timestamp of the most recent status change,
// used to reject out-of-order webhook events.
func (d *Delivery) LastTransitionAt() time.Time {
	last := d.QueuedAt
	for _, t := range []*time.Time{d.SentAt, d.FailedAt, d.DeliveredAt} {
		if t != nil && t.After(last) {
			last = *t
		}
	}
	return last
}
