package repository

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/loxys/loxys-backend/internal/model"
)

type DeliveryRepositoryInterface interface {
	BulkQueue(campaignID, provider string, customerIDs []string) (int, error)
	ListQueuedIDs(limit int) ([]string, error)
	GetQueued(id string) (*model.Delivery, error)
	Get(id string) (*model.Delivery, error)
	GetByProviderMessageID(pmid string) (*model.Delivery, error)
	MarkSent(id, providerMessageID string) (bool, error)
	MarkFailed(id, providerError string) (bool, error)
	ApplyProviderEvent(id, status string, eventTime time.Time, eventID, providerError string) (bool, error)
	HasQueued(campaignID string) (bool, error)
	RequeueFailed(campaignID string) (int, error)
	ListByCampaign(campaignID string) ([]model.Delivery, error)
}

type DeliveryRepository struct {
	DB *sqlx.DB
}

const deliveryCols = `id, campaign_id, customer_id, provider, status, provider_message_id,
    provider_error, provider_event_id, queued_at, sent_at, delivered_at, failed_at`

// BulkQueue inserts one queued delivery per customer in a single
// statement. The (campaign, customer) unique pair makes a re-run of a
// partially failed start idempotent.
func (r *DeliveryRepository) BulkQueue(campaignID, provider string, customerIDs []string) (int, error) {
	if len(customerIDs) == 0 {
		return 0, nil
	}

	values := make([]string, 0, len(customerIDs))
	args := make([]interface{}, 0, len(customerIDs)+2)
	args = append(args, campaignID, provider)
	for i, customerID := range customerIDs {
		values = append(values, "($1, $"+strconv.Itoa(i+3)+", $2, 'queued')")
		args = append(args, customerID)
	}

	query := `
        INSERT INTO message_deliveries (campaign_id, customer_id, provider, status)
        VALUES ` + strings.Join(values, ", ") + `
        ON CONFLICT (campaign_id, customer_id) DO NOTHING
    `
	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListQueuedIDs selects the oldest queued deliveries for one
// dispatcher batch, across all accounts. Only campaigns still sending
// contribute rows: a cancelled campaign's leftovers would otherwise
// fill every batch with skips and starve younger campaigns.
func (r *DeliveryRepository) ListQueuedIDs(limit int) ([]string, error) {
	ids := []string{}
	err := r.DB.Select(&ids, `
        SELECT d.id FROM message_deliveries d
        JOIN message_campaigns c ON c.id = d.campaign_id
        WHERE d.status = 'queued' AND c.status = 'sending'
        ORDER BY d.queued_at ASC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetQueued re-fetches a delivery filtered by status. A row already
// claimed by a racing invocation no longer matches and comes back nil.
func (r *DeliveryRepository) GetQueued(id string) (*model.Delivery, error) {
	var d model.Delivery
	err := r.DB.Get(&d,
		`SELECT `+deliveryCols+` FROM message_deliveries WHERE id = $1 AND status = 'queued'`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *DeliveryRepository) Get(id string) (*model.Delivery, error) {
	var d model.Delivery
	err := r.DB.Get(&d, `SELECT `+deliveryCols+` FROM message_deliveries WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *DeliveryRepository) GetByProviderMessageID(pmid string) (*model.Delivery, error) {
	var d model.Delivery
	err := r.DB.Get(&d,
		`SELECT `+deliveryCols+` FROM message_deliveries WHERE provider_message_id = $1`, pmid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// MarkSent transitions queued -> sent. The status predicate means a
// row claimed by a racing invocation is left alone.
func (r *DeliveryRepository) MarkSent(id, providerMessageID string) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE message_deliveries
        SET status = 'sent', provider_message_id = $2, sent_at = now(),
            provider_error = NULL, failed_at = NULL
        WHERE id = $1 AND status = 'queued'
    `, id, providerMessageID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *DeliveryRepository) MarkFailed(id, providerError string) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE message_deliveries
        SET status = 'failed', provider_error = $2, failed_at = now()
        WHERE id = $1 AND status = 'queued'
    `, id, providerError)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ApplyProviderEvent records a webhook-reported terminal status. The
// caller has already checked event-id idempotency and event ordering;
// the status predicate still guards against a racing update.
func (r *DeliveryRepository) ApplyProviderEvent(id, status string, eventTime time.Time, eventID, providerError string) (bool, error) {
	var deliveredAt, failedAt interface{}
	switch status {
	case model.DeliveryDelivered:
		deliveredAt = eventTime
	case model.DeliveryFailed, model.DeliveryBounced:
		failedAt = eventTime
	}

	res, err := r.DB.Exec(`
        UPDATE message_deliveries
        SET status = $2,
            provider_event_id = $3,
            provider_error = NULLIF($4, ''),
            delivered_at = COALESCE($5, delivered_at),
            failed_at = COALESCE($6, failed_at)
        WHERE id = $1
    `, id, status, eventID, providerError, deliveredAt, failedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// HasQueued reports whether a campaign still has rows to drain.
func (r *DeliveryRepository) HasQueued(campaignID string) (bool, error) {
	var exists bool
	err := r.DB.Get(&exists, `
        SELECT EXISTS (
            SELECT 1 FROM message_deliveries WHERE campaign_id = $1 AND status = 'queued'
        )
    `, campaignID)
	return exists, err
}

// RequeueFailed is the explicit re-queue action; the dispatcher never
// retries failed rows on its own.
func (r *DeliveryRepository) RequeueFailed(campaignID string) (int, error) {
	res, err := r.DB.Exec(`
        UPDATE message_deliveries
        SET status = 'queued', provider_error = NULL, failed_at = NULL, queued_at = now()
        WHERE campaign_id = $1 AND status = 'failed'
    `, campaignID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *DeliveryRepository) ListByCampaign(campaignID string) ([]model.Delivery, error) {
	deliveries := []model.Delivery{}
	err := r.DB.Select(&deliveries,
		`SELECT `+deliveryCols+` FROM message_deliveries WHERE campaign_id = $1 ORDER BY queued_at`,
		campaignID)
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

var _ DeliveryRepositoryInterface = (*DeliveryRepository)(nil)
