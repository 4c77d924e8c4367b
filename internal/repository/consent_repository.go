package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/loxys/loxys-backend/internal/model"
)

// ConsentRepositoryInterface is the consent side of the ledger. Writes
// are always inserts; the current state for (customer, channel) is the
// most recent row.
type ConsentRepositoryInterface interface {
	Append(c *model.Consent) error
	HasConsent(customerID, channel string) (bool, error)
	GrantedCustomers(customerIDs []string, channel string) (map[string]bool, error)
	ListByCustomer(customerID string) ([]model.Consent, error)
}

type ConsentRepository struct {
	DB *sqlx.DB
}

const consentCols = `id, customer_id, channel, status, captured_via, ip_address, user_agent, consent_text_version, created_at`

func (r *ConsentRepository) Append(c *model.Consent) error {
	query := `
        INSERT INTO consents (customer_id, channel, status, captured_via, ip_address, user_agent, consent_text_version)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at
    `
	return r.DB.QueryRow(query,
		c.CustomerID, c.Channel, c.Status, c.CapturedVia, c.IPAddress, c.UserAgent, c.ConsentTextVersion,
	).Scan(&c.ID, &c.CreatedAt)
}

// HasConsent returns true iff the most recent ledger entry for
// (customer, channel) is a grant. No entry at all means no consent,
// not an error.
func (r *ConsentRepository) HasConsent(customerID, channel string) (bool, error) {
	var status string
	err := r.DB.Get(&status, `
        SELECT status FROM consents
        WHERE customer_id = $1 AND channel = $2
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `, customerID, channel)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return status == model.ConsentGranted, nil
}

// GrantedCustomers resolves latest-wins consent for many customers in
// one query instead of one round trip per candidate.
func (r *ConsentRepository) GrantedCustomers(customerIDs []string, channel string) (map[string]bool, error) {
	granted := make(map[string]bool, len(customerIDs))
	if len(customerIDs) == 0 {
		return granted, nil
	}

	query, args, err := sqlx.In(`
        SELECT DISTINCT ON (customer_id) customer_id, status
        FROM consents
        WHERE customer_id IN (?) AND channel = ?
        ORDER BY customer_id, created_at DESC, id DESC
    `, customerIDs, channel)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var customerID, status string
		if err := rows.Scan(&customerID, &status); err != nil {
			return nil, err
		}
		if status == model.ConsentGranted {
			granted[customerID] = true
		}
	}
	return granted, rows.Err()
}

func (r *ConsentRepository) ListByCustomer(customerID string) ([]model.Consent, error) {
	consents := []model.Consent{}
	err := r.DB.Select(&consents,
		`SELECT `+consentCols+` FROM consents WHERE customer_id = $1 ORDER BY created_at DESC`,
		customerID)
	if err != nil {
		return nil, err
	}
	return consents, nil
}

var _ ConsentRepositoryInterface = (*ConsentRepository)(nil)
