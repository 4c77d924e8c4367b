package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/loxys/loxys-backend/internal/model"
)

// UnsubscribeRepositoryInterface is the suppression side of the
// ledger, keyed by raw contact value rather than customer identity.
type UnsubscribeRepositoryInterface interface {
	Insert(u *model.Unsubscribe) error
	IsSuppressed(accountID, channel, contact string) (bool, error)
	SuppressedContacts(accountID, channel string, contacts []string) (map[string]bool, error)
}

type UnsubscribeRepository struct {
	DB *sqlx.DB
}

// Insert records a suppression. Duplicates for the same
// (account, channel, contact) are tolerated, not errors.
func (r *UnsubscribeRepository) Insert(u *model.Unsubscribe) error {
	_, err := r.DB.Exec(`
        INSERT INTO unsubscribes (account_id, channel, phone_e164, email, reason)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT DO NOTHING
    `, u.AccountID, u.Channel, u.PhoneE164, u.Email, u.Reason)
	return err
}

// IsSuppressed reports whether any unsubscribe row matches the contact
// value for this account and channel.
func (r *UnsubscribeRepository) IsSuppressed(accountID, channel, contact string) (bool, error) {
	var exists bool
	err := r.DB.Get(&exists, `
        SELECT EXISTS (
            SELECT 1 FROM unsubscribes
            WHERE account_id = $1 AND channel = $2 AND (phone_e164 = $3 OR email = $3)
        )
    `, accountID, channel, contact)
	return exists, err
}

// SuppressedContacts is the batch membership test used at campaign
// start: one query for the whole candidate list.
func (r *UnsubscribeRepository) SuppressedContacts(accountID, channel string, contacts []string) (map[string]bool, error) {
	suppressed := make(map[string]bool, len(contacts))
	if len(contacts) == 0 {
		return suppressed, nil
	}

	query, args, err := sqlx.In(`
        SELECT COALESCE(phone_e164, email)
        FROM unsubscribes
        WHERE account_id = ? AND channel = ?
          AND (phone_e164 IN (?) OR email IN (?))
    `, accountID, channel, contacts, contacts)
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
		var contact string
		if err := rows.Scan(&contact); err != nil {
			return nil, err
		}
		suppressed[contact] = true
	}
	return suppressed, rows.Err()
}

var _ UnsubscribeRepositoryInterface = (*UnsubscribeRepository)(nil)
