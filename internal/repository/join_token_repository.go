package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/loxys/loxys-backend/internal/model"
)

type JoinTokenRepositoryInterface interface {
	Create(t *model.JoinToken) error
	GetByID(accountID, id string) (*model.JoinToken, error)
	List(accountID string) ([]model.JoinToken, error)
	Resolve(tokenOrSlug string) (*model.JoinToken, error)
	SetActive(accountID, id string, active bool) (bool, error)
	Regenerate(accountID, id, newToken string) (*model.JoinToken, error)
}

type JoinTokenRepository struct {
	DB *sqlx.DB
}

const joinTokenCols = `id, account_id, token, slug, channel_hint, active, created_at, updated_at`

func (r *JoinTokenRepository) Create(t *model.JoinToken) error {
	query := `
        INSERT INTO join_tokens (account_id, token, slug, channel_hint, active)
        VALUES ($1, $2, $3, $4, true)
        RETURNING id, active, created_at, updated_at
    `
	return r.DB.QueryRow(query, t.AccountID, t.Token, t.Slug, t.ChannelHint).
		Scan(&t.ID, &t.Active, &t.CreatedAt, &t.UpdatedAt)
}

func (r *JoinTokenRepository) GetByID(accountID, id string) (*model.JoinToken, error) {
	var t model.JoinToken
	err := r.DB.Get(&t,
		`SELECT `+joinTokenCols+` FROM join_tokens WHERE account_id = $1 AND id = $2`,
		accountID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *JoinTokenRepository) List(accountID string) ([]model.JoinToken, error) {
	tokens := []model.JoinToken{}
	err := r.DB.Select(&tokens,
		`SELECT `+joinTokenCols+` FROM join_tokens WHERE account_id = $1 ORDER BY created_at DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Resolve looks up a public token by its random value or its slug.
func (r *JoinTokenRepository) Resolve(tokenOrSlug string) (*model.JoinToken, error) {
	var t model.JoinToken
	err := r.DB.Get(&t,
		`SELECT `+joinTokenCols+` FROM join_tokens WHERE token = $1 OR slug = $1`,
		tokenOrSlug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *JoinTokenRepository) SetActive(accountID, id string, active bool) (bool, error) {
	res, err := r.DB.Exec(
		`UPDATE join_tokens SET active = $1, updated_at = now() WHERE account_id = $2 AND id = $3`,
		active, accountID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Regenerate deactivates the old token and mints a new one with the
// same channel hint in one transaction; the old token permanently
// stops resolving.
func (r *JoinTokenRepository) Regenerate(accountID, id, newToken string) (*model.JoinToken, error) {
	tx, err := r.DB.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var old model.JoinToken
	err = tx.Get(&old, `
        UPDATE join_tokens SET active = false, updated_at = now()
        WHERE account_id = $1 AND id = $2
        RETURNING `+joinTokenCols+`
    `, accountID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var fresh model.JoinToken
	err = tx.Get(&fresh, `
        INSERT INTO join_tokens (account_id, token, channel_hint, active)
        VALUES ($1, $2, $3, true)
        RETURNING `+joinTokenCols+`
    `, accountID, newToken, old.ChannelHint)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &fresh, nil
}

var _ JoinTokenRepositoryInterface = (*JoinTokenRepository)(nil)
