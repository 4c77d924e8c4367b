package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/loxys/loxys-backend/internal/model"
)

type AccountRepositoryInterface interface {
	GetByID(id string) (*model.Account, error)
}

type AccountRepository struct {
	DB *sqlx.DB
}

func (r *AccountRepository) GetByID(id string) (*model.Account, error) {
	var a model.Account
	err := r.DB.Get(&a, `SELECT id, name, created_at FROM accounts WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

var _ AccountRepositoryInterface = (*AccountRepository)(nil)
