package repository

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/loxys/loxys-backend/internal/errors"
	"github.com/loxys/loxys-backend/internal/model"
)

// CustomerRepositoryInterface defines the customer store. Methods
// taking an accountID scope the query to that tenant; Get is the
// unscoped variant used internally by the dispatcher.
type CustomerRepositoryInterface interface {
	Create(c *model.Customer) error
	Get(id string) (*model.Customer, error)
	GetByID(accountID, id string) (*model.Customer, error)
	List(accountID, status, search string) ([]model.Customer, error)
	ListActive(accountID string) ([]model.Customer, error)
	Update(c *model.Customer) error
	SetStatus(accountID, id, status string) error
	FindActiveByPhone(phone string) ([]model.Customer, error)
	FindByContact(accountID, channel, contact string) ([]model.Customer, error)
}

type CustomerRepository struct {
	DB *sqlx.DB
}

const customerCols = `id, account_id, name, phone_e164, email, date_of_birth, notes, status, created_at, updated_at`

// Create inserts a customer. Unique-index violations on
// (account, name, phone) or (account, name, email) are translated to
// domain conflict errors.
func (r *CustomerRepository) Create(c *model.Customer) error {
	if c.Status == "" {
		c.Status = model.CustomerActive
	}
	query := `
        INSERT INTO customers (account_id, name, phone_e164, email, date_of_birth, notes, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at
    `
	err := r.DB.QueryRow(query,
		c.AccountID, c.Name, c.PhoneE164, c.Email, c.DateOfBirth, c.Notes, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return translateCustomerConflict(err)
	}
	return nil
}

func translateCustomerConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if strings.Contains(pqErr.Constraint, "name_phone") {
			return apperrors.NewCustomerConflict("phone")
		}
		if strings.Contains(pqErr.Constraint, "name_email") {
			return apperrors.NewCustomerConflict("email")
		}
		return apperrors.NewCustomerConflict("")
	}
	return err
}

func (r *CustomerRepository) Get(id string) (*model.Customer, error) {
	var c model.Customer
	err := r.DB.Get(&c, `SELECT `+customerCols+` FROM customers WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) GetByID(accountID, id string) (*model.Customer, error) {
	var c model.Customer
	err := r.DB.Get(&c,
		`SELECT `+customerCols+` FROM customers WHERE account_id = $1 AND id = $2`,
		accountID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// List fetches customers for an account with optional status and
// free-text search filters.
func (r *CustomerRepository) List(accountID, status, search string) ([]model.Customer, error) {
	query := `SELECT ` + customerCols + ` FROM customers WHERE account_id = $1`
	args := []interface{}{accountID}

	if status != "" {
		args = append(args, status)
		query += ` AND status = $2`
	}
	if search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		p := "$" + strconv.Itoa(len(args))
		query += ` AND (lower(name) LIKE ` + p +
			` OR lower(coalesce(email, '')) LIKE ` + p +
			` OR coalesce(phone_e164, '') LIKE ` + p +
			` OR lower(coalesce(notes, '')) LIKE ` + p + `)`
	}
	query += ` ORDER BY created_at DESC`

	customers := []model.Customer{}
	if err := r.DB.Select(&customers, query, args...); err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *CustomerRepository) ListActive(accountID string) ([]model.Customer, error) {
	return r.List(accountID, model.CustomerActive, "")
}

func (r *CustomerRepository) Update(c *model.Customer) error {
	query := `
        UPDATE customers
        SET name = $1, phone_e164 = $2, email = $3, date_of_birth = $4, notes = $5, updated_at = now()
        WHERE account_id = $6 AND id = $7
    `
	res, err := r.DB.Exec(query, c.Name, c.PhoneE164, c.Email, c.DateOfBirth, c.Notes, c.AccountID, c.ID)
	if err != nil {
		return translateCustomerConflict(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewCustomerNotFound(c.ID)
	}
	return nil
}

// SetStatus archives or restores a customer. Customers are never hard
// deleted.
func (r *CustomerRepository) SetStatus(accountID, id, status string) error {
	res, err := r.DB.Exec(
		`UPDATE customers SET status = $1, updated_at = now() WHERE account_id = $2 AND id = $3`,
		status, accountID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewCustomerNotFound(id)
	}
	return nil
}

// FindActiveByPhone matches active customers across all accounts;
// inbound SMS keywords arrive with nothing but a phone number.
func (r *CustomerRepository) FindActiveByPhone(phone string) ([]model.Customer, error) {
	customers := []model.Customer{}
	err := r.DB.Select(&customers,
		`SELECT `+customerCols+` FROM customers WHERE phone_e164 = $1 AND status = 'active' ORDER BY created_at`,
		phone)
	if err != nil {
		return nil, err
	}
	return customers, nil
}

// FindByContact matches customers in one account by the channel's
// contact column.
func (r *CustomerRepository) FindByContact(accountID, channel, contact string) ([]model.Customer, error) {
	col := "email"
	if channel == model.ChannelSMS {
		col = "phone_e164"
	}
	customers := []model.Customer{}
	err := r.DB.Select(&customers,
		`SELECT `+customerCols+` FROM customers WHERE account_id = $1 AND `+col+` = $2`,
		accountID, contact)
	if err != nil {
		return nil, err
	}
	return customers, nil
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
