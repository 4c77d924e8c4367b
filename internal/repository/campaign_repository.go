package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/loxys/loxys-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	Get(id string) (*model.Campaign, error)
	GetByID(accountID, id string) (*model.Campaign, error)
	List(accountID, status string) ([]model.Campaign, error)
	MarkSending(id string) (bool, error)
	MarkCompleted(id string) (bool, error)
	Cancel(accountID, id string) (bool, error)
	Stats(campaignID string) (map[string]int, error)
}

type CampaignRepository struct {
	DB *sqlx.DB
}

const campaignCols = `id, account_id, channel, body, status, started_at, completed_at, created_at, updated_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO message_campaigns (account_id, channel, body, status)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at
    `
	return r.DB.QueryRow(query, c.AccountID, c.Channel, c.Body, c.Status).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepository) Get(id string) (*model.Campaign, error) {
	var c model.Campaign
	err := r.DB.Get(&c, `SELECT `+campaignCols+` FROM message_campaigns WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) GetByID(accountID, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := r.DB.Get(&c,
		`SELECT `+campaignCols+` FROM message_campaigns WHERE account_id = $1 AND id = $2`,
		accountID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) List(accountID, status string) ([]model.Campaign, error) {
	query := `SELECT ` + campaignCols + ` FROM message_campaigns WHERE account_id = $1`
	args := []interface{}{accountID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	campaigns := []model.Campaign{}
	if err := r.DB.Select(&campaigns, query, args...); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// MarkSending flips draft -> sending. The status predicate makes the
// transition a compare-and-swap: on a double start only one caller
// sees a row updated.
func (r *CampaignRepository) MarkSending(id string) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE message_campaigns
        SET status = 'sending', started_at = now(), updated_at = now()
        WHERE id = $1 AND status = 'draft'
    `, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CampaignRepository) MarkCompleted(id string) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE message_campaigns
        SET status = 'completed', completed_at = now(), updated_at = now()
        WHERE id = $1 AND status = 'sending'
    `, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CampaignRepository) Cancel(accountID, id string) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE message_campaigns
        SET status = 'cancelled', completed_at = now(), updated_at = now()
        WHERE account_id = $1 AND id = $2 AND status IN ('draft', 'sending')
    `, accountID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Stats returns delivery counts per status plus a total.
func (r *CampaignRepository) Stats(campaignID string) (map[string]int, error) {
	rows, err := r.DB.Query(`
        SELECT status, COUNT(*)
        FROM message_deliveries
        WHERE campaign_id = $1
        GROUP BY status
    `, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"total":     0,
		"queued":    0,
		"sent":      0,
		"delivered": 0,
		"failed":    0,
		"bounced":   0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
