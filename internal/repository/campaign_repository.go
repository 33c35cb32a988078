package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/crm-dispatch/internal/errors"
	"github.com/unclebandit/crm-dispatch/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)
	Update(ctx context.Context, c *model.Campaign) error
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context) (map[model.CampaignStatus]int, error)

	// Dispatch lifecycle
	ClaimForDispatch(ctx context.Context, id int64, from model.CampaignStatus) (bool, error)
	ReleaseClaim(ctx context.Context, id int64, restore model.CampaignStatus) error
	MarkSent(ctx context.Context, id int64, sentAt time.Time) (*model.Campaign, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, title, message, image_url, status, scheduled_at, sent_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(&c.ID, &c.Title, &c.Message, &c.ImageURL, &c.Status,
		&c.ScheduledAt, &c.SentAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (title, message, image_url, status, scheduled_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `
	return r.DB.QueryRowContext(ctx, query, c.Title, c.Message, c.ImageURL, c.Status, c.ScheduledAt).
		Scan(&c.ID, &c.CreatedAt)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, fmt.Errorf("get campaign %d: %w", id, err)
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argPos := 1
	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)

	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}
	return campaigns, total, nil
}

// Update rewrites an editable campaign. Campaigns that are sending or sent
// are immutable and yield a conflict.
func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET title=$1, message=$2, image_url=$3, status=$4, scheduled_at=$5, updated_at=NOW()
        WHERE id=$6 AND status IN ('draft', 'scheduled')
        RETURNING created_at, updated_at
    `
	err := r.DB.QueryRowContext(ctx, query, c.Title, c.Message, c.ImageURL, c.Status, c.ScheduledAt, c.ID).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r.explainMiss(ctx, c.ID, "only draft or scheduled campaigns can be edited")
	}
	return err
}

func (r *CampaignRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1 AND status <> 'sending'`, id)
	if err != nil {
		return fmt.Errorf("delete campaign %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.explainMiss(ctx, id, "campaign is being sent")
	}
	return nil
}

// explainMiss turns a guarded write that touched nothing into NotFound or Conflict.
func (r *CampaignRepository) explainMiss(ctx context.Context, id int64, reason string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return appErrors.NewConflict(reason)
}

func (r *CampaignRepository) CountByStatus(ctx context.Context) (map[model.CampaignStatus]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM campaigns GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count campaigns by status: %w", err)
	}
	defer rows.Close()

	counts := map[model.CampaignStatus]int{
		model.CampaignDraft:     0,
		model.CampaignScheduled: 0,
		model.CampaignSending:   0,
		model.CampaignSent:      0,
	}
	for rows.Next() {
		var status model.CampaignStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ====================== Dispatch lifecycle ======================

// ClaimForDispatch moves a campaign from its current dispatchable status to
// sending. It returns false when another run got there first.
func (r *CampaignRepository) ClaimForDispatch(ctx context.Context, id int64, from model.CampaignStatus) (bool, error) {
	if !from.Dispatchable() {
		return false, nil
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status='sending', updated_at=NOW() WHERE id=$1 AND status=$2`,
		id, from)
	if err != nil {
		return false, fmt.Errorf("claim campaign %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseClaim hands an aborted dispatch back to the status it was claimed from.
func (r *CampaignRepository) ReleaseClaim(ctx context.Context, id int64, restore model.CampaignStatus) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status=$2, updated_at=NOW() WHERE id=$1 AND status='sending'`,
		id, restore)
	if err != nil {
		return fmt.Errorf("release campaign %d: %w", id, err)
	}
	return nil
}

// MarkSent records the single transition from sending to sent.
func (r *CampaignRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) (*model.Campaign, error) {
	query := `
        UPDATE campaigns SET status='sent', sent_at=$2, updated_at=$2
        WHERE id=$1 AND status='sending'
        RETURNING ` + campaignColumns
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id, sentAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("campaign %d is no longer claimed for dispatch", id)
		}
		return nil, fmt.Errorf("mark campaign %d sent: %w", id, err)
	}
	return c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
