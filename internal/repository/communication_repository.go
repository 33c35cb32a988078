package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unclebandit/crm-dispatch/internal/model"
)

// CommunicationRepositoryInterface stores the per-attempt contact history.
type CommunicationRepositoryInterface interface {
	Append(ctx context.Context, c *model.Communication) error
	ListByClient(ctx context.Context, clientID int64, limit int) ([]model.Communication, error)
	StatsByCampaign(ctx context.Context, campaignID int64) ([]model.ChannelStats, error)
	TotalsByChannel(ctx context.Context) ([]model.ChannelStats, error)
}

type CommunicationRepository struct {
	DB *sql.DB
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// Append inserts a history row and, for a successful client-scoped attempt,
// moves the client's last_contacted_at forward. Appending the same attempt
// twice is a no-op.
func (r *CommunicationRepository) Append(ctx context.Context, c *model.Communication) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
        INSERT INTO client_communications
        (client_id, campaign_id, run_id, channel, destination, success, error, attempted_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (run_id, channel, (COALESCE(client_id, 0))) DO NOTHING
        RETURNING id
    `
	err = tx.QueryRowContext(ctx, query,
		nullID(c.ClientID),
		nullID(c.CampaignID),
		c.RunID,
		c.Channel,
		c.Destination,
		c.Success,
		c.Error,
		c.AttemptedAt,
	).Scan(&c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// already recorded by an earlier delivery of the same event
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert communication: %w", err)
	}

	if c.Success && c.ClientID != 0 {
		_, err = tx.ExecContext(ctx, `
            UPDATE clients
            SET last_contacted_at = GREATEST(COALESCE(last_contacted_at, $2), $2)
            WHERE id=$1
        `, c.ClientID, c.AttemptedAt)
		if err != nil {
			return fmt.Errorf("touch client %d: %w", c.ClientID, err)
		}
	}

	return tx.Commit()
}

// ListByClient returns the newest history entries for a client first.
func (r *CommunicationRepository) ListByClient(ctx context.Context, clientID int64, limit int) ([]model.Communication, error) {
	query := `
        SELECT id, client_id, campaign_id, run_id, channel, destination, success, error, attempted_at
        FROM client_communications
        WHERE client_id=$1
        ORDER BY attempted_at DESC, id DESC
        LIMIT $2
    `
	rows, err := r.DB.QueryContext(ctx, query, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list communications: %w", err)
	}
	defer rows.Close()

	out := []model.Communication{}
	for rows.Next() {
		var (
			c          model.Communication
			clientRef  sql.NullInt64
			campaignID sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &clientRef, &campaignID, &c.RunID, &c.Channel,
			&c.Destination, &c.Success, &c.Error, &c.AttemptedAt); err != nil {
			return nil, err
		}
		c.ClientID = clientRef.Int64
		c.CampaignID = campaignID.Int64
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CommunicationRepository) StatsByCampaign(ctx context.Context, campaignID int64) ([]model.ChannelStats, error) {
	return r.channelStats(ctx, `WHERE campaign_id=$1`, campaignID)
}

func (r *CommunicationRepository) TotalsByChannel(ctx context.Context) ([]model.ChannelStats, error) {
	return r.channelStats(ctx, ``)
}

func (r *CommunicationRepository) channelStats(ctx context.Context, where string, args ...any) ([]model.ChannelStats, error) {
	query := `
        SELECT channel,
               COUNT(*) FILTER (WHERE success),
               COUNT(*) FILTER (WHERE NOT success)
        FROM client_communications ` + where + `
        GROUP BY channel
        ORDER BY channel
    `
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("channel stats: %w", err)
	}
	defer rows.Close()

	stats := []model.ChannelStats{}
	for rows.Next() {
		var s model.ChannelStats
		if err := rows.Scan(&s.Channel, &s.Delivered, &s.Failed); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

var _ CommunicationRepositoryInterface = (*CommunicationRepository)(nil)
