package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/crm-dispatch/internal/errors"
	"github.com/unclebandit/crm-dispatch/internal/model"
)

// ClientRepositoryInterface defines methods used by services
type ClientRepositoryInterface interface {
	Create(ctx context.Context, c *model.Client) error
	GetByID(ctx context.Context, id int64) (*model.Client, error)
	ListAll(ctx context.Context) ([]model.Client, error)
	ListClients(ctx context.Context, offset, limit int) ([]*model.Client, int, error)
	Update(ctx context.Context, c *model.Client) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// ClientRepository is the concrete implementation
type ClientRepository struct {
	DB *sql.DB
}

const clientColumns = `id, name, email, phone, industry, notes, last_contacted_at, created_at, updated_at`

const uniqueViolation = "23505"

func scanClient(row rowScanner) (*model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Industry, &c.Notes,
		&c.LastContactedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// mapWriteError turns a duplicate email into a conflict.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return appErrors.NewConflict("a client with this email already exists")
	}
	return err
}

func (r *ClientRepository) Create(ctx context.Context, c *model.Client) error {
	query := `
        INSERT INTO clients (name, email, phone, industry, notes)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `
	err := r.DB.QueryRowContext(ctx, query, c.Name, c.Email, c.Phone, c.Industry, c.Notes).
		Scan(&c.ID, &c.CreatedAt)
	return mapWriteError(err)
}

// GetByID fetches a client by ID
func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*model.Client, error) {
	c, err := scanClient(r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewClientNotFound(id)
		}
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}
	return c, nil
}

// ListAll fetches every client, in id order. Used as the dispatch audience.
func (r *ClientRepository) ListAll(ctx context.Context) ([]model.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

func (r *ClientRepository) ListClients(ctx context.Context, offset, limit int) ([]*model.Client, int, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []*model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

func (r *ClientRepository) Update(ctx context.Context, c *model.Client) error {
	query := `
        UPDATE clients
        SET name=$1, email=$2, phone=$3, industry=$4, notes=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING created_at, updated_at, last_contacted_at
    `
	err := r.DB.QueryRowContext(ctx, query, c.Name, c.Email, c.Phone, c.Industry, c.Notes, c.ID).
		Scan(&c.CreatedAt, &c.UpdatedAt, &c.LastContactedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewClientNotFound(c.ID)
	}
	return mapWriteError(err)
}

func (r *ClientRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM clients WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete client %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewClientNotFound(id)
	}
	return nil
}

func (r *ClientRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return n, nil
}

var _ ClientRepositoryInterface = (*ClientRepository)(nil)
