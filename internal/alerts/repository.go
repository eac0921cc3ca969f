package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("alert not found")
	ErrDuplicate = errors.New("alert already raised")
	ErrStale     = errors.New("alert status changed concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const alertColumns = `
	id, kind, subject, message, property_id, COALESCE(city, ''), COALESCE(state, ''),
	observed, threshold, status, dedup_key, created_at, acknowledged_at, resolved_at`

// Insert stores the alert unless its dedup key already exists.
func (r *Repository) Insert(ctx context.Context, a Alert) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO alerts (id, kind, subject, message, property_id, city, state, observed, threshold, status, dedup_key, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $12)
		ON CONFLICT (dedup_key) DO NOTHING`,
		a.ID, string(a.Kind), a.Subject, a.Message, a.PropertyID, a.City, a.State,
		a.Observed, a.Threshold, string(a.Status), a.DedupKey, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Alert, error) {
	a, err := scanAlert(r.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, ErrNotFound
	}
	return a, err
}

// UpdateStatus moves the alert from one status to another, stamping the transition time.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (Alert, error) {
	a, err := scanAlert(r.pool.QueryRow(ctx, `
		UPDATE alerts SET
			status = $3,
			acknowledged_at = CASE WHEN $3 = 'acknowledged' THEN $4 ELSE acknowledged_at END,
			resolved_at = CASE WHEN $3 = 'resolved' THEN $4 ELSE resolved_at END
		WHERE id = $1 AND status = $2
		RETURNING `+alertColumns, id, string(from), string(to), at))
	if errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, ErrStale
	}
	return a, err
}

// List returns alerts newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status Status, limit int) ([]Alert, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+alertColumns+`
		FROM alerts
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	out := make([]Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAlert(row pgx.Row) (Alert, error) {
	var a Alert
	var kind, status string
	err := row.Scan(&a.ID, &kind, &a.Subject, &a.Message, &a.PropertyID, &a.City, &a.State,
		&a.Observed, &a.Threshold, &status, &a.DedupKey, &a.CreatedAt, &a.AcknowledgedAt, &a.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Alert{}, err
		}
		return Alert{}, fmt.Errorf("scan alert: %w", err)
	}
	a.Kind = Kind(kind)
	a.Status = Status(status)
	return a, nil
}
