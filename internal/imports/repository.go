package imports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound         = errors.New("import attempt not found")
	ErrAlreadyFinalized = errors.New("import attempt already finalized")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const attemptColumns = `id, target_pipeline, requested, imported, failed, success_rate, status,
	crm_sync_status, started_at, completed_at, duration_ms`

func (r *Repository) Insert(ctx context.Context, a Attempt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO import_attempts (id, target_pipeline, requested, status, crm_sync_status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.TargetPipeline, a.Requested, string(a.Status), string(a.CRMSyncStatus), a.StartedAt)
	return err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM import_attempts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

// SaveFinal writes completion fields only while completed_at is still NULL.
func (r *Repository) SaveFinal(ctx context.Context, a Attempt) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_attempts
		SET imported = $2, failed = $3, success_rate = $4, status = $5, crm_sync_status = $6,
		    completed_at = $7, duration_ms = $8
		WHERE id = $1 AND completed_at IS NULL
	`, a.ID, a.Imported, a.Failed, a.SuccessRate, string(a.Status), string(a.CRMSyncStatus), a.CompletedAt, a.DurationMs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyFinalized
	}
	return nil
}

// ListStartedSince returns attempts started at or after since, newest first.
func (r *Repository) ListStartedSince(ctx context.Context, since time.Time) ([]Attempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+attemptColumns+` FROM import_attempts
		WHERE started_at >= $1
		ORDER BY started_at DESC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Attempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func scanAttempt(row pgx.Row) (Attempt, error) {
	var (
		a              Attempt
		status, synced string
	)
	err := row.Scan(&a.ID, &a.TargetPipeline, &a.Requested, &a.Imported, &a.Failed, &a.SuccessRate,
		&status, &synced, &a.StartedAt, &a.CompletedAt, &a.DurationMs)
	if err != nil {
		return Attempt{}, err
	}
	a.Status = Status(status)
	a.CRMSyncStatus = SyncStatus(synced)
	return a, nil
}
