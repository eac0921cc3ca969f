package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DailySnapshot is the stored rollup of one UTC day.
type DailySnapshot struct {
	Day       time.Time `json:"day"`
	Summary   Summary   `json:"summary"`
	Archived  bool      `json:"archived"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertSnapshot writes the day's snapshot, replacing an earlier one.
func (r *Repository) UpsertSnapshot(ctx context.Context, snap DailySnapshot) error {
	summary, err := json.Marshal(snap.Summary)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO daily_snapshots (day, summary, archived, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (day) DO UPDATE SET
			summary = EXCLUDED.summary,
			archived = EXCLUDED.archived,
			updated_at = EXCLUDED.updated_at`,
		snap.Day, summary, snap.Archived, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns snapshots from since onward, newest first.
func (r *Repository) ListSnapshots(ctx context.Context, since time.Time) ([]DailySnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day, summary, archived, updated_at
		FROM daily_snapshots
		WHERE day >= $1
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]DailySnapshot, 0)
	for rows.Next() {
		var snap DailySnapshot
		var raw []byte
		if err := rows.Scan(&snap.Day, &raw, &snap.Archived, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal(raw, &snap.Summary); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", snap.Day.Format("2006-01-02"), err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
