package markets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"realty_leads_backend/internal/leads/scoring"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPropertyNotFound = errors.New("property not found")

// LeadWindow is how far back lead and conversion events count toward a market period.
const LeadWindow = 30 * 24 * time.Hour

// Repository persists property metrics and market rows in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListMarkets returns every market with at least one property.
func (r *Repository) ListMarkets(ctx context.Context) ([]MarketKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT city, state FROM properties`)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	seen := make(map[MarketKey]struct{})
	var keys []MarketKey
	for rows.Next() {
		var city, state string
		if err := rows.Scan(&city, &state); err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		key := NewMarketKey(city, state)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// LoadSnapshots reads the market's properties with their lead and conversion
// events inside the trailing window ending at period.End.
func (r *Repository) LoadSnapshots(ctx context.Context, key MarketKey, period Period) ([]PropertySnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.list_price, p.original_price, p.days_on_market, p.is_active,
			COUNT(e.id) FILTER (WHERE e.kind = 'lead'),
			COUNT(e.id) FILTER (WHERE e.kind = 'conversion')
		FROM properties p
		LEFT JOIN property_metric_events e
			ON e.property_id = p.id AND e.occurred_at >= $3 AND e.occurred_at < $4
		WHERE lower(p.city) = lower($1) AND upper(p.state) = $2
		GROUP BY p.id
		ORDER BY p.id`,
		key.City, key.State, period.End.Add(-LeadWindow), period.End)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	var out []PropertySnapshot
	for rows.Next() {
		var s PropertySnapshot
		if err := rows.Scan(&s.PropertyID, &s.ListPrice, &s.OriginalPrice, &s.DaysOnMarket, &s.Active, &s.Leads, &s.Conversions); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const marketColumns = `
	id, city, state, period_start, period_end, property_count, active_listings, avg_price,
	median_price, min_price, max_price, avg_days_on_market, price_reduction_rate, total_leads,
	total_conversions, leads_per_property, conversion_rate, heat_score, heat_label, price_change,
	leads_trend, trend_state, market_rank, created_at`

// ActiveMetrics returns the active row for the market and period, or nil.
func (r *Repository) ActiveMetrics(ctx context.Context, key MarketKey, periodStart time.Time) (*MarketMetrics, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+marketColumns+`
		FROM market_metrics
		WHERE city = $1 AND state = $2 AND period_start = $3 AND superseded_at IS NULL`,
		key.City, key.State, periodStart)
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ReplaceActive supersedes the current active row for (city, state, period_start)
// and inserts m in one transaction. An advisory lock on the key serializes writers.
func (r *Repository) ReplaceActive(ctx context.Context, m MarketMetrics) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockKey := fmt.Sprintf("market:%s:%s:%s", m.Key.City, m.Key.State, m.PeriodStart.Format("2006-01-02"))
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("lock market: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE market_metrics SET superseded_at = now()
		WHERE city = $1 AND state = $2 AND period_start = $3 AND superseded_at IS NULL`,
		m.Key.City, m.Key.State, m.PeriodStart); err != nil {
		return fmt.Errorf("supersede market: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO market_metrics (`+marketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		m.ID, m.Key.City, m.Key.State, m.PeriodStart, m.PeriodEnd, m.PropertyCount, m.ActiveListings,
		m.AvgPrice, m.MedianPrice, m.MinPrice, m.MaxPrice, m.AvgDaysOnMarket, m.PriceReductionRate,
		m.TotalLeads, m.TotalConversions, m.LeadsPerProperty, m.ConversionRate, m.HeatScore,
		string(m.HeatLabel), m.PriceChange, m.LeadsTrend, m.TrendState, m.Rank, m.CreatedAt); err != nil {
		return fmt.Errorf("insert market: %w", err)
	}

	return tx.Commit(ctx)
}

// LatestMarkets returns the active rows of the most recent period, best rank first.
func (r *Repository) LatestMarkets(ctx context.Context, limit int) ([]MarketMetrics, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+marketColumns+`
		FROM market_metrics
		WHERE superseded_at IS NULL
			AND period_start = (SELECT max(period_start) FROM market_metrics WHERE superseded_at IS NULL)
		ORDER BY market_rank ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("latest markets: %w", err)
	}
	defer rows.Close()

	var out []MarketMetrics
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LatestHeat returns the heat score of the market's most recent active row.
func (r *Repository) LatestHeat(ctx context.Context, key MarketKey) (float64, bool, error) {
	var heat float64
	err := r.pool.QueryRow(ctx, `
		SELECT heat_score FROM market_metrics
		WHERE city = $1 AND state = $2 AND superseded_at IS NULL
		ORDER BY period_start DESC
		LIMIT 1`, key.City, key.State).Scan(&heat)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("latest heat: %w", err)
	}
	return heat, true, nil
}

// PropertyMarket returns the market key and cumulative views of a property.
func (r *Repository) PropertyMarket(ctx context.Context, id uuid.UUID) (MarketKey, int64, error) {
	var city, state string
	var views int64
	err := r.pool.QueryRow(ctx, `
		SELECT p.city, p.state, COALESCE(pm.views, 0)
		FROM properties p
		LEFT JOIN property_metrics pm ON pm.property_id = p.id
		WHERE p.id = $1`, id).Scan(&city, &state, &views)
	if errors.Is(err, pgx.ErrNoRows) {
		return MarketKey{}, 0, ErrPropertyNotFound
	}
	if err != nil {
		return MarketKey{}, 0, fmt.Errorf("property market: %w", err)
	}
	return NewMarketKey(city, state), views, nil
}

// IncrementCounter bumps one counter in a single upsert, records the event and
// returns the counters after the increment.
func (r *Repository) IncrementCounter(ctx context.Context, id uuid.UUID, kind string) (PropertyMetrics, error) {
	var views, leads, conversions int64
	switch kind {
	case EventView:
		views = 1
	case EventLead:
		leads = 1
	case EventConversion:
		conversions = 1
	default:
		return PropertyMetrics{}, fmt.Errorf("unknown property event %q", kind)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return PropertyMetrics{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	pm := PropertyMetrics{PropertyID: id}
	err = tx.QueryRow(ctx, `
		INSERT INTO property_metrics (property_id, views, leads, conversions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (property_id) DO UPDATE SET
			views = property_metrics.views + EXCLUDED.views,
			leads = property_metrics.leads + EXCLUDED.leads,
			conversions = property_metrics.conversions + EXCLUDED.conversions,
			updated_at = now()
		RETURNING views, leads, conversions, market_rank`,
		id, views, leads, conversions).Scan(&pm.Views, &pm.Leads, &pm.Conversions, &pm.MarketRank)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return PropertyMetrics{}, ErrPropertyNotFound
		}
		return PropertyMetrics{}, fmt.Errorf("increment %s: %w", kind, err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO property_metric_events (property_id, kind) VALUES ($1, $2)`, id, kind); err != nil {
		return PropertyMetrics{}, fmt.Errorf("record %s event: %w", kind, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return PropertyMetrics{}, fmt.Errorf("commit: %w", err)
	}
	return pm, nil
}

// RollingLeads counts lead events over the trailing 7 and 28 days.
func (r *Repository) RollingLeads(ctx context.Context, id uuid.UUID, now time.Time) (int64, int64, error) {
	var last7, last28 int64
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE occurred_at >= $2),
			COUNT(*) FILTER (WHERE occurred_at >= $3)
		FROM property_metric_events
		WHERE property_id = $1 AND kind = 'lead'`,
		id, now.AddDate(0, 0, -7), now.AddDate(0, 0, -28)).Scan(&last7, &last28)
	if err != nil {
		return 0, 0, fmt.Errorf("rolling leads: %w", err)
	}
	return last7, last28, nil
}

// SaveDerived writes the derived columns of a property's metrics row, but only
// while the row still holds the counters they were computed from. A false
// result means a newer event already moved the counters and owns the write.
func (r *Repository) SaveDerived(ctx context.Context, pm PropertyMetrics) (bool, error) {
	factors, err := json.Marshal(pm.Factors)
	if err != nil {
		return false, fmt.Errorf("marshal factors: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE property_metrics SET
			view_to_lead_rate = $2,
			lead_to_conversion_rate = $3,
			lead_score = $4,
			score_label = $5,
			score_factors = $6,
			leads_per_day = $7,
			leads_per_week = $8,
			updated_at = now()
		WHERE property_id = $1 AND views = $9 AND leads = $10 AND conversions = $11`,
		pm.PropertyID, pm.ViewToLeadRate, pm.LeadToConversionRate, pm.LeadScore,
		string(pm.ScoreLabel), factors, pm.LeadsPerDay, pm.LeadsPerWeek,
		pm.Views, pm.Leads, pm.Conversions)
	if err != nil {
		return false, fmt.Errorf("save property metrics: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const propertyColumns = `
	pm.property_id, pm.views, pm.leads, pm.conversions, pm.view_to_lead_rate,
	pm.lead_to_conversion_rate, pm.lead_score, pm.score_label, pm.score_factors,
	pm.market_rank, pm.leads_per_day, pm.leads_per_week, pm.updated_at`

// GetPropertyMetrics reads one property's metrics row.
func (r *Repository) GetPropertyMetrics(ctx context.Context, id uuid.UUID) (PropertyMetrics, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+propertyColumns+` FROM property_metrics pm WHERE pm.property_id = $1`, id)
	pm, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PropertyMetrics{}, ErrPropertyNotFound
	}
	return pm, err
}

// ListPropertyMetrics returns the metrics rows of every property in the market.
func (r *Repository) ListPropertyMetrics(ctx context.Context, key MarketKey) ([]PropertyMetrics, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+propertyColumns+`
		FROM property_metrics pm
		JOIN properties p ON p.id = pm.property_id
		WHERE lower(p.city) = lower($1) AND upper(p.state) = $2`, key.City, key.State)
	if err != nil {
		return nil, fmt.Errorf("list property metrics: %w", err)
	}
	defer rows.Close()

	var out []PropertyMetrics
	for rows.Next() {
		pm, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pm)
	}
	return out, rows.Err()
}

// SaveRanks writes market_rank for each property in one batch.
func (r *Repository) SaveRanks(ctx context.Context, ranked []PropertyMetrics) error {
	if len(ranked) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pm := range ranked {
		batch.Queue(`UPDATE property_metrics SET market_rank = $2 WHERE property_id = $1`, pm.PropertyID, pm.MarketRank)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save ranks: %w", err)
	}
	return nil
}

func scanMarket(row pgx.Row) (MarketMetrics, error) {
	var m MarketMetrics
	var label string
	err := row.Scan(
		&m.ID, &m.Key.City, &m.Key.State, &m.PeriodStart, &m.PeriodEnd, &m.PropertyCount,
		&m.ActiveListings, &m.AvgPrice, &m.MedianPrice, &m.MinPrice, &m.MaxPrice,
		&m.AvgDaysOnMarket, &m.PriceReductionRate, &m.TotalLeads, &m.TotalConversions,
		&m.LeadsPerProperty, &m.ConversionRate, &m.HeatScore, &label, &m.PriceChange,
		&m.LeadsTrend, &m.TrendState, &m.Rank, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MarketMetrics{}, err
		}
		return MarketMetrics{}, fmt.Errorf("scan market metrics: %w", err)
	}
	m.HeatLabel = scoring.HeatLabel(label)
	return m, nil
}

func scanProperty(row pgx.Row) (PropertyMetrics, error) {
	var pm PropertyMetrics
	var label string
	var factors []byte
	err := row.Scan(
		&pm.PropertyID, &pm.Views, &pm.Leads, &pm.Conversions, &pm.ViewToLeadRate,
		&pm.LeadToConversionRate, &pm.LeadScore, &label, &factors, &pm.MarketRank,
		&pm.LeadsPerDay, &pm.LeadsPerWeek, &pm.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PropertyMetrics{}, err
		}
		return PropertyMetrics{}, fmt.Errorf("scan property metrics: %w", err)
	}
	pm.ScoreLabel = scoring.HeatLabel(label)
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &pm.Factors); err != nil {
			return PropertyMetrics{}, fmt.Errorf("decode factors: %w", err)
		}
	}
	return pm, nil
}

// TopPropertyMetrics returns the highest scored properties across all markets.
func (r *Repository) TopPropertyMetrics(ctx context.Context, limit int) ([]PropertyMetrics, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+propertyColumns+`
		FROM property_metrics pm
		ORDER BY pm.lead_score DESC, pm.leads DESC, pm.property_id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top property metrics: %w", err)
	}
	defer rows.Close()

	out := make([]PropertyMetrics, 0)
	for rows.Next() {
		pm, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pm)
	}
	return out, rows.Err()
}
