package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/leads/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound         = errors.New("lead not found")
	ErrStaleStatus      = errors.New("lead status changed concurrently")
	ErrAlreadyPurchased = errors.New("lead already purchased")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ ports.LeadStore = (*Repository)(nil)

const leadColumns = `
	id, category, classification_rule, first_name, last_name, email, phone, source, source_domain,
	message, status, quality_label, quality_score, score_breakdown, property_id,
	property_fields, agent_fields, mortgage_fields, needs_review, crm_contact_id, crm_sync_status,
	pipeline, fallback, fallback_reason, relay_status, purchaser_id, purchase_price_cents,
	purchased_at, created_at, updated_at`

// SaveLead inserts the lead or, when the id exists, overwrites its routing and scoring state.
func (r *Repository) SaveLead(ctx context.Context, lead *domain.Lead) error {
	breakdown, err := json.Marshal(lead.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal score breakdown: %w", err)
	}
	propertyFields, err := marshalGroup(lead.PropertyFields)
	if err != nil {
		return err
	}
	agentFields, err := marshalGroup(lead.AgentFields)
	if err != nil {
		return err
	}
	mortgageFields, err := marshalGroup(lead.MortgageFields)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	_, err = r.pool.Exec(ctx, `
		INSERT INTO leads (
			id, category, classification_rule, first_name, last_name, email, phone, source, source_domain,
			message, status, quality_label, quality_score, score_breakdown, property_id,
			property_fields, agent_fields, mortgage_fields, needs_review, crm_contact_id, crm_sync_status,
			pipeline, fallback, fallback_reason, relay_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27
		)
		ON CONFLICT (id) DO UPDATE SET
			quality_label = EXCLUDED.quality_label,
			quality_score = EXCLUDED.quality_score,
			score_breakdown = EXCLUDED.score_breakdown,
			crm_contact_id = EXCLUDED.crm_contact_id,
			crm_sync_status = EXCLUDED.crm_sync_status,
			pipeline = EXCLUDED.pipeline,
			fallback = EXCLUDED.fallback,
			fallback_reason = EXCLUDED.fallback_reason,
			relay_status = CASE WHEN EXCLUDED.relay_status = '' THEN leads.relay_status ELSE EXCLUDED.relay_status END,
			updated_at = EXCLUDED.updated_at
	`,
		lead.ID, string(lead.Category), string(lead.Rule), lead.Contact.FirstName, lead.Contact.LastName,
		lead.Contact.Email, lead.Contact.Phone, lead.Source, lead.SourceDomain, lead.Message,
		string(lead.Status), string(lead.QualityLabel), lead.QualityScore, breakdown, lead.PropertyID,
		propertyFields, agentFields, mortgageFields, lead.NeedsReview, lead.CRMContactID,
		string(lead.CRMSyncStatus), lead.Pipeline, lead.Fallback, lead.FallbackReason,
		string(lead.RelayStatus), lead.CreatedAt, lead.UpdatedAt,
	)
	return err
}

// UpdateRelayStatus records the outcome of a fallback relay.
func (r *Repository) UpdateRelayStatus(ctx context.Context, id uuid.UUID, status domain.RelayStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET relay_status = $2, updated_at = now() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// UpdateStatus moves a lead from one status to another. It fails with
// ErrStaleStatus when the stored status is no longer from.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.LeadStatus) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+leadColumns, id, string(from), string(to))
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return domain.Lead{}, getErr
		}
		return domain.Lead{}, ErrStaleStatus
	}
	return lead, err
}

// MarkPurchased sells an unpurchased lead. A lead is sold at most once.
func (r *Repository) MarkPurchased(ctx context.Context, id, purchaser uuid.UUID, priceCents int64) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET purchaser_id = $2, purchase_price_cents = $3, purchased_at = now(), updated_at = now()
		WHERE id = $1 AND purchaser_id IS NULL
		RETURNING `+leadColumns, id, purchaser, priceCents)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return domain.Lead{}, getErr
		}
		return domain.Lead{}, ErrAlreadyPurchased
	}
	return lead, err
}

// UpdateScore stores a recomputed score.
func (r *Repository) UpdateScore(ctx context.Context, id uuid.UUID, score float64, label domain.QualityLabel, breakdown domain.ScoreBreakdown) error {
	raw, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("marshal score breakdown: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET quality_score = $2, quality_label = $3, score_breakdown = $4, updated_at = now()
		WHERE id = $1
	`, id, score, string(label), raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFailedSync returns leads whose CRM delivery failed, oldest first.
func (r *Repository) ListFailedSync(ctx context.Context, limit int) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE crm_sync_status = 'failed'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// ListCreatedBetween returns leads created in [from, to).
func (r *Repository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// DailyCount is the number of leads and fallbacks created on one UTC day.
type DailyCount struct {
	Day       time.Time
	Leads     int
	Fallbacks int
}

// DailyCounts returns per-day counts in [from, to), days without leads omitted.
func (r *Repository) DailyCounts(ctx context.Context, from, to time.Time) ([]DailyCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
		       count(*) AS leads,
		       count(*) FILTER (WHERE fallback) AS fallbacks
		FROM leads
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY 1
		ORDER BY 1
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DailyCount, 0)
	for rows.Next() {
		var dc DailyCount
		if err := rows.Scan(&dc.Day, &dc.Leads, &dc.Fallbacks); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	defer rows.Close()
	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		l                                     domain.Lead
		category, rule, status, label         string
		syncStatus, relayStatus               string
		breakdown, propRaw, agentRaw, mortRaw []byte
		purchaserID                           *uuid.UUID
		priceCents                            *int64
		purchasedAt                           *time.Time
	)
	err := row.Scan(
		&l.ID, &category, &rule, &l.Contact.FirstName, &l.Contact.LastName, &l.Contact.Email,
		&l.Contact.Phone, &l.Source, &l.SourceDomain, &l.Message, &status, &label, &l.QualityScore,
		&breakdown, &l.PropertyID, &propRaw, &agentRaw, &mortRaw, &l.NeedsReview, &l.CRMContactID,
		&syncStatus, &l.Pipeline, &l.Fallback, &l.FallbackReason, &relayStatus, &purchaserID,
		&priceCents, &purchasedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}

	l.Category = domain.LeadCategory(category)
	l.Rule = domain.Rule(rule)
	l.Status = domain.LeadStatus(status)
	l.QualityLabel = domain.QualityLabel(label)
	l.CRMSyncStatus = domain.SyncStatus(syncStatus)
	l.RelayStatus = domain.RelayStatus(relayStatus)

	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &l.Breakdown); err != nil {
			return domain.Lead{}, fmt.Errorf("decode score breakdown: %w", err)
		}
	}
	if l.PropertyFields, err = unmarshalGroup[domain.PropertyFields](propRaw); err != nil {
		return domain.Lead{}, err
	}
	if l.AgentFields, err = unmarshalGroup[domain.AgentFields](agentRaw); err != nil {
		return domain.Lead{}, err
	}
	if l.MortgageFields, err = unmarshalGroup[domain.MortgageFields](mortRaw); err != nil {
		return domain.Lead{}, err
	}

	if purchaserID != nil {
		l.Purchase = &domain.Purchase{PurchaserID: *purchaserID}
		if priceCents != nil {
			l.Purchase.PriceCents = *priceCents
		}
		if purchasedAt != nil {
			l.Purchase.PurchasedAt = *purchasedAt
		}
	}
	return l, nil
}

func marshalGroup[T any](group *T) ([]byte, error) {
	if group == nil {
		return nil, nil
	}
	raw, err := json.Marshal(group)
	if err != nil {
		return nil, fmt.Errorf("marshal lead fields: %w", err)
	}
	return raw, nil
}

func unmarshalGroup[T any](raw []byte) (*T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode lead fields: %w", err)
	}
	return &v, nil
}
