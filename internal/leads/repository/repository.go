package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrVersionConflict signals a concurrent write; the enclosing task should
// re-read and retry.
var ErrVersionConflict = apperr.Conflict("lead was modified concurrently")

// Repository is the pgx-backed lead store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a lead repository on the given pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `
	id, cpf, full_name, status, phones, emails, proposal, status_history,
	interactions, costs, whatsapp, appointments, notes, human_required,
	automation_paused, origin, signature_stage_at, version, created_at, updated_at`

// GetByID loads one lead document.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// GetByCPF loads one lead by its natural key.
func (r *Repository) GetByCPF(ctx context.Context, cpf string) (*domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE cpf = $1`, cpf)
	return scanLead(row)
}

// Create inserts a new lead document at version 1.
func (r *Repository) Create(ctx context.Context, lead *domain.Lead) error {
	docs, err := marshalDocs(lead)
	if err != nil {
		return err
	}

	lead.Version = 1
	err = r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			id, cpf, full_name, status, phones, emails, proposal, status_history,
			interactions, costs, whatsapp, appointments, notes, human_required,
			automation_paused, origin, signature_stage_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`,
		lead.ID, lead.CPF, lead.FullName, lead.Status,
		docs.phones, docs.emails, docs.proposal, docs.statusHistory,
		docs.interactions, docs.costs, docs.whatsapp, docs.appointments, docs.notes,
		lead.HumanRequired, lead.AutomationPaused, lead.Origin, lead.SignatureStageAt,
		lead.Version,
	).Scan(&lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// Update writes the whole document guarded by the optimistic version check.
func (r *Repository) Update(ctx context.Context, lead *domain.Lead) error {
	docs, err := marshalDocs(lead)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			full_name = $3, status = $4, phones = $5, emails = $6, proposal = $7,
			status_history = $8, interactions = $9, costs = $10, whatsapp = $11,
			appointments = $12, notes = $13, human_required = $14,
			automation_paused = $15, origin = $16, signature_stage_at = $17,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
	`,
		lead.ID, lead.Version,
		lead.FullName, lead.Status,
		docs.phones, docs.emails, docs.proposal, docs.statusHistory,
		docs.interactions, docs.costs, docs.whatsapp, docs.appointments, docs.notes,
		lead.HumanRequired, lead.AutomationPaused, lead.Origin, lead.SignatureStageAt,
	)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	lead.Version++
	return nil
}

// List returns a filtered, paginated page of leads plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]domain.Lead, int, error) {
	where := "TRUE"
	args := []interface{}{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Origin != "" {
		args = append(args, filter.Origin)
		where += fmt.Sprintf(" AND origin = $%d", len(args))
	}
	if filter.HumanRequired != nil {
		args = append(args, *filter.HumanRequired)
		where += fmt.Sprintf(" AND human_required = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM leads WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE `+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads, err := collectLeads(rows)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

// ListNonTerminal returns every lead still in the active funnel.
func (r *Repository) ListNonTerminal(ctx context.Context) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE status NOT IN ($1, $2, $3)`,
		domain.StatusPurple, domain.StatusWhite, domain.StatusRejected)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

// ListBoundToConnection returns leads currently attributed to the connection.
func (r *Repository) ListBoundToConnection(ctx context.Context, connectionID string) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE whatsapp->>'connection_id' = $1`,
		connectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

// StatusStats aggregates lead counts and total spend per status.
func (r *Repository) StatusStats(ctx context.Context) ([]StatusStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*), COALESCE(sum((costs->>'total')::bigint), 0)
		FROM leads
		GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]StatusStat, 0)
	for rows.Next() {
		var s StatusStat
		if err := rows.Scan(&s.Status, &s.Total, &s.TotalCost); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// ListHumanRequired returns leads flagged for manual follow-up, newest first.
func (r *Repository) ListHumanRequired(ctx context.Context, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE human_required = true AND automation_paused = false
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

type leadDocs struct {
	phones        []byte
	emails        []byte
	proposal      []byte
	statusHistory []byte
	interactions  []byte
	costs         []byte
	whatsapp      []byte // nil when the lead has no attribution
	appointments  []byte
	notes         []byte
}

func marshalDocs(lead *domain.Lead) (leadDocs, error) {
	var docs leadDocs
	var err error

	if docs.phones, err = json.Marshal(lead.Phones); err != nil {
		return docs, err
	}
	if docs.emails, err = json.Marshal(lead.Emails); err != nil {
		return docs, err
	}
	if docs.proposal, err = json.Marshal(lead.Proposal); err != nil {
		return docs, err
	}
	if docs.statusHistory, err = json.Marshal(lead.StatusHistory); err != nil {
		return docs, err
	}
	if docs.interactions, err = json.Marshal(lead.Interactions); err != nil {
		return docs, err
	}
	if docs.costs, err = json.Marshal(lead.Costs); err != nil {
		return docs, err
	}
	if lead.WhatsApp != nil {
		if docs.whatsapp, err = json.Marshal(lead.WhatsApp); err != nil {
			return docs, err
		}
	}
	if docs.appointments, err = json.Marshal(lead.Appointments); err != nil {
		return docs, err
	}
	if docs.notes, err = json.Marshal(lead.Notes); err != nil {
		return docs, err
	}

	return docs, nil
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var lead domain.Lead
	var phones, emails, proposal, statusHistory, interactions, costs []byte
	var whatsapp, appointments, notes []byte
	var signatureStageAt *time.Time

	err := row.Scan(
		&lead.ID, &lead.CPF, &lead.FullName, &lead.Status,
		&phones, &emails, &proposal, &statusHistory,
		&interactions, &costs, &whatsapp, &appointments, &notes,
		&lead.HumanRequired, &lead.AutomationPaused, &lead.Origin,
		&signatureStageAt, &lead.Version, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("lead not found")
	}
	if err != nil {
		return nil, err
	}

	if signatureStageAt != nil {
		lead.SignatureStageAt = *signatureStageAt
	}

	for _, doc := range []struct {
		data []byte
		dst  interface{}
	}{
		{phones, &lead.Phones},
		{emails, &lead.Emails},
		{proposal, &lead.Proposal},
		{statusHistory, &lead.StatusHistory},
		{interactions, &lead.Interactions},
		{costs, &lead.Costs},
		{appointments, &lead.Appointments},
		{notes, &lead.Notes},
	} {
		if len(doc.data) == 0 {
			continue
		}
		if err := json.Unmarshal(doc.data, doc.dst); err != nil {
			return nil, fmt.Errorf("decode lead document: %w", err)
		}
	}

	if len(whatsapp) > 0 {
		var attribution domain.Attribution
		if err := json.Unmarshal(whatsapp, &attribution); err != nil {
			return nil, fmt.Errorf("decode lead attribution: %w", err)
		}
		lead.WhatsApp = &attribution
	}

	return &lead, nil
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}
