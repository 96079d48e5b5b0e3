package templates

import (
	"context"
	"errors"
	"fmt"

	"leadfunnel_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the template persistence contract.
type Store interface {
	ListActive(ctx context.Context, templateContext string) ([]Template, error)
	List(ctx context.Context) ([]Template, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	Create(ctx context.Context, tpl *Template) error
	Update(ctx context.Context, tpl *Template) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository is the pgx-backed template store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a template repository on the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const templateColumns = `id, context, name, body, subject, weight, active, created_at, updated_at`

// ListActive returns the active templates of one context.
func (r *Repository) ListActive(ctx context.Context, templateContext string) ([]Template, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM message_templates
		 WHERE context = $1 AND active = true
		 ORDER BY created_at`, templateContext)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTemplates(rows)
}

// List returns every template.
func (r *Repository) List(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM message_templates ORDER BY context, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTemplates(rows)
}

// GetByID loads one template.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM message_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Context, &t.Name, &t.Body, &t.Subject, &t.Weight, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("template not found")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a template.
func (r *Repository) Create(ctx context.Context, tpl *Template) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO message_templates (id, context, name, body, subject, weight, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, tpl.ID, tpl.Context, tpl.Name, tpl.Body, tpl.Subject, tpl.Weight, tpl.Active).
		Scan(&tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// Update rewrites a template.
func (r *Repository) Update(ctx context.Context, tpl *Template) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE message_templates SET
			context = $2, name = $3, body = $4, subject = $5, weight = $6,
			active = $7, updated_at = now()
		WHERE id = $1
	`, tpl.ID, tpl.Context, tpl.Name, tpl.Body, tpl.Subject, tpl.Weight, tpl.Active)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("template not found")
	}
	return nil
}

// Delete removes a template.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM message_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("template not found")
	}
	return nil
}

func collectTemplates(rows pgx.Rows) ([]Template, error) {
	out := make([]Template, 0)
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Context, &t.Name, &t.Body, &t.Subject, &t.Weight, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
