package whatsapp

import (
	"context"
	"errors"
	"fmt"

	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoAvailableConnection means no ACTIVE connection has quota left today.
// Callers must not fall back to another channel; the allocation fails hard.
var ErrNoAvailableConnection = apperr.Unavailable("no whatsapp connection available")

// Store is the connection persistence contract.
type Store interface {
	Get(ctx context.Context, id string) (*Connection, error)
	List(ctx context.Context) ([]Connection, error)
	// ClaimLeastLoaded atomically picks the usable connection with the fewest
	// conversations today and increments its counter. The pick and the
	// increment are a single statement so two concurrent claims can never
	// push a connection past its daily limit.
	ClaimLeastLoaded(ctx context.Context) (*Connection, error)
	TouchLastMessage(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus) (*Connection, error)
	ResetDailyCounters(ctx context.Context) (int, error)
	SeedPool(ctx context.Context, size, dailyLimit int) error
}

// Repository is the pgx-backed connection store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a connection repository on the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const connectionColumns = `id, number, status, conversations_today, daily_limit, last_message_at, created_at, updated_at`

// Get loads one connection.
func (r *Repository) Get(ctx context.Context, id string) (*Connection, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM whatsapp_connections WHERE id = $1`, id)
	return scanConnection(row)
}

// List returns the whole pool ordered by load.
func (r *Repository) List(ctx context.Context) ([]Connection, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+connectionColumns+` FROM whatsapp_connections
		 ORDER BY conversations_today ASC, last_message_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Connection, 0)
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *conn)
	}
	return out, rows.Err()
}

// ClaimLeastLoaded picks and increments in one statement. FOR UPDATE SKIP
// LOCKED lets concurrent claims spread over different rows instead of
// serializing on the same one.
func (r *Repository) ClaimLeastLoaded(ctx context.Context) (*Connection, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE whatsapp_connections SET
			conversations_today = conversations_today + 1,
			updated_at = now()
		WHERE id = (
			SELECT id FROM whatsapp_connections
			WHERE status = $1 AND conversations_today < daily_limit
			ORDER BY conversations_today ASC, last_message_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+connectionColumns, domain.ConnectionActive)

	conn, err := scanConnection(row)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return nil, ErrNoAvailableConnection
		}
		return nil, err
	}
	return conn, nil
}

// TouchLastMessage records outbound activity on the connection.
func (r *Repository) TouchLastMessage(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE whatsapp_connections SET last_message_at = now(), updated_at = now() WHERE id = $1`, id)
	return err
}

// UpdateStatus changes a connection's health status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus) (*Connection, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE whatsapp_connections SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+connectionColumns, id, status)
	return scanConnection(row)
}

// ResetDailyCounters zeroes every connection's counter. Runs once per
// calendar day.
func (r *Repository) ResetDailyCounters(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE whatsapp_connections SET conversations_today = 0, updated_at = now()
		 WHERE conversations_today > 0`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// SeedPool tops the pool up to size connections. Existing rows are kept;
// missing slots get placeholder numbers so the allocator always has a full
// table to work with.
func (r *Repository) SeedPool(ctx context.Context, size, dailyLimit int) error {
	for i := 1; i <= size; i++ {
		id := fmt.Sprintf("conn-%02d", i)
		_, err := r.pool.Exec(ctx, `
			INSERT INTO whatsapp_connections (id, number, status, conversations_today, daily_limit)
			VALUES ($1, $2, $3, 0, $4)
			ON CONFLICT (id) DO UPDATE SET daily_limit = EXCLUDED.daily_limit
		`, id, fmt.Sprintf("+5511%08d", i), domain.ConnectionActive, dailyLimit)
		if err != nil {
			return fmt.Errorf("seed connection %s: %w", id, err)
		}
	}
	return nil
}

func scanConnection(row pgx.Row) (*Connection, error) {
	var c Connection
	err := row.Scan(&c.ID, &c.Number, &c.Status, &c.ConversationsToday, &c.DailyLimit,
		&c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("connection not found")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
