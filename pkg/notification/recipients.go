package notification

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifyhub/pkg/pg"
)

// Recipient is the subset of a user record the delivery engine needs.
type Recipient struct {
	ID    string
	Email string
	Name  string
}

// Recipients is the user directory. Lookup returns ErrRecipientNotFound for
// unknown users.
type Recipients interface {
	Lookup(ctx context.Context, userID string) (Recipient, error)
}

// MemoryRecipients is a static directory for development and tests.
type MemoryRecipients struct {
	mu    sync.RWMutex
	users map[string]Recipient
}

func NewMemoryRecipients(rs ...Recipient) *MemoryRecipients {
	m := &MemoryRecipients{users: make(map[string]Recipient, len(rs))}
	for _, r := range rs {
		m.users[r.ID] = r
	}
	return m
}

// Add inserts or replaces a recipient.
func (m *MemoryRecipients) Add(r Recipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[r.ID] = r
}

func (m *MemoryRecipients) Lookup(ctx context.Context, userID string) (Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.users[userID]
	if !ok {
		return Recipient{}, ErrRecipientNotFound
	}
	return r, nil
}

// PostgresRecipients reads the user directory owned by the platform. The
// table must have text columns id, email and name; email and name may be null.
type PostgresRecipients struct {
	pool  *pgxpool.Pool
	query string
}

// NewPostgresRecipients looks users up in table, "users" when empty.
func NewPostgresRecipients(pool *pgxpool.Pool, table string) *PostgresRecipients {
	if table == "" {
		table = "users"
	}
	return &PostgresRecipients{
		pool: pool,
		query: `SELECT id::text, coalesce(email, ''), coalesce(name, '') FROM ` +
			pgx.Identifier{table}.Sanitize() + ` WHERE id::text = $1`,
	}
}

func (p *PostgresRecipients) Lookup(ctx context.Context, userID string) (Recipient, error) {
	var r Recipient
	err := p.pool.QueryRow(ctx, p.query, userID).Scan(&r.ID, &r.Email, &r.Name)
	if pg.IsNotFoundError(err) {
		return Recipient{}, ErrRecipientNotFound
	}
	if err != nil {
		return Recipient{}, fmt.Errorf("lookup recipient %s: %w", userID, err)
	}
	return r, nil
}
