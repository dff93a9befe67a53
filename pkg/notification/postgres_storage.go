package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifyhub/pkg/pg"
)

// PostgresStorage stores notifications in the notifications table created by
// Migrations.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const notificationColumns = `id, user_id, type, category, title, body, data, status, created_at, read_at, updated_at`

func (s *PostgresStorage) Create(ctx context.Context, n Notification) error {
	if n.ID == "" {
		return ErrMissingID
	}
	if n.UserID == "" {
		return ErrMissingUserID
	}
	if n.Status == "" {
		n.Status = StatusUnread
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, n.UserID, n.Type, string(n.Category), n.Title, n.Body, data,
		string(n.Status), n.CreatedAt, n.ReadAt, n.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, id string) (Notification, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if pg.IsNotFoundError(err) {
		return Notification{}, ErrNotFound
	}
	return n, err
}

func (s *PostgresStorage) List(ctx context.Context, userID string, filter Filter, page Page) ([]Notification, int, error) {
	where, args := listConditions(userID, filter)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
	if page.Limit > 0 {
		args = append(args, page.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if page.Offset > 0 {
		args = append(args, page.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND status = $2`,
		userID, string(StatusUnread),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *PostgresStorage) CountByCategory(ctx context.Context, userID string) (map[Category]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, count(*) FROM notifications
		 WHERE user_id = $1 AND status = ANY($2)
		 GROUP BY category`,
		userID, statusStrings(Visible),
	)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[Category]int)
	for rows.Next() {
		var (
			cat string
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[Category(cat)] = n
	}
	return counts, rows.Err()
}

// UpdateStatus relies on the status predicate in the WHERE clause, so two
// concurrent updates of the same row cannot both succeed.
func (s *PostgresStorage) UpdateStatus(ctx context.Context, userID string, ids []string, from []Status, to Status, at time.Time) ([]string, error) {
	query := `UPDATE notifications
		SET status = $1,
		    updated_at = $2,
		    read_at = CASE WHEN $1 = 'read' AND read_at IS NULL THEN $2 ELSE read_at END
		WHERE user_id = $3 AND status = ANY($4)`
	args := []any{string(to), at, userID, statusStrings(from)}
	if ids != nil {
		args = append(args, ids)
		query += ` AND id = ANY($5)`
	}
	query += ` RETURNING id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	changed, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	return changed, nil
}

func (s *PostgresStorage) Purge(ctx context.Context, before time.Time, statuses []Status) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE status = ANY($1) AND updated_at < $2`,
		statusStrings(statuses), before,
	)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func listConditions(userID string, f Filter) (string, []any) {
	conds := []string{"user_id = $1", "status = ANY($2)"}
	args := []any{userID, statusStrings(f.statuses())}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}
	return strings.Join(conds, " AND "), args
}

func scanNotification(row pgx.Row) (Notification, error) {
	var (
		n        Notification
		category string
		status   string
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &category, &n.Title, &n.Body, &n.Data,
		&status, &n.CreatedAt, &n.ReadAt, &n.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return Notification{}, err
		}
		return Notification{}, fmt.Errorf("scan notification: %w", err)
	}
	n.Category = Category(category)
	n.Status = Status(status)
	return n, nil
}

func statusStrings(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
