package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/webhook-messaging/internal/model"
)

const (
	maxPendingLimit  = 100
	maxByStatusLimit = 1000

	uniqueViolationCode = "23505"
)

// NewPool dials Postgres and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}

	cfg.MaxConns = 30
	cfg.MinConns = 5
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

type PostgresMessageStore struct {
	db    *pgxpool.Pool
	table string
}

var _ MessageStore = (*PostgresMessageStore)(nil)

func NewPostgresMessageStore(db *pgxpool.Pool, table string) *PostgresMessageStore {
	if table == "" {
		table = "messages"
	}
	return &PostgresMessageStore{db: db, table: table}
}

const messageColumns = `id, recipient, content, status, message_id, retry_count, created_at, updated_at, sent_at, expires_at`

func (s *PostgresMessageStore) Create(ctx context.Context, m *model.Message) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.table, messageColumns)

	_, err := s.db.Exec(ctx, sql,
		m.ID, m.To, m.Content, m.Status, m.MessageID,
		m.RetryCount, m.CreatedAt, m.UpdatedAt, m.SentAt, m.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PostgresMessageStore) GetByID(ctx context.Context, id string) (*model.Message, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, messageColumns, s.table)

	m, err := scanMessage(s.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *PostgresMessageStore) GetPending(ctx context.Context, limit int) ([]model.Message, error) {
	limit = clampLimit(limit, maxPendingLimit)
	if limit == 0 {
		return nil, nil
	}

	sql := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, messageColumns, s.table)

	return s.queryMessages(ctx, sql, model.StatusPending, limit)
}

func (s *PostgresMessageStore) GetByStatus(ctx context.Context, status model.Status, limit int) ([]model.Message, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE status = $1
		ORDER BY created_at DESC
	`, messageColumns, s.table)

	if limit > 0 {
		sql += ` LIMIT $2`
		return s.queryMessages(ctx, sql, status, clampLimit(limit, maxByStatusLimit))
	}
	return s.queryMessages(ctx, sql, status)
}

func (s *PostgresMessageStore) UpdateStatus(ctx context.Context, id string, status model.Status, upd StatusUpdate) error {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET status = $1,
		    updated_at = $2,
		    message_id = COALESCE($3, message_id),
		    sent_at = COALESCE($4, sent_at)
		WHERE id = $5
	`, s.table)

	tag, err := s.db.Exec(ctx, sql, status, upd.UpdatedAt, upd.MessageID, upd.SentAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresMessageStore) UpdateStatusIfCurrent(ctx context.Context, id string, expected, next model.Status, upd StatusUpdate) (bool, error) {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET status = $1,
		    updated_at = $2,
		    message_id = COALESCE($3, message_id),
		    sent_at = COALESCE($4, sent_at)
		WHERE id = $5 AND status = $6
	`, s.table)

	tag, err := s.db.Exec(ctx, sql, next, upd.UpdatedAt, upd.MessageID, upd.SentAt, id, expected)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresMessageStore) IncrementRetryCount(ctx context.Context, id string) error {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET retry_count = retry_count + 1,
		    updated_at = NOW()
		WHERE id = $1
	`, s.table)

	_, err := s.db.Exec(ctx, sql, id)
	return err
}

func (s *PostgresMessageStore) queryMessages(ctx context.Context, sql string, args ...any) ([]model.Message, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	err := row.Scan(
		&m.ID,
		&m.To,
		&m.Content,
		&m.Status,
		&m.MessageID,
		&m.RetryCount,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.SentAt,
		&m.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func clampLimit(limit, max int) int {
	if limit < 0 {
		return 0
	}
	if limit > max {
		return max
	}
	return limit
}
