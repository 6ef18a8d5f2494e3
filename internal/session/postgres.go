package session

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Migrations holds the goose migrations of the sessions table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations.
const MigrationsDir = "migrations"

// PostgresStore keeps sessions in the sessions table. Expired rows are
// ignored by Get and removed by PurgeExpired.
type PostgresStore struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db),
		now: time.Now,
	}
}

func (s *PostgresStore) Set(ctx context.Context, token, value string, ttl time.Duration) error {
	_, err := s.sb.Insert("sessions").
		Columns("token", "data", "expires_at").
		Values(token, value, s.now().Add(ttl).UTC()).
		Suffix("ON CONFLICT (token) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at").
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Touch(ctx context.Context, token, value string, ttl time.Duration) error {
	now := s.now().UTC()
	res, err := s.sb.Update("sessions").
		Set("data", value).
		Set("expires_at", now.Add(ttl)).
		Where(sq.Eq{"token": token}).
		Where(sq.Gt{"expires_at": now}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, token string) (string, error) {
	var value string
	err := s.sb.Select("data").
		From("sessions").
		Where(sq.Eq{"token": token}).
		Where(sq.Gt{"expires_at": s.now().UTC()}).
		QueryRowContext(ctx).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Delete(ctx context.Context, token string) error {
	res, err := s.sb.Delete("sessions").
		Where(sq.Eq{"token": token}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.sb.Delete("sessions").
		Where(sq.LtOrEq{"expires_at": s.now().UTC()}).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Name() string { return "postgres" }
