package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	token_hash TEXT PRIMARY KEY,
	identity   TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s (identity);
CREATE TABLE IF NOT EXISTS %[2]s (
	identity           TEXT PRIMARY KEY,
	failed_attempts    INTEGER NOT NULL DEFAULT 0,
	attempts_expire_at TIMESTAMPTZ NOT NULL,
	locked_until       TIMESTAMPTZ
);
`

// PgxConn is the subset of *pgxpool.Pool used by PostgresStore.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresOptions configures a PostgresStore.
type PostgresOptions struct {
	// TablePrefix is prepended to every table name.
	TablePrefix string
	AttemptTTL  time.Duration
	Now         func() time.Time
}

// PostgresStore keeps refresh records and lockout state in two tables.
// Expired rows are ignored on read and removed by PurgeExpired.
type PostgresStore struct {
	db         PgxConn
	attemptTTL time.Duration
	now        func() time.Time

	refreshTable  string
	attemptsTable string
}

var (
	_ Store           = (*PostgresStore)(nil)
	_ RefreshConsumer = (*PostgresStore)(nil)
)

// NewPostgresStore returns a store on db. Call Migrate once before use.
func NewPostgresStore(db PgxConn, opts PostgresOptions) *PostgresStore {
	return &PostgresStore{
		db:            db,
		attemptTTL:    attemptTTLOrDefault(opts.AttemptTTL),
		now:           nowOrDefault(opts.Now),
		refreshTable:  pgx.Identifier{opts.TablePrefix + "refresh_tokens"}.Sanitize(),
		attemptsTable: pgx.Identifier{opts.TablePrefix + "login_attempts"}.Sanitize(),
	}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	identityIdx := pgx.Identifier{strings.Trim(s.refreshTable, `"`) + "_identity_idx"}.Sanitize()
	if _, err := s.db.Exec(ctx, fmt.Sprintf(postgresSchema, s.refreshTable, s.attemptsTable, identityIdx)); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) SaveRefresh(ctx context.Context, token, identity string, ttl time.Duration) error {
	sql := `INSERT INTO ` + s.refreshTable + ` (token_hash, identity, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (token_hash) DO UPDATE SET identity = EXCLUDED.identity, expires_at = EXCLUDED.expires_at`
	if _, err := s.db.Exec(ctx, sql, TokenKey(token), identity, s.now().Add(ttl)); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) IsRefreshLive(ctx context.Context, token, identity string) (bool, error) {
	sql := `SELECT EXISTS (SELECT 1 FROM ` + s.refreshTable + ` WHERE token_hash = $1 AND identity = $2 AND expires_at > $3)`
	var live bool
	if err := s.db.QueryRow(ctx, sql, TokenKey(token), identity, s.now()).Scan(&live); err != nil {
		return false, unavailable(err)
	}
	return live, nil
}

func (s *PostgresStore) ConsumeRefresh(ctx context.Context, token, identity string) (bool, error) {
	sql := `DELETE FROM ` + s.refreshTable + ` WHERE token_hash = $1 AND identity = $2 AND expires_at > $3`
	tag, err := s.db.Exec(ctx, sql, TokenKey(token), identity, s.now())
	if err != nil {
		return false, unavailable(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) DeleteRefresh(ctx context.Context, token string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM `+s.refreshTable+` WHERE token_hash = $1`, TokenKey(token)); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) DeleteAllForIdentity(ctx context.Context, identity string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM `+s.refreshTable+` WHERE identity = $1`, identity); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) GetFailedAttempts(ctx context.Context, identity string) (int, error) {
	sql := `SELECT failed_attempts FROM ` + s.attemptsTable + ` WHERE identity = $1 AND attempts_expire_at > $2`
	var n int
	if err := s.db.QueryRow(ctx, sql, identity, s.now()).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, unavailable(err)
	}
	return n, nil
}

// IncrementFailedAttempts relies on the row lock taken by ON CONFLICT DO UPDATE.
func (s *PostgresStore) IncrementFailedAttempts(ctx context.Context, identity string) (int, error) {
	sql := `INSERT INTO ` + s.attemptsTable + ` AS a (identity, failed_attempts, attempts_expire_at)
VALUES ($1, 1, $3)
ON CONFLICT (identity) DO UPDATE SET
	failed_attempts = CASE WHEN a.attempts_expire_at <= $2 THEN 1 ELSE a.failed_attempts + 1 END,
	attempts_expire_at = CASE WHEN a.attempts_expire_at <= $2 THEN $3 ELSE a.attempts_expire_at END
RETURNING failed_attempts`
	now := s.now()
	var n int
	if err := s.db.QueryRow(ctx, sql, identity, now, now.Add(s.attemptTTL)).Scan(&n); err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// ResetFailedAttempts expires the attempt window. The row stays for any lock,
// and the next failure opens a fresh AttemptTTL window.
func (s *PostgresStore) ResetFailedAttempts(ctx context.Context, identity string) error {
	sql := `UPDATE ` + s.attemptsTable + ` SET failed_attempts = 0, attempts_expire_at = $2 WHERE identity = $1`
	if _, err := s.db.Exec(ctx, sql, identity, s.now()); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) Lock(ctx context.Context, identity string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	sql := `INSERT INTO ` + s.attemptsTable + ` AS a (identity, failed_attempts, attempts_expire_at, locked_until)
VALUES ($1, 0, $2, $2)
ON CONFLICT (identity) DO UPDATE SET locked_until = EXCLUDED.locked_until`
	if _, err := s.db.Exec(ctx, sql, identity, s.now().Add(d)); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) GetLockExpiry(ctx context.Context, identity string) (time.Time, bool, error) {
	sql := `SELECT locked_until FROM ` + s.attemptsTable + ` WHERE identity = $1 AND locked_until > $2`
	var until time.Time
	if err := s.db.QueryRow(ctx, sql, identity, s.now()).Scan(&until); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, unavailable(err)
	}
	return until, true, nil
}

// PurgeExpired deletes expired refresh records and idle attempt rows.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	var total int64

	tag, err := s.db.Exec(ctx, `DELETE FROM `+s.refreshTable+` WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, unavailable(err)
	}
	total += tag.RowsAffected()

	tag, err = s.db.Exec(ctx, `DELETE FROM `+s.attemptsTable+`
WHERE attempts_expire_at <= $1 AND (locked_until IS NULL OR locked_until <= $1)`, now)
	if err != nil {
		return total, unavailable(err)
	}
	return total + tag.RowsAffected(), nil
}
