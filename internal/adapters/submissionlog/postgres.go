package submissionlog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikey/contact-guard/internal/core"
	"go.uber.org/zap"
)

// pgQuerier is satisfied by *pgxpool.Pool and pgx.Tx
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLog is a PostgreSQL implementation of the SubmissionLog interface.
// Atomic sections take a transaction-scoped advisory lock per cooldown key.
type PostgresLog struct {
	pgTx
	pool        *pgxpool.Pool
	lockTimeout time.Duration
	logger      *zap.Logger
}

// NewPostgresLog connects to PostgreSQL and ensures the schema exists
func NewPostgresLog(ctx context.Context, dsn string, lockTimeout time.Duration, logger *zap.Logger) (*PostgresLog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS contact_submissions (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			message TEXT NOT NULL,
			ip_address TEXT NULL,
			user_agent TEXT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_email_created ON contact_submissions(email, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_ip_created ON contact_submissions(ip_address, created_at DESC)`,
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &PostgresLog{
		pgTx:        pgTx{q: pool},
		pool:        pool,
		lockTimeout: lockTimeout,
		logger:      logger,
	}, nil
}

// Atomically runs fn in a transaction holding pg_advisory_xact_lock for each key
func (l *PostgresLog) Atomically(ctx context.Context, keys []string, fn func(tx core.SubmissionTx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin PostgreSQL transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			l.logger.Warn("Failed to roll back submission transaction", zap.Error(err))
		}
	}()

	if l.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL lock_timeout = '%dms'`, l.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	for _, key := range slices.Compact(slices.Sorted(slices.Values(keys))) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("failed to acquire submission lock: %w", err)
		}
	}

	if err := fn(pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit submission transaction: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (l *PostgresLog) Close() error {
	l.pool.Close()
	return nil
}

type pgTx struct {
	q pgQuerier
}

const pgSelectColumns = `SELECT id::text, name, email, message, COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM contact_submissions`

func (t pgTx) MostRecentByEmail(ctx context.Context, email string) (*core.SubmissionRecord, error) {
	return t.mostRecent(ctx, pgSelectColumns+`
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT 1`, email)
}

func (t pgTx) MostRecentByIP(ctx context.Context, ip string) (*core.SubmissionRecord, error) {
	if ip == "" {
		return nil, core.ErrRecordNotFound
	}
	return t.mostRecent(ctx, pgSelectColumns+`
		WHERE ip_address = $1
		ORDER BY created_at DESC
		LIMIT 1`, ip)
}

func (t pgTx) mostRecent(ctx context.Context, query string, key string) (*core.SubmissionRecord, error) {
	var rec core.SubmissionRecord
	err := t.q.QueryRow(ctx, query, key).
		Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Message, &rec.IPAddress, &rec.UserAgent, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to query submission log: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

// Insert never stores a record older than the newest one sharing its email or IP
func (t pgTx) Insert(ctx context.Context, record *core.SubmissionRecord) error {
	var newest *time.Time
	err := t.q.QueryRow(ctx, `
		SELECT MAX(created_at) FROM contact_submissions
		WHERE email = $1 OR ip_address = NULLIF($2, '')
	`, record.Email, record.IPAddress).Scan(&newest)
	if err != nil {
		return fmt.Errorf("failed to query submission log: %w", err)
	}
	if newest != nil && record.CreatedAt.Before(*newest) {
		record.CreatedAt = newest.UTC()
	}

	_, err = t.q.Exec(ctx, `
		INSERT INTO contact_submissions (id, name, email, message, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
	`, record.ID, record.Name, record.Email, record.Message, record.IPAddress, record.UserAgent, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert submission record: %w", err)
	}
	return nil
}
