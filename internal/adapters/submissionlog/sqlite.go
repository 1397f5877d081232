package submissionlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/contact-guard/internal/core"
	"go.uber.org/zap"
)

// SQLiteLog is a SQLite implementation of the SubmissionLog interface.
// Transactions begin IMMEDIATE so atomic sections are serialized by the
// database write lock.
type SQLiteLog struct {
	sqlTx
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteLog opens (and if needed creates) the submission log at dbPath
func NewSQLiteLog(dbPath string, busyTimeout time.Duration, logger *zap.Logger) (*SQLiteLog, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=%d&_journal_mode=WAL",
		dbPath, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS contact_submissions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			message TEXT NOT NULL,
			ip_address TEXT,
			user_agent TEXT,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_submissions_email_created ON contact_submissions(email, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_ip_created ON contact_submissions(ip_address, created_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}

	return &SQLiteLog{
		sqlTx:  sqlTx{q: db},
		db:     db,
		logger: logger,
	}, nil
}

// Atomically runs fn inside an immediate transaction
func (l *SQLiteLog) Atomically(ctx context.Context, keys []string, fn func(tx core.SubmissionTx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin SQLite transaction: %w", err)
	}
	return runTx(tx, fn)
}

// Close closes the database connection
func (l *SQLiteLog) Close() error {
	if err := l.db.Close(); err != nil {
		l.logger.Error("Failed to close SQLite database", zap.Error(err))
		return err
	}
	return nil
}
