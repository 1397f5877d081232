package submissionlog

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/contact-guard/internal/core"
	"go.uber.org/zap"
)

// MySQLLog is a MySQL implementation of the SubmissionLog interface. Atomic
// sections hold a named lock per cooldown key for the duration of the
// transaction, so a second submission for the same email or IP waits for the
// first to commit.
type MySQLLog struct {
	sqlTx
	db          *sql.DB
	lockTimeout time.Duration
	logger      *zap.Logger
}

// NewMySQLLog connects to MySQL and ensures the schema exists
func NewMySQLLog(dsn string, lockTimeout time.Duration, logger *zap.Logger) (*MySQLLog, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS contact_submissions (
			id CHAR(36) PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(254) NOT NULL,
			message TEXT NOT NULL,
			ip_address VARCHAR(45) NULL,
			user_agent TEXT NULL,
			created_at BIGINT NOT NULL,
			INDEX idx_submissions_email_created (email, created_at),
			INDEX idx_submissions_ip_created (ip_address, created_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLLog{
		sqlTx:       sqlTx{q: db},
		db:          db,
		lockTimeout: lockTimeout,
		logger:      logger,
	}, nil
}

// Atomically takes GET_LOCK for each key on one connection, then runs fn in a
// transaction on that same connection.
func (l *MySQLLog) Atomically(ctx context.Context, keys []string, fn func(tx core.SubmissionTx) error) error {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get MySQL connection: %w", err)
	}
	defer conn.Close()

	var held []string
	defer func() {
		for _, name := range held {
			if _, err := conn.ExecContext(context.Background(), `DO RELEASE_LOCK(?)`, name); err != nil {
				l.logger.Warn("Failed to release submission lock", zap.String("lock", name), zap.Error(err))
			}
		}
	}()

	timeout := getLockSeconds(l.lockTimeout)
	for _, name := range lockNames(keys) {
		var got sql.NullInt64
		if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, name, timeout).Scan(&got); err != nil {
			return fmt.Errorf("failed to acquire submission lock: %w", err)
		}
		if !got.Valid || got.Int64 != 1 {
			return fmt.Errorf("timed out acquiring submission lock after %s", l.lockTimeout)
		}
		held = append(held, name)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin MySQL transaction: %w", err)
	}
	return runTx(tx, fn)
}

// getLockSeconds converts a lock timeout to GET_LOCK's whole seconds, rounding
// up. A non-positive timeout waits indefinitely.
func getLockSeconds(d time.Duration) int {
	if d <= 0 {
		return -1
	}
	return int(math.Ceil(d.Seconds()))
}

// Close closes the database connection
func (l *MySQLLog) Close() error {
	if err := l.db.Close(); err != nil {
		l.logger.Error("Failed to close MySQL database", zap.Error(err))
		return err
	}
	return nil
}
