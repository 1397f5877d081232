package submissionlog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mikey/contact-guard/internal/core"
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const selectColumns = `SELECT id, name, email, message, ip_address, user_agent, created_at
		FROM contact_submissions`

// sqlTx implements core.SubmissionTx for database/sql drivers using ? placeholders.
// created_at is stored as unix microseconds.
type sqlTx struct {
	q querier
}

func (t sqlTx) MostRecentByEmail(ctx context.Context, email string) (*core.SubmissionRecord, error) {
	return t.mostRecent(ctx, selectColumns+`
		WHERE email = ?
		ORDER BY created_at DESC
		LIMIT 1`, email)
}

func (t sqlTx) MostRecentByIP(ctx context.Context, ip string) (*core.SubmissionRecord, error) {
	if ip == "" {
		return nil, core.ErrRecordNotFound
	}
	return t.mostRecent(ctx, selectColumns+`
		WHERE ip_address = ?
		ORDER BY created_at DESC
		LIMIT 1`, ip)
}

func (t sqlTx) mostRecent(ctx context.Context, query string, key string) (*core.SubmissionRecord, error) {
	var (
		rec       core.SubmissionRecord
		ip, ua    sql.NullString
		createdAt int64
	)

	err := t.q.QueryRowContext(ctx, query, key).
		Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Message, &ip, &ua, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to query submission log: %w", err)
	}

	rec.IPAddress = ip.String
	rec.UserAgent = ua.String
	rec.CreatedAt = time.UnixMicro(createdAt).UTC()
	return &rec, nil
}

// Insert never stores a record older than the newest one sharing its email or IP
func (t sqlTx) Insert(ctx context.Context, record *core.SubmissionRecord) error {
	var newest sql.NullInt64
	err := t.q.QueryRowContext(ctx, `
		SELECT MAX(created_at) FROM contact_submissions
		WHERE email = ? OR ip_address = ?
	`, record.Email, nullString(record.IPAddress)).Scan(&newest)
	if err != nil {
		return fmt.Errorf("failed to query submission log: %w", err)
	}
	if newest.Valid && record.CreatedAt.UnixMicro() < newest.Int64 {
		record.CreatedAt = time.UnixMicro(newest.Int64).UTC()
	}

	_, err = t.q.ExecContext(ctx, `
		INSERT INTO contact_submissions (id, name, email, message, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Name, record.Email, record.Message,
		nullString(record.IPAddress), nullString(record.UserAgent), record.CreatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to insert submission record: %w", err)
	}
	return nil
}

// runTx commits when fn succeeds and rolls back otherwise
func runTx(tx *sql.Tx, fn func(tx core.SubmissionTx) error) error {
	if err := fn(sqlTx{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit submission transaction: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// lockNames maps cooldown keys to sorted, bounded-length advisory lock names
func lockNames(keys []string) []string {
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		sum := sha256.Sum256([]byte(key))
		names = append(names, "contact_guard:"+hex.EncodeToString(sum[:])[:40])
	}
	slices.Sort(names)
	return slices.Compact(names)
}
