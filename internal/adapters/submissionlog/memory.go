package submissionlog

import (
	"context"
	"sync"

	"github.com/mikey/contact-guard/internal/core"
	"go.uber.org/zap"
)

// MemoryLog is an in-memory implementation of the SubmissionLog interface.
// Atomic sections are serialized by a single mutex.
type MemoryLog struct {
	mu      sync.Mutex
	records []*core.SubmissionRecord
	byEmail map[string]*core.SubmissionRecord
	byIP    map[string]*core.SubmissionRecord
	logger  *zap.Logger
}

// NewMemoryLog creates a new in-memory submission log
func NewMemoryLog(logger *zap.Logger) *MemoryLog {
	return &MemoryLog{
		byEmail: make(map[string]*core.SubmissionRecord),
		byIP:    make(map[string]*core.SubmissionRecord),
		logger:  logger,
	}
}

// MostRecentByEmail retrieves the newest record for an email
func (l *MemoryLog) MostRecentByEmail(ctx context.Context, email string) (*core.SubmissionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return memoryTx{l}.MostRecentByEmail(ctx, email)
}

// MostRecentByIP retrieves the newest record for an IP address
func (l *MemoryLog) MostRecentByIP(ctx context.Context, ip string) (*core.SubmissionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return memoryTx{l}.MostRecentByIP(ctx, ip)
}

// Insert appends a record
func (l *MemoryLog) Insert(ctx context.Context, record *core.SubmissionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return memoryTx{l}.Insert(ctx, record)
}

// Atomically runs fn while holding the log lock
func (l *MemoryLog) Atomically(ctx context.Context, keys []string, fn func(tx core.SubmissionTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(memoryTx{l})
}

// Len returns the number of stored records
func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// memoryTx accesses the log without locking; the caller holds l.mu
type memoryTx struct {
	l *MemoryLog
}

func (t memoryTx) MostRecentByEmail(ctx context.Context, email string) (*core.SubmissionRecord, error) {
	return lookup(t.l.byEmail, email)
}

func (t memoryTx) MostRecentByIP(ctx context.Context, ip string) (*core.SubmissionRecord, error) {
	if ip == "" {
		return nil, core.ErrRecordNotFound
	}
	return lookup(t.l.byIP, ip)
}

func (t memoryTx) Insert(ctx context.Context, record *core.SubmissionRecord) error {
	stored := *record

	// never backdate relative to the newest record
	if n := len(t.l.records); n > 0 {
		if last := t.l.records[n-1].CreatedAt; stored.CreatedAt.Before(last) {
			stored.CreatedAt = last
			record.CreatedAt = last
		}
	}

	t.l.records = append(t.l.records, &stored)
	t.l.byEmail[stored.Email] = &stored
	if stored.IPAddress != "" {
		t.l.byIP[stored.IPAddress] = &stored
	}

	t.l.logger.Debug("Stored submission record", zap.String("id", stored.ID))
	return nil
}

func lookup(index map[string]*core.SubmissionRecord, key string) (*core.SubmissionRecord, error) {
	rec, ok := index[key]
	if !ok {
		return nil, core.ErrRecordNotFound
	}
	out := *rec
	return &out, nil
}
