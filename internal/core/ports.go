package core

import (
	"context"
)

// SubmissionReader is the read side of the submission log used by the guard
type SubmissionReader interface {
	// MostRecentByEmail returns the newest record for an email or ErrRecordNotFound
	MostRecentByEmail(ctx context.Context, email string) (*SubmissionRecord, error)

	// MostRecentByIP returns the newest record for an IP or ErrRecordNotFound
	MostRecentByIP(ctx context.Context, ip string) (*SubmissionRecord, error)
}

// SubmissionWriter appends records to the submission log
type SubmissionWriter interface {
	// Insert appends a record
	Insert(ctx context.Context, record *SubmissionRecord) error
}

// SubmissionTx is the view of the log handed to an atomic section
type SubmissionTx interface {
	SubmissionReader
	SubmissionWriter
}

// SubmissionLog defines the persisted store of accepted submissions
type SubmissionLog interface {
	SubmissionTx

	// Atomically runs fn with every key in keys held exclusively. Reads and
	// writes made through tx commit together when fn returns nil.
	Atomically(ctx context.Context, keys []string, fn func(tx SubmissionTx) error) error
}

// ContentScreener analyzes an accepted message for spam
type ContentScreener interface {
	Screen(ctx context.Context, record *SubmissionRecord) (*ScreeningVerdict, error)
}

// Notifier tells the site owner about an accepted message. verdict may be nil
// when screening is disabled or skipped.
type Notifier interface {
	Notify(ctx context.Context, record *SubmissionRecord, verdict *ScreeningVerdict) error
}

// Dispatcher runs follow-up work outside of the request
type Dispatcher interface {
	Dispatch(task func(ctx context.Context)) error
}
