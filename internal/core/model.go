package core

import (
	"math"
	"time"
)

// SubmissionRecord is one accepted contact message as kept by the submission log
type SubmissionRecord struct {
	ID        string
	Name      string
	Email     string
	Message   string
	IPAddress string // empty when the caller could not resolve it
	UserAgent string // audit only, never evaluated
	CreatedAt time.Time
}

// CandidateSubmission is the input to a single guard evaluation
type CandidateSubmission struct {
	Name          string
	Email         string
	Message       string
	HoneypotValue string

	// ClientElapsedSeconds is the untrusted render-to-submit time reported by
	// the browser. Nil means the signal was absent or unusable.
	ClientElapsedSeconds *float64

	// SourceIP is the resolved client address, empty when unknown
	SourceIP string
}

// ContactSubmission wraps a candidate with request metadata that is stored
// alongside an accepted record
type ContactSubmission struct {
	Candidate CandidateSubmission
	UserAgent string
}

// CooldownPolicy holds the anti-spam windows applied by the guard
type CooldownPolicy struct {
	EmailCooldown time.Duration
	IPCooldown    time.Duration
	MinElapsed    time.Duration
}

// Reason identifies why a submission was rejected
type Reason string

const (
	ReasonAutomatedSubmission Reason = "automated_submission"
	ReasonSubmittedTooQuickly Reason = "submitted_too_quickly"
	ReasonEmailCooldownActive Reason = "email_cooldown_active"
	ReasonIPCooldownActive    Reason = "ip_cooldown_active"
)

// GuardResult is the outcome of a guard evaluation. Remaining is only set for
// the two cooldown reasons.
type GuardResult struct {
	Accepted  bool
	Reason    Reason
	Remaining time.Duration
}

// Accepted returns an accepting result
func Accepted() *GuardResult {
	return &GuardResult{Accepted: true}
}

// Rejected returns a rejection without a remaining duration
func Rejected(reason Reason) *GuardResult {
	return &GuardResult{Reason: reason}
}

// RejectedFor returns a cooldown rejection carrying the time left
func RejectedFor(reason Reason, remaining time.Duration) *GuardResult {
	return &GuardResult{Reason: reason, Remaining: remaining}
}

// RemainingSeconds rounds the remaining duration up so a client countdown never
// reaches zero while the window is still open.
func (r *GuardResult) RemainingSeconds() int {
	return CeilSeconds(r.Remaining)
}

// CeilSeconds converts a duration to whole seconds, rounding up
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// ScreeningVerdict is the content analysis of an accepted message
type ScreeningVerdict struct {
	IsSpam      bool
	Score       float64
	Confidence  float64
	Explanation string
	AnalyzedAt  time.Time
	ModelUsed   string
}

// SubmitOutcome is returned by ContactService.Submit. Record is only set when
// the submission was accepted and persisted.
type SubmitOutcome struct {
	Result *GuardResult
	Record *SubmissionRecord
}
