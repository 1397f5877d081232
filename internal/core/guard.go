package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Guard decides whether a contact submission may be accepted now. It only
// reads the submission log; committing an accepted record is the caller's job.
type Guard struct {
	log    SubmissionReader
	policy CooldownPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewGuard creates a guard over the given log and policy
func NewGuard(log SubmissionLog, policy CooldownPolicy, logger *zap.Logger) *Guard {
	return &Guard{
		log:    log,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source, mainly for tests
func (g *Guard) SetClock(now func() time.Time) {
	g.now = now
}

// Policy returns the active cooldown policy
func (g *Guard) Policy() CooldownPolicy {
	return g.policy
}

// Evaluate runs the bot and cooldown checks in order and stops at the first
// failure. Only log failures are returned as errors.
func (g *Guard) Evaluate(ctx context.Context, candidate *CandidateSubmission) (*GuardResult, error) {
	c := normalizeCandidate(candidate)
	if res := g.checkBotSignals(&c); res != nil {
		return res, nil
	}
	return g.checkCooldowns(ctx, g.log, &c, g.now())
}

// RemainingCooldown returns the larger of the email and IP windows still open.
// Empty keys are skipped; zero means a submission would not be held back.
func (g *Guard) RemainingCooldown(ctx context.Context, email, ip string) (time.Duration, error) {
	return g.remaining(ctx, g.log, NormalizeEmail(email), NormalizeIP(ip), g.now())
}

func normalizeCandidate(candidate *CandidateSubmission) CandidateSubmission {
	c := *candidate
	c.Email = NormalizeEmail(c.Email)
	c.SourceIP = NormalizeIP(c.SourceIP)
	return c
}

// checkBotSignals covers the checks that never touch the log
func (g *Guard) checkBotSignals(c *CandidateSubmission) *GuardResult {
	if c.HoneypotValue != "" {
		g.logger.Info("Honeypot field filled", zap.String("ip", c.SourceIP))
		return Rejected(ReasonAutomatedSubmission)
	}

	if c.ClientElapsedSeconds != nil && g.policy.MinElapsed > 0 {
		if *c.ClientElapsedSeconds < g.policy.MinElapsed.Seconds() {
			g.logger.Info("Form submitted too quickly",
				zap.Float64("elapsed_seconds", *c.ClientElapsedSeconds),
				zap.String("ip", c.SourceIP))
			return Rejected(ReasonSubmittedTooQuickly)
		}
	}

	return nil
}

func (g *Guard) checkCooldowns(ctx context.Context, r SubmissionReader, c *CandidateSubmission, now time.Time) (*GuardResult, error) {
	if left, err := g.emailRemaining(ctx, r, c.Email, now); err != nil {
		return nil, err
	} else if left > 0 {
		g.logger.Debug("Email cooldown active", zap.Duration("remaining", left))
		return RejectedFor(ReasonEmailCooldownActive, left), nil
	}

	if left, err := g.ipRemaining(ctx, r, c.SourceIP, now); err != nil {
		return nil, err
	} else if left > 0 {
		g.logger.Debug("IP cooldown active", zap.String("ip", c.SourceIP), zap.Duration("remaining", left))
		return RejectedFor(ReasonIPCooldownActive, left), nil
	}

	return Accepted(), nil
}

func (g *Guard) remaining(ctx context.Context, r SubmissionReader, email, ip string, now time.Time) (time.Duration, error) {
	byEmail, err := g.emailRemaining(ctx, r, email, now)
	if err != nil {
		return 0, err
	}
	byIP, err := g.ipRemaining(ctx, r, ip, now)
	if err != nil {
		return 0, err
	}
	return max(byEmail, byIP), nil
}

func (g *Guard) emailRemaining(ctx context.Context, r SubmissionReader, email string, now time.Time) (time.Duration, error) {
	if email == "" || g.policy.EmailCooldown <= 0 {
		return 0, nil
	}
	rec, err := r.MostRecentByEmail(ctx, email)
	if errors.Is(err, ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, persistenceError("find by email", err)
	}
	return windowLeft(rec.CreatedAt, g.policy.EmailCooldown, now), nil
}

func (g *Guard) ipRemaining(ctx context.Context, r SubmissionReader, ip string, now time.Time) (time.Duration, error) {
	if ip == "" || g.policy.IPCooldown <= 0 {
		return 0, nil
	}
	rec, err := r.MostRecentByIP(ctx, ip)
	if errors.Is(err, ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, persistenceError("find by ip", err)
	}
	return windowLeft(rec.CreatedAt, g.policy.IPCooldown, now), nil
}

// windowLeft is strict: a record exactly window old no longer blocks
func windowLeft(createdAt time.Time, window time.Duration, now time.Time) time.Duration {
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	if age < window {
		return window - age
	}
	return 0
}
