package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TrustedSenders reports addresses whose messages skip content screening
type TrustedSenders interface {
	IsWhitelisted(from string) bool
}

// Screening bundles the optional content analysis step
type Screening struct {
	Screener  ContentScreener
	Trusted   TrustedSenders
	Threshold float64
}

// CooldownStatus is the answer to a status poll
type CooldownStatus struct {
	CanSubmit        bool
	RemainingSeconds int
}

// ContactService accepts contact messages: it runs the guard and the insert as
// one atomic step and hands accepted records to screening and notification.
type ContactService struct {
	guard      *Guard
	log        SubmissionLog
	screening  *Screening
	notifier   Notifier
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewContactService creates a new contact service. screening and notifier may be nil.
func NewContactService(
	guard *Guard,
	log SubmissionLog,
	screening *Screening,
	notifier Notifier,
	dispatcher Dispatcher,
	logger *zap.Logger,
) *ContactService {
	return &ContactService{
		guard:      guard,
		log:        log,
		screening:  screening,
		notifier:   notifier,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Guard returns the underlying guard
func (s *ContactService) Guard() *Guard {
	return s.guard
}

// Submit evaluates a submission and persists it when accepted. Rejections are
// returned in the outcome; the error is only set for log failures.
func (s *ContactService) Submit(ctx context.Context, sub *ContactSubmission) (*SubmitOutcome, error) {
	c := normalizeCandidate(&sub.Candidate)

	if res := s.guard.checkBotSignals(&c); res != nil {
		return &SubmitOutcome{Result: res}, nil
	}

	outcome := &SubmitOutcome{}
	err := s.log.Atomically(ctx, LockKeys(c.Email, c.SourceIP), func(tx SubmissionTx) error {
		now := s.guard.now()
		res, err := s.guard.checkCooldowns(ctx, tx, &c, now)
		if err != nil {
			return err
		}
		outcome.Result = res
		if !res.Accepted {
			return nil
		}

		record := &SubmissionRecord{
			ID:        uuid.NewString(),
			Name:      c.Name,
			Email:     c.Email,
			Message:   c.Message,
			IPAddress: c.SourceIP,
			UserAgent: sub.UserAgent,
			CreatedAt: now.UTC().Truncate(time.Microsecond),
		}
		if err := tx.Insert(ctx, record); err != nil {
			return persistenceError("insert", err)
		}
		outcome.Record = record
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record contact submission", zap.Error(err))
		return nil, persistenceError("commit", err)
	}

	if outcome.Record == nil {
		s.logger.Info("Contact submission held back",
			zap.String("reason", string(outcome.Result.Reason)),
			zap.Int("remaining_seconds", outcome.Result.RemainingSeconds()))
		return outcome, nil
	}

	s.logger.Info("Contact submission accepted",
		zap.String("id", outcome.Record.ID),
		zap.String("ip", outcome.Record.IPAddress))

	record := outcome.Record
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(func(ctx context.Context) {
			s.followUp(ctx, record)
		}); err != nil {
			s.logger.Warn("Failed to schedule follow-up", zap.String("id", record.ID), zap.Error(err))
		}
	}

	return outcome, nil
}

// Status reports whether the given email and IP may submit now
func (s *ContactService) Status(ctx context.Context, email, ip string) (*CooldownStatus, error) {
	left, err := s.guard.RemainingCooldown(ctx, email, ip)
	if err != nil {
		return nil, err
	}
	seconds := CeilSeconds(left)
	return &CooldownStatus{
		CanSubmit:        seconds == 0,
		RemainingSeconds: seconds,
	}, nil
}

// followUp screens an accepted message and notifies the owner
func (s *ContactService) followUp(ctx context.Context, record *SubmissionRecord) {
	verdict := s.screen(ctx, record)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, record, verdict); err != nil {
		s.logger.Error("Failed to notify owner", zap.String("id", record.ID), zap.Error(err))
	}
}

func (s *ContactService) screen(ctx context.Context, record *SubmissionRecord) *ScreeningVerdict {
	if s.screening == nil || s.screening.Screener == nil {
		return nil
	}

	if s.screening.Trusted != nil && s.screening.Trusted.IsWhitelisted(record.Email) {
		s.logger.Debug("Skipping screening for trusted sender",
			zap.String("id", record.ID),
			zap.String("action", "whitelist_bypass"))
		return nil
	}

	verdict, err := s.screening.Screener.Screen(ctx, record)
	if err != nil {
		s.logger.Error("Failed to screen message", zap.String("id", record.ID), zap.Error(err))
		return nil
	}
	verdict.IsSpam = verdict.Score >= s.screening.Threshold

	s.logger.Info("Message screened",
		zap.String("id", record.ID),
		zap.Bool("spam", verdict.IsSpam),
		zap.Float64("score", verdict.Score),
		zap.String("model", verdict.ModelUsed))
	return verdict
}
