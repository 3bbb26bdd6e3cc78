package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"league-crawler/internal/riot"
)

// PassRunner runs one walker pass
type PassRunner interface {
	Run(ctx context.Context) (PassStats, error)
}

// AuditRunner runs one audit
type AuditRunner interface {
	Run(ctx context.Context) (AuditStats, error)
}

// KeyProvider supplies a replacement API key posted after since (e.g. from Discord)
type KeyProvider interface {
	WaitForKey(ctx context.Context, since time.Time) (string, error)
}

// KeyValidator checks a candidate API key against the API
type KeyValidator interface {
	ValidateKey(ctx context.Context, apiKey string) (bool, error)
}

// KeySetter swaps the key used by the API client
type KeySetter interface {
	SetAPIKey(key string)
}

// SchedulerConfig holds configuration for continuous mode
type SchedulerConfig struct {
	// WalkInterval is the pause between passes (default: 1 minute)
	WalkInterval time.Duration
	// AuditEvery runs an audit after every N passes; 0 disables auditing
	AuditEvery int
	// KeyPollInterval is the retry delay after a key provider error (default: 5 minutes)
	KeyPollInterval time.Duration
	// KeyWaitTimeout bounds the wait for a replacement key (default: 24 hours)
	KeyWaitTimeout time.Duration
}

// DefaultSchedulerConfig returns a configuration with sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		WalkInterval:    time.Minute,
		AuditEvery:      5,
		KeyPollInterval: 5 * time.Minute,
		KeyWaitTimeout:  24 * time.Hour,
	}
}

// Totals accumulates results over one key session.
type Totals struct {
	Passes               int
	FailedPasses         int
	Audits               int
	MatchesStored        int
	SummonersDiscovered  int
	ParticipationsStored int
	RowsRepaired         int
	Runtime              time.Duration
	LastPassAgo          time.Duration // -1 if no pass has finished
}

// Scheduler repeats walker passes, audits periodically and, when the API key
// is rejected, waits for a replacement key before resuming.
type Scheduler struct {
	walker  PassRunner
	auditor AuditRunner
	cfg     SchedulerConfig

	keys      KeyProvider
	validator KeyValidator
	setter    KeySetter
	notifier  Notifier
	logger    *log.Entry

	mu        sync.Mutex
	totals    Totals
	startTime time.Time
	lastPass  time.Time
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithKeyRotation enables waiting for a new key when the current one expires
func WithKeyRotation(p KeyProvider, v KeyValidator, s KeySetter) SchedulerOption {
	return func(sc *Scheduler) {
		sc.keys = p
		sc.validator = v
		sc.setter = s
	}
}

// WithSchedulerNotifier reports key expiry and new sessions
func WithSchedulerNotifier(n Notifier) SchedulerOption {
	return func(sc *Scheduler) {
		sc.notifier = n
	}
}

// WithSchedulerLogger sets the logger
func WithSchedulerLogger(l *log.Entry) SchedulerOption {
	return func(sc *Scheduler) {
		sc.logger = l
	}
}

// NewScheduler creates a scheduler. auditor may be nil.
func NewScheduler(walker PassRunner, auditor AuditRunner, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.WalkInterval <= 0 {
		cfg.WalkInterval = def.WalkInterval
	}
	if cfg.KeyPollInterval <= 0 {
		cfg.KeyPollInterval = def.KeyPollInterval
	}
	if cfg.KeyWaitTimeout <= 0 {
		cfg.KeyWaitTimeout = def.KeyWaitTimeout
	}
	s := &Scheduler{
		walker:    walker,
		auditor:   auditor,
		cfg:       cfg,
		logger:    log.WithField("component", "scheduler"),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled or the API key is rejected with no way
// to obtain a replacement.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.WithFields(log.Fields{
		"interval":    s.cfg.WalkInterval,
		"audit_every": s.cfg.AuditEvery,
	}).Info("starting continuous mode")

	for {
		stats, err := s.walker.Run(ctx)
		s.recordPass(stats, err)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if riot.IsKeyError(err) {
				if err := s.rotateKey(ctx, err); err != nil {
					return err
				}
				continue
			}
			s.logger.WithError(err).Error("pass failed")
		} else if s.auditDue() {
			if err := s.runAudit(ctx); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			s.logger.Info("context cancelled, stopping")
			return ctx.Err()
		case <-time.After(s.cfg.WalkInterval):
		}
	}
}

func (s *Scheduler) recordPass(stats PassStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals.MatchesStored += stats.MatchesStored
	s.totals.SummonersDiscovered += stats.SummonersDiscovered
	s.totals.ParticipationsStored += stats.ParticipationsStored
	if err != nil {
		s.totals.FailedPasses++
		return
	}
	s.totals.Passes++
	s.lastPass = time.Now()
}

func (s *Scheduler) auditDue() bool {
	if s.auditor == nil || s.cfg.AuditEvery <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.Passes%s.cfg.AuditEvery == 0
}

// runAudit only returns an error that should stop the scheduler.
func (s *Scheduler) runAudit(ctx context.Context) error {
	stats, err := s.auditor.Run(ctx)

	s.mu.Lock()
	s.totals.Audits++
	s.totals.RowsRepaired += stats.RowsInserted
	s.mu.Unlock()

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case riot.IsKeyError(err):
		return s.rotateKey(ctx, err)
	default:
		s.logger.WithError(err).Error("audit failed, continuing with next pass")
		return nil
	}
}

// rotateKey waits for a valid replacement key and installs it.
func (s *Scheduler) rotateKey(ctx context.Context, cause error) error {
	s.logger.WithError(cause).Warn("API key rejected")

	if s.notifier != nil {
		if err := s.notifier.KeyExpired(ctx, s.Stats()); err != nil {
			s.logger.WithError(err).Warn("failed to send key expired notification")
		}
	}

	if s.keys == nil || s.setter == nil {
		return fmt.Errorf("no key provider configured: %w", cause)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.KeyWaitTimeout)
	defer cancel()

	since := time.Now()
	for {
		s.logger.Info("waiting for new API key")
		key, err := s.keys.WaitForKey(waitCtx, since)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("no replacement key within %s: %w", s.cfg.KeyWaitTimeout, cause)
			}
			s.logger.WithError(err).Warn("error waiting for key")
			select {
			case <-waitCtx.Done():
				continue
			case <-time.After(s.cfg.KeyPollInterval):
			}
			continue
		}

		if s.validator != nil {
			valid, err := s.validator.ValidateKey(ctx, key)
			if err != nil {
				s.logger.WithError(err).Warn("error validating key")
				since = time.Now()
				continue
			}
			if !valid {
				s.logger.Warn("invalid key received, continuing to wait")
				since = time.Now()
				continue
			}
		}

		s.setter.SetAPIKey(key)
		s.resetTotals()
		s.logger.Info("valid key received, starting new session")

		if s.notifier != nil {
			if err := s.notifier.SessionStarted(ctx, key); err != nil {
				s.logger.WithError(err).Warn("failed to send session notification")
			}
		}
		return nil
	}
}

func (s *Scheduler) resetTotals() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals = Totals{}
	s.startTime = time.Now()
	s.lastPass = time.Time{}
}

// Stats returns the totals for the current key session
func (s *Scheduler) Stats() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.totals
	t.Runtime = time.Since(s.startTime)
	t.LastPassAgo = -1
	if !s.lastPass.IsZero() {
		t.LastPassAgo = time.Since(s.lastPass)
	}
	return t
}
