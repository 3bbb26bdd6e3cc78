package crawler

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// DefaultAuditPageSize is the number of matches read per page
const DefaultAuditPageSize = 100

// AuditConfig controls where an audit starts and how it pages.
type AuditConfig struct {
	PageSize    int
	StartOffset int
}

// AuditStats summarises one audit run.
type AuditStats struct {
	Pages          int
	MatchesChecked int
	MatchesShort   int
	RowsInserted   int
	Violations     []InvariantViolation
	EndOffset      int // offset of the first match not checked
}

// Auditor finds matches with fewer than ten participation rows and fills
// the gaps from a fresh match detail.
type Auditor struct {
	fetcher  Fetcher
	store    Store
	cfg      AuditConfig
	notifier Notifier
	logger   *log.Entry

	// next is where the following Run starts: StartOffset at first, the
	// failing offset after an aborted run, 0 after a complete sweep.
	next int
}

// AuditorOption configures an Auditor
type AuditorOption func(*Auditor)

// WithAuditNotifier reports fatal audit failures
func WithAuditNotifier(n Notifier) AuditorOption {
	return func(a *Auditor) {
		a.notifier = n
	}
}

// WithAuditLogger sets the logger
func WithAuditLogger(l *log.Entry) AuditorOption {
	return func(a *Auditor) {
		a.logger = l
	}
}

// NewAuditor creates an auditor
func NewAuditor(fetcher Fetcher, s Store, cfg AuditConfig, opts ...AuditorOption) *Auditor {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultAuditPageSize
	}
	if cfg.StartOffset < 0 {
		cfg.StartOffset = 0
	}
	a := &Auditor{
		fetcher: fetcher,
		store:   s,
		cfg:     cfg,
		logger:  log.WithField("component", "auditor"),
		next:    cfg.StartOffset,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NextOffset is the offset the next Run starts from.
func (a *Auditor) NextOffset() int {
	return a.next
}

// Run audits every match from NextOffset to the end of the table. A store
// failure or a failed detail fetch ends the run with an *AuditError, and the
// next Run resumes at that offset. Violations are collected and do not stop
// the run.
func (a *Auditor) Run(ctx context.Context) (AuditStats, error) {
	stats, err := a.run(ctx)
	var auditErr *AuditError
	switch {
	case err == nil:
		a.next = 0
	case errors.As(err, &auditErr):
		a.next = auditErr.Offset
	default:
		a.next = stats.EndOffset
	}
	return stats, err
}

func (a *Auditor) run(ctx context.Context) (AuditStats, error) {
	stats := AuditStats{EndOffset: a.next}
	offset := a.next

	a.logger.WithFields(log.Fields{
		"offset":    offset,
		"page_size": a.cfg.PageSize,
	}).Info("starting audit")

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		ids, err := a.store.PageMatches(ctx, offset, a.cfg.PageSize)
		if err != nil {
			return stats, a.fail(ctx, &AuditError{Offset: offset, Err: fmt.Errorf("failed to page matches: %w", err)})
		}
		if len(ids) == 0 {
			break
		}
		stats.Pages++

		for i, matchID := range ids {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := a.checkMatch(ctx, matchID, offset+i, &stats); err != nil {
				return stats, a.fail(ctx, err)
			}
			stats.MatchesChecked++
			stats.EndOffset = offset + i + 1
		}

		if len(ids) < a.cfg.PageSize {
			break
		}
		offset += len(ids)
	}

	a.logger.WithFields(log.Fields{
		"pages":      stats.Pages,
		"checked":    stats.MatchesChecked,
		"short":      stats.MatchesShort,
		"inserted":   stats.RowsInserted,
		"violations": len(stats.Violations),
		"end_offset": stats.EndOffset,
	}).Info("audit complete")
	return stats, nil
}

func (a *Auditor) fail(ctx context.Context, err *AuditError) error {
	a.logger.WithFields(log.Fields{
		"match_id": err.MatchID,
		"offset":   err.Offset,
	}).WithError(err.Err).Error("audit aborted")
	if a.notifier != nil {
		if nerr := a.notifier.AuditFailed(ctx, err); nerr != nil {
			a.logger.WithError(nerr).Warn("failed to send audit notification")
		}
	}
	return err
}

func (a *Auditor) checkMatch(ctx context.Context, matchID int64, offset int, stats *AuditStats) *AuditError {
	wrap := func(err error) *AuditError {
		return &AuditError{MatchID: matchID, Offset: offset, Err: err}
	}

	count, err := a.store.CountParticipationRows(ctx, matchID)
	if err != nil {
		return wrap(fmt.Errorf("failed to count participations: %w", err))
	}
	if count >= ParticipantsPerMatch {
		return nil
	}
	stats.MatchesShort++

	recorded, err := a.store.GetParticipationSummonerIDs(ctx, matchID)
	if err != nil {
		return wrap(fmt.Errorf("failed to read participations: %w", err))
	}
	have := make(map[int64]struct{}, len(recorded))
	for _, id := range recorded {
		have[id] = struct{}{}
	}

	detail, err := a.fetcher.FetchMatchDetail(ctx, matchID)
	if err != nil {
		return wrap(fmt.Errorf("failed to fetch match detail: %w", err))
	}

	wctx, cancel := writeContext(ctx)
	defer cancel()

	rows, _ := DeriveParticipations(detail)
	var missing int
	for _, p := range rows {
		if _, ok := have[p.SummonerID]; ok {
			continue
		}
		missing++
		inserted, err := a.store.UpsertParticipation(wctx, p)
		if err != nil {
			return wrap(fmt.Errorf("failed to insert participation for summoner %d: %w", p.SummonerID, err))
		}
		if inserted {
			stats.RowsInserted++
		}
	}

	mlog := a.logger.WithFields(log.Fields{"match_id": matchID, "recorded": count})
	if missing == 0 {
		v := InvariantViolation{MatchID: matchID, Recorded: count, Expected: len(rows)}
		stats.Violations = append(stats.Violations, v)
		mlog.WithError(v).Warn("short match left unrepaired")
		return nil
	}
	mlog.WithField("inserted", missing).Info("repaired match")
	return nil
}
