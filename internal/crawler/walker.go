package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"league-crawler/internal/riot"
)

// WalkerConfig holds the sampling targets of a pass.
type WalkerConfig struct {
	SummonerSample int // S: summoners per pass, on average
	MatchSample    int // M: matches per summoner, on average
	MinSeason      int
}

// PassStats summarises one walker pass.
type PassStats struct {
	PassID      string
	StartedAt   time.Time
	Duration    time.Duration
	Population  int     // N, summoners in the store at the start
	Probability float64 // P, per-summoner keep probability

	SummonersSampled  int
	SummonersSkipped  int // history fetch failed
	SummonersNoRecent int // nothing from MinSeason onward

	MatchesSampled   int
	MatchesDuplicate int // already processed this pass
	MatchesFailed    int // detail fetch or decode failed
	MatchesWrongMap  int
	MatchesStored    int // new rows
	MatchesExisting  int

	SummonersDiscovered  int
	SummonersAnonymous   int // identities without an account id
	ParticipationsStored int
	Unaligned            int
	StoreErrors          int
}

// Walker runs sampling passes over the stored summoners.
type Walker struct {
	fetcher  Fetcher
	store    Store
	rng      *rand.Rand
	cfg      WalkerConfig
	archiver Archiver
	notifier Notifier
	logger   *log.Entry
}

// WalkerOption configures a Walker
type WalkerOption func(*Walker)

// WithArchiver archives every newly stored match detail
func WithArchiver(a Archiver) WalkerOption {
	return func(w *Walker) {
		w.archiver = a
	}
}

// WithNotifier reports each finished pass
func WithNotifier(n Notifier) WalkerOption {
	return func(w *Walker) {
		w.notifier = n
	}
}

// WithWalkerLogger sets the logger
func WithWalkerLogger(l *log.Entry) WalkerOption {
	return func(w *Walker) {
		w.logger = l
	}
}

// NewWalker creates a walker. rng drives every sampling decision, so a
// fixed seed over the same store and API answers repeats a pass exactly.
func NewWalker(fetcher Fetcher, s Store, rng *rand.Rand, cfg WalkerConfig, opts ...WalkerOption) *Walker {
	if cfg.MinSeason == 0 {
		cfg.MinSeason = MinSeason
	}
	w := &Walker{
		fetcher: fetcher,
		store:   s,
		rng:     rng,
		cfg:     cfg,
		logger:  log.WithField("component", "walker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run performs one pass. Per-summoner and per-match failures are logged and
// skipped. The pass stops early on cancellation or when the API key is
// rejected, returning the stats gathered so far with the error.
func (w *Walker) Run(ctx context.Context) (PassStats, error) {
	stats := PassStats{PassID: uuid.NewString(), StartedAt: time.Now()}
	logger := w.logger.WithField("pass", stats.PassID)

	n, err := w.store.CountSummoners(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count summoners: %w", err)
	}
	stats.Population = n
	if n == 0 {
		logger.Warn("no summoners stored, nothing to sample (load a seed file first)")
		stats.Duration = time.Since(stats.StartedAt)
		return stats, nil
	}

	stats.Probability = float64(w.cfg.SummonerSample) / float64(n)
	if stats.Probability > 1 {
		stats.Probability = 1
	}

	accountIDs, err := w.store.SampleSummonerAccountIDs(ctx, stats.Probability, w.rng)
	if err != nil {
		return stats, fmt.Errorf("failed to sample summoners: %w", err)
	}
	stats.SummonersSampled = len(accountIDs)

	logger.WithFields(log.Fields{
		"population":  n,
		"probability": stats.Probability,
		"sampled":     len(accountIDs),
	}).Info("starting pass")

	estimate := uint(len(accountIDs) * (w.cfg.MatchSample + 1))
	if estimate < 1000 {
		estimate = 1000
	}
	seen := bloom.NewWithEstimates(estimate, 0.001)

	for i, accountID := range accountIDs {
		if err := ctx.Err(); err != nil {
			return w.finish(stats), err
		}
		if i > 0 && i%progressEvery == 0 {
			logger.WithFields(log.Fields{
				"summoners": i,
				"of":        len(accountIDs),
				"stored":    stats.MatchesStored,
				"skipped":   stats.SummonersSkipped,
				"failed":    stats.MatchesFailed,
				"elapsed":   formatDuration(time.Since(stats.StartedAt)),
			}).Info("progress")
		}

		if err := w.walkSummoner(ctx, logger, accountID, seen, &stats); err != nil {
			return w.finish(stats), err
		}
	}

	stats = w.finish(stats)
	logger.WithFields(log.Fields{
		"sampled":        stats.SummonersSampled,
		"skipped":        stats.SummonersSkipped,
		"no_recent":      stats.SummonersNoRecent,
		"matches":        stats.MatchesSampled,
		"stored":         stats.MatchesStored,
		"existing":       stats.MatchesExisting,
		"wrong_map":      stats.MatchesWrongMap,
		"failed":         stats.MatchesFailed,
		"duplicates":     stats.MatchesDuplicate,
		"new_summoners":  stats.SummonersDiscovered,
		"anonymous":      stats.SummonersAnonymous,
		"participations": stats.ParticipationsStored,
		"duration":       formatDuration(stats.Duration),
	}).Info("pass complete")

	if w.notifier != nil {
		if err := w.notifier.PassComplete(ctx, stats); err != nil {
			logger.WithError(err).Warn("failed to send pass notification")
		}
	}
	return stats, nil
}

func (w *Walker) finish(stats PassStats) PassStats {
	stats.Duration = time.Since(stats.StartedAt)
	return stats
}

// abortErr reports whether err should end the pass rather than skip a unit.
func abortErr(ctx context.Context, err error) error {
	if riot.IsKeyError(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	return nil
}

func (w *Walker) walkSummoner(ctx context.Context, logger *log.Entry, accountID int64, seen *bloom.BloomFilter, stats *PassStats) error {
	refs, err := w.fetcher.FetchMatchHistory(ctx, accountID)
	if err != nil {
		if abort := abortErr(ctx, err); abort != nil {
			return abort
		}
		stats.SummonersSkipped++
		logger.WithFields(log.Fields{
			"account_id": accountID,
			"status":     riot.StatusCode(err),
		}).WithError(err).Warn("skipping summoner, match history unavailable")
		return nil
	}

	recent := FilterSeason(refs, w.cfg.MinSeason)
	if len(recent) == 0 {
		stats.SummonersNoRecent++
		return nil
	}

	keep := MatchProbability(w.cfg.MatchSample, len(recent))
	for _, ref := range recent {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.rng.Float64() >= keep {
			continue
		}
		stats.MatchesSampled++

		if seen.TestAndAddString(strconv.FormatInt(ref.GameID, 10)) {
			stats.MatchesDuplicate++
			continue
		}

		if err := w.ingestMatch(ctx, logger, ref.GameID, stats); err != nil {
			return err
		}
	}
	return nil
}

// ingestMatch fetches one match and writes summoners, the match row and its
// participations, in that order. Once the detail is fetched the writes run
// to completion even if ctx is cancelled.
func (w *Walker) ingestMatch(ctx context.Context, logger *log.Entry, matchID int64, stats *PassStats) error {
	mlog := logger.WithField("match_id", matchID)

	detail, err := w.fetcher.FetchMatchDetail(ctx, matchID)
	if err != nil {
		if abort := abortErr(ctx, err); abort != nil {
			return abort
		}
		stats.MatchesFailed++
		mlog.WithField("status", riot.StatusCode(err)).WithError(err).Warn("skipping match, detail unavailable")
		return nil
	}

	if detail.MapID != SummonersRiftMapID {
		stats.MatchesWrongMap++
		return nil
	}

	match, err := DeriveMatch(detail)
	if err != nil {
		stats.MatchesFailed++
		mlog.WithError(err).Warn("skipping malformed match")
		return nil
	}

	wctx, cancel := writeContext(ctx)
	defer cancel()

	summoners, anonymous := DeriveSummoners(detail)
	if anonymous > 0 {
		stats.SummonersAnonymous += anonymous
		mlog.WithField("anonymous", anonymous).Info("participant identities without an account id")
	}
	for _, s := range summoners {
		inserted, err := w.store.UpsertSummoner(wctx, s)
		if err != nil {
			stats.StoreErrors++
			mlog.WithError(err).Error("failed to store summoner")
			continue
		}
		if inserted {
			stats.SummonersDiscovered++
		}
	}

	inserted, err := w.store.UpsertMatch(wctx, match)
	if err != nil {
		stats.StoreErrors++
		mlog.WithError(err).Error("failed to store match")
		return nil
	}
	if inserted {
		stats.MatchesStored++
	} else {
		stats.MatchesExisting++
	}

	rows, unaligned := DeriveParticipations(detail)
	if unaligned > 0 {
		stats.Unaligned += unaligned
		mlog.WithField("unaligned", unaligned).Warn("participant identities without a participant")
	}
	for _, p := range rows {
		ok, err := w.store.UpsertParticipation(wctx, p)
		if err != nil {
			stats.StoreErrors++
			mlog.WithField("summoner_id", p.SummonerID).WithError(err).Error("failed to store participation")
			continue
		}
		if ok {
			stats.ParticipationsStored++
		}
	}

	if inserted && w.archiver != nil {
		if err := w.archiver.WriteMatch(detail); err != nil {
			mlog.WithError(err).Warn("failed to archive match")
		}
	}
	return nil
}
