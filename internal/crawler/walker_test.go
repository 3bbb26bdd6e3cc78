package crawler

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"league-crawler/internal/riot"
	"league-crawler/internal/store"
)

func newTestWalker(f Fetcher, s Store, seed int64, opts ...WalkerOption) *Walker {
	opts = append([]WalkerOption{WithWalkerLogger(quietLogger())}, opts...)
	return NewWalker(f, s, rand.New(rand.NewSource(seed)), WalkerConfig{SummonerSample: 100, MatchSample: 5}, opts...)
}

func TestWalker_EmptyStore(t *testing.T) {
	s := newTestStore(t)
	f := newFakeFetcher()

	stats, err := newTestWalker(f, s, 1).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Population)
	assert.Empty(t, f.historyCalls)
}

func TestWalker_StoresCompleteMatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSummoners(t, s, 2)

	f := newFakeFetcher()
	f.histories[2] = []riot.MatchReference{{GameID: 1000, Season: 8}}
	f.details[1000] = makeDetail(1000, SummonersRiftMapID, 1)

	notifier := &recordingNotifier{}
	archiver := &recordingArchiver{}
	w := newTestWalker(f, s, 1, WithNotifier(notifier), WithArchiver(archiver))

	stats, err := w.Run(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, stats.PassID)
	assert.Equal(t, 1, stats.Population)
	assert.Equal(t, 1.0, stats.Probability)
	assert.Equal(t, 1, stats.SummonersSampled)
	assert.Equal(t, 1, stats.MatchesSampled)
	assert.Equal(t, 1, stats.MatchesStored)
	assert.Equal(t, 9, stats.SummonersDiscovered)
	assert.Equal(t, ParticipantsPerMatch, stats.ParticipationsStored)

	count, err := s.CountParticipationRows(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, ParticipantsPerMatch, count)

	n, err := s.CountSummoners(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	// Existing summoner is not overwritten by the match identity.
	sm, err := s.GetSummoner(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "seed2", sm.Name)

	assert.Equal(t, []int64{1000}, archiver.written)
	require.Len(t, notifier.passes, 1)
	assert.Equal(t, stats.PassID, notifier.passes[0].PassID)
}

func TestWalker_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSummoners(t, s, 2)

	f := newFakeFetcher()
	f.histories[2] = []riot.MatchReference{{GameID: 1000, Season: 8}}
	f.details[1000] = makeDetail(1000, SummonersRiftMapID, 1)
	archiver := &recordingArchiver{}

	_, err := newTestWalker(f, s, 1, WithArchiver(archiver)).Run(ctx)
	require.NoError(t, err)

	stats, err := newTestWalker(f, s, 2, WithArchiver(archiver)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Population)
	assert.Zero(t, stats.MatchesStored)
	assert.Equal(t, 1, stats.MatchesExisting)
	assert.Zero(t, stats.SummonersDiscovered)
	assert.Zero(t, stats.ParticipationsStored)
	// Nine sampled summoners have no history in the fake.
	assert.Equal(t, 9, stats.SummonersSkipped)

	count, err := s.CountParticipationRows(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, ParticipantsPerMatch, count)

	n, err := s.CountSummoners(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	assert.Len(t, archiver.written, 1, "existing match must not be archived again")
}

func TestWalker_SeasonFilter(t *testing.T) {
	s := newTestStore(t)
	seedSummoners(t, s, 2)

	f := newFakeFetcher()
	f.histories[2] = []riot.MatchReference{{GameID: 1000, Season: 5}, {GameID: 1001, Season: 4}}

	stats, err := newTestWalker(f, s, 1).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SummonersNoRecent)
	assert.Zero(t, stats.MatchesSampled)
	assert.Empty(t, f.detailCalls)
}

func TestWalker_MapFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSummoners(t, s, 2)

	f := newFakeFetcher()
	f.histories[2] = []riot.MatchReference{{GameID: 1000, Season: 8}}
	f.details[1000] = makeDetail(1000, 12, 1)

	stats, err := newTestWalker(f, s, 1).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MatchesWrongMap)
	assert.Zero(t, stats.MatchesStored)

	ids, err := s.PageMatches(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	count, err := s.CountParticipationRows(ctx, 1000)
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err := s.CountSummoners(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWalker_SkipsFailedUnits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSummoners(t, s, 2, 3, 4)

	f := newFakeFetcher()
	f.errs[2] = &riot.RemoteError{StatusCode: 500}
	f.errs[3] = &riot.TransportError{URL: "http://example", Err: errors.New("connection reset")}
	f.histories[4] = []riot.MatchReference{{GameID: 1000, Season: 8}, {GameID: 1001, Season: 8}}
	f.errs[1000] = &riot.RemoteError{StatusCode: 404}
	f.details[1001] = makeDetail(1001, SummonersRiftMapID, 100)

	stats, err := newTestWalker(f, s, 1).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.SummonersSampled)
	assert.Equal(t, 2, stats.SummonersSkipped)
	assert.Equal(t, 1, stats.MatchesFailed)
	assert.Equal(t, 1, stats.MatchesStored)

	count, err := s.CountParticipationRows(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, ParticipantsPerMatch, count)
}

func TestWalker_AbortsOnKeyError(t *testing.T) {
	s := newTestStore(t)
	seedSummoners(t, s, 2, 3)

	f := newFakeFetcher()
	f.errs[2] = &riot.RemoteError{StatusCode: 403}
	f.histories[3] = []riot.MatchReference{{GameID: 1000, Season: 8}}

	notifier := &recordingNotifier{}
	_, err := newTestWalker(f, s, 1, WithNotifier(notifier)).Run(context.Background())
	require.Error(t, err)
	assert.True(t, riot.IsKeyError(err))
	assert.Equal(t, []int64{2}, f.historyCalls)
	assert.Empty(t, notifier.passes)
}

func TestWalker_DeduplicatesWithinPass(t *testing.T) {
	s := newTestStore(t)
	seedSummoners(t, s, 2, 3)

	f := newFakeFetcher()
	f.histories[2] = []riot.MatchReference{{GameID: 1000, Season: 8}}
	f.histories[3] = []riot.MatchReference{{GameID: 1000, Season: 8}}
	f.details[1000] = makeDetail(1000, SummonersRiftMapID, 1)

	stats, err := newTestWalker(f, s, 1).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MatchesSampled)
	assert.Equal(t, 1, stats.MatchesDuplicate)
	assert.Equal(t, []int64{1000}, f.detailCalls)
}

func TestWalker_Cancellation(t *testing.T) {
	s := newTestStore(t)
	seedSummoners(t, s, 2, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFakeFetcher()
	f.histories[2] = []riot.MatchReference{{GameID: 1000, Season: 8}}
	f.histories[3] = []riot.MatchReference{{GameID: 1001, Season: 8}}
	f.onHistory = func(int64) { cancel() }

	_, err := newTestWalker(f, s, 1).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{2}, f.historyCalls)
	assert.Empty(t, f.detailCalls)
}

func TestWalker_SamplingIsReproducible(t *testing.T) {
	ids := make([]int64, 0, 50)
	for i := int64(1); i <= 50; i++ {
		ids = append(ids, i)
	}

	run := func(seed int64) ([]int64, PassStats) {
		s := newTestStore(t)
		seedSummoners(t, s, ids...)
		f := newFakeFetcher()
		w := NewWalker(f, s, rand.New(rand.NewSource(seed)), WalkerConfig{SummonerSample: 10, MatchSample: 5},
			WithWalkerLogger(quietLogger()))
		stats, err := w.Run(context.Background())
		require.NoError(t, err)
		return f.historyCalls, stats
	}

	first, stats := run(42)
	second, _ := run(42)
	assert.Equal(t, first, second)
	assert.Equal(t, 0.2, stats.Probability)
	assert.Equal(t, len(first), stats.SummonersSampled)
	assert.Less(t, len(first), 50)
}

func TestWalker_LogsSkippedMatch(t *testing.T) {
	s := newTestStore(t)
	seedSummoners(t, s, 1)

	f := newFakeFetcher()
	f.histories[1] = []riot.MatchReference{{GameID: 1000, Season: 8}}

	logger, hook := logtest.NewNullLogger()
	w := NewWalker(f, s, rand.New(rand.NewSource(1)), WalkerConfig{SummonerSample: 10, MatchSample: 5},
		WithWalkerLogger(log.NewEntry(logger)))

	stats, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MatchesFailed)

	var skipped *log.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "skipping match, detail unavailable" {
			skipped = e
		}
	}
	require.NotNil(t, skipped)
	assert.Equal(t, log.WarnLevel, skipped.Level)
	assert.Equal(t, int64(1000), skipped.Data["match_id"])
	assert.Equal(t, 404, skipped.Data["status"])
	assert.Equal(t, stats.PassID, skipped.Data["pass"])
}

// cancelAfterMatch cancels the pass as soon as a match row is written
type cancelAfterMatch struct {
	Store
	cancel context.CancelFunc
}

func (s *cancelAfterMatch) UpsertMatch(ctx context.Context, m store.Match) (bool, error) {
	inserted, err := s.Store.UpsertMatch(ctx, m)
	s.cancel()
	return inserted, err
}

func TestWalker_CancelKeepsMatchWhole(t *testing.T) {
	s := newTestStore(t)
	seedSummoners(t, s, 2)

	f := newFakeFetcher()
	f.histories[2] = []riot.MatchReference{{GameID: 1000, Season: 8}, {GameID: 1001, Season: 8}}
	f.details[1000] = makeDetail(1000, SummonersRiftMapID, 1)
	f.details[1001] = makeDetail(1001, SummonersRiftMapID, 20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats, err := newTestWalker(f, &cancelAfterMatch{Store: s, cancel: cancel}, 1).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.StoreErrors)
	assert.Equal(t, 1, stats.MatchesStored)
	assert.Equal(t, ParticipantsPerMatch, stats.ParticipationsStored)
	assert.Len(t, f.detailCalls, 1, "no detail fetched after cancellation")

	counts := map[int64]int{}
	for _, id := range []int64{1000, 1001} {
		n, err := s.CountParticipationRows(context.Background(), id)
		require.NoError(t, err)
		counts[id] = n
	}
	written := f.detailCalls[0]
	assert.Equal(t, ParticipantsPerMatch, counts[written])
	assert.Equal(t, ParticipantsPerMatch, counts[1000]+counts[1001])
}

func TestWalker_SkipsAnonymousIdentities(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSummoners(t, s, 2)

	d := makeDetail(1000, SummonersRiftMapID, 1)
	d.ParticipantIdentities[4].Player.AccountID = 0
	d.ParticipantIdentities[9].Player.AccountID = 0

	f := newFakeFetcher()
	f.histories[2] = []riot.MatchReference{{GameID: 1000, Season: 8}}
	f.details[1000] = d

	stats, err := newTestWalker(f, s, 1).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SummonersAnonymous)
	assert.Equal(t, 7, stats.SummonersDiscovered)

	_, err = s.GetSummoner(ctx, 0)
	assert.Error(t, err, "no summoner stored under account 0")
}

func TestWalker_SkippedSummonerVisibleAtInfo(t *testing.T) {
	s := newTestStore(t)
	seedSummoners(t, s, 1)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(log.InfoLevel)
	w := NewWalker(newFakeFetcher(), s, rand.New(rand.NewSource(1)), WalkerConfig{SummonerSample: 10, MatchSample: 5},
		WithWalkerLogger(log.NewEntry(logger)))

	stats, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SummonersSkipped)

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "skipping summoner, match history unavailable" {
			found = true
			assert.Equal(t, int64(1), e.Data["account_id"])
		}
	}
	assert.True(t, found, "summoner skip logged at info level or above")
}
