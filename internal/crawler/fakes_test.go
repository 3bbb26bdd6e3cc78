package crawler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"league-crawler/internal/logging"
	"league-crawler/internal/riot"
	"league-crawler/internal/store"
)

// fakeFetcher serves canned histories and details
type fakeFetcher struct {
	mu        sync.Mutex
	histories map[int64][]riot.MatchReference
	details   map[int64]*riot.MatchDetail
	errs      map[int64]error // keyed by account id or match id
	onHistory func(accountID int64)

	historyCalls []int64
	detailCalls  []int64
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		histories: make(map[int64][]riot.MatchReference),
		details:   make(map[int64]*riot.MatchDetail),
		errs:      make(map[int64]error),
	}
}

func (f *fakeFetcher) FetchMatchHistory(ctx context.Context, accountID int64) ([]riot.MatchReference, error) {
	f.mu.Lock()
	f.historyCalls = append(f.historyCalls, accountID)
	hook := f.onHistory
	err := f.errs[accountID]
	refs, ok := f.histories[accountID]
	f.mu.Unlock()

	if hook != nil {
		hook(accountID)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &riot.RemoteError{StatusCode: 404, URL: fmt.Sprintf("/matchlists/%d", accountID)}
	}
	return refs, nil
}

func (f *fakeFetcher) FetchMatchDetail(ctx context.Context, matchID int64) (*riot.MatchDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls = append(f.detailCalls, matchID)
	if err := f.errs[matchID]; err != nil {
		return nil, err
	}
	d, ok := f.details[matchID]
	if !ok {
		return nil, &riot.RemoteError{StatusCode: 404, URL: fmt.Sprintf("/matches/%d", matchID)}
	}
	return d, nil
}

// makeDetail builds a ten player match. Participant i has account
// accountBase+i and summoner id accountBase*10+i.
func makeDetail(gameID int64, mapID int, accountBase int64) *riot.MatchDetail {
	d := &riot.MatchDetail{
		GameID:       gameID,
		MapID:        mapID,
		SeasonID:     11,
		GameDuration: 1800,
		GameVersion:  "8.14.235.5561",
		Teams: []riot.TeamStats{
			{TeamID: 100, Win: "Fail", FirstBlood: true, DragonKills: 1, TowerKills: 3},
			{TeamID: 200, Win: "Win", FirstDragon: true, FirstTower: true, DragonKills: 3, TowerKills: 9, BaronKills: 1},
		},
	}
	for i := 1; i <= ParticipantsPerMatch; i++ {
		team := 100
		if i > 5 {
			team = 200
		}
		d.Participants = append(d.Participants, riot.Participant{
			ParticipantID:             i,
			TeamID:                    team,
			ChampionID:                i * 7,
			HighestAchievedSeasonTier: "GOLD",
			Timeline:                  riot.ParticipantTimeline{Lane: "MIDDLE", Role: "SOLO"},
		})
		d.ParticipantIdentities = append(d.ParticipantIdentities, riot.ParticipantIdentity{
			ParticipantID: i,
			Player: riot.Player{
				AccountID:    accountBase + int64(i),
				SummonerID:   accountBase*10 + int64(i),
				SummonerName: fmt.Sprintf("player%d", accountBase+int64(i)),
			},
		})
	}
	return d
}

// recordingNotifier captures notifications
type recordingNotifier struct {
	mu       sync.Mutex
	passes   []PassStats
	audits   []*AuditError
	expired  int
	sessions []string
}

func (n *recordingNotifier) PassComplete(ctx context.Context, stats PassStats) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.passes = append(n.passes, stats)
	return nil
}

func (n *recordingNotifier) AuditFailed(ctx context.Context, err *AuditError) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.audits = append(n.audits, err)
	return nil
}

func (n *recordingNotifier) KeyExpired(ctx context.Context, totals Totals) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired++
	return nil
}

func (n *recordingNotifier) SessionStarted(ctx context.Context, apiKey string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sessions = append(n.sessions, apiKey)
	return nil
}

type recordingArchiver struct {
	written []int64
}

func (a *recordingArchiver) WriteMatch(m *riot.MatchDetail) error {
	a.written = append(a.written, m.GameID)
	return nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSummoners(t *testing.T, s store.Store, accountIDs ...int64) {
	t.Helper()
	for _, id := range accountIDs {
		_, err := s.UpsertSummoner(context.Background(), store.Summoner{AccountID: id, SummonerID: id * 10, Name: fmt.Sprintf("seed%d", id)})
		require.NoError(t, err)
	}
}

func quietLogger() *log.Entry {
	return logging.Discard()
}
