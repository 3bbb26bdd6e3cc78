//go:build e2e

package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"league-crawler/internal/discord"
	"league-crawler/internal/logging"
	"league-crawler/internal/riot"
	"league-crawler/internal/seed"
	"league-crawler/internal/store"
)

const (
	initialKey = "RGAPI-00000000-0000-0000-0000-000000000001"
	renewedKey = "RGAPI-00000000-0000-0000-0000-000000000002"
	badKey     = "RGAPI-00000000-0000-0000-0000-00000000dead"
)

// fakeRiot serves match histories and details for a fixed set of games and
// accepts one API key at a time.
type fakeRiot struct {
	mu           sync.Mutex
	acceptedKey  string
	histories    map[int64][]riot.MatchReference
	details      map[int64]*riot.MatchDetail
	requests     map[string]int // data requests by api key
	validations  map[string]int // status requests by api key
	historyCalls int

	// expireOnHistory switches the accepted key to renewedKey when the
	// n-th history request arrives (0 disables).
	expireOnHistory int

	// blockDetails holds detail requests until the client gives up.
	blockDetails bool
	detailSeen   chan struct{}
	detailOnce   sync.Once
}

func newFakeRiot() *fakeRiot {
	f := &fakeRiot{
		acceptedKey: initialKey,
		histories:   make(map[int64][]riot.MatchReference),
		details:     make(map[int64]*riot.MatchDetail),
		requests:    make(map[string]int),
		validations: make(map[string]int),
		detailSeen:  make(chan struct{}),
	}

	// Three seeded accounts; each played two of three shared games.
	games := map[int64][]int64{1: {100, 101}, 2: {101, 102}, 3: {100, 102}}
	for account, ids := range games {
		for _, id := range ids {
			f.histories[account] = append(f.histories[account], riot.MatchReference{GameID: id, Season: 8, Queue: 420})
		}
		// an old-season game that must never be fetched
		f.histories[account] = append(f.histories[account], riot.MatchReference{GameID: 50, Season: 5})
	}
	for _, id := range []int64{100, 101, 102, 999} {
		f.details[id] = gameDetail(id)
	}
	return f
}

func (f *fakeRiot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("api_key")
	path := r.URL.Path

	f.mu.Lock()
	if strings.HasPrefix(path, "/lol/status/") {
		f.validations[key]++
	} else {
		f.requests[key]++
	}
	if strings.Contains(path, "/matchlists/") {
		f.historyCalls++
		if f.expireOnHistory > 0 && f.historyCalls == f.expireOnHistory {
			f.acceptedKey = renewedKey
		}
	}
	accepted := key == f.acceptedKey
	f.mu.Unlock()

	if !accepted {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	switch {
	case strings.HasPrefix(path, "/lol/status/"):
		writeBody(w, map[string]string{"name": "North America"})

	case strings.Contains(path, "/matchlists/by-account/"):
		id, _ := strconv.ParseInt(path[strings.LastIndex(path, "/")+1:], 10, 64)
		refs, ok := f.histories[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeBody(w, riot.Matchlist{Matches: refs, TotalGames: len(refs)})

	case strings.Contains(path, "/matches/"):
		if f.blockDetails {
			f.detailOnce.Do(func() { close(f.detailSeen) })
			<-r.Context().Done()
			return
		}
		id, _ := strconv.ParseInt(path[strings.LastIndex(path, "/")+1:], 10, 64)
		m, ok := f.details[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeBody(w, m)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeRiot) requestsWith(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[key]
}

func (f *fakeRiot) validationsWith(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validations[key]
}

func writeBody(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// gameDetail builds a ranked Summoner's Rift game whose participants have
// account ids gameID*10 .. gameID*10+9.
func gameDetail(gameID int64) *riot.MatchDetail {
	m := &riot.MatchDetail{
		GameID:      gameID,
		MapID:       11,
		SeasonID:    8,
		GameVersion: "8.24.1",
		Teams: []riot.TeamStats{
			{TeamID: 100, Win: "Fail", FirstBlood: true, TowerKills: 4},
			{TeamID: 200, Win: "Win", FirstDragon: true, FirstTower: true, TowerKills: 9, DragonKills: 3},
		},
	}
	for i := 0; i < 10; i++ {
		team := 100
		if i >= 5 {
			team = 200
		}
		pid := i + 1
		account := gameID*10 + int64(i)
		m.Participants = append(m.Participants, riot.Participant{
			ParticipantID:             pid,
			TeamID:                    team,
			ChampionID:                i + 1,
			HighestAchievedSeasonTier: "PLATINUM",
			Timeline:                  riot.ParticipantTimeline{Lane: "MIDDLE", Role: "SOLO"},
		})
		m.ParticipantIdentities = append(m.ParticipantIdentities, riot.ParticipantIdentity{
			ParticipantID: pid,
			Player: riot.Player{
				AccountID:    account,
				SummonerID:   account * 7,
				SummonerName: fmt.Sprintf("player%d", account),
			},
		})
	}
	return m
}

// fakeChannel is a Discord channel whose messages carry the queued keys. Each
// poll hands out the next key, stamped with the current time.
type fakeChannel struct {
	mu     sync.Mutex
	keys   []string
	polls  int
	posted []string
}

func (c *fakeChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.Method == http.MethodPost {
		var payload discord.WebhookPayload
		json.NewDecoder(r.Body).Decode(&payload)
		title := payload.Content
		if len(payload.Embeds) > 0 {
			title = payload.Embeds[0].Title
		}
		c.posted = append(c.posted, title)
		w.WriteHeader(http.StatusOK)
		return
	}

	var messages []discord.DiscordMessage
	if len(c.keys) > 0 {
		i := c.polls
		if i >= len(c.keys) {
			i = len(c.keys) - 1
		}
		messages = append(messages, discord.DiscordMessage{
			ID:        strconv.Itoa(c.polls),
			Content:   "new key: " + c.keys[i],
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
	c.polls++
	writeBody(w, messages)
}

func (c *fakeChannel) postedTitles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.posted...)
}

type harness struct {
	api     *fakeRiot
	channel *fakeChannel
	apiURL  string
	chanURL string
	client  *riot.Client
	store   store.Store
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	h := &harness{api: newFakeRiot(), channel: &fakeChannel{}, dir: t.TempDir()}

	apiSrv := httptest.NewServer(h.api)
	t.Cleanup(apiSrv.Close)
	chanSrv := httptest.NewServer(h.channel)
	t.Cleanup(chanSrv.Close)
	h.apiURL, h.chanURL = apiSrv.URL, chanSrv.URL

	limiter, err := riot.NewLimiter(1000)
	require.NoError(t, err)
	h.client, err = riot.NewClient(initialKey, riot.RegionNA1,
		riot.WithClientBaseURL(apiSrv.URL),
		riot.WithLimiter(limiter),
		riot.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)

	h.store, err = store.Open(ctx, filepath.Join(h.dir, "crawl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.store.Close() })

	h.seed(t)
	return h
}

// seed loads accounts 1-3 through the snapshot loader.
func (h *harness) seed(t *testing.T) {
	t.Helper()

	var snap seed.Snapshot
	match := seed.SnapshotMatch{MatchCreation: 1500000000000}
	for i := 1; i <= 3; i++ {
		match.ParticipantIdentities = append(match.ParticipantIdentities, seed.SnapshotIdentity{
			ParticipantID: i,
			Player: seed.SnapshotPlayer{
				SummonerID:      int64(i * 10),
				SummonerName:    fmt.Sprintf("seed%d", i),
				MatchHistoryURI: fmt.Sprintf("/v1/stats/player_history/NA1/%d", i),
			},
		})
	}
	snap.Matches = append(snap.Matches, match)

	path := filepath.Join(h.dir, "matches1.json")
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	res, err := seed.NewLoader(h.store, logging.Discard()).LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 3, res.Upserted)
}

func (h *harness) keyFinder() *discord.KeyFinder {
	return discord.NewKeyFinder("bot-token", "channel",
		discord.WithDiscordBaseURL(h.chanURL),
		discord.WithPollInterval(20*time.Millisecond),
	)
}

func (h *harness) keyValidator() *riot.KeyValidator {
	return riot.NewKeyValidator(riot.RegionNA1, riot.WithBaseURL(h.apiURL))
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out: %s", msg)
}
