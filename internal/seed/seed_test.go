package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"league-crawler/internal/logging"
	"league-crawler/internal/store"
)

func TestParseAccountID(t *testing.T) {
	tests := []struct {
		uri     string
		want    int64
		wantErr bool
	}{
		{"/v1/stats/player_history/NA1/12345", 12345, false},
		{"/v1/stats/player_history/NA/67890", 67890, false},
		{"/v1/stats/player_history/NA1/", 0, true},
		{"/v1/stats/player_history/NA/", 0, true},
		{"/v1/stats/player_history/EUW1/12345", 0, true},
		{"/v1/stats/player_history/NA1/12a45", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseAccountID(tt.uri)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const snapshot = `{"matches":[
  {"matchCreation": 1500000000000, "participantIdentities": [
    {"participantId": 1, "player": {"summonerId": 11, "summonerName": "Alpha", "matchHistoryUri": "/v1/stats/player_history/NA1/111"}},
    {"participantId": 2, "player": {"summonerId": 12, "summonerName": "Bravo", "matchHistoryUri": "/v1/stats/player_history/NA/112"}},
    {"participantId": 3, "player": {"summonerId": 13, "summonerName": "Korean", "matchHistoryUri": "/v1/stats/player_history/KR/113"}}
  ]},
  {"gameCreation": 1500000099999, "participantIdentities": [
    {"participantId": 1, "player": {"summonerId": 11, "summonerName": "Alpha again", "matchHistoryUri": "/v1/stats/player_history/NA1/111"}},
    {"participantId": 2, "player": {"summonerId": 14, "summonerName": "Delta", "matchHistoryUri": "/v1/stats/player_history/NA1/114"}}
  ]}
]}`

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	loader := NewLoader(s, logging.Discard())

	res, err := loader.Load(ctx, strings.NewReader(snapshot))
	require.NoError(t, err)
	assert.Equal(t, Result{Matches: 2, Participants: 5, Upserted: 3, Skipped: 1}, res)

	n, err := s.CountSummoners(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	alpha, err := s.GetSummoner(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", alpha.Name, "first write wins")
	assert.Equal(t, int64(11), alpha.SummonerID)
	require.NotNil(t, alpha.RevisionDate)
	assert.Equal(t, int64(1500000000000), *alpha.RevisionDate)

	delta, err := s.GetSummoner(ctx, 114)
	require.NoError(t, err)
	assert.Equal(t, int64(1500000099999), *delta.RevisionDate, "gameCreation fallback")

	// loading twice inserts nothing new
	res, err = loader.Load(ctx, strings.NewReader(snapshot))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Upserted)
}

func TestLoader_LogsSkippedIdentity(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(log.InfoLevel)

	res, err := NewLoader(newStore(t), log.NewEntry(logger)).Load(context.Background(), strings.NewReader(snapshot))
	require.NoError(t, err)
	require.Equal(t, 1, res.Skipped)

	var skipped []*log.Entry
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "skipping identity") {
			skipped = append(skipped, e)
		}
	}
	require.Len(t, skipped, 1)
	assert.Equal(t, log.WarnLevel, skipped[0].Level)
	assert.Contains(t, skipped[0].Data, "uri")
}

func TestLoader_Malformed(t *testing.T) {
	loader := NewLoader(newStore(t), logging.Discard())
	_, err := loader.Load(context.Background(), strings.NewReader(`{"matches": [`))
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestLoader_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches1.json")
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o644))

	loader := NewLoader(newStore(t), logging.Discard())
	res, err := loader.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Upserted)

	_, err = loader.LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) UpsertSummoner(ctx context.Context, s store.Summoner) (bool, error) {
	return false, errors.New("disk full")
}

func TestLoader_StoreErrorAborts(t *testing.T) {
	loader := NewLoader(failingWriter{}, logging.Discard())
	res, err := loader.Load(context.Background(), strings.NewReader(snapshot))
	assert.Error(t, err)
	assert.Equal(t, 1, res.Participants)
}

func TestLoader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewLoader(newStore(t), logging.Discard())
	_, err := loader.Load(ctx, strings.NewReader(snapshot))
	assert.ErrorIs(t, err, context.Canceled)
}
