// Package seed loads summoners from a published match snapshot file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"league-crawler/internal/store"
)

// ErrMalformedInput marks a snapshot or identity that cannot be parsed.
var ErrMalformedInput = errors.New("malformed seed input")

// Match history URI prefixes. Both are 28 characters long; the NA1 form
// has a slash before the account id, the NA form does not.
const (
	historyPrefixNA1 = "/v1/stats/player_history/NA1"
	historyPrefixNA  = "/v1/stats/player_history/NA/"
)

// SummonerWriter is the part of the store the loader needs.
type SummonerWriter interface {
	UpsertSummoner(ctx context.Context, s store.Summoner) (bool, error)
}

// Snapshot is the seed file layout.
type Snapshot struct {
	Matches []SnapshotMatch `json:"matches"`
}

type SnapshotMatch struct {
	MatchCreation         int64              `json:"matchCreation"`
	GameCreation          int64              `json:"gameCreation"`
	ParticipantIdentities []SnapshotIdentity `json:"participantIdentities"`
}

// CreatedAt prefers matchCreation and falls back to gameCreation.
func (m SnapshotMatch) CreatedAt() int64 {
	if m.MatchCreation != 0 {
		return m.MatchCreation
	}
	return m.GameCreation
}

type SnapshotIdentity struct {
	ParticipantID int            `json:"participantId"`
	Player        SnapshotPlayer `json:"player"`
}

type SnapshotPlayer struct {
	SummonerID      int64  `json:"summonerId"`
	SummonerName    string `json:"summonerName"`
	MatchHistoryURI string `json:"matchHistoryUri"`
}

// Result counts what a load did.
type Result struct {
	Matches      int
	Participants int
	Upserted     int // rows that did not exist before
	Skipped      int // identities with an unusable match history URI
}

// Loader writes one summoner per snapshot participant.
type Loader struct {
	store  SummonerWriter
	logger *log.Entry
}

// NewLoader creates a loader writing to s.
func NewLoader(s SummonerWriter, logger *log.Entry) *Loader {
	if logger == nil {
		logger = log.WithField("component", "seed")
	}
	return &Loader{store: s, logger: logger}
}

// LoadFile opens path and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return l.Load(ctx, f)
}

// Load decodes a snapshot and upserts its participants. Identities whose
// account id cannot be recovered are skipped; store failures abort the load.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Result, error) {
	var res Result

	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return res, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	for _, match := range snap.Matches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Matches++

		created := match.CreatedAt()
		for _, identity := range match.ParticipantIdentities {
			res.Participants++

			accountID, err := ParseAccountID(identity.Player.MatchHistoryURI)
			if err != nil {
				res.Skipped++
				l.logger.WithFields(log.Fields{
					"summoner_id": identity.Player.SummonerID,
					"uri":         identity.Player.MatchHistoryURI,
				}).Warn("skipping identity, no account id in match history uri")
				continue
			}

			revision := created
			inserted, err := l.store.UpsertSummoner(ctx, store.Summoner{
				AccountID:    accountID,
				SummonerID:   identity.Player.SummonerID,
				Name:         identity.Player.SummonerName,
				RevisionDate: &revision,
			})
			if err != nil {
				return res, err
			}
			if inserted {
				res.Upserted++
			}
		}
	}

	l.logger.WithFields(log.Fields{
		"matches":      res.Matches,
		"participants": res.Participants,
		"upserted":     res.Upserted,
		"skipped":      res.Skipped,
	}).Info("seed load complete")
	return res, nil
}

// ParseAccountID recovers the account id embedded in a match history URI.
func ParseAccountID(uri string) (int64, error) {
	var digits string
	switch {
	case strings.HasPrefix(uri, historyPrefixNA1):
		if len(uri) <= len(historyPrefixNA1)+1 {
			return 0, fmt.Errorf("%w: no account id in %q", ErrMalformedInput, uri)
		}
		digits = uri[len(historyPrefixNA1)+1:]
	case strings.HasPrefix(uri, historyPrefixNA):
		digits = uri[len(historyPrefixNA):]
	default:
		return 0, fmt.Errorf("%w: unrecognized match history uri %q", ErrMalformedInput, uri)
	}

	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad account id in %q", ErrMalformedInput, uri)
	}
	return id, nil
}
