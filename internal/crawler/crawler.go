// Package crawler discovers matches by sampling known summoners and keeps
// the stored participation rows consistent with the API.
package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"league-crawler/internal/riot"
	"league-crawler/internal/store"
)

const (
	// MinSeason drops matches older than season 6
	MinSeason = 6
	// SummonersRiftMapID is the only map whose matches are stored
	SummonersRiftMapID = 11
	// ParticipantsPerMatch is the row count of a complete match
	ParticipantsPerMatch = 10

	progressEvery = 100

	// unitWriteTimeout bounds the writes of one fetched match
	unitWriteTimeout = 30 * time.Second
)

// writeContext keeps a unit's store writes running after ctx is cancelled,
// so a fetched match is never left half written. Callers check ctx between
// units.
func writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), unitWriteTimeout)
}

// Fetcher is the API surface the walker and auditor use.
type Fetcher interface {
	FetchMatchHistory(ctx context.Context, accountID int64) ([]riot.MatchReference, error)
	FetchMatchDetail(ctx context.Context, matchID int64) (*riot.MatchDetail, error)
}

// Store is the relational capability the crawler needs. Every Upsert is
// insert-if-absent and reports whether a row was created.
type Store interface {
	UpsertSummoner(ctx context.Context, s store.Summoner) (bool, error)
	UpsertMatch(ctx context.Context, m store.Match) (bool, error)
	UpsertParticipation(ctx context.Context, p store.Participation) (bool, error)
	CountSummoners(ctx context.Context) (int, error)
	SampleSummonerAccountIDs(ctx context.Context, p float64, rng *rand.Rand) ([]int64, error)
	PageMatches(ctx context.Context, offset, limit int) ([]int64, error)
	CountParticipationRows(ctx context.Context, matchID int64) (int, error)
	GetParticipationSummonerIDs(ctx context.Context, matchID int64) ([]int64, error)
}

// Archiver receives every newly stored match detail.
type Archiver interface {
	WriteMatch(m *riot.MatchDetail) error
}

// Notifier is told about pass results and failures.
type Notifier interface {
	PassComplete(ctx context.Context, stats PassStats) error
	AuditFailed(ctx context.Context, err *AuditError) error
	KeyExpired(ctx context.Context, totals Totals) error
	SessionStarted(ctx context.Context, apiKey string) error
}

// AuditError aborts an audit: the match at Offset could not be repaired.
type AuditError struct {
	MatchID int64
	Offset  int
	Err     error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("audit failed at offset %d (match %d): %v", e.Offset, e.MatchID, e.Err)
}

func (e *AuditError) Unwrap() error { return e.Err }

// InvariantViolation is a short match whose recorded participants already
// cover every participant of the fresh detail. It is logged and left alone.
type InvariantViolation struct {
	MatchID  int64
	Recorded int
	Expected int
}

func (v InvariantViolation) Error() string {
	return fmt.Sprintf("match %d has %d participation rows but the detail lists no missing participant (%d total)",
		v.MatchID, v.Recorded, v.Expected)
}

// formatDuration formats a duration as HH:MM:SS
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
