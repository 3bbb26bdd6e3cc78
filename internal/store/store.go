// Package store persists summoners, matches and participations in Postgres,
// SQLite or libsql. Every write is insert-if-absent.
package store

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

// Store is the full read/write surface shared by both backends.
type Store interface {
	UpsertSummoner(ctx context.Context, s Summoner) (bool, error)
	UpsertMatch(ctx context.Context, m Match) (bool, error)
	UpsertParticipation(ctx context.Context, p Participation) (bool, error)

	CountSummoners(ctx context.Context) (int, error)
	SampleSummonerAccountIDs(ctx context.Context, p float64, rng *rand.Rand) ([]int64, error)
	PageMatches(ctx context.Context, offset, limit int) ([]int64, error)
	CountParticipationRows(ctx context.Context, matchID int64) (int, error)
	GetParticipationSummonerIDs(ctx context.Context, matchID int64) ([]int64, error)

	GetSummoner(ctx context.Context, accountID int64) (*Summoner, error)
	GetStats(ctx context.Context) (Stats, error)
	RecentMatches(ctx context.Context, limit int) ([]Match, error)
	GetMatch(ctx context.Context, matchID int64) (*Match, error)
	GetParticipations(ctx context.Context, matchID int64) ([]Participation, error)
	ListMatchTiers(ctx context.Context) ([]MatchTiers, error)

	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int64, error)
	Close() error
}

// Open connects to the database named by url and applies pending migrations.
//
//	postgres://... or postgresql://...   Postgres via pgx
//	libsql://... or https://...          Turso/libsql
//	sqlite://path, file:path, path       local SQLite file (":memory:" for tests)
func Open(ctx context.Context, url string) (Store, error) {
	s, err := open(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenNoMigrate connects without touching the schema.
func OpenNoMigrate(ctx context.Context, url string) (Store, error) {
	return open(ctx, url)
}

func open(ctx context.Context, url string) (Store, error) {
	switch {
	case url == "":
		return nil, fmt.Errorf("database url is empty")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgresStore(ctx, url)
	case strings.HasPrefix(url, "libsql://"), strings.HasPrefix(url, "https://"):
		return NewLibSQLStore(ctx, url)
	default:
		return NewSQLiteStore(ctx, strings.TrimPrefix(url, "sqlite://"))
	}
}
