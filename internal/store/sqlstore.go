package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// SQLStore is a Store over database/sql for SQLite and libsql.
type SQLStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a local SQLite database. Writes are serialized on one
// connection, which also keeps ":memory:" databases alive between calls.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if path != ":memory:" {
		if err := optimizeSQLite(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &SQLStore{db: db}, nil
}

// NewLibSQLStore connects to a Turso/libsql database. An auth token may be
// carried in the URL as ?authToken=.
func NewLibSQLStore(ctx context.Context, url string) (*SQLStore, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libsql: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping libsql: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func optimizeSQLite(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"busy_timeout", "5000"},
		{"temp_store", "MEMORY"},
	}

	for _, pragma := range pragmas {
		query := fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to set PRAGMA %s: %w", pragma.name, err)
		}
		log.WithFields(log.Fields{
			"pragma": pragma.name,
			"value":  pragma.value,
		}).Debug("SQLite pragma set")
	}
	return nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle for custom queries
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func insertedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) UpsertSummoner(ctx context.Context, sm Summoner) (bool, error) {
	var revision interface{}
	if sm.RevisionDate != nil {
		revision = *sm.RevisionDate
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO summoners (account_id, summoner_id, name, revision_date)
		VALUES (?, ?, ?, ?)
	`, sm.AccountID, sm.SummonerID, sm.Name, revision)
	if err != nil {
		return false, fmt.Errorf("failed to insert summoner %d: %w", sm.AccountID, err)
	}
	return insertedOne(res)
}

func (s *SQLStore) UpsertMatch(ctx context.Context, m Match) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO matches (
			match_id, duration_seconds, season, game_version,
			first_dragon, first_baron, first_herald, first_inhibitor, first_tower, first_blood,
			team_a_dragons, team_a_barons, team_a_towers, team_a_inhibitors,
			team_b_dragons, team_b_barons, team_b_towers, team_b_inhibitors,
			winning_team
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.MatchID, m.DurationSeconds, m.Season, m.GameVersion,
		sideInt(m.FirstDragon), sideInt(m.FirstBaron), sideInt(m.FirstHerald),
		sideInt(m.FirstInhibitor), sideInt(m.FirstTower), sideInt(m.FirstBlood),
		m.TeamA.Dragons, m.TeamA.Barons, m.TeamA.Towers, m.TeamA.Inhibitors,
		m.TeamB.Dragons, m.TeamB.Barons, m.TeamB.Towers, m.TeamB.Inhibitors,
		sideInt(m.WinningTeam))
	if err != nil {
		return false, fmt.Errorf("failed to insert match %d: %w", m.MatchID, err)
	}
	return insertedOne(res)
}

func (s *SQLStore) UpsertParticipation(ctx context.Context, p Participation) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO participations (summoner_id, match_id, champion_id, team_id, lane, role, rank_tier)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.SummonerID, p.MatchID, p.ChampionID, p.TeamID, p.Lane, p.Role, p.RankTier)
	if err != nil {
		return false, fmt.Errorf("failed to insert participation %d/%d: %w", p.MatchID, p.SummonerID, err)
	}
	return insertedOne(res)
}

func (s *SQLStore) CountSummoners(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summoners`).Scan(&count)
	return count, err
}

// SampleSummonerAccountIDs walks every account in id order and keeps each with
// probability p.
func (s *SQLStore) SampleSummonerAccountIDs(ctx context.Context, p float64, rng *rand.Rand) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id FROM summoners ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summoners: %w", err)
	}
	defer rows.Close()

	var sampled []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if rng.Float64() < p {
			sampled = append(sampled, id)
		}
	}
	return sampled, rows.Err()
}

func (s *SQLStore) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) PageMatches(ctx context.Context, offset, limit int) ([]int64, error) {
	ids, err := s.queryIDs(ctx, `SELECT match_id FROM matches ORDER BY match_id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to page matches: %w", err)
	}
	return ids, nil
}

func (s *SQLStore) CountParticipationRows(ctx context.Context, matchID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participations WHERE match_id = ?`, matchID).Scan(&count)
	return count, err
}

func (s *SQLStore) GetParticipationSummonerIDs(ctx context.Context, matchID int64) ([]int64, error) {
	ids, err := s.queryIDs(ctx, `
		SELECT summoner_id FROM participations WHERE match_id = ? ORDER BY summoner_id
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations: %w", err)
	}
	return ids, nil
}

func (s *SQLStore) GetSummoner(ctx context.Context, accountID int64) (*Summoner, error) {
	var sm Summoner
	var revision sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, summoner_id, name, revision_date FROM summoners WHERE account_id = ?
	`, accountID).Scan(&sm.AccountID, &sm.SummonerID, &sm.Name, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summoner %d: %w", accountID, err)
	}
	if revision.Valid {
		sm.RevisionDate = &revision.Int64
	}
	return &sm, nil
}

func (s *SQLStore) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM summoners),
			(SELECT COUNT(*) FROM matches),
			(SELECT COUNT(*) FROM participations)
	`).Scan(&st.Summoners, &st.Matches, &st.Participations)
	return st, err
}

const sqlMatchColumns = `
	match_id, duration_seconds, season, game_version,
	first_dragon, first_baron, first_herald, first_inhibitor, first_tower, first_blood,
	team_a_dragons, team_a_barons, team_a_towers, team_a_inhibitors,
	team_b_dragons, team_b_barons, team_b_towers, team_b_inhibitors,
	winning_team`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLMatch(row rowScanner) (Match, error) {
	var m Match
	err := row.Scan(&m.MatchID, &m.DurationSeconds, &m.Season, &m.GameVersion,
		&m.FirstDragon, &m.FirstBaron, &m.FirstHerald, &m.FirstInhibitor, &m.FirstTower, &m.FirstBlood,
		&m.TeamA.Dragons, &m.TeamA.Barons, &m.TeamA.Towers, &m.TeamA.Inhibitors,
		&m.TeamB.Dragons, &m.TeamB.Barons, &m.TeamB.Towers, &m.TeamB.Inhibitors,
		&m.WinningTeam)
	return m, err
}

func (s *SQLStore) queryMatches(ctx context.Context, query string, args ...interface{}) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		m, err := scanSQLMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *SQLStore) RecentMatches(ctx context.Context, limit int) ([]Match, error) {
	return s.queryMatches(ctx, `SELECT `+sqlMatchColumns+` FROM matches ORDER BY match_id DESC LIMIT ?`, limit)
}

func (s *SQLStore) GetMatch(ctx context.Context, matchID int64) (*Match, error) {
	m, err := scanSQLMatch(s.db.QueryRowContext(ctx, `SELECT `+sqlMatchColumns+` FROM matches WHERE match_id = ?`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}
	return &m, nil
}

func (s *SQLStore) GetParticipations(ctx context.Context, matchID int64) ([]Participation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT summoner_id, match_id, champion_id, team_id, lane, role, rank_tier
		FROM participations WHERE match_id = ?
		ORDER BY team_id, summoner_id
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations: %w", err)
	}
	defer rows.Close()

	var out []Participation
	for rows.Next() {
		var p Participation
		if err := rows.Scan(&p.SummonerID, &p.MatchID, &p.ChampionID, &p.TeamID, &p.Lane, &p.Role, &p.RankTier); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListMatchTiers(ctx context.Context) ([]MatchTiers, error) {
	matches, err := s.queryMatches(ctx, `SELECT `+sqlMatchColumns+` FROM matches ORDER BY match_id`)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT match_id, rank_tier FROM participations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiers: %w", err)
	}
	defer rows.Close()

	tiers := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var tier string
		if err := rows.Scan(&id, &tier); err != nil {
			return nil, err
		}
		tiers[id] = append(tiers[id], tier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return joinTiers(matches, tiers), nil
}

// sideInt encodes a TeamSide for SQLite, which stores booleans as integers
func sideInt(s TeamSide) interface{} {
	switch s {
	case TeamA:
		return int64(0)
	case TeamB:
		return int64(1)
	default:
		return nil
	}
}
