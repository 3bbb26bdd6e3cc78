package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	url  string
}

// NewPostgresStore creates a pool and checks the connection.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, url: url}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Pool returns the underlying connection pool for custom queries
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) UpsertSummoner(ctx context.Context, sm Summoner) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO summoners (account_id, summoner_id, name, revision_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO NOTHING
	`, sm.AccountID, sm.SummonerID, sm.Name, sm.RevisionDate)
	if err != nil {
		return false, fmt.Errorf("failed to insert summoner %d: %w", sm.AccountID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) UpsertMatch(ctx context.Context, m Match) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO matches (
			match_id, duration_seconds, season, game_version,
			first_dragon, first_baron, first_herald, first_inhibitor, first_tower, first_blood,
			team_a_dragons, team_a_barons, team_a_towers, team_a_inhibitors,
			team_b_dragons, team_b_barons, team_b_towers, team_b_inhibitors,
			winning_team
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (match_id) DO NOTHING
	`, m.MatchID, m.DurationSeconds, m.Season, m.GameVersion,
		sideBool(m.FirstDragon), sideBool(m.FirstBaron), sideBool(m.FirstHerald),
		sideBool(m.FirstInhibitor), sideBool(m.FirstTower), sideBool(m.FirstBlood),
		m.TeamA.Dragons, m.TeamA.Barons, m.TeamA.Towers, m.TeamA.Inhibitors,
		m.TeamB.Dragons, m.TeamB.Barons, m.TeamB.Towers, m.TeamB.Inhibitors,
		sideBool(m.WinningTeam))
	if err != nil {
		return false, fmt.Errorf("failed to insert match %d: %w", m.MatchID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) UpsertParticipation(ctx context.Context, p Participation) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO participations (summoner_id, match_id, champion_id, team_id, lane, role, rank_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (summoner_id, match_id) DO NOTHING
	`, p.SummonerID, p.MatchID, p.ChampionID, p.TeamID, p.Lane, p.Role, p.RankTier)
	if err != nil {
		return false, fmt.Errorf("failed to insert participation %d/%d: %w", p.MatchID, p.SummonerID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CountSummoners(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM summoners`).Scan(&count)
	return count, err
}

// SampleSummonerAccountIDs walks every account in id order and keeps each with
// probability p. The same seed over the same table yields the same sample.
func (s *PostgresStore) SampleSummonerAccountIDs(ctx context.Context, p float64, rng *rand.Rand) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT account_id FROM summoners ORDER BY account_id`)
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

func (s *PostgresStore) PageMatches(ctx context.Context, offset, limit int) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT match_id FROM matches ORDER BY match_id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to page matches: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (s *PostgresStore) CountParticipationRows(ctx context.Context, matchID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM participations WHERE match_id = $1
	`, matchID).Scan(&count)
	return count, err
}

func (s *PostgresStore) GetParticipationSummonerIDs(ctx context.Context, matchID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT summoner_id FROM participations WHERE match_id = $1 ORDER BY summoner_id
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (s *PostgresStore) GetSummoner(ctx context.Context, accountID int64) (*Summoner, error) {
	var sm Summoner
	err := s.pool.QueryRow(ctx, `
		SELECT account_id, summoner_id, name, revision_date FROM summoners WHERE account_id = $1
	`, accountID).Scan(&sm.AccountID, &sm.SummonerID, &sm.Name, &sm.RevisionDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summoner %d: %w", accountID, err)
	}
	return &sm, nil
}

// GetStats returns row counts of the three tables
func (s *PostgresStore) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM summoners),
			(SELECT COUNT(*) FROM matches),
			(SELECT COUNT(*) FROM participations)
	`).Scan(&st.Summoners, &st.Matches, &st.Participations)
	return st, err
}

const pgMatchColumns = `
	match_id, duration_seconds, season, game_version,
	first_dragon, first_baron, first_herald, first_inhibitor, first_tower, first_blood,
	team_a_dragons, team_a_barons, team_a_towers, team_a_inhibitors,
	team_b_dragons, team_b_barons, team_b_towers, team_b_inhibitors,
	winning_team`

func scanPgMatch(row pgx.Row) (Match, error) {
	var m Match
	var sides [7]*bool
	err := row.Scan(&m.MatchID, &m.DurationSeconds, &m.Season, &m.GameVersion,
		&sides[0], &sides[1], &sides[2], &sides[3], &sides[4], &sides[5],
		&m.TeamA.Dragons, &m.TeamA.Barons, &m.TeamA.Towers, &m.TeamA.Inhibitors,
		&m.TeamB.Dragons, &m.TeamB.Barons, &m.TeamB.Towers, &m.TeamB.Inhibitors,
		&sides[6])
	if err != nil {
		return m, err
	}
	m.FirstDragon = sideFromPtr(sides[0])
	m.FirstBaron = sideFromPtr(sides[1])
	m.FirstHerald = sideFromPtr(sides[2])
	m.FirstInhibitor = sideFromPtr(sides[3])
	m.FirstTower = sideFromPtr(sides[4])
	m.FirstBlood = sideFromPtr(sides[5])
	m.WinningTeam = sideFromPtr(sides[6])
	return m, nil
}

// RecentMatches returns the matches with the highest ids first
func (s *PostgresStore) RecentMatches(ctx context.Context, limit int) ([]Match, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgMatchColumns+` FROM matches ORDER BY match_id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		return scanPgMatch(row)
	})
}

func (s *PostgresStore) GetMatch(ctx context.Context, matchID int64) (*Match, error) {
	m, err := scanPgMatch(s.pool.QueryRow(ctx, `SELECT `+pgMatchColumns+` FROM matches WHERE match_id = $1`, matchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}
	return &m, nil
}

func (s *PostgresStore) GetParticipations(ctx context.Context, matchID int64) ([]Participation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT summoner_id, match_id, champion_id, team_id, lane, role, rank_tier
		FROM participations WHERE match_id = $1
		ORDER BY team_id, summoner_id
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Participation, error) {
		var p Participation
		err := row.Scan(&p.SummonerID, &p.MatchID, &p.ChampionID, &p.TeamID, &p.Lane, &p.Role, &p.RankTier)
		return p, err
	})
}

// ListMatchTiers returns every match with its participants' tiers, in match id order
func (s *PostgresStore) ListMatchTiers(ctx context.Context) ([]MatchTiers, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgMatchColumns+` FROM matches ORDER BY match_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		return scanPgMatch(row)
	})
	if err != nil {
		return nil, err
	}

	tierRows, err := s.pool.Query(ctx, `SELECT match_id, rank_tier FROM participations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiers: %w", err)
	}
	defer tierRows.Close()

	tiers := make(map[int64][]string)
	for tierRows.Next() {
		var id int64
		var tier string
		if err := tierRows.Scan(&id, &tier); err != nil {
			return nil, err
		}
		tiers[id] = append(tiers[id], tier)
	}
	if err := tierRows.Err(); err != nil {
		return nil, err
	}

	return joinTiers(matches, tiers), nil
}

func joinTiers(matches []Match, tiers map[int64][]string) []MatchTiers {
	out := make([]MatchTiers, len(matches))
	for i, m := range matches {
		out[i] = MatchTiers{Match: m, Tiers: tiers[m.MatchID]}
	}
	return out
}

func sideBool(s TeamSide) *bool {
	switch s {
	case TeamA:
		b := false
		return &b
	case TeamB:
		b := true
		return &b
	default:
		return nil
	}
}

func sideFromPtr(b *bool) TeamSide {
	if b == nil {
		return Neither
	}
	return sideFromBool(*b)
}
