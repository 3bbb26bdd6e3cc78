package store

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// ErrNotFound is returned by single-row reads that match nothing.
var ErrNotFound = errors.New("not found")

// TeamSide says which team an objective or win belongs to. Team index 0
// (team 100) is TeamA and team index 1 (team 200) is TeamB.
type TeamSide int

const (
	Neither TeamSide = iota
	TeamA
	TeamB
)

func (s TeamSide) String() string {
	switch s {
	case TeamA:
		return "A"
	case TeamB:
		return "B"
	default:
		return "neither"
	}
}

// MarshalText renders the side for JSON output.
func (s TeamSide) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Value stores the side as a nullable boolean: true is TeamB, false TeamA.
func (s TeamSide) Value() (driver.Value, error) {
	switch s {
	case TeamA:
		return false, nil
	case TeamB:
		return true, nil
	default:
		return nil, nil
	}
}

// Scan reads the nullable boolean written by Value.
func (s *TeamSide) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = Neither
	case bool:
		*s = sideFromBool(v)
	case int64:
		// SQLite has no boolean type
		*s = sideFromBool(v != 0)
	default:
		return fmt.Errorf("cannot scan %T into TeamSide", src)
	}
	return nil
}

func sideFromBool(teamB bool) TeamSide {
	if teamB {
		return TeamB
	}
	return TeamA
}

// Summoner is one player. Rows are keyed by AccountID and never updated.
type Summoner struct {
	AccountID    int64  `json:"accountId"`
	SummonerID   int64  `json:"summonerId"`
	Name         string `json:"name"`
	RevisionDate *int64 `json:"revisionDate,omitempty"`
}

// TeamCounts are the per-team objective totals of a match.
type TeamCounts struct {
	Dragons    int `json:"dragons"`
	Barons     int `json:"barons"`
	Towers     int `json:"towers"`
	Inhibitors int `json:"inhibitors"`
}

// Match is one Summoner's Rift game.
type Match struct {
	MatchID         int64      `json:"matchId"`
	DurationSeconds int        `json:"durationSeconds"`
	Season          int        `json:"season"`
	GameVersion     string     `json:"gameVersion"`
	FirstDragon     TeamSide   `json:"firstDragon"`
	FirstBaron      TeamSide   `json:"firstBaron"`
	FirstHerald     TeamSide   `json:"firstHerald"`
	FirstInhibitor  TeamSide   `json:"firstInhibitor"`
	FirstTower      TeamSide   `json:"firstTower"`
	FirstBlood      TeamSide   `json:"firstBlood"`
	TeamA           TeamCounts `json:"teamA"`
	TeamB           TeamCounts `json:"teamB"`
	WinningTeam     TeamSide   `json:"winningTeam"`
}

// Participation links a summoner to a match. A complete match has ten.
type Participation struct {
	SummonerID int64  `json:"summonerId"`
	MatchID    int64  `json:"matchId"`
	ChampionID int    `json:"championId"`
	TeamID     int    `json:"teamId"`
	Lane       string `json:"lane"`
	Role       string `json:"role"`
	RankTier   string `json:"rankTier"`
}

// Stats are table totals for the status endpoint.
type Stats struct {
	Summoners      int `json:"summoners"`
	Matches        int `json:"matches"`
	Participations int `json:"participations"`
}

// MatchTiers pairs a match with the rank tiers of its participants.
type MatchTiers struct {
	Match Match
	Tiers []string
}
