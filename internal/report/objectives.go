// Package report aggregates stored matches into objective win rates.
package report

import (
	"context"
	"fmt"
	"math"
	"sort"

	"league-crawler/internal/riot"
	"league-crawler/internal/store"
)

// MinRankedParticipants is how many ranked players a match needs before its
// mean tier is trusted.
const MinRankedParticipants = 4

// Objective names a first-objective column of a match
type Objective string

const (
	FirstDragon    Objective = "dragon"
	FirstBaron     Objective = "baron"
	FirstHerald    Objective = "herald"
	FirstInhibitor Objective = "inhibitor"
	FirstTower     Objective = "tower"
	FirstBlood     Objective = "blood"
)

// Objectives lists every objective in report order
var Objectives = []Objective{FirstBlood, FirstTower, FirstDragon, FirstHerald, FirstBaron, FirstInhibitor}

// ParseObjective validates an objective name
func ParseObjective(s string) (Objective, error) {
	for _, o := range Objectives {
		if string(o) == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown objective %q", s)
}

func (o Objective) side(m store.Match) store.TeamSide {
	switch o {
	case FirstDragon:
		return m.FirstDragon
	case FirstBaron:
		return m.FirstBaron
	case FirstHerald:
		return m.FirstHerald
	case FirstInhibitor:
		return m.FirstInhibitor
	case FirstTower:
		return m.FirstTower
	case FirstBlood:
		return m.FirstBlood
	}
	return store.Neither
}

// Bucket is one tier's share of matches
type Bucket struct {
	Tier      string  `json:"tier"`
	TierValue int     `json:"tierValue"`
	Matches   int     `json:"matches"`   // matches in the bucket
	Taken     int     `json:"taken"`     // matches where some team took the objective
	TakerWins int     `json:"takerWins"` // of those, how many the taking team won
	WinRate   float64 `json:"winRate"`
}

// ObjectiveReport is the per-tier win rate of the team that took an
// objective first.
type ObjectiveReport struct {
	Objective  Objective `json:"objective"`
	Buckets    []Bucket  `json:"buckets"`
	Unranked   int       `json:"unranked"` // too few ranked participants
	Unbucketed int       `json:"unbucketed"`
}

// Source is the read side the report needs
type Source interface {
	ListMatchTiers(ctx context.Context) ([]store.MatchTiers, error)
}

// MeanTier averages the ranked tiers of a match. ok is false when fewer than
// MinRankedParticipants are ranked.
func MeanTier(tiers []string) (mean float64, ok bool) {
	var sum, n int
	for _, t := range tiers {
		if v, ranked := riot.TierValue(t); ranked {
			sum += v
			n++
		}
	}
	if n < MinRankedParticipants {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

// BucketFor maps a mean tier to the nearest tier value. A mean exactly
// halfway between two tiers belongs to neither.
func BucketFor(mean float64) (int, bool) {
	v := math.Round(mean)
	if math.Abs(mean-v) >= 0.5 {
		return 0, false
	}
	if _, ok := tierName(int(v)); !ok {
		return 0, false
	}
	return int(v), true
}

func tierName(v int) (string, bool) {
	for name, tv := range riot.TierOrder {
		if tv == v && v > 0 {
			return name, true
		}
	}
	return "", false
}

// Compute builds the report for one objective from match rows.
func Compute(rows []store.MatchTiers, objective Objective) ObjectiveReport {
	report := ObjectiveReport{Objective: objective}
	byTier := make(map[int]*Bucket)

	for _, row := range rows {
		mean, ok := MeanTier(row.Tiers)
		if !ok {
			report.Unranked++
			continue
		}
		tv, ok := BucketFor(mean)
		if !ok {
			report.Unbucketed++
			continue
		}

		b, exists := byTier[tv]
		if !exists {
			name, _ := tierName(tv)
			b = &Bucket{Tier: name, TierValue: tv}
			byTier[tv] = b
		}
		b.Matches++

		taker := objective.side(row.Match)
		if taker == store.Neither {
			continue
		}
		b.Taken++
		if taker == row.Match.WinningTeam {
			b.TakerWins++
		}
	}

	for _, b := range byTier {
		if b.Taken > 0 {
			b.WinRate = float64(b.TakerWins) / float64(b.Taken)
		}
		report.Buckets = append(report.Buckets, *b)
	}
	sort.Slice(report.Buckets, func(i, j int) bool {
		return report.Buckets[i].TierValue < report.Buckets[j].TierValue
	})
	return report
}

// Build loads every match and computes the report for each objective given,
// or for all objectives when none are.
func Build(ctx context.Context, src Source, objectives ...Objective) ([]ObjectiveReport, error) {
	rows, err := src.ListMatchTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches: %w", err)
	}
	if len(objectives) == 0 {
		objectives = Objectives
	}
	reports := make([]ObjectiveReport, 0, len(objectives))
	for _, o := range objectives {
		reports = append(reports, Compute(rows, o))
	}
	return reports, nil
}
