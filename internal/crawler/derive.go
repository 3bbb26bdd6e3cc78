package crawler

import (
	"fmt"

	"league-crawler/internal/riot"
	"league-crawler/internal/store"
)

// FilterSeason keeps references from minSeason onward, in order.
func FilterSeason(refs []riot.MatchReference, minSeason int) []riot.MatchReference {
	var kept []riot.MatchReference
	for _, r := range refs {
		if r.Season >= minSeason {
			kept = append(kept, r)
		}
	}
	return kept
}

// MatchProbability is the per-match keep probability min(m, n)/n, so that
// about m of n matches are sampled. n must be positive.
func MatchProbability(m, n int) float64 {
	if m > n {
		m = n
	}
	return float64(m) / float64(n)
}

// firstSide resolves a pair of first-objective flags. Team index 1 is
// checked first, so it wins if both are set.
func firstSide(teamA, teamB bool) store.TeamSide {
	switch {
	case teamB:
		return store.TeamB
	case teamA:
		return store.TeamA
	default:
		return store.Neither
	}
}

// DeriveMatch builds the stored match row. Teams[0] is TeamA and Teams[1]
// is TeamB; the winner is TeamB exactly when Teams[1] won.
func DeriveMatch(d *riot.MatchDetail) (store.Match, error) {
	if len(d.Teams) != 2 {
		return store.Match{}, fmt.Errorf("match %d has %d teams", d.GameID, len(d.Teams))
	}
	a, b := d.Teams[0], d.Teams[1]

	winner := store.TeamA
	if b.Won() {
		winner = store.TeamB
	}

	return store.Match{
		MatchID:         d.GameID,
		DurationSeconds: d.GameDuration,
		Season:          d.SeasonID,
		GameVersion:     d.GameVersion,
		FirstDragon:     firstSide(a.FirstDragon, b.FirstDragon),
		FirstBaron:      firstSide(a.FirstBaron, b.FirstBaron),
		FirstHerald:     firstSide(a.FirstRiftHerald, b.FirstRiftHerald),
		FirstInhibitor:  firstSide(a.FirstInhibitor, b.FirstInhibitor),
		FirstTower:      firstSide(a.FirstTower, b.FirstTower),
		FirstBlood:      firstSide(a.FirstBlood, b.FirstBlood),
		TeamA:           teamCounts(a),
		TeamB:           teamCounts(b),
		WinningTeam:     winner,
	}, nil
}

func teamCounts(t riot.TeamStats) store.TeamCounts {
	return store.TeamCounts{
		Dragons:    t.DragonKills,
		Barons:     t.BaronKills,
		Towers:     t.TowerKills,
		Inhibitors: t.InhibitorKills,
	}
}

// DeriveSummoners returns one summoner per participant identity. Identities
// with neither an account id nor a current account id cannot be walked and
// are counted in anonymous instead.
func DeriveSummoners(d *riot.MatchDetail) (out []store.Summoner, anonymous int) {
	out = make([]store.Summoner, 0, len(d.ParticipantIdentities))
	for _, id := range d.ParticipantIdentities {
		accountID := id.Player.AccountID
		if accountID == 0 {
			accountID = id.Player.CurrentAccountID
		}
		if accountID == 0 {
			anonymous++
			continue
		}
		out = append(out, store.Summoner{
			AccountID:  accountID,
			SummonerID: id.Player.SummonerID,
			Name:       id.Player.SummonerName,
		})
	}
	return out, anonymous
}

// DeriveParticipations aligns identities with participants by participant
// id. Identities with no matching participant are counted in unaligned.
func DeriveParticipations(d *riot.MatchDetail) (rows []store.Participation, unaligned int) {
	for _, id := range d.ParticipantIdentities {
		p, ok := d.ParticipantByID(id.ParticipantID)
		if !ok {
			unaligned++
			continue
		}
		rows = append(rows, store.Participation{
			SummonerID: id.Player.SummonerID,
			MatchID:    d.GameID,
			ChampionID: p.ChampionID,
			TeamID:     p.TeamID,
			Lane:       p.Timeline.Lane,
			Role:       p.Timeline.Role,
			RankTier:   p.HighestAchievedSeasonTier,
		})
	}
	return rows, unaligned
}
