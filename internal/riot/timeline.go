package riot

import "time"

// Spawn timers on Summoner's Rift
const (
	dragonFirstSpawn  = 150 * time.Second
	dragonRespawn     = 6 * time.Minute
	baronFirstSpawn   = 20 * time.Minute
	baronRespawn      = 7 * time.Minute
	heraldFirstSpawn  = 10 * time.Minute
	eventWardPlaced   = "WARD_PLACED"
	eventMonsterKill  = "ELITE_MONSTER_KILL"
	monsterDragon     = "DRAGON"
	monsterBaron      = "BARON_NASHOR"
	monsterRiftHerald = "RIFTHERALD"
)

// WardPlacement is one ward placed by a participant.
type WardPlacement struct {
	At       time.Duration
	WardType string // YELLOW_TRINKET, SIGHT_WARD, CONTROL_WARD, BLUE_TRINKET
}

// MonsterKill is an elite monster taken during the match, with the time it
// had spawned. Dragons are reported by subtype (FIRE_DRAGON, ...).
type MonsterKill struct {
	Monster   string
	SpawnedAt time.Duration
	KilledAt  time.Duration
	KillerID  int
}

// ExtractWardPlacements returns the wards a participant placed, in timeline order
func ExtractWardPlacements(t *Timeline, participantID int) []WardPlacement {
	var wards []WardPlacement
	for _, frame := range t.Frames {
		for _, event := range frame.Events {
			if event.Type == eventWardPlaced && event.CreatorID == participantID {
				wards = append(wards, WardPlacement{
					At:       time.Duration(event.Timestamp) * time.Millisecond,
					WardType: event.WardType,
				})
			}
		}
	}
	return wards
}

// ExtractEliteMonsterKills returns dragon, baron and herald kills. Spawn times
// follow the respawn timer from the previous kill of the same monster.
func ExtractEliteMonsterKills(t *Timeline) []MonsterKill {
	var kills []MonsterKill
	nextDragon := dragonFirstSpawn
	nextBaron := baronFirstSpawn

	for _, frame := range t.Frames {
		for _, event := range frame.Events {
			if event.Type != eventMonsterKill {
				continue
			}
			at := time.Duration(event.Timestamp) * time.Millisecond

			switch event.MonsterType {
			case monsterDragon:
				kills = append(kills, MonsterKill{Monster: event.MonsterSubType, SpawnedAt: nextDragon, KilledAt: at, KillerID: event.KillerID})
				nextDragon = at + dragonRespawn
			case monsterBaron:
				kills = append(kills, MonsterKill{Monster: monsterBaron, SpawnedAt: nextBaron, KilledAt: at, KillerID: event.KillerID})
				nextBaron = at + baronRespawn
			case monsterRiftHerald:
				kills = append(kills, MonsterKill{Monster: monsterRiftHerald, SpawnedAt: heraldFirstSpawn, KilledAt: at, KillerID: event.KillerID})
			}
		}
	}
	return kills
}

// BinByMinute counts ward placements into bins of the given width. The
// number of bins covers the last placement.
func BinByMinute(wards []WardPlacement, width time.Duration) []int {
	if len(wards) == 0 || width <= 0 {
		return nil
	}
	var last time.Duration
	for _, w := range wards {
		if w.At > last {
			last = w.At
		}
	}
	bins := make([]int, int(last/width)+1)
	for _, w := range wards {
		bins[int(w.At/width)]++
	}
	return bins
}
