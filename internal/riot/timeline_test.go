package riot

import (
	"reflect"
	"testing"
	"time"
)

func sampleTimeline() *Timeline {
	return &Timeline{
		FrameInterval: 60000,
		Frames: []TimelineFrame{
			{Timestamp: 0, Events: []TimelineEvent{
				{Type: "WARD_PLACED", Timestamp: 30000, CreatorID: 3, WardType: "YELLOW_TRINKET"},
				{Type: "ITEM_PURCHASED", Timestamp: 40000, ParticipantID: 3},
			}},
			{Timestamp: 60000, Events: []TimelineEvent{
				{Type: "WARD_PLACED", Timestamp: 150000, CreatorID: 4, WardType: "SIGHT_WARD"},
				{Type: "WARD_PLACED", Timestamp: 170000, CreatorID: 3, WardType: "CONTROL_WARD"},
			}},
			{Timestamp: 420000, Events: []TimelineEvent{
				{Type: "ELITE_MONSTER_KILL", Timestamp: 430000, KillerID: 7, MonsterType: "DRAGON", MonsterSubType: "FIRE_DRAGON"},
				{Type: "ELITE_MONSTER_KILL", Timestamp: 700000, KillerID: 2, MonsterType: "RIFTHERALD"},
				{Type: "WARD_PLACED", Timestamp: 710000, CreatorID: 3, WardType: "YELLOW_TRINKET"},
			}},
			{Timestamp: 1200000, Events: []TimelineEvent{
				{Type: "ELITE_MONSTER_KILL", Timestamp: 1250000, KillerID: 7, MonsterType: "DRAGON", MonsterSubType: "AIR_DRAGON"},
				{Type: "ELITE_MONSTER_KILL", Timestamp: 1300000, KillerID: 1, MonsterType: "BARON_NASHOR"},
			}},
		},
	}
}

// TestExtractWardPlacements tests that only the creator's wards are returned in order
func TestExtractWardPlacements(t *testing.T) {
	wards := ExtractWardPlacements(sampleTimeline(), 3)
	want := []WardPlacement{
		{At: 30 * time.Second, WardType: "YELLOW_TRINKET"},
		{At: 170 * time.Second, WardType: "CONTROL_WARD"},
		{At: 710 * time.Second, WardType: "YELLOW_TRINKET"},
	}
	if !reflect.DeepEqual(wards, want) {
		t.Errorf("got %+v, want %+v", wards, want)
	}

	if got := ExtractWardPlacements(sampleTimeline(), 9); len(got) != 0 {
		t.Errorf("expected no wards for participant 9, got %v", got)
	}
}

// TestExtractEliteMonsterKills tests spawn times follow the respawn timers
func TestExtractEliteMonsterKills(t *testing.T) {
	kills := ExtractEliteMonsterKills(sampleTimeline())
	want := []MonsterKill{
		{Monster: "FIRE_DRAGON", SpawnedAt: 150 * time.Second, KilledAt: 430 * time.Second, KillerID: 7},
		{Monster: "RIFTHERALD", SpawnedAt: 10 * time.Minute, KilledAt: 700 * time.Second, KillerID: 2},
		{Monster: "AIR_DRAGON", SpawnedAt: 430*time.Second + 6*time.Minute, KilledAt: 1250 * time.Second, KillerID: 7},
		{Monster: "BARON_NASHOR", SpawnedAt: 20 * time.Minute, KilledAt: 1300 * time.Second, KillerID: 1},
	}
	if !reflect.DeepEqual(kills, want) {
		t.Errorf("got %+v, want %+v", kills, want)
	}
}

// TestBinByMinute tests bin counts and sizing
func TestBinByMinute(t *testing.T) {
	wards := ExtractWardPlacements(sampleTimeline(), 3)

	bins := BinByMinute(wards, 5*time.Minute)
	want := []int{2, 0, 1}
	if !reflect.DeepEqual(bins, want) {
		t.Errorf("got %v, want %v", bins, want)
	}

	if BinByMinute(nil, time.Minute) != nil {
		t.Error("expected nil for no wards")
	}
	if BinByMinute(wards, 0) != nil {
		t.Error("expected nil for zero width")
	}
}

// TestTierValue tests tier ordering and the ranked flag
func TestTierValue(t *testing.T) {
	tests := []struct {
		tier   string
		value  int
		ranked bool
	}{
		{"BRONZE", 1, true},
		{"GOLD", 3, true},
		{"CHALLENGER", 7, true},
		{"UNRANKED", 0, false},
		{"", 0, false},
		{"IRON", 0, false},
	}
	for _, tt := range tests {
		v, ranked := TierValue(tt.tier)
		if v != tt.value || ranked != tt.ranked {
			t.Errorf("TierValue(%q) = (%d, %v), want (%d, %v)", tt.tier, v, ranked, tt.value, tt.ranked)
		}
	}
}

// TestParseRegion tests platform ids and aliases
func TestParseRegion(t *testing.T) {
	tests := []struct {
		in      string
		want    Region
		wantErr bool
	}{
		{"na1", RegionNA1, false},
		{"NA1", RegionNA1, false},
		{" euw1 ", RegionEUW1, false},
		{"north_america", RegionNA1, false},
		{"korea", RegionKR, false},
		{"na", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRegion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRegion(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRegion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if RegionNA1.BaseURL() != "https://na1.api.riotgames.com" {
		t.Errorf("unexpected base URL %s", RegionNA1.BaseURL())
	}
}
