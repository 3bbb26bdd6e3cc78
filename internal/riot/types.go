package riot

// Summoner represents the response from /lol/summoner/v3/summoners/by-name/{summonerName}
type Summoner struct {
	ID            int64  `json:"id"`
	AccountID     int64  `json:"accountId"`
	Name          string `json:"name"`
	ProfileIconID int    `json:"profileIconId"`
	RevisionDate  int64  `json:"revisionDate"`
	SummonerLevel int64  `json:"summonerLevel"`
}

// Matchlist represents the response from /lol/match/v3/matchlists/by-account/{accountId}
type Matchlist struct {
	Matches    []MatchReference `json:"matches"`
	StartIndex int              `json:"startIndex"`
	EndIndex   int              `json:"endIndex"`
	TotalGames int              `json:"totalGames"`
}

// MatchReference is one lightweight entry of a match history.
type MatchReference struct {
	GameID     int64  `json:"gameId"`
	PlatformID string `json:"platformId"`
	Season     int    `json:"season"`
	Champion   int    `json:"champion"`
	Queue      int    `json:"queue"`
	Lane       string `json:"lane"`
	Role       string `json:"role"`
	Timestamp  int64  `json:"timestamp"`
}

// MatchDetail represents the response from /lol/match/v3/matches/{matchId}
type MatchDetail struct {
	GameID                int64                 `json:"gameId"`
	PlatformID            string                `json:"platformId"`
	GameCreation          int64                 `json:"gameCreation"`
	GameDuration          int                   `json:"gameDuration"` // seconds
	QueueID               int                   `json:"queueId"`
	MapID                 int                   `json:"mapId"`
	SeasonID              int                   `json:"seasonId"`
	GameVersion           string                `json:"gameVersion"`
	GameMode              string                `json:"gameMode"`
	GameType              string                `json:"gameType"`
	Teams                 []TeamStats           `json:"teams"`
	Participants          []Participant         `json:"participants"`
	ParticipantIdentities []ParticipantIdentity `json:"participantIdentities"`
}

// TeamStats holds objective flags and counts. Teams[0] is team 100, Teams[1] team 200.
type TeamStats struct {
	TeamID          int    `json:"teamId"`
	Win             string `json:"win"` // "Win" or "Fail"
	FirstBlood      bool   `json:"firstBlood"`
	FirstTower      bool   `json:"firstTower"`
	FirstInhibitor  bool   `json:"firstInhibitor"`
	FirstBaron      bool   `json:"firstBaron"`
	FirstDragon     bool   `json:"firstDragon"`
	FirstRiftHerald bool   `json:"firstRiftHerald"`
	TowerKills      int    `json:"towerKills"`
	InhibitorKills  int    `json:"inhibitorKills"`
	BaronKills      int    `json:"baronKills"`
	DragonKills     int    `json:"dragonKills"`
	RiftHeraldKills int    `json:"riftHeraldKills"`
}

// Won reports the team's win flag.
func (t TeamStats) Won() bool {
	return t.Win == "Win"
}

type Participant struct {
	ParticipantID             int                 `json:"participantId"`
	TeamID                    int                 `json:"teamId"`
	ChampionID                int                 `json:"championId"`
	Spell1ID                  int                 `json:"spell1Id"`
	Spell2ID                  int                 `json:"spell2Id"`
	HighestAchievedSeasonTier string              `json:"highestAchievedSeasonTier"`
	Timeline                  ParticipantTimeline `json:"timeline"`
}

type ParticipantTimeline struct {
	Lane string `json:"lane"` // TOP, JUNGLE, MIDDLE, BOTTOM
	Role string `json:"role"` // SOLO, NONE, DUO, DUO_CARRY, DUO_SUPPORT
}

type ParticipantIdentity struct {
	ParticipantID int    `json:"participantId"`
	Player        Player `json:"player"`
}

type Player struct {
	AccountID         int64  `json:"accountId"`
	CurrentAccountID  int64  `json:"currentAccountId"`
	SummonerID        int64  `json:"summonerId"`
	SummonerName      string `json:"summonerName"`
	PlatformID        string `json:"platformId"`
	CurrentPlatformID string `json:"currentPlatformId"`
	MatchHistoryURI   string `json:"matchHistoryUri"`
	ProfileIcon       int    `json:"profileIcon"`
}

// ParticipantByID finds the participant row for a participantId.
func (m *MatchDetail) ParticipantByID(id int) (Participant, bool) {
	// Participants are normally ordered by id, so try the index first
	if i := id - 1; i >= 0 && i < len(m.Participants) && m.Participants[i].ParticipantID == id {
		return m.Participants[i], true
	}
	for _, p := range m.Participants {
		if p.ParticipantID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Timeline represents the response from /lol/match/v3/timelines/by-match/{matchId}
type Timeline struct {
	FrameInterval int             `json:"frameInterval"` // milliseconds
	Frames        []TimelineFrame `json:"frames"`
}

type TimelineFrame struct {
	Timestamp int64           `json:"timestamp"`
	Events    []TimelineEvent `json:"events"`
}

type TimelineEvent struct {
	Type           string `json:"type"`
	Timestamp      int64  `json:"timestamp"` // milliseconds
	ParticipantID  int    `json:"participantId,omitempty"`
	CreatorID      int    `json:"creatorId,omitempty"`
	KillerID       int    `json:"killerId,omitempty"`
	TeamID         int    `json:"teamId,omitempty"`
	WardType       string `json:"wardType,omitempty"`
	MonsterType    string `json:"monsterType,omitempty"`
	MonsterSubType string `json:"monsterSubType,omitempty"`
}

// Tier order for comparison (higher value = higher rank). UNRANKED maps to 0.
var TierOrder = map[string]int{
	"UNRANKED":   0,
	"BRONZE":     1,
	"SILVER":     2,
	"GOLD":       3,
	"PLATINUM":   4,
	"DIAMOND":    5,
	"MASTER":     6,
	"CHALLENGER": 7,
}

// TierValue returns the numeric tier and whether the player is ranked.
func TierValue(tier string) (int, bool) {
	v, ok := TierOrder[tier]
	if !ok || v == 0 {
		return 0, false
	}
	return v, true
}
