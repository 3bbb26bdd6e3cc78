package riot

import (
	"fmt"
	"sort"
	"strings"
)

// Region is a Riot platform routing value (the host prefix of the platform API).
type Region string

const (
	RegionBR1  Region = "br1"
	RegionEUN1 Region = "eun1"
	RegionEUW1 Region = "euw1"
	RegionJP1  Region = "jp1"
	RegionKR   Region = "kr"
	RegionLA1  Region = "la1"
	RegionLA2  Region = "la2"
	RegionNA1  Region = "na1"
	RegionOC1  Region = "oc1"
	RegionRU   Region = "ru"
	RegionTR1  Region = "tr1"
)

var knownRegions = map[Region]bool{
	RegionBR1: true, RegionEUN1: true, RegionEUW1: true, RegionJP1: true,
	RegionKR: true, RegionLA1: true, RegionLA2: true, RegionNA1: true,
	RegionOC1: true, RegionRU: true, RegionTR1: true,
}

// Long-form names accepted in config files
var regionAliases = map[string]Region{
	"north_america":   RegionNA1,
	"europe_west":     RegionEUW1,
	"europe_nordic":   RegionEUN1,
	"korea":           RegionKR,
	"japan":           RegionJP1,
	"brazil":          RegionBR1,
	"oceania":         RegionOC1,
	"russia":          RegionRU,
	"turkey":          RegionTR1,
	"latin_america_n": RegionLA1,
	"latin_america_s": RegionLA2,
}

// ParseRegion resolves a platform id or alias, case-insensitively.
func ParseRegion(s string) (Region, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if r, ok := regionAliases[key]; ok {
		return r, nil
	}
	r := Region(key)
	if knownRegions[r] {
		return r, nil
	}
	return "", fmt.Errorf("unknown region %q (known: %s)", s, strings.Join(RegionNames(), ", "))
}

// RegionNames lists the platform ids in sorted order.
func RegionNames() []string {
	names := make([]string, 0, len(knownRegions))
	for r := range knownRegions {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return names
}

// BaseURL returns the platform host for this region.
func (r Region) BaseURL() string {
	return fmt.Sprintf("https://%s.api.riotgames.com", r)
}

func (r Region) String() string { return string(r) }
