package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"league-crawler/internal/app"
	"league-crawler/internal/riot"
)

type participantWards struct {
	ParticipantID int                  `json:"participantId"`
	Placements    []riot.WardPlacement `json:"placements"`
	PerBin        []int                `json:"perBin"`
}

type report struct {
	MatchID  int64              `json:"matchId"`
	BinWidth string             `json:"binWidth"`
	Wards    []participantWards `json:"wards"`
	Monsters []riot.MonsterKill `json:"monsters"`
}

func main() {
	matchID := flag.Int64("match", 0, "Match (game) id")
	participant := flag.Int("participant", 0, "Participant id 1-10 (0 for all)")
	bin := flag.Duration("bin", time.Minute, "Width of ward count bins")
	flag.Parse()

	if *matchID == 0 || *participant < 0 || *participant > 10 {
		fmt.Println("Usage:")
		fmt.Println("  wards --match=2700000000 [--participant=1] [--bin=1m]")
		os.Exit(1)
	}

	cfg, err := app.Setup()
	if err != nil {
		log.Fatal(err)
	}
	client, err := app.NewClient(cfg)
	if err != nil {
		log.Fatal(err)
	}

	timeline, err := client.FetchMatchTimeline(context.Background(), *matchID)
	if err != nil {
		log.WithError(err).Fatal("failed to fetch timeline")
	}

	ids := []int{*participant}
	if *participant == 0 {
		ids = ids[:0]
		for i := 1; i <= 10; i++ {
			ids = append(ids, i)
		}
	}

	out := report{
		MatchID:  *matchID,
		BinWidth: bin.String(),
		Monsters: riot.ExtractEliteMonsterKills(timeline),
	}
	for _, id := range ids {
		wards := riot.ExtractWardPlacements(timeline, id)
		out.Wards = append(out.Wards, participantWards{
			ParticipantID: id,
			Placements:    wards,
			PerBin:        riot.BinByMinute(wards, *bin),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal(err)
	}
}
