package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"league-crawler/internal/app"
	"league-crawler/internal/store"
)

func main() {
	name := flag.String("name", "", "Summoner name to look up")
	flag.Parse()

	if *name == "" {
		fmt.Println("Usage:")
		fmt.Println("  lookup --name='Summoner Name'")
		os.Exit(1)
	}

	cfg, err := app.Setup()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	client, err := app.NewClient(cfg)
	if err != nil {
		log.Fatal(err)
	}
	s, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	sm, err := client.FetchSummonerByName(ctx, *name)
	if err != nil {
		log.WithError(err).Fatalf("failed to look up %q", *name)
	}

	revision := sm.RevisionDate
	inserted, err := s.UpsertSummoner(ctx, store.Summoner{
		AccountID:    sm.AccountID,
		SummonerID:   sm.ID,
		Name:         sm.Name,
		RevisionDate: &revision,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to store summoner")
	}

	log.WithFields(log.Fields{
		"account_id":  sm.AccountID,
		"summoner_id": sm.ID,
		"name":        sm.Name,
		"level":       sm.SummonerLevel,
		"inserted":    inserted,
	}).Info("summoner stored")
}
