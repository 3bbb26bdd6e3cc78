package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"league-crawler/internal/app"
	"league-crawler/internal/logging"
	"league-crawler/internal/seed"
)

func main() {
	file := flag.String("file", "", "Path to the match snapshot JSON file")
	flag.Parse()

	if *file == "" {
		fmt.Println("Usage:")
		fmt.Println("  seed --file=matches1.json")
		fmt.Println()
		fmt.Println("Inserts one summoner per participant found in the snapshot.")
		fmt.Println("The database is set via DATABASE_URL.")
		os.Exit(1)
	}

	cfg, err := app.Setup()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	s, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	res, err := seed.NewLoader(s, logging.Component("seed")).LoadFile(ctx, *file)
	if err != nil {
		log.WithError(err).Fatal("seed load failed")
	}

	log.WithFields(log.Fields{
		"matches":      res.Matches,
		"participants": res.Participants,
		"inserted":     res.Upserted,
		"skipped":      res.Skipped,
	}).Info("seed load complete")
}
