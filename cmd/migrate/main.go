package main

import (
	"context"

	log "github.com/sirupsen/logrus"

	"league-crawler/internal/app"
	"league-crawler/internal/store"
)

func main() {
	cfg, err := app.Setup()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	s, err := store.OpenNoMigrate(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer s.Close()

	before, err := s.SchemaVersion(ctx)
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	after, err := s.SchemaVersion(ctx)
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}

	log.WithFields(log.Fields{"from": before, "to": after}).Info("schema is up to date")
}
