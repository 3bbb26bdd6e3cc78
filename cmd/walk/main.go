package main

import (
	"context"
	"errors"
	"flag"

	log "github.com/sirupsen/logrus"

	"league-crawler/internal/app"
	"league-crawler/internal/config"
	"league-crawler/internal/crawler"
	"league-crawler/internal/discord"
	"league-crawler/internal/logging"
	"league-crawler/internal/riot"
	"league-crawler/internal/storage"
	"league-crawler/internal/store"
)

func main() {
	summoners := flag.Int("summoners", 0, "Summoners to sample per pass (overrides SUMMONER_SAMPLE)")
	matches := flag.Int("matches", 0, "Matches to keep per summoner (overrides MATCH_SAMPLE)")
	continuous := flag.Bool("continuous", false, "Repeat passes and audits until interrupted")
	flag.Parse()

	cfg, err := app.Setup()
	if err != nil {
		log.Fatal(err)
	}
	if *summoners > 0 {
		cfg.SummonerSample = *summoners
	}
	if *matches > 0 {
		cfg.MatchSample = *matches
	}

	ctx := crawler.SetupSignalHandler(nil)

	if err := app.CheckKey(ctx, cfg); err != nil {
		log.Fatal(err)
	}
	client, err := app.NewClient(cfg)
	if err != nil {
		log.Fatal(err)
	}
	s, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	archiver, err := app.NewArchiver(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if archiver != nil {
		defer closeArchive(archiver)
	}

	notifier := app.NewNotifier(cfg, !*continuous)
	walker := crawler.NewWalker(client, s, app.NewRand(cfg), crawler.WalkerConfig{
		SummonerSample: cfg.SummonerSample,
		MatchSample:    cfg.MatchSample,
	}, app.WalkerOptions(archiver, notifier)...)

	if !*continuous {
		stats, err := walker.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Fatal("walk pass failed")
		}
		log.WithFields(log.Fields{
			"pass_id":        stats.PassID,
			"matches":        stats.MatchesStored,
			"summoners":      stats.SummonersDiscovered,
			"participations": stats.ParticipationsStored,
		}).Info("walk finished")
		return
	}

	if err := runContinuous(ctx, cfg, client, s, walker, notifier); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("continuous walk stopped")
	}
	log.Info("continuous walk stopped")
}

func runContinuous(ctx context.Context, cfg *config.Config, client *riot.Client, s store.Store, walker *crawler.Walker, notifier *discord.Notifier) error {
	auditOpts := []crawler.AuditorOption{crawler.WithAuditLogger(logging.Component("auditor"))}
	schedOpts := []crawler.SchedulerOption{crawler.WithSchedulerLogger(logging.Component("scheduler"))}
	if notifier != nil {
		auditOpts = append(auditOpts, crawler.WithAuditNotifier(notifier))
		schedOpts = append(schedOpts, crawler.WithSchedulerNotifier(notifier))
	}
	if cfg.KeyRotationEnabled() {
		schedOpts = append(schedOpts, crawler.WithKeyRotation(
			app.NewKeyFinder(cfg),
			riot.NewKeyValidator(cfg.PlatformRegion()),
			client,
		))
	} else {
		log.Warn("DISCORD_BOT_TOKEN or DISCORD_CHANNEL_ID not set, an expired key will stop the crawler")
	}

	auditor := crawler.NewAuditor(client, s, crawler.AuditConfig{
		PageSize:    cfg.AuditPageSize,
		StartOffset: cfg.AuditOffset,
	}, auditOpts...)

	schedCfg := crawler.DefaultSchedulerConfig()
	schedCfg.WalkInterval = cfg.WalkInterval
	schedCfg.AuditEvery = cfg.AuditEvery

	scheduler := crawler.NewScheduler(walker, auditor, schedCfg, schedOpts...)
	err := scheduler.Run(ctx)

	totals := scheduler.Stats()
	log.WithFields(log.Fields{
		"passes":        totals.Passes,
		"failed_passes": totals.FailedPasses,
		"audits":        totals.Audits,
		"matches":       totals.MatchesStored,
		"rows_repaired": totals.RowsRepaired,
		"audit_offset":  auditor.NextOffset(),
		"runtime":       totals.Runtime,
	}).Info("session totals")
	return err
}

// closeArchive flushes the hot file and compresses everything left in warm.
func closeArchive(r *storage.FileRotator) {
	if err := r.Close(); err != nil {
		log.WithError(err).Error("failed to close archive")
		return
	}
	n, err := r.CompressWarm()
	if err != nil {
		log.WithError(err).Error("failed to compress warm archive files")
		return
	}
	if n > 0 {
		log.WithField("files", n).Info("compressed archive files to cold storage")
	}
}
