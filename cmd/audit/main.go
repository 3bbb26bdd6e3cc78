package main

import (
	"context"
	"errors"
	"flag"

	log "github.com/sirupsen/logrus"

	"league-crawler/internal/app"
	"league-crawler/internal/crawler"
	"league-crawler/internal/logging"
)

func main() {
	offset := flag.Int("offset", -1, "Row offset to resume from (overrides AUDIT_OFFSET)")
	pageSize := flag.Int("page-size", 0, "Matches per page (overrides AUDIT_PAGE_SIZE)")
	flag.Parse()

	cfg, err := app.Setup()
	if err != nil {
		log.Fatal(err)
	}
	if *offset >= 0 {
		cfg.AuditOffset = *offset
	}
	if *pageSize > 0 {
		cfg.AuditPageSize = *pageSize
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

	opts := []crawler.AuditorOption{crawler.WithAuditLogger(logging.Component("auditor"))}
	if notifier := app.NewNotifier(cfg, false); notifier != nil {
		opts = append(opts, crawler.WithAuditNotifier(notifier))
	}

	auditor := crawler.NewAuditor(client, s, crawler.AuditConfig{
		PageSize:    cfg.AuditPageSize,
		StartOffset: cfg.AuditOffset,
	}, opts...)

	stats, err := auditor.Run(ctx)
	fields := log.Fields{
		"pages":         stats.Pages,
		"checked":       stats.MatchesChecked,
		"short":         stats.MatchesShort,
		"rows_inserted": stats.RowsInserted,
		"violations":    len(stats.Violations),
		"end_offset":    stats.EndOffset,
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithFields(fields).WithError(err).Fatal("audit failed")
	}
	log.WithFields(fields).Info("audit finished")
}
