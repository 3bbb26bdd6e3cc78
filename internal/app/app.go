// Package app wires configuration into the components the binaries share.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"league-crawler/internal/config"
	"league-crawler/internal/crawler"
	"league-crawler/internal/discord"
	"league-crawler/internal/logging"
	"league-crawler/internal/riot"
	"league-crawler/internal/storage"
	"league-crawler/internal/store"
)

// Setup loads configuration and configures logging.
func Setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewClient builds the rate-limited API client.
func NewClient(cfg *config.Config) (*riot.Client, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	transport, err := riot.NewTransport(cfg.Transport, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	limiter, err := riot.NewLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"region":       cfg.Region,
		"transport":    cfg.Transport,
		"min_interval": limiter.MinInterval(),
	}).Debug("created API client")

	return riot.NewClient(cfg.APIKey, cfg.PlatformRegion(),
		riot.WithTransport(transport),
		riot.WithLimiter(limiter),
		riot.WithLogger(logging.Component("riot")),
	)
}

// CheckKey rejects an expired or forbidden key before any crawling starts.
func CheckKey(ctx context.Context, cfg *config.Config) error {
	valid, err := riot.NewKeyValidator(cfg.PlatformRegion()).ValidateKey(ctx, cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to validate API key: %w", err)
	}
	if !valid {
		return fmt.Errorf("RIOT_API_KEY was rejected: %w", riot.ErrInvalidKey)
	}
	return nil
}

// OpenStore opens DATABASE_URL and applies migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	s, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

// NewRand returns the sampling source. A zero seed is replaced by the clock.
func NewRand(cfg *config.Config) *rand.Rand {
	seed := cfg.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.WithField("seed", seed).Info("sampling seed")
	return rand.New(rand.NewSource(seed))
}

// NewArchiver opens the raw match archive, or returns nil when ARCHIVE_PATH is unset.
func NewArchiver(cfg *config.Config) (*storage.FileRotator, error) {
	if cfg.ArchivePath == "" {
		return nil, nil
	}
	r, err := storage.NewFileRotator(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return r, nil
}

// NewNotifier posts to the webhook, falling back to the bot channel, or
// returns nil when neither is configured.
func NewNotifier(cfg *config.Config, passSummaries bool) *discord.Notifier {
	opt := discord.WithPassSummaries(passSummaries)
	switch {
	case cfg.DiscordWebhookURL != "":
		return discord.NewNotifier(discord.NewWebhookClient(cfg.DiscordWebhookURL), opt)
	case cfg.KeyRotationEnabled():
		return discord.NewNotifier(NewKeyFinder(cfg), opt)
	}
	return nil
}

// NewKeyFinder polls the configured channel for replacement keys.
func NewKeyFinder(cfg *config.Config) *discord.KeyFinder {
	return discord.NewKeyFinder(cfg.DiscordBotToken, cfg.DiscordChannelID)
}

// WalkerOptions collects the optional walker collaborators.
func WalkerOptions(archiver *storage.FileRotator, notifier *discord.Notifier) []crawler.WalkerOption {
	opts := []crawler.WalkerOption{crawler.WithWalkerLogger(logging.Component("walker"))}
	if archiver != nil {
		opts = append(opts, crawler.WithArchiver(archiver))
	}
	if notifier != nil {
		opts = append(opts, crawler.WithNotifier(notifier))
	}
	return opts
}
