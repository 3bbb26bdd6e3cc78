// Package config loads crawler settings from .env files, an optional YAML
// file and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"league-crawler/internal/riot"
)

// ErrMissingAPIKey is returned by RequireAPIKey when RIOT_API_KEY is unset.
var ErrMissingAPIKey = errors.New("RIOT_API_KEY environment variable is required")

// Candidate .env locations, relative to where a binary is started
var envFiles = []string{".env", "../.env", "../../.env"}

// Config holds every setting the binaries read.
type Config struct {
	APIKey         string        `yaml:"api_key"`
	Region         string        `yaml:"region"`
	RateLimit      float64       `yaml:"rate_limit_per_second"`
	Transport      string        `yaml:"http_transport"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	DatabaseURL    string        `yaml:"database_url"`

	SummonerSample int   `yaml:"summoner_sample"`
	MatchSample    int   `yaml:"match_sample"`
	AuditPageSize  int   `yaml:"audit_page_size"`
	AuditOffset    int   `yaml:"audit_offset"`
	RandSeed       int64 `yaml:"rand_seed"`

	ArchivePath       string `yaml:"archive_path"`
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
	DiscordBotToken   string `yaml:"discord_bot_token"`
	DiscordChannelID  string `yaml:"discord_channel_id"`

	WalkInterval time.Duration `yaml:"walk_interval"`
	AuditEvery   int           `yaml:"audit_every"`
	ServerPort   string        `yaml:"server_port"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads .env files, the CONFIG_FILE overlay if set, then the environment.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := newConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML configuration file without consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := newConfig()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

// newConfig presets the settings for which zero is a meaningful choice.
func newConfig() *Config {
	return &Config{AuditEvery: 5}
}

func loadDotEnv() {
	for _, path := range envFiles {
		if err := godotenv.Load(path); err == nil {
			log.WithField("path", path).Debug("loaded .env file")
			return
		}
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.APIKey, "RIOT_API_KEY")
	setString(&c.Region, "RIOT_REGION")
	setString(&c.Transport, "HTTP_TRANSPORT")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.ArchivePath, "ARCHIVE_PATH")
	setString(&c.DiscordWebhookURL, "DISCORD_WEBHOOK_URL")
	setString(&c.DiscordBotToken, "DISCORD_BOT_TOKEN")
	setString(&c.DiscordChannelID, "DISCORD_CHANNEL_ID")
	setString(&c.ServerPort, "SERVER_PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	var errs []error
	errs = append(errs,
		setFloat(&c.RateLimit, "RATE_LIMIT_PER_SECOND"),
		setDuration(&c.RequestTimeout, "REQUEST_TIMEOUT"),
		setInt(&c.SummonerSample, "SUMMONER_SAMPLE"),
		setInt(&c.MatchSample, "MATCH_SAMPLE"),
		setInt(&c.AuditPageSize, "AUDIT_PAGE_SIZE"),
		setInt(&c.AuditOffset, "AUDIT_OFFSET"),
		setInt64(&c.RandSeed, "RAND_SEED"),
		setDuration(&c.WalkInterval, "WALK_INTERVAL"),
		setInt(&c.AuditEvery, "AUDIT_EVERY"),
	)
	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = string(riot.RegionNA1)
	}
	if c.RateLimit <= 0 {
		c.RateLimit = riot.DefaultRequestsPerSecond
	}
	if c.Transport == "" {
		c.Transport = "net"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = riot.DefaultRequestTimeout
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "league.db"
	}
	if c.SummonerSample <= 0 {
		c.SummonerSample = 100
	}
	if c.MatchSample <= 0 {
		c.MatchSample = 5
	}
	if c.AuditPageSize <= 0 {
		c.AuditPageSize = 100
	}
	if c.WalkInterval <= 0 {
		c.WalkInterval = time.Minute
	}
	if c.ServerPort == "" {
		c.ServerPort = "8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	region, err := riot.ParseRegion(c.Region)
	if err != nil {
		return err
	}
	c.Region = string(region)

	if c.AuditOffset < 0 {
		return fmt.Errorf("AUDIT_OFFSET must not be negative, got %d", c.AuditOffset)
	}
	if c.AuditEvery < 0 {
		return fmt.Errorf("AUDIT_EVERY must not be negative, got %d", c.AuditEvery)
	}
	switch c.Transport {
	case "net", "http", "fasthttp":
	default:
		return fmt.Errorf("HTTP_TRANSPORT must be net or fasthttp, got %q", c.Transport)
	}
	return nil
}

// RequireAPIKey fails when no API key is configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// KeyRotationEnabled reports whether a Discord channel is configured to
// receive replacement API keys.
func (c *Config) KeyRotationEnabled() bool {
	return c.DiscordBotToken != "" && c.DiscordChannelID != ""
}

// PlatformRegion returns the validated region.
func (c *Config) PlatformRegion() riot.Region {
	return riot.Region(c.Region)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
