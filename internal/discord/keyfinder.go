package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	// Discord API base URL
	defaultDiscordBaseURL = "https://discord.com/api/v10"

	// Default poll interval for waiting for key
	defaultPollInterval = 10 * time.Second

	// Default timeout for Discord API requests
	defaultDiscordTimeout = 10 * time.Second

	// Number of messages to fetch per poll
	defaultMessageLimit = 5
)

// Riot API keys look like RGAPI-xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
var apiKeyPattern = regexp.MustCompile(`RGAPI-[a-zA-Z0-9-]{20,50}`)

// DiscordMessage represents a message from the Discord API
type DiscordMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Author    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"author"`
}

// KeyFinder polls a Discord channel for API key messages
type KeyFinder struct {
	botToken     string
	channelID    string
	baseURL      string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *log.Entry
}

// KeyFinderOption configures a KeyFinder
type KeyFinderOption func(*KeyFinder)

// WithDiscordBaseURL sets a custom Discord API base URL (for testing)
func WithDiscordBaseURL(url string) KeyFinderOption {
	return func(f *KeyFinder) {
		f.baseURL = url
	}
}

// WithPollInterval sets the polling interval for WaitForKey
func WithPollInterval(interval time.Duration) KeyFinderOption {
	return func(f *KeyFinder) {
		f.pollInterval = interval
	}
}

// NewKeyFinder creates a new KeyFinder
func NewKeyFinder(botToken, channelID string, opts ...KeyFinderOption) *KeyFinder {
	f := &KeyFinder{
		botToken:     botToken,
		channelID:    channelID,
		baseURL:      defaultDiscordBaseURL,
		pollInterval: defaultPollInterval,
		httpClient: &http.Client{
			Timeout: defaultDiscordTimeout,
		},
		logger: log.WithField("component", "keyfinder"),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// ParseAPIKey extracts a Riot API key from message content
func ParseAPIKey(content string) (string, bool) {
	match := apiKeyPattern.FindString(content)
	if match == "" {
		return "", false
	}
	return match, true
}

// PollForKey checks recent channel messages posted after since for an API
// key. It returns "" when none is found.
func (f *KeyFinder) PollForKey(ctx context.Context, since time.Time) (string, error) {
	messages, err := f.fetchMessages(ctx)
	if err != nil {
		return "", err
	}

	f.logger.WithField("messages", len(messages)).Debug("fetched channel messages")

	// Discord returns the most recent message first
	for _, msg := range messages {
		if !postedAfter(msg, since) {
			continue
		}
		if key, found := ParseAPIKey(msg.Content); found {
			f.logger.WithField("author", msg.Author.Username).Info("found API key in channel")
			return key, nil
		}
	}

	return "", nil
}

// postedAfter treats an unparseable timestamp as recent.
func postedAfter(msg DiscordMessage, since time.Time) bool {
	if since.IsZero() {
		return true
	}
	ts, err := time.Parse(time.RFC3339, msg.Timestamp)
	if err != nil {
		return true
	}
	return !ts.Before(since.Truncate(time.Second))
}

// WaitForKey polls the channel until a key is found or ctx is done
func (f *KeyFinder) WaitForKey(ctx context.Context, since time.Time) (string, error) {
	f.logger.WithFields(log.Fields{
		"channel":  f.channelID,
		"interval": f.pollInterval,
	}).Info("polling channel for new API key")

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		key, err := f.PollForKey(ctx, since)
		if err != nil {
			f.logger.WithError(err).Warn("error polling channel")
		}
		if key != "" {
			return key, nil
		}

		if err := sleepCtx(ctx, f.pollInterval); err != nil {
			return "", err
		}
	}
}

// SendMessage sends a plain message to the channel
func (f *KeyFinder) SendMessage(ctx context.Context, content string) error {
	return f.Post(ctx, WebhookPayload{Content: content})
}

// Post sends a payload to the channel as the bot
func (f *KeyFinder) Post(ctx context.Context, payload WebhookPayload) error {
	url := fmt.Sprintf("%s/channels/%s/messages", f.baseURL, f.channelID)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+f.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("Discord API returned status %d", resp.StatusCode)
	}

	return nil
}

// fetchMessages fetches recent messages from the channel, retrying once per
// rate-limit answer.
func (f *KeyFinder) fetchMessages(ctx context.Context) ([]DiscordMessage, error) {
	url := fmt.Sprintf("%s/channels/%s/messages?limit=%d", f.baseURL, f.channelID, defaultMessageLimit)

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bot "+f.botToken)

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp)
			resp.Body.Close()
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("Discord API returned status %d", resp.StatusCode)
		}

		var messages []DiscordMessage
		err = json.NewDecoder(resp.Body).Decode(&messages)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return messages, nil
	}

	return nil, fmt.Errorf("Discord API rate limited after %d retries", maxRetries)
}
