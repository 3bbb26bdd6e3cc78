package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"league-crawler/internal/crawler"
)

const (
	// Colors for Discord embeds
	colorRed   = 15158332 // 0xE74C3C - for errors/expiration
	colorGreen = 5763719  // 0x57F287 - for success
	colorBlue  = 3447003  // 0x3498DB - for summaries

	// Default timeout for webhook requests
	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// NewPassCompletePayload summarises a finished walker pass
func NewPassCompletePayload(stats crawler.PassStats) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "Crawl Pass Complete",
				Color: colorBlue,
				Fields: []EmbedField{
					{Name: "Summoners Sampled", Value: fmt.Sprintf("%s of %s", formatNumber(stats.SummonersSampled), formatNumber(stats.Population)), Inline: true},
					{Name: "Matches Stored", Value: formatNumber(stats.MatchesStored), Inline: true},
					{Name: "New Summoners", Value: formatNumber(stats.SummonersDiscovered), Inline: true},
					{Name: "Skipped", Value: fmt.Sprintf("%d summoners, %d matches", stats.SummonersSkipped, stats.MatchesFailed), Inline: true},
					{Name: "Duration", Value: formatDuration(stats.Duration), Inline: true},
				},
				Footer:    &EmbedFooter{Text: "pass " + stats.PassID},
				Timestamp: stats.StartedAt.UTC().Format(time.RFC3339),
			},
		},
	}
}

// NewAuditFailedPayload reports an aborted audit
func NewAuditFailedPayload(err *crawler.AuditError) WebhookPayload {
	return WebhookPayload{
		Content: "@here Audit aborted",
		Embeds: []Embed{
			{
				Title:       "Audit Failed",
				Description: redactAPIKeys(err.Err.Error()),
				Color:       colorRed,
				Fields: []EmbedField{
					{Name: "Match", Value: strconv.FormatInt(err.MatchID, 10), Inline: true},
					{Name: "Offset", Value: strconv.Itoa(err.Offset), Inline: true},
				},
				Footer: &EmbedFooter{
					Text: fmt.Sprintf("Resume with AUDIT_OFFSET=%d", err.Offset),
				},
			},
		},
	}
}

// NewKeyExpiredPayload creates a payload for API key expiration notification
func NewKeyExpiredPayload(totals crawler.Totals) WebhookPayload {
	return WebhookPayload{
		Content: "@here API Key Expired!",
		Embeds: []Embed{
			{
				Title: "🔑 API Key Expired",
				Color: colorRed,
				Fields: []EmbedField{
					{
						Name:   "Matches Stored",
						Value:  formatNumber(totals.MatchesStored),
						Inline: true,
					},
					{
						Name:   "Runtime",
						Value:  formatDuration(totals.Runtime),
						Inline: true,
					},
					{
						Name:   "Last Pass",
						Value:  formatDurationAgo(totals.LastPassAgo),
						Inline: true,
					},
				},
				Footer: &EmbedFooter{
					Text: "Reply with new RGAPI-xxx key to start fresh session",
				},
			},
		},
	}
}

// NewSessionStartedPayload creates a payload for new session started notification
func NewSessionStartedPayload(apiKey string) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "✅ New Session Started",
				Color: colorGreen,
				Fields: []EmbedField{
					{
						Name:   "New Key",
						Value:  maskAPIKey(apiKey) + " (validated)",
						Inline: true,
					},
				},
				Footer: &EmbedFooter{
					Text: "Crawl resuming from the stored frontier",
				},
			},
		},
	}
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// Post sends a webhook payload with retry on rate limiting
func (c *WebhookClient) Post(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if err := sleepCtx(ctx, retryAfter(resp)); err != nil {
				return err
			}
			continue
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// retryAfter reads Discord's Retry-After header in seconds, defaulting to one.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return strconv.Itoa(n)
	}

	s := strconv.Itoa(n)
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xh Ym" (e.g., 18h 32m)
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatDurationAgo formats a duration as "X min ago" or "X sec ago"
func formatDurationAgo(d time.Duration) string {
	if d < 0 {
		return "never"
	}
	if d < time.Minute {
		return fmt.Sprintf("%d sec ago", int(d.Seconds()))
	}
	return fmt.Sprintf("%d min ago", int(d.Minutes()))
}

// redactAPIKeys masks every API key that appears in s
func redactAPIKeys(s string) string {
	return apiKeyPattern.ReplaceAllStringFunc(s, maskAPIKey)
}

// maskAPIKey masks an API key for display (e.g., "RGAPI-xxxx-xxxx" -> "RGAPI...xxxx")
func maskAPIKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:5] + "..." + key[len(key)-4:]
}
