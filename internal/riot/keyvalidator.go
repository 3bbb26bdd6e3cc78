package riot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// statusEndpoint is the cheapest platform call that still requires a key.
const statusEndpoint = "/lol/status/v3/shard-data"

const defaultValidationTimeout = 10 * time.Second

// ErrEmptyKey is returned when asked to validate an empty key.
var ErrEmptyKey = errors.New("API key cannot be empty")

// KeyValidator checks a candidate key against the status endpoint of one
// platform before it is installed on a Client.
type KeyValidator struct {
	httpClient *http.Client
	baseURL    string
}

type KeyValidatorOption func(*KeyValidator)

// WithBaseURL points the validator at another host
func WithBaseURL(u string) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.baseURL = u
	}
}

func WithTimeout(timeout time.Duration) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying client. Its timeout is kept.
func WithHTTPClient(c *http.Client) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.httpClient = c
	}
}

// NewKeyValidator creates a validator against the region's platform host
func NewKeyValidator(region Region, opts ...KeyValidatorOption) *KeyValidator {
	v := &KeyValidator{
		httpClient: &http.Client{Timeout: defaultValidationTimeout},
		baseURL:    region.BaseURL(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateKey reports whether the platform accepts apiKey.
//
// A 2xx answer means valid and 401/403 means rejected, both with a nil error.
// Anything else leaves validity unknown: network failures come back as
// *TransportError and other statuses as *RemoteError.
func (v *KeyValidator) ValidateKey(ctx context.Context, apiKey string) (bool, error) {
	if apiKey == "" {
		return false, ErrEmptyKey
	}

	endpoint := v.baseURL + statusEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		endpoint+"?"+url.Values{"api_key": {apiKey}}.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", stripURL(err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, &TransportError{URL: endpoint, Err: stripURL(err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, &RemoteError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
}
