// Package cardsource fetches business card images referenced by URL.
package cardsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/config"
	"github.com/sells-group/leadscan/internal/resilience"
)

// ErrTooLarge is returned when a card image exceeds the configured size cap.
var ErrTooLarge = eris.New("cardsource: image exceeds size limit")

const (
	defaultTimeout = 15 * time.Second
	defaultMaxSize = 10 << 20
	userAgent      = "leadscan/1.0"
)

// Source retrieves raw card image bytes for a contact.
type Source interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPSource implements Source over plain HTTP(S) with retry on
// transient failures.
type HTTPSource struct {
	client   *http.Client
	maxBytes int64
	retry    resilience.RetryConfig
}

// NewHTTPSource creates an HTTPSource from configuration.
func NewHTTPSource(cfg config.CardSourceConfig) *HTTPSource {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBytes := cfg.MaxSizeBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxSize
	}
	return &HTTPSource{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxBytes: maxBytes,
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			OnRetry:        resilience.RetryLogger("cardsource", "fetch"),
		},
	}
}

// Fetch downloads the image at url, retrying transient HTTP failures.
func (s *HTTPSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]byte, error) {
		return s.fetchOnce(ctx, url)
	})
}

func (s *HTTPSource) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "cardsource: build request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "cardsource: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("cardsource: unexpected status %d fetching %s", resp.StatusCode, url)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	// Read one byte past the cap so truncation is detectable.
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "cardsource: read body")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, eris.Wrapf(ErrTooLarge, "%s: more than %d bytes", url, s.maxBytes)
	}
	if len(data) == 0 {
		return nil, eris.Errorf("cardsource: empty body from %s", url)
	}
	return data, nil
}
