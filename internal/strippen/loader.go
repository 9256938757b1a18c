package strippen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"greenwallet/internal/greencard"
	"greenwallet/internal/wallet"
)

// Loader failure classes. Network and server failures are distinguished
// because the user-facing remedy differs.
var (
	// ErrNoInternet marks a transport-level failure: retry when back online.
	ErrNoInternet = errors.New("no internet connection")
	// ErrServerBusy marks a transient server condition worth backing off on.
	ErrServerBusy = errors.New("issuer busy")
	// ErrDidNotEvaluate marks an accepted request that issued nothing
	// applicable. Not retryable; the events cannot become a certificate.
	ErrDidNotEvaluate = errors.New("issuer evaluated zero applicable origins")
)

// Loader exchanges stored event groups for freshly signed green cards.
type Loader interface {
	SignEventsIntoGreenCardsAndCredentials(ctx context.Context, eventGroups []wallet.EventGroup) (*greencard.Response, error)
}

// HTTPLoader posts the signed event payloads to the issuer exchange endpoint.
type HTTPLoader struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	// maxRetries bounds the backoff loop on ErrServerBusy.
	maxRetries uint64
}

// HTTPLoaderOption configures an HTTPLoader.
type HTTPLoaderOption func(*HTTPLoader)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(client *http.Client) HTTPLoaderOption {
	return func(l *HTTPLoader) {
		if client != nil {
			l.client = client
		}
	}
}

// WithMaxRetries bounds the busy-server backoff loop.
func WithMaxRetries(n uint64) HTTPLoaderOption {
	return func(l *HTTPLoader) {
		l.maxRetries = n
	}
}

func NewHTTPLoader(endpoint string, logger *slog.Logger, opts ...HTTPLoaderOption) (*HTTPLoader, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("exchange endpoint is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &HTTPLoader{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		maxRetries: 3,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

type exchangeRequest struct {
	Events [][]byte `json:"events"`
}

// SignEventsIntoGreenCardsAndCredentials runs the exchange, retrying with
// exponential backoff while the issuer reports busy.
func (l *HTTPLoader) SignEventsIntoGreenCardsAndCredentials(ctx context.Context, eventGroups []wallet.EventGroup) (*greencard.Response, error) {
	payloads := make([][]byte, 0, len(eventGroups))
	for _, group := range eventGroups {
		payloads = append(payloads, group.JSONData)
	}
	body, err := json.Marshal(exchangeRequest{Events: payloads})
	if err != nil {
		return nil, fmt.Errorf("marshal exchange request: %w", err)
	}

	var response *greencard.Response
	operation := func() error {
		resp, err := l.exchange(ctx, body)
		if err != nil {
			if errors.Is(err, ErrServerBusy) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		response = resp
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), l.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return response, nil
}

func (l *HTTPLoader) exchange(ctx context.Context, body []byte) (*greencard.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("exchange transport: %v: %w", err, ErrNoInternet)
		}
		return nil, fmt.Errorf("exchange transport: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("exchange status %d: %w", resp.StatusCode, ErrServerBusy)
	default:
		return nil, fmt.Errorf("exchange failed with status %d", resp.StatusCode)
	}

	var response greencard.Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode exchange response: %w", err)
	}
	return &response, nil
}

var _ Loader = (*HTTPLoader)(nil)
