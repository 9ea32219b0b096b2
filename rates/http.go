package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendant_rate_fetch_latency_seconds",
		Help:    "Time spent fetching the exchange rate",
		Buckets: prometheus.DefBuckets,
	})

	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendant_rate_fetch_failures_total",
		Help: "Exchange rate fetches that did not produce a usable rate",
	})
)

const (
	defaultField   = "venta"
	defaultTimeout = 5 * time.Second
)

// StatusError captures a non-2xx answer from the rate endpoint.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// HTTPSource reads a numeric field from a JSON document, such as
// {"compra": 1180, "venta": 1215.5}.
type HTTPSource struct {
	url        string
	field      string
	timeout    time.Duration
	httpClient *http.Client
}

type Option func(*HTTPSource)

func WithField(field string) Option {
	return func(s *HTTPSource) {
		if f := strings.TrimSpace(field); f != "" {
			s.field = f
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSource) {
		s.httpClient = c
	}
}

func NewHTTPSource(url string, opts ...Option) *HTTPSource {
	s := &HTTPSource{
		url:        strings.TrimSpace(url),
		field:      defaultField,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchRate makes one attempt bounded by the configured timeout. Every
// failure is reported as ErrUnavailable.
func (s *HTTPSource) FetchRate(ctx context.Context) (float64, error) {
	start := time.Now()
	defer func() { FetchLatency.Observe(time.Since(start).Seconds()) }()

	rate, err := s.fetch(ctx)
	if err != nil {
		FetchFailures.Inc()
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return rate, nil
}

func (s *HTTPSource) fetch(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &StatusError{StatusCode: resp.StatusCode, URL: s.url}
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	raw, ok := payload[s.field]
	if !ok {
		return 0, fmt.Errorf("field %q missing from response", s.field)
	}
	var rate float64
	if err := json.Unmarshal(raw, &rate); err != nil {
		return 0, fmt.Errorf("field %q is not a number: %w", s.field, err)
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, fmt.Errorf("field %q holds non-positive rate %v", s.field, rate)
	}
	return rate, nil
}
