// Package weatherapi is a client for the weatherapi.com forecast and current
// conditions endpoints.
package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/weatherdash/internal/httputil"
	"github.com/lox/weatherdash/internal/metrics"
	"github.com/lox/weatherdash/internal/models"
)

const (
	DefaultBaseURL = "https://api.weatherapi.com/v1"
	DefaultDays    = 5
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Request failed with status code %d", e.StatusCode)
}

// IsRejected reports whether the provider answered with a non-2xx status, as
// opposed to the request failing before a response arrived.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type currentResponse struct {
	Location models.Location `json:"location"`
}

type Client struct {
	apiKey  string
	baseURL string
	days    int
	client  *http.Client

	// maxRetryElapsed bounds rate-limit retries in Current.
	maxRetryElapsed time.Duration
}

// NewClient returns a client for the given credential. An empty baseURL or a
// non-positive days value selects the defaults.
func NewClient(apiKey, baseURL string, days int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if days <= 0 {
		days = DefaultDays
	}
	return &Client{
		apiKey:          apiKey,
		baseURL:         strings.TrimRight(baseURL, "/"),
		days:            days,
		client:          httputil.NewClient(),
		maxRetryElapsed: 30 * time.Second,
	}
}

// Forecast fetches current conditions plus the multi-day forecast for name,
// with air quality and alerts disabled. It makes exactly one request.
func (c *Client) Forecast(ctx context.Context, name string) (*models.WeatherSnapshot, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", name)
	q.Set("days", strconv.Itoa(c.days))
	q.Set("aqi", "no")
	q.Set("alerts", "no")

	body, err := c.get(ctx, "forecast", q)
	if err != nil {
		return nil, err
	}

	var snap models.WeatherSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal forecast: %w", err)
	}
	return &snap, nil
}

// Current resolves name against the current-conditions endpoint and returns
// the matched location. Rate-limited responses are retried with exponential
// backoff; every other failure is returned immediately.
func (c *Client) Current(ctx context.Context, name string) (*models.Location, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", name)

	var body []byte
	operation := func() error {
		b, err := c.get(ctx, "current", q)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetryElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	var data currentResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal current: %w", err)
	}
	return &data.Location, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	u := fmt.Sprintf("%s/%s.json?%s", c.baseURL, endpoint, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.WeatherAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	metrics.WeatherAPICallsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil {
			apiErr.Code = er.Error.Code
			apiErr.Message = er.Error.Message
		}
		return nil, apiErr
	}
	return body, nil
}

// transportError drops the request URL from err. The URL carries the API key
// and the message ends up persisted on the city.
func transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("fetch weather: %w", urlErr.Err)
	}
	return fmt.Errorf("fetch weather: %w", err)
}
