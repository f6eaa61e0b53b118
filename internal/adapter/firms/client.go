// Package firms fetches hotspot CSV payloads from the NASA FIRMS area API.
package firms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
)

const (
	// DefaultSource is the near-real-time MODIS product.
	DefaultSource = "MODIS_NRT"
	// DefaultBaseURL is the CSV area endpoint.
	DefaultBaseURL = "https://firms.modaps.eosdis.nasa.gov/api/area/csv"

	// Bodies shorter than this (after trimming) carry no detection rows; FIRMS
	// answers an empty area with just the header line.
	minPayloadBytes = 100
	maxErrorBody    = 512
)

// Client queries FIRMS for detections inside a bounding box.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a FIRMS client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// HasAPIKey reports whether a credential is configured.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// Fetch downloads the raw CSV for the last days of detections from source.
//
// A missing key returns *domain.AuthError without touching the network.
// Network failures, non-200 responses, and near-empty bodies are logged and
// reported as ("", nil): the caller sees an empty feed, not an error.
func (c *Client) Fetch(ctx context.Context, bbox domain.BoundingBox, days int, source string) (string, error) {
	if !c.HasAPIKey() {
		return "", &domain.AuthError{Err: domain.ErrMissingAPIKey}
	}
	if days < 1 {
		days = 1
	}
	if source == "" {
		source = DefaultSource
	}

	start := time.Now()
	body, err := c.doRequest(ctx, c.areaURL(bbox, days, source))
	c.metrics.FeedRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.FeedRequests.WithLabelValues("error").Inc()
		attrs := []any{"error", err, "source", source, "days", days}
		var te *domain.TransportError
		if errors.As(err, &te) && te.StatusCode != 0 {
			attrs = append(attrs, "status", te.StatusCode)
		}
		c.logger.Warn("firms request failed, treating as no detections", attrs...)
		return "", nil
	}

	c.metrics.FeedPayloadBytes.Observe(float64(len(body)))
	if len(strings.TrimSpace(body)) < minPayloadBytes {
		c.metrics.FeedRequests.WithLabelValues("empty").Inc()
		c.logger.Info("firms returned no detections", "source", source, "days", days, "bytes", len(body))
		return "", nil
	}

	c.metrics.FeedRequests.WithLabelValues("success").Inc()
	c.logger.Debug("firms payload received", "source", source, "days", days, "bytes", len(body))
	return body, nil
}

// areaURL builds <base>/<key>/<source>/<minLat,minLon,maxLat,maxLon>/<days>.
func (c *Client) areaURL(bbox domain.BoundingBox, days int, source string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%d",
		c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(source), bbox.String(), days)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", &domain.TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL embeds the key; drop it from the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &domain.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(snippet))),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return string(body), nil
}
