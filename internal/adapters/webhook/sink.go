// Package webhook posts interval reports to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/bft-labs/asdustat/internal/ports"
	"github.com/bft-labs/asdustat/internal/report"
)

// DefaultTimeout bounds a single POST when the caller supplies no client.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response is quoted in the error.
const maxErrorBody = 512

// Config configures the sink.
type Config struct {
	URL     string
	AuthKey string
	Format  report.Format
	Timeout time.Duration
}

// Sink implements ports.ReportSink over HTTP.
type Sink struct {
	cfg      Config
	client   ports.HTTPClient
	logger   ports.Logger
	hostname string
}

// New creates a webhook sink. A nil client gets an *http.Client with
// cfg.Timeout.
func New(cfg Config, client ports.HTTPClient, logger ports.Logger) (*Sink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if cfg.Format == "" {
		cfg.Format = report.FormatJSON
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	hostname, _ := os.Hostname()
	return &Sink{
		cfg:      cfg,
		client:   client,
		logger:   logger,
		hostname: hostname,
	}, nil
}

// Name identifies the sink.
func (s *Sink) Name() string { return "webhook" }

// Publish posts the encoded report.
func (s *Sink) Publish(ctx context.Context, r *report.Report) error {
	payload, err := report.Encode(s.cfg.Format, r)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", s.cfg.Format.ContentType())
	if s.cfg.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.AuthKey)
	}
	req.Header.Set("X-Agent-Hostname", s.hostname)
	req.Header.Set("X-Agent-OSArch", runtime.GOOS+"/"+runtime.GOARCH)
	if r.SessionID != "" {
		req.Header.Set("X-Asdustat-Session-Id", r.SessionID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	s.logger.Debug("report posted",
		ports.String("url", s.cfg.URL),
		ports.Int("bytes", len(payload)),
		ports.Int("categories", len(r.Categories)),
	)
	return nil
}

// Close is a no-op; the HTTP client owns no per-sink resources.
func (s *Sink) Close() error { return nil }

var _ ports.ReportSink = (*Sink)(nil)
