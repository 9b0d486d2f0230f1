package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"goride/internal/config"

	"github.com/sirupsen/logrus"
)

// WarmupResult is returned by WarmupService.Warm (§4.3).
type WarmupResult struct {
	Success  bool
	Attempts int
	Duration time.Duration
	Error    string
}

// WarmupService is the Bot Warmup Client. It issues a best-effort
// preflight request to the downstream speech-bot before a call is
// placed, so a cold bot doesn't eat a connected call.
type WarmupService struct {
	httpClient *http.Client
	cfg        *config.WarmupConfig
	logger     *logrus.Logger
}

func NewWarmupService(cfg *config.WarmupConfig, logger *logrus.Logger) *WarmupService {
	return &WarmupService{
		httpClient: &http.Client{Timeout: cfg.AttemptTimeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// deriveWarmupURL turns a wss:// media-stream URL into the https:// /warmup
// URL on the same host (§4.3).
func deriveWarmupURL(wssURL string) (string, error) {
	parsed, err := url.Parse(wssURL)
	if err != nil {
		return "", fmt.Errorf("cannot parse wssUrl: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("wssUrl has no host")
	}

	scheme := "https"
	out := url.URL{Scheme: scheme, Host: parsed.Host, Path: "/warmup"}
	return out.String(), nil
}

// Warm implements §4.3: bounded retries, each bounded by AttemptTimeout.
// A URL-derivation failure is treated as success=true, attempts=0 — the
// call proceeds without warmup rather than failing it outright.
func (w *WarmupService) Warm(ctx context.Context, wssURL string) *WarmupResult {
	if !w.cfg.Enabled {
		return &WarmupResult{Success: true}
	}

	start := time.Now()

	warmupURL, err := deriveWarmupURL(wssURL)
	if err != nil {
		w.logger.WithError(err).WithField("wssUrl", wssURL).
			Warn("warmup: could not derive warmup URL, skipping")
		return &WarmupResult{Success: true, Attempts: 0, Duration: time.Since(start)}
	}

	var lastErr error
	for attempt := 1; attempt <= w.cfg.Attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
		ok, err := w.attempt(attemptCtx, warmupURL)
		cancel()

		if ok {
			return &WarmupResult{Success: true, Attempts: attempt, Duration: time.Since(start)}
		}
		lastErr = err

		if attempt < w.cfg.Attempts {
			select {
			case <-ctx.Done():
				return &WarmupResult{Success: false, Attempts: attempt, Duration: time.Since(start), Error: ctx.Err().Error()}
			case <-time.After(w.cfg.RetryBackoff):
			}
		}
	}

	errMsg := ""
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	return &WarmupResult{Success: false, Attempts: w.cfg.Attempts, Duration: time.Since(start), Error: errMsg}
}

func (w *WarmupService) attempt(ctx context.Context, warmupURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, warmupURL, nil)
	if err != nil {
		return false, err
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, nil
	}
	return false, fmt.Errorf("warmup endpoint returned status %d", resp.StatusCode)
}
