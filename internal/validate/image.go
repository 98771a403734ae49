package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/util"
)

const probeMaxRetries = 3

// probeSleepFunc is the sleep function used between retries (injectable for tests)
var probeSleepFunc = time.Sleep

// ErrNotImage is returned when a URL does not serve a decodable image
var ErrNotImage = errors.New("not an image")

// ErrRobotsDisallowed is returned when robots.txt forbids fetching the image
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// ImageProbe downloads candidate images and checks they decode
type ImageProbe struct {
	httpClient *http.Client
	robots     *util.RobotsChecker // nil disables robots.txt checks
	userAgent  string
	maxBytes   int64
}

// NewImageProbe creates a probe. robots may be nil.
func NewImageProbe(httpClient *http.Client, robots *util.RobotsChecker, userAgent string, maxBytes int64) *ImageProbe {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &ImageProbe{
		httpClient: httpClient,
		robots:     robots,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
	}
}

// statusError carries the HTTP status of a failed download
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.code)
}

// Fetch downloads rawURL, retrying transient failures with exponential backoff
func (p *ImageProbe) Fetch(ctx context.Context, rawURL string) (*model.Image, error) {
	if p.robots != nil {
		allowed, err := p.robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots check: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)
		}
	}

	var lastErr error
	for attempt := 0; attempt < probeMaxRetries; attempt++ {
		img, err := p.fetchOnce(ctx, rawURL)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < probeMaxRetries-1 {
			probeSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return nil, lastErr
}

func (p *ImageProbe) fetchOnce(ctx context.Context, rawURL string) (*model.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	ct := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("content type %q: %w", ct, ErrNotImage)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", p.maxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", ct, err, ErrNotImage)
	}

	return &model.Image{
		URL:      rawURL,
		Data:     data,
		MIMEType: ct,
		Format:   format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// isRetryable returns true for 5xx, 429 and network-level failures
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || (se.code >= 500 && se.code < 600)
	}
	if errors.Is(err, ErrNotImage) {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
