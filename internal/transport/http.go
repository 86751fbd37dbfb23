package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"mslclient/internal/domain"
)

// DefaultUserAgent matches a desktop browser player.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/77.0.3865.75 Safari/537.36"

// maxResponseBytes bounds a single response body.
const maxResponseBytes = 64 << 20

// Options configure NewHTTP.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Proxy is an http, https or socks5 URL; empty uses the environment.
	Proxy    string
	Language string
	Log      *zap.Logger
}

// HTTP posts MSL bodies with a shared http.Client.
type HTTP struct {
	HTTP      *http.Client
	UserAgent string
	Language  string
	log       *zap.Logger
}

// NewHTTP builds a transport from opts.
func NewHTTP(opts Options) (*HTTP, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != "" {
		u, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("transport: proxy %q: %w", opts.Proxy, err)
		}
		tr.Proxy = http.ProxyURL(u)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	lang := opts.Language
	if lang == "" {
		lang = "en-US,en;q=0.8"
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTP{
		HTTP:      &http.Client{Transport: tr, Timeout: opts.Timeout},
		UserAgent: ua,
		Language:  lang,
		log:       log,
	}, nil
}

// Post sends body to u and returns the response status and body.
func (c *HTTP) Post(ctx context.Context, u string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.Language)
	req.Header.Set("User-Agent", c.UserAgent)

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("transport post %s: %w", u, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("transport post %s: read body: %w", u, err)
	}
	if len(out) > maxResponseBytes {
		return resp.StatusCode, nil, fmt.Errorf("transport post %s: response exceeds %d bytes", u, maxResponseBytes)
	}
	c.log.Debug("msl post",
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Int("request_bytes", len(body)),
		zap.Int("response_bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return resp.StatusCode, out, nil
}

var _ domain.Transport = (*HTTP)(nil)
