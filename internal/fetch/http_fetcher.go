// Package fetch provides the HTTP content fetcher collaborator.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// Config holds fetcher settings.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	MaxRetries   int
	RetryBackoff time.Duration
}

// HTTPFetcher fetches a page and reduces it to bounded plain text. Proper
// HTML sanitization lives upstream of the pipeline contract; this adapter
// only strips markup and collapses whitespace so the model sees text.
type HTTPFetcher struct {
	client       *http.Client
	maxBodyBytes int64
	userAgent    string
	maxRetries   int
	retryBackoff time.Duration
}

// NewHTTPFetcher creates a fetcher with its own timeout-bound client.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 4 << 20
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "platewise-extractor/1.0"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	} else if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultBackoff
	}
	return &HTTPFetcher{
		client:       &http.Client{Timeout: timeout},
		maxBodyBytes: maxBody,
		userAgent:    userAgent,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
	}
}

// Fetch retrieves source and returns its visible text. Network and HTTP
// errors are returned as errors; a reachable page with no text comes back as
// an empty string.
func (f *HTTPFetcher) Fetch(ctx context.Context, source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid source url %q", source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: status %d", source, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !textual(ct) {
		return "", fmt.Errorf("fetch %s: unsupported content type %q", source, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return StripHTML(string(body)), nil
}

func textual(contentType string) bool {
	return strings.Contains(contentType, "text/") ||
		strings.Contains(contentType, "html") ||
		strings.Contains(contentType, "xml") ||
		strings.Contains(contentType, "json")
}

// StripHTML reduces an HTML document to its visible text: scripts and styles
// dropped, tags removed, common entities decoded, whitespace collapsed. The
// model downstream does not care about layout, only words.
func StripHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
