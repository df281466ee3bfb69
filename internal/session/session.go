// Package session provides an HTTP client scoped to a single origin that
// presents itself like a desktop browser: persistent cookies, redirects,
// compressed responses and a fixed set of browser headers.
package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultBaseURL is the upload.ee site root all relative paths resolve against.
	DefaultBaseURL = "https://www.upload.ee/"
	// DefaultTimeout bounds every request, including reading the response body.
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent is a desktop Chrome user agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/72.0.3583.0 Safari/537.36"
	// DefaultReferer is sent on every request.
	DefaultReferer = "https://www.upload.ee"

	acceptEncoding = "gzip, deflate"
	acceptLanguage = "en-US,en;q=0.5"

	// MaxBodyBytes caps a decoded response body. Responses are small HTML pages.
	MaxBodyBytes = 8 << 20
)

// ErrClosed is returned by requests issued after Close.
var ErrClosed = errors.New("session closed")

// Options configures a Session. Zero values select the defaults above.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Referer   string
	// Transport overrides the underlying round tripper. Browser headers and
	// decompression are still applied on top of it.
	Transport http.RoundTripper
}

// Session is a cookie-carrying HTTP channel to one origin. A Session is safe
// for use by one caller at a time; concurrent uploads should use separate
// sessions so their cookies do not mix.
type Session struct {
	base   *url.URL
	client *http.Client

	closed    atomic.Bool
	closeOnce sync.Once
}

// New builds a Session from opts.
func New(opts Options) (*Session, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Referer == "" {
		opts.Referer = DefaultReferer
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	inner := opts.Transport
	if inner == nil {
		inner = newTransport()
	}

	return &Session{
		base: base,
		client: &http.Client{
			Transport: &browserTransport{
				base: inner,
				headers: http.Header{
					"User-Agent":      {opts.UserAgent},
					"Accept-Encoding": {acceptEncoding},
					"Accept-Language": {acceptLanguage},
					"Referer":         {opts.Referer},
				},
			},
			Jar:     jar,
			Timeout: opts.Timeout,
		},
	}, nil
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = proxyFunc()
	// upload.ee still negotiates legacy TLS versions on some mirrors.
	t.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS10}
	t.ExpectContinueTimeout = 0
	return t
}

// Get fetches relPath and returns the decoded body.
func (s *Session) Get(ctx context.Context, relPath string) (string, error) {
	return s.do(ctx, http.MethodGet, relPath, "", nil, 0)
}

// Post sends body (size bytes, or -1 if unknown) to relPath with the given
// content type and returns the decoded response body.
func (s *Session) Post(ctx context.Context, relPath, contentType string, body io.Reader, size int64) (string, error) {
	return s.do(ctx, http.MethodPost, relPath, contentType, body, size)
}

// Cookies returns the cookies the session would send to its base origin.
func (s *Session) Cookies() []*http.Cookie {
	return s.client.Jar.Cookies(s.base)
}

// Close releases pooled connections and drops the cookie jar. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.client.CloseIdleConnections()
		if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
			s.client.Jar = jar
		}
	})
	return nil
}

func (s *Session) resolve(relPath string) (*url.URL, error) {
	ref, err := url.Parse(relPath)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", relPath, err)
	}
	return s.base.ResolveReference(ref), nil
}

func (s *Session) do(ctx context.Context, method, relPath, contentType string, body io.Reader, size int64) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}

	target, err := s.resolve(relPath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", method, err)
	}
	if body != nil {
		req.ContentLength = size
		if size == 0 {
			req.Body = http.NoBody
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, target.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", &StatusError{
			Method:     method,
			URL:        resp.Request.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	text, err := decodeText(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%s %s: decode body: %w", method, target.Redacted(), err)
	}
	data, err := readAllWithLimit(text, MaxBodyBytes)
	if err != nil {
		return "", fmt.Errorf("%s %s: read body: %w", method, target.Redacted(), err)
	}
	return string(data), nil
}

// decodeText converts body to UTF-8 when the response names another charset.
// Bodies without an explicit charset are taken as UTF-8.
func decodeText(body io.Reader, contentType string) (io.Reader, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body, nil
	}
	label := strings.ToLower(strings.TrimSpace(params["charset"]))
	if label == "" || label == "utf-8" || label == "utf8" {
		return body, nil
	}
	return charset.NewReaderLabel(label, body)
}
