// Package uploadee uploads files to upload.ee through its browser upload
// flow and returns the public download link.
//
// The flow has three requests: a reservation page that hands out an upload
// id inside a startUpload("<id>", ...) script call, a multipart POST to the
// upload CGI keyed by that id, and the finish page whose markup carries the
// link. None of it is a documented API; the markers below are the contract.
package uploadee

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/uploadee/relay/internal/session"
	"github.com/uploadee/relay/internal/textutil"
)

const (
	reservePath = "/ubr_link_upload.php?rnd_id=%d"
	uploadPath  = "/cgi-bin/ubr_upload.pl?X-Progress-ID=%[1]s&upload_id=%[1]s"
	finishPath  = "/?page=finished&upload_id=%s"

	uploadIDLeft   = `startUpload("`
	uploadIDRight  = `",`
	finishedMarker = "?page=finished&upload_id="
	linkLeft       = `Файл можно увидеть здесь:<br /><a href="`
	linkRight      = `">`
)

// Doer issues requests relative to the upload.ee origin. *session.Session
// implements it.
type Doer interface {
	Get(ctx context.Context, relPath string) (string, error)
	Post(ctx context.Context, relPath, contentType string, body io.Reader, size int64) (string, error)
}

// Result describes a completed upload.
type Result struct {
	UploadID string
	URL      string
	FileName string
	Size     int64
}

// Client runs uploads over a Doer. A Client adds no state of its own, but the
// Doer's cookies are shared, so concurrent uploads need separate Doers.
type Client struct {
	http   Doer
	now    func() time.Time
	logger *slog.Logger
	hook   func(from, to State)
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces time.Now for the cache-busting reservation parameter.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTransitionHook registers fn to be called on every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(c *Client) { c.hook = fn }
}

// NewClient returns a Client that talks through d.
func NewClient(d Doer, opts ...Option) *Client {
	c := &Client{http: d, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadFile opens a session with sessOpts, uploads path and closes the
// session again.
func UploadFile(ctx context.Context, path string, sessOpts session.Options, opts ...Option) (string, error) {
	s, err := session.New(sessOpts)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return NewClient(s, opts...).UploadFile(ctx, path)
}

// UploadFile uploads the file at path and returns its download link.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	res, err := c.Upload(ctx, path)
	if err != nil {
		return "", err
	}
	return res.URL, nil
}

// Upload uploads the file at path. Failures are ErrInvalidArgument,
// ErrFileNotFound, an *Error matching ErrUpload, or a wrapped transport error.
// Nothing is retried.
func (c *Client) Upload(ctx context.Context, path string) (res *Result, err error) {
	t := &tracker{c: c, path: path}
	defer func() {
		if err != nil {
			t.to(Failed)
		}
	}()

	if err := checkFile(path); err != nil {
		return nil, err
	}

	id, err := c.reserve(ctx, t)
	if err != nil {
		return nil, err
	}

	name, size, err := c.submit(ctx, t, path, id)
	if err != nil {
		return nil, err
	}

	link, err := c.resolve(ctx, t, id)
	if err != nil {
		return nil, err
	}

	return &Result{UploadID: id, URL: link, FileName: name, Size: size}, nil
}

func checkFile(path string) error {
	if path == "" {
		return ErrInvalidArgument
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}

func (c *Client) reserve(ctx context.Context, t *tracker) (string, error) {
	t.to(ReservationRequested)
	body, err := c.http.Get(ctx, fmt.Sprintf(reservePath, c.now().UnixMilli()))
	if err != nil {
		return "", fmt.Errorf("reserve upload id: %w", err)
	}

	id, ok := textutil.Between(body, uploadIDLeft, uploadIDRight)
	if !ok || id == "" {
		return "", ErrNoUploadID
	}
	t.to(ReservationObtained)
	return id, nil
}

func (c *Client) submit(ctx context.Context, t *tracker, path, id string) (string, int64, error) {
	p, err := openPayload(path)
	if err != nil {
		return "", 0, err
	}
	defer p.Close()

	t.to(UploadSubmitted)
	body, err := c.http.Post(ctx, fmt.Sprintf(uploadPath, id), p.ContentType(), p.Reader(), p.Len())
	if err != nil {
		return "", 0, fmt.Errorf("upload file: %w", err)
	}
	if !strings.Contains(body, finishedMarker) {
		return "", 0, ErrUploadRejected
	}
	return p.name, p.size, nil
}

func (c *Client) resolve(ctx context.Context, t *tracker, id string) (string, error) {
	body, err := c.http.Get(ctx, fmt.Sprintf(finishPath, id))
	if err != nil {
		return "", fmt.Errorf("fetch finish page: %w", err)
	}
	t.to(FinishPageFetched)

	link, ok := textutil.Between(body, linkLeft, linkRight)
	if !ok {
		return "", ErrLinkNotFound
	}
	t.to(LinkResolved)
	return link, nil
}

type tracker struct {
	c     *Client
	path  string
	state State
}

func (t *tracker) to(next State) {
	prev := t.state
	t.state = next
	t.c.logger.Debug("upload state", "file", t.path, "from", prev.String(), "to", next.String())
	if t.c.hook != nil {
		t.c.hook(prev, next)
	}
}
