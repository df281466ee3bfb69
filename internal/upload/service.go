package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/uploadee/relay/internal/metrics"
	"github.com/uploadee/relay/internal/session"
	"github.com/uploadee/relay/internal/storage"
	"github.com/uploadee/relay/internal/uploadee"
)

var (
	// ErrInvalidFileName is returned when the submitted file has no usable name.
	ErrInvalidFileName = errors.New("file name is required")
	// ErrHistoryDisabled is returned by lookups when no database is configured.
	ErrHistoryDisabled = errors.New("upload history is disabled")
)

// Store persists relay outcomes. *Repository implements it.
type Store interface {
	Create(ctx context.Context, u *Upload) error
	GetByID(ctx context.Context, id string) (*Upload, error)
	List(ctx context.Context, limit int) ([]Upload, error)
}

// RelayFunc uploads the file at path to upload.ee.
type RelayFunc func(ctx context.Context, path string) (*uploadee.Result, error)

// SessionRelay returns a RelayFunc that opens a fresh Session for every call,
// so concurrent relays never share cookies.
func SessionRelay(opts session.Options, logger *slog.Logger) RelayFunc {
	return func(ctx context.Context, path string) (*uploadee.Result, error) {
		s, err := session.New(opts)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return uploadee.NewClient(s, uploadee.WithLogger(logger)).Upload(ctx, path)
	}
}

// Input is one file submitted for relay.
type Input struct {
	FileName    string
	ContentType string
	Body        io.Reader
	RequestedBy string
}

// Config wires the Service. Store, Archive and Observer are optional.
type Config struct {
	Relay         RelayFunc
	Store         Store
	Archive       storage.Storage
	Observer      metrics.Observer
	MaxConcurrent int64
	TempDir       string
	Logger        *slog.Logger
}

// Service relays files and records the outcomes.
type Service struct {
	relay    RelayFunc
	store    Store
	archive  storage.Storage
	observer metrics.Observer
	sem      *semaphore.Weighted
	tempDir  string
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(cfg Config) *Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Observer == nil {
		cfg.Observer = metrics.Nop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		relay:    cfg.Relay,
		store:    cfg.Store,
		archive:  cfg.Archive,
		observer: cfg.Observer,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		tempDir:  cfg.TempDir,
		logger:   cfg.Logger,
	}
}

// HistoryEnabled reports whether relays are recorded.
func (s *Service) HistoryEnabled() bool { return s.store != nil }

// Relay spools in to disk, forwards it to upload.ee and records the outcome.
// A failed relay is recorded too, but only the error is returned.
func (s *Service) Relay(ctx context.Context, in Input) (*Upload, error) {
	name := cleanFileName(in.FileName)
	if name == "" {
		return nil, ErrInvalidFileName
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for relay slot: %w", err)
	}
	defer s.sem.Release(1)

	dir, err := os.MkdirTemp(s.tempDir, "uploadee-*")
	if err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	size, err := spool(path, in.Body)
	if err != nil {
		return nil, err
	}

	rec := &Upload{ID: uuid.NewString(), FileName: name, SizeBytes: size, Status: StatusSucceeded}
	if in.RequestedBy != "" {
		rec.RequestedBy = &in.RequestedBy
	}
	s.archiveCopy(ctx, rec, path, in.ContentType)

	start := time.Now()
	res, relayErr := s.relay(ctx, path)
	s.observer.RecordRelay(time.Since(start), size, relayErr)

	if relayErr != nil {
		msg := relayErr.Error()
		rec.Status = StatusFailed
		rec.Error = &msg
		s.logger.Warn("relay failed", "id", rec.ID, "file", name, "kind", metrics.FailureKind(relayErr), "error", relayErr)
	} else {
		rec.UploadID = &res.UploadID
		rec.Link = &res.URL
		s.logger.Info("relay succeeded", "id", rec.ID, "file", name, "size", size, "link", res.URL)
	}

	// The outcome is recorded even when the caller has gone away.
	s.record(context.WithoutCancel(ctx), rec)

	if relayErr != nil {
		return nil, relayErr
	}
	return rec, nil
}

// Get returns one recorded relay.
func (s *Service) Get(ctx context.Context, id string) (*Upload, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fillArchiveURL(u)
	return u, nil
}

// List returns the latest recorded relays, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Upload, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	uploads, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range uploads {
		s.fillArchiveURL(&uploads[i])
	}
	return uploads, nil
}

// archiveCopy stores the spooled file in object storage. Archive failures are
// logged and do not stop the relay.
func (s *Service) archiveCopy(ctx context.Context, rec *Upload, path, contentType string) {
	if s.archive == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("archive: open spooled file", "id", rec.ID, "error", err)
		return
	}
	defer f.Close()

	key := storage.ArchiveKey(rec.ID, rec.FileName)
	if err := s.archive.Upload(ctx, key, f, rec.SizeBytes, contentType); err != nil {
		s.logger.Warn("archive: upload", "id", rec.ID, "key", key, "error", err)
		return
	}
	rec.ArchiveKey = &key
	s.fillArchiveURL(rec)
}

// record persists rec. When it cannot be stored the archived copy is removed,
// since nothing would reference it.
func (s *Service) record(ctx context.Context, rec *Upload) {
	if s.store == nil {
		return
	}
	if err := s.store.Create(ctx, rec); err != nil {
		s.logger.Error("record relay", "id", rec.ID, "error", err)
		if rec.ArchiveKey != nil {
			if derr := s.archive.Delete(ctx, *rec.ArchiveKey); derr != nil {
				s.logger.Warn("archive: delete orphan", "key", *rec.ArchiveKey, "error", derr)
			}
			rec.ArchiveKey = nil
			rec.ArchiveURL = nil
		}
	}
}

func (s *Service) fillArchiveURL(u *Upload) {
	if s.archive == nil || u.ArchiveKey == nil {
		return
	}
	url := s.archive.PublicURL(*u.ArchiveKey)
	u.ArchiveURL = &url
}

func spool(path string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create spool file: %w", err)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("spool upload: %w", err)
	}
	return n, nil
}

// cleanFileName reduces a client-supplied name to its base name. Windows
// separators are honoured because browsers on Windows may send full paths.
func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case ".", "..", "/", "":
		return ""
	}
	return name
}
