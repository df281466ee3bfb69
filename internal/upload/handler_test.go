package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uploadee/relay/internal/session"
	"github.com/uploadee/relay/internal/uploadee"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(svc *Service, maxBytes int64) http.Handler {
	r := chi.NewRouter()
	r.Route("/uploads", NewHandler(svc, maxBytes, nil).Routes)
	return r
}

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func relayReturning(res *uploadee.Result, err error) RelayFunc {
	return func(context.Context, string) (*uploadee.Result, error) { return res, err }
}

func TestCreateRelaysFile(t *testing.T) {
	svc := NewService(Config{Relay: relayReturning(okResult(), nil), Store: &memStore{}, TempDir: t.TempDir()})
	body, ct := multipartBody(t, "file", "photo.jpg", "jpeg bytes")
	req := httptest.NewRequest(http.MethodPost, "/uploads/", body)
	req.Header.Set("Content-Type", ct)

	code, env := do(t, newTestRouter(svc, 1<<20), req)
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.True(t, env.Success)

	var u Upload
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "photo.jpg", u.FileName)
	assert.Equal(t, int64(len("jpeg bytes")), u.SizeBytes)
	assert.Equal(t, "https://host/files/abc123", *u.Link)
}

func TestCreateRequiresFileField(t *testing.T) {
	svc := NewService(Config{Relay: relayReturning(okResult(), nil), TempDir: t.TempDir()})
	body, ct := multipartBody(t, "attachment", "a.txt", "x")
	req := httptest.NewRequest(http.MethodPost, "/uploads/", body)
	req.Header.Set("Content-Type", ct)

	code, env := do(t, newTestRouter(svc, 1<<20), req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestCreateRejectsNonMultipart(t *testing.T) {
	svc := NewService(Config{Relay: relayReturning(okResult(), nil), TempDir: t.TempDir()})
	req := httptest.NewRequest(http.MethodPost, "/uploads/", bytes.NewBufferString(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	code, _ := do(t, newTestRouter(svc, 1<<20), req)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateRejectsOversizedFile(t *testing.T) {
	svc := NewService(Config{Relay: relayReturning(okResult(), nil), TempDir: t.TempDir()})
	body, ct := multipartBody(t, "file", "big.bin", string(make([]byte, 2048)))
	req := httptest.NewRequest(http.MethodPost, "/uploads/", body)
	req.Header.Set("Content-Type", ct)

	code, env := do(t, newTestRouter(svc, 1024), req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "file exceeds 1.0 KiB", env.Error)
}

func TestCreateMapsRelayErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "protocol", err: uploadee.ErrNoUploadID, want: http.StatusBadGateway},
		{name: "status", err: fmt.Errorf("reserve upload id: %w", &session.StatusError{Status: "503 Service Unavailable", StatusCode: 503}), want: http.StatusBadGateway},
		{name: "timeout", err: fmt.Errorf("upload file: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "other", err: errors.New("disk on fire"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Config{Relay: relayReturning(nil, tt.err), TempDir: t.TempDir()})
			body, ct := multipartBody(t, "file", "a.txt", "x")
			req := httptest.NewRequest(http.MethodPost, "/uploads/", body)
			req.Header.Set("Content-Type", ct)

			code, env := do(t, newTestRouter(svc, 1<<20), req)
			assert.Equal(t, tt.want, code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestGetUpload(t *testing.T) {
	id := "0b4f5c3e-1d7b-4a61-9a34-2f1c6a8f9e10"
	store := &memStore{uploads: []Upload{{ID: id, FileName: "a.txt", Status: StatusSucceeded}}}
	h := newTestRouter(NewService(Config{Store: store}), 1<<20)

	code, env := do(t, h, httptest.NewRequest(http.MethodGet, "/uploads/"+id, nil))
	require.Equal(t, http.StatusOK, code)
	var u Upload
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, id, u.ID)

	code, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/uploads/7d1f0a52-8a9c-4c1e-b1f2-0e3d4c5b6a79", nil))
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/uploads/nope", nil))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListUploads(t *testing.T) {
	store := &memStore{uploads: []Upload{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	h := newTestRouter(NewService(Config{Store: store}), 1<<20)

	code, env := do(t, h, httptest.NewRequest(http.MethodGet, "/uploads/?limit=2", nil))
	require.Equal(t, http.StatusOK, code)
	var uploads []Upload
	require.NoError(t, json.Unmarshal(env.Data, &uploads))
	require.Len(t, uploads, 2)
	assert.Equal(t, "3", uploads[0].ID)

	for _, bad := range []string{"0", "101", "ten"} {
		code, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/uploads/?limit="+bad, nil))
		assert.Equal(t, http.StatusBadRequest, code, bad)
	}
}

func TestLookupsReportDisabledHistory(t *testing.T) {
	h := newTestRouter(NewService(Config{}), 1<<20)
	code, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/uploads/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
