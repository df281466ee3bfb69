package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeUploadee(t *testing.T, finish string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ubr_link_upload.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `parent.startUpload("u42",0,"");`)
	})
	mux.HandleFunc("/cgi-bin/ubr_upload.pl", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `location.href='/?page=finished&upload_id=u42';`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, finish)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestUploadPrintsLink(t *testing.T) {
	srv := fakeUploadee(t, `Файл можно увидеть здесь:<br /><a href="https://host/files/u42">x</a>`)
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o600))

	stdout, stderr, err := run(t, "upload", path, "--base-url", srv.URL, "-v")
	require.NoError(t, err)
	assert.Equal(t, "https://host/files/u42\n", stdout)
	assert.Contains(t, stderr, "uploading a.txt (2 B)")
}

func TestUploadReportsError(t *testing.T) {
	srv := fakeUploadee(t, `<html>gone</html>`)
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o600))

	stdout, stderr, err := run(t, "upload", path, "--base-url", srv.URL)
	require.Error(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, "Error: upload.ee: link to the uploaded file not found\n", stderr)
}

func TestUploadMissingFile(t *testing.T) {
	_, stderr, err := run(t, "upload", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(stderr, "Error: "), stderr)
}

func TestUploadRequiresOneArgument(t *testing.T) {
	_, _, err := run(t, "upload")
	assert.Error(t, err)
}
