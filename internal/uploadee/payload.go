package uploadee

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// formBoundary is the boundary upload.ee's upload script is known to accept.
const formBoundary = "----WebKitFormBoundaryRcbpCXRhM2idX4Yq"

const filePartName = "upfile_0"

// formFields follow the file part in this order. The quotes are part of the
// names: upload.ee rejects the request with an XML parse error unless the
// Content-Disposition name is quoted exactly like this.
var formFields = []struct {
	name  string
	value string
}{
	{`"link"`, ""},
	{`"email"`, ""},
	{`"category"`, "cat_file"},
	{`"big_resize"`, "none"},
	{`"small_resize"`, "120x90"},
}

// payload is the multipart upload body. The file is streamed between the
// pre-encoded head and tail so the total length is known up front.
type payload struct {
	file        *os.File
	name        string
	size        int64
	head        []byte
	tail        []byte
	contentType string
}

func openPayload(path string) (*payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	name := filepath.Base(path)
	head, tail, contentType, err := encodeForm(name)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &payload{
		file:        f,
		name:        name,
		size:        info.Size(),
		head:        head,
		tail:        tail,
		contentType: contentType,
	}, nil
}

// Reader returns the complete body. It may be consumed once.
func (p *payload) Reader() io.Reader {
	return io.MultiReader(
		bytes.NewReader(p.head),
		io.NewSectionReader(p.file, 0, p.size),
		bytes.NewReader(p.tail),
	)
}

// Len is the exact body length in bytes.
func (p *payload) Len() int64 {
	return int64(len(p.head)) + p.size + int64(len(p.tail))
}

func (p *payload) ContentType() string { return p.contentType }

func (p *payload) Close() error {
	return p.file.Close()
}

// encodeForm renders everything around the file bytes: the file part header
// goes to head, the remaining parts and the closing boundary go to tail.
func encodeForm(filename string) (head, tail []byte, contentType string, err error) {
	var headBuf, tailBuf bytes.Buffer
	sw := &switchWriter{w: &headBuf}

	mw := multipart.NewWriter(sw)
	if err := mw.SetBoundary(formBoundary); err != nil {
		return nil, nil, "", fmt.Errorf("set boundary: %w", err)
	}

	_, err = mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="%s"; filename="%s"`, filePartName, escapeQuotes(filename))},
	})
	if err != nil {
		return nil, nil, "", fmt.Errorf("write file part: %w", err)
	}

	sw.w = &tailBuf
	for _, field := range formFields {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {"form-data; name=" + field.name},
			"Content-Type":        {"text/plain; charset=utf-8"},
		})
		if err != nil {
			return nil, nil, "", fmt.Errorf("write field %s: %w", field.name, err)
		}
		if _, err := io.WriteString(pw, field.value); err != nil {
			return nil, nil, "", fmt.Errorf("write field %s: %w", field.name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("close form: %w", err)
	}

	return headBuf.Bytes(), tailBuf.Bytes(), mw.FormDataContentType(), nil
}

type switchWriter struct {
	w io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) { return s.w.Write(p) }

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
