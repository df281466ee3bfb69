package session

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// browserTransport stamps the browser headers onto every outgoing request,
// redirect hops included, and transparently decodes gzip and deflate bodies.
// Setting Accept-Encoding by hand turns off net/http's own gzip handling, so
// decompression has to happen here.
type browserTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	out := req.Clone(req.Context())
	for k, v := range t.headers {
		out.Header[k] = append([]string(nil), v...)
	}
	out.Header.Del("Expect")

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if err := decompress(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the
// wrapped transport.
func (t *browserTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := t.base.(closeIdler); ok {
		c.CloseIdleConnections()
	}
}

func decompress(resp *http.Response) error {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if encoding == "" || encoding == "identity" || resp.Body == nil || resp.Body == http.NoBody ||
		resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified {
		return nil
	}

	var (
		r   io.ReadCloser
		err error
	)
	switch encoding {
	case "gzip", "x-gzip":
		r, err = newDecodedBody(resp.Body, func(br *bufio.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(br)
		})
	case "deflate":
		r, err = newDecodedBody(resp.Body, newDeflateReader)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode %s response: %w", encoding, err)
	}

	resp.Body = r
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// newDeflateReader accepts both zlib-wrapped (RFC 1950) and raw (RFC 1951)
// deflate streams; servers disagree on what "deflate" means.
func newDeflateReader(br *bufio.Reader) (io.ReadCloser, error) {
	head, err := br.Peek(2)
	if err == nil && isZlibHeader(head[0], head[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// decodedBody closes both the decoder and the underlying response body.
type decodedBody struct {
	io.ReadCloser
	body io.Closer
}

func newDecodedBody(body io.ReadCloser, open func(*bufio.Reader) (io.ReadCloser, error)) (io.ReadCloser, error) {
	dec, err := open(bufio.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &decodedBody{ReadCloser: dec, body: body}, nil
}

func (r *decodedBody) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.body.Close(); err == nil {
		err = cerr
	}
	return err
}
