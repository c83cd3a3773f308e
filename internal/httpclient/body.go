package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is the value we advertise when fetching playlist bodies.
// Setting it manually disables net/http's transparent gzip, so DecodedBody
// must be used to read the response.
const AcceptEncoding = "gzip, br"

// DecodedBody wraps resp.Body according to Content-Encoding. Large playlist
// exports are commonly served gzip- or brotli-compressed.
// The returned reader must be closed by the caller; closing it closes resp.Body.
func DecodedBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return &decodedReader{r: zr, underlying: resp.Body}, nil
	case "br":
		return &decodedReader{r: brotli.NewReader(resp.Body), underlying: resp.Body}, nil
	default:
		return resp.Body, nil
	}
}

type decodedReader struct {
	r          io.Reader
	underlying io.Closer
}

func (d *decodedReader) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *decodedReader) Close() error {
	if c, ok := d.r.(io.Closer); ok {
		c.Close()
	}
	return d.underlying.Close()
}
