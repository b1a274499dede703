package transport

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
)

// outboundTimeout bounds every document fetch a sample tool makes; a
// hung origin should fail the tool call, not wedge the dispatcher's
// worker.
const outboundTimeout = 30 * time.Second

var (
	outboundOnce   sync.Once
	outboundClient *http.Client
)

// OutboundClient returns the process-wide HTTP client used for
// tool-initiated fetches. It follows redirects up to the stdlib limit
// and honors proxy settings from the environment.
func OutboundClient() *http.Client {
	outboundOnce.Do(func() {
		outboundClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
			Timeout: outboundTimeout,
		}
	})
	return outboundClient
}

// FetchDocument retrieves the document at docURL and returns its
// decoded bytes. The request advertises gzip, deflate and brotli
// support and transparently decompresses whichever encoding the
// origin picked. A non-200 status is an error.
func FetchDocument(docURL string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")

	resp, err := OutboundClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", docURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", docURL, resp.StatusCode)
	}

	body, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", docURL, err)
	}
	return body, nil
}

// decodeBody reads r through the decompressor matching encoding. An
// empty or unrecognized encoding reads the body as-is.
func decodeBody(r io.Reader, encoding string) ([]byte, error) {
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		fl := flate.NewReader(r)
		defer fl.Close()
		r = fl
	case "br":
		r = brotli.NewReader(r)
	}
	return io.ReadAll(r)
}
