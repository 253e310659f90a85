// Package proxy relays bytes from a temporary upstream location to the
// client, with partial content for seekable media.
//
// Failure before the first byte is written is returned to the caller, which
// answers 502. Once headers are sent nothing can be corrected: an upstream
// failure mid-stream aborts the client connection, and the client sees a
// truncated body. That partial delivery is a known failure mode.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"telecloud/internal/domain"
	"telecloud/internal/resolver"
)

const copyBufferSize = 32 * 1024

// Disposition selects how the browser treats the body.
type Disposition struct {
	Attachment bool
	Filename   string
}

func Inline() Disposition {
	return Disposition{}
}

func Attachment(filename string) Disposition {
	return Disposition{Attachment: true, Filename: filename}
}

func (d Disposition) header() string {
	if !d.Attachment {
		return "inline"
	}
	return fmt.Sprintf(`attachment; filename="%s"`, SanitizeFilename(d.Filename))
}

// Options describe the object being relayed.
type Options struct {
	ContentType string
	Seekable    bool
	Disposition Disposition
}

type Proxy struct {
	client *http.Client
}

// New returns a proxy using client for upstream fetches. The client must not
// have an overall Timeout, streams can be long.
func New(client *http.Client) *Proxy {
	if client == nil {
		client = http.DefaultClient
	}
	return &Proxy{client: client}
}

// Serve fetches location and writes it to w. The client's Range header is
// forwarded verbatim only for seekable media. The upstream request is bound
// to r's context, so a client disconnect closes it.
func (p *Proxy) Serve(w http.ResponseWriter, r *http.Request, location string, opts Options) error {
	ctx := r.Context()

	rangeHeader, err := clientRange(r.Header.Get("Range"), opts.Seekable)
	if err != nil {
		return err
	}

	resp, err := p.fetch(ctx, location, rangeHeader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	status, err := checkStatus(resp, rangeHeader != "")
	if err != nil {
		return err
	}

	h := w.Header()
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Disposition", opts.Disposition.header())
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		h.Set("Content-Length", cl)
	}
	if opts.Seekable {
		h.Set("Accept-Ranges", "bytes")
	}
	if status == http.StatusPartialContent {
		h.Set("Content-Range", resp.Header.Get("Content-Range"))
	}
	w.WriteHeader(status)

	written, err := io.CopyBuffer(w, resp.Body, make([]byte, copyBufferSize))
	if err != nil {
		if ctx.Err() != nil {
			log.Debug().Int64("written", written).Msg("client went away during stream")
			return nil
		}
		log.Error().Err(err).Int64("written", written).Msg("upstream stream broken after headers, aborting connection")
		panic(http.ErrAbortHandler)
	}

	return nil
}

func (p *Proxy) fetch(ctx context.Context, location, rangeHeader string) (*http.Response, error) {
	do := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}
		return p.client.Do(req)
	}

	resp, err := do()
	if err != nil && resolver.IsTransient(err) && ctx.Err() == nil {
		resp, err = do()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(resolver.Redact(err)).Msg("upstream fetch failed")
		return nil, fmt.Errorf("%w: fetch failed", domain.ErrUpstreamUnavailable)
	}

	return resp, nil
}

// clientRange returns the header to forward upstream, or "" for a plain GET.
func clientRange(header string, seekable bool) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" || !seekable {
		return "", nil
	}
	// other units are ignored as RFC 9110 allows
	if !strings.HasPrefix(header, "bytes=") {
		return "", nil
	}
	if strings.Contains(header, ",") {
		return "", fmt.Errorf("multiple ranges not supported: %w", domain.ErrRangeNotSatisfiable)
	}
	return header, nil
}

func checkStatus(resp *http.Response, ranged bool) (int, error) {
	switch {
	case resp.StatusCode == http.StatusOK:
		// the upstream may ignore Range and send everything
		return http.StatusOK, nil
	case ranged && resp.StatusCode == http.StatusPartialContent:
		return http.StatusPartialContent, nil
	case ranged && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return 0, domain.ErrRangeNotSatisfiable
	}

	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return 0, fmt.Errorf("%w: upstream status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
}
