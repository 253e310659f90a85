package proxy

import (
	"context"
	"net/http"
)

type Resolver interface {
	Resolve(ctx context.Context, objectID string) (string, error)
}

// Streamer resolves an object id and relays it in one step. The location
// lives only for the duration of the call.
type Streamer struct {
	resolver Resolver
	proxy    *Proxy
}

func NewStreamer(resolver Resolver, proxy *Proxy) *Streamer {
	return &Streamer{resolver: resolver, proxy: proxy}
}

func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, objectID string, opts Options) error {
	location, err := s.resolver.Resolve(r.Context(), objectID)
	if err != nil {
		return err
	}
	return s.proxy.Serve(w, r, location, opts)
}
