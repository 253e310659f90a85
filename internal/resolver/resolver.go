// Package resolver turns an opaque object id into a temporary fetch
// location. Locations are handed straight to the caller and never kept.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"telecloud/internal/domain"
)

// Provider is a remote object store that can hand out temporary URLs.
type Provider interface {
	ResolveLocation(ctx context.Context, objectID string) (string, error)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Resolver struct {
	provider   Provider
	limiter    Limiter
	retryDelay time.Duration
}

type Option func(*Resolver)

// WithLimiter makes every resolve consume one slot of the shared limit.
func WithLimiter(l Limiter) Option {
	return func(r *Resolver) { r.limiter = l }
}

func WithRetryDelay(d time.Duration) Option {
	return func(r *Resolver) { r.retryDelay = d }
}

func New(provider Provider, opts ...Option) *Resolver {
	r := &Resolver{
		provider:   provider,
		retryDelay: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve asks the provider for a fetch location of objectID. A transient
// network failure is retried once. Every failure is reported as
// domain.ErrUpstreamUnavailable; the provider's cause is only logged.
func (r *Resolver) Resolve(ctx context.Context, objectID string) (string, error) {
	if objectID == "" {
		return "", fmt.Errorf("empty object id: %w", domain.ErrUpstreamUnavailable)
	}

	if r.limiter != nil {
		ok, err := r.limiter.Allow(ctx, "resolve")
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		case !ok:
			return "", fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, domain.ErrRateLimited)
		}
	}

	location, err := r.provider.ResolveLocation(ctx, objectID)
	if err != nil && IsTransient(err) && ctx.Err() == nil {
		log.Debug().Err(Redact(err)).Str("object_id", objectID).Msg("retrying resolve")

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, ctx.Err())
		case <-time.After(r.retryDelay):
		}
		location, err = r.provider.ResolveLocation(ctx, objectID)
	}
	if err != nil {
		log.Warn().Err(Redact(err)).Str("object_id", objectID).Msg("resolve failed")
		return "", fmt.Errorf("resolve %s: %w", objectID, domain.ErrUpstreamUnavailable)
	}

	return location, nil
}

// IsTransient reports whether err is a network-level failure worth one
// more attempt. Cancellation by the caller is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
