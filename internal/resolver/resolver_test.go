package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"telecloud/internal/domain"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ResolveLocation(ctx context.Context, objectID string) (string, error) {
	args := m.Called(ctx, objectID)
	return args.String(0), args.Error(1)
}

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func netFailure() error {
	return &url.Error{Op: "Get", URL: "https://api.telegram.org", Err: &net.OpError{Op: "dial", Err: errors.New("connection reset")}}
}

func TestResolve_Success(t *testing.T) {
	p := new(MockProvider)
	p.On("ResolveLocation", mock.Anything, "obj").Return("https://cdn/x", nil).Once()

	loc, err := New(p).Resolve(context.Background(), "obj")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x", loc)
	p.AssertExpectations(t)
}

func TestResolve_NeverCaches(t *testing.T) {
	p := new(MockProvider)
	p.On("ResolveLocation", mock.Anything, "obj").Return("https://cdn/1", nil).Once()
	p.On("ResolveLocation", mock.Anything, "obj").Return("https://cdn/2", nil).Once()
	r := New(p)

	first, err := r.Resolve(context.Background(), "obj")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "obj")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn/1", first)
	assert.Equal(t, "https://cdn/2", second)
	p.AssertNumberOfCalls(t, "ResolveLocation", 2)
}

func TestResolve_RetriesTransientOnce(t *testing.T) {
	p := new(MockProvider)
	p.On("ResolveLocation", mock.Anything, "obj").Return("", netFailure()).Once()
	p.On("ResolveLocation", mock.Anything, "obj").Return("https://cdn/x", nil).Once()

	loc, err := New(p, WithRetryDelay(time.Millisecond)).Resolve(context.Background(), "obj")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x", loc)
	p.AssertNumberOfCalls(t, "ResolveLocation", 2)
}

func TestResolve_GivesUpAfterSecondTransient(t *testing.T) {
	p := new(MockProvider)
	p.On("ResolveLocation", mock.Anything, "obj").Return("", netFailure())

	_, err := New(p, WithRetryDelay(time.Millisecond)).Resolve(context.Background(), "obj")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	p.AssertNumberOfCalls(t, "ResolveLocation", 2)
}

func TestResolve_NoRetryOnProviderError(t *testing.T) {
	p := new(MockProvider)
	p.On("ResolveLocation", mock.Anything, "obj").Return("", errors.New("Bad Request: wrong file_id"))

	_, err := New(p).Resolve(context.Background(), "obj")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	p.AssertNumberOfCalls(t, "ResolveLocation", 1)
}

func TestResolve_RateLimited(t *testing.T) {
	p := new(MockProvider)
	l := new(MockLimiter)
	l.On("Allow", mock.Anything, "resolve").Return(false, nil)

	_, err := New(p, WithLimiter(l)).Resolve(context.Background(), "obj")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	p.AssertNotCalled(t, "ResolveLocation", mock.Anything, mock.Anything)
}

func TestResolve_LimiterFailsOpen(t *testing.T) {
	p := new(MockProvider)
	p.On("ResolveLocation", mock.Anything, "obj").Return("https://cdn/x", nil)
	l := new(MockLimiter)
	l.On("Allow", mock.Anything, "resolve").Return(false, errors.New("redis down"))

	loc, err := New(p, WithLimiter(l)).Resolve(context.Background(), "obj")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x", loc)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(netFailure()))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(errors.New("file is too big")))
	assert.False(t, IsTransient(nil))
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestResolve_HidesProviderURL(t *testing.T) {
	buf := captureLog(t)

	leak := fmt.Errorf("getFile obj: %w", &url.Error{
		Op:  "Post",
		URL: "http://127.0.0.1:8081/bot999:SECRETTOKEN/getFile",
		Err: io.EOF,
	})
	p := new(MockProvider)
	p.On("ResolveLocation", mock.Anything, "obj").Return("", leak)

	_, err := New(p, WithRetryDelay(time.Millisecond)).Resolve(context.Background(), "obj")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	assert.NotContains(t, err.Error(), "SECRETTOKEN")
	assert.NotContains(t, err.Error(), "127.0.0.1")
	assert.NotContains(t, buf.String(), "SECRETTOKEN")
	assert.Contains(t, buf.String(), "resolve failed")
	p.AssertNumberOfCalls(t, "ResolveLocation", 2)
}

func TestRedact(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &url.Error{
		Op:  "Get",
		URL: "https://bucket.s3.amazonaws.com/key?X-Amz-Signature=abc123",
		Err: io.ErrUnexpectedEOF,
	})

	redacted := Redact(err)
	assert.Equal(t, "fetch: Get https://bucket.s3.amazonaws.com/[redacted]: unexpected EOF", redacted.Error())
	assert.True(t, errors.Is(redacted, io.ErrUnexpectedEOF))

	plain := errors.New("Bad Request: wrong file_id")
	assert.Equal(t, plain, Redact(plain))
	assert.Nil(t, Redact(nil))
}
