package retry

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig() Config {
	return Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("503 from upstream")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	failure := errors.New("still failing")
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return failure
	})
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 4, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	rejected := errors.New("400 bad request")
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return Permanent(rejected)
	})
	assert.Equal(t, rejected, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastConfig(), func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("invalid payload")))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.False(t, IsRetryable(context.Canceled))

	refused := &url.Error{Op: "Post", URL: "http://127.0.0.1:1", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	assert.True(t, IsRetryable(refused))
	assert.True(t, IsRetryable(&url.Error{Op: "Post", URL: "http://hooks.example", Err: io.EOF}))

	badCert := &url.Error{Op: "Post", URL: "https://hooks.example", Err: x509.UnknownAuthorityError{}}
	assert.False(t, IsRetryable(badCert))
	assert.False(t, IsRetryable(&url.Error{Op: "Post", URL: "https://hooks.example", Err: errors.New("unsupported protocol scheme")}))
}
