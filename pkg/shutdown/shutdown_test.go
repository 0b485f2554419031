package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/agencysite/pkg/logging"
)

func TestShutdownRunsHooksInReverseOrder(t *testing.T) {
	m := New(time.Second, logging.NewLogger(logging.ERROR, true))

	var order []string
	for _, name := range []string{"store", "webhooks", "http"} {
		name := name
		m.Register(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	errs := m.Shutdown()
	assert.Empty(t, errs)
	assert.Equal(t, []string{"http", "webhooks", "store"}, order)

	select {
	case <-m.Done():
	default:
		t.Fatal("Done channel not closed")
	}
}

func TestShutdownCollectsErrors(t *testing.T) {
	m := New(time.Second, logging.NewLogger(logging.FATAL, true))
	boom := errors.New("boom")
	m.Register("bad", func(ctx context.Context) error { return boom })
	m.Register("good", func(ctx context.Context) error { return nil })

	errs := m.Shutdown()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)

	// hooks run once
	assert.Empty(t, m.Shutdown())
}

func TestWaitWithContextCancelled(t *testing.T) {
	m := New(time.Second, logging.NewLogger(logging.ERROR, true))
	ran := false
	m.Register("store", CloseResource(closerFunc(func() error { ran = true; return nil })))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.WaitWithContext(ctx), context.Canceled)
	assert.True(t, ran)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
