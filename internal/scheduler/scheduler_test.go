package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New(context.Background(), "every tuesday", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRunNow(t *testing.T) {
	var calls atomic.Int32
	s, err := New(context.Background(), "0 30 22 * * 1-5", func(context.Context) error {
		calls.Add(1)
		return errors.New("logged, not returned")
	})
	require.NoError(t, err)

	s.RunNow()
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunNow_SkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	s, err := New(ctx, "@daily", func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	s.RunNow()
	assert.Zero(t, calls.Load())
}

func TestStart_FiresOnSchedule(t *testing.T) {
	fired := make(chan struct{}, 1)
	s, err := New(context.Background(), "@every 1s", func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background())
	assert.False(t, s.Next().IsZero())

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("task never fired")
	}
}
