package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("store down")

func testConfig() *BreakerConfig {
	cfg := DefaultBreakerConfig("test-store")
	cfg.ConsecutiveFailures = 3
	cfg.ResetTimeout = 30 * time.Millisecond
	cfg.CallTimeout = time.Second
	return cfg
}

func TestBreaker_OpensAfterThresholdAndFailsFast(t *testing.T) {
	b := NewBreaker(testConfig())
	ctx := context.Background()
	var calls int32

	failing := func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errStore
	}

	for i := 0; i < 3; i++ {
		err := b.Execute(ctx, failing)
		require.ErrorIs(t, err, errStore)
	}
	assert.Equal(t, "open", b.State())

	for i := 0; i < 5; i++ {
		err := b.Execute(ctx, failing)
		assert.ErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "open breaker must not invoke the store")
}

func TestBreaker_HalfOpenTrialCloses(t *testing.T) {
	b := NewBreaker(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, func(context.Context) error { return errStore })
	}
	require.True(t, b.IsOpen())

	time.Sleep(50 * time.Millisecond)

	err := b.Execute(ctx, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, func(context.Context) error { return errStore })
	}
	time.Sleep(50 * time.Millisecond)

	err := b.Execute(ctx, func(context.Context) error { return errStore })
	require.ErrorIs(t, err, errStore)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_IsSuccessfulErrorsDoNotTrip(t *testing.T) {
	errMissing := errors.New("missing")
	cfg := testConfig()
	cfg.IsSuccessful = func(err error) bool { return errors.Is(err, errMissing) }
	b := NewBreaker(cfg)

	for i := 0; i < 10; i++ {
		err := b.Execute(context.Background(), func(context.Context) error { return errMissing })
		assert.ErrorIs(t, err, errMissing)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_TimeoutCountsAsFailure(t *testing.T) {
	cfg := testConfig()
	cfg.CallTimeout = 10 * time.Millisecond
	cfg.ConsecutiveFailures = 1
	b := NewBreaker(cfg)

	err := b.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, ErrCallTimeout)
	assert.True(t, b.IsOpen())
}

func TestBreaker_CallerCancellationNotPropagated(t *testing.T) {
	b := NewBreaker(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func(callCtx context.Context) error {
		return callCtx.Err()
	})
	assert.NoError(t, err)
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cfg := testConfig()
	cfg.OnStateChange = func(name, from, to string) {
		transitions = append(transitions, from+"->"+to)
	}
	b := NewBreaker(cfg)

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), func(context.Context) error { return errStore })
	}
	assert.Equal(t, []string{"closed->open"}, transitions)
	assert.Equal(t, "test-store", b.Stats().Name)
}
