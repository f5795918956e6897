package verify

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackops/upctl/internal/pkg/health"
	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

type testDeps struct {
	clock  clockwork.Clock
	logger log.Logger
}

func (d *testDeps) Clock() clockwork.Clock { return d.clock }
func (d *testDeps) Logger() log.Logger     { return d.logger }

func TestGate_Verified(t *testing.T) {
	t.Parallel()
	g := NewGate(&testDeps{clock: clockwork.NewFakeClock(), logger: log.NewDebugLogger()})

	check := Short(health.ProbeFunc("app-version", func(ctx context.Context) (bool, error) {
		return true, nil
	}))
	require.NoError(t, g.Verify(context.Background(), check))
}

func TestGate_NotVerified(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClock()
	g := NewGate(&testDeps{clock: clk, logger: log.NewDebugLogger()})

	check := Check{
		Probe: health.ProbeFunc("app-version", func(ctx context.Context) (bool, error) {
			return false, nil
		}),
		Interval: 10 * time.Second,
		Timeout:  25 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Verify(context.Background(), check)
	}()

	for i := 0; i < 3; i++ {
		clk.BlockUntil(2)
		clk.Advance(10 * time.Second)
	}

	err := <-errCh
	require.Error(t, err)

	// The outcome is distinguished from a generic error
	assert.True(t, errors.Is(err, ErrNotVerified))
	assert.Contains(t, err.Error(), `check "app-version" did not pass`)
}

func TestGate_UnreachableIsNotYet(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClock()
	g := NewGate(&testDeps{clock: clk, logger: log.NewDebugLogger()})

	calls := 0
	check := Check{
		Probe: health.ProbeFunc("index-count", func(ctx context.Context) (bool, error) {
			calls++
			if calls == 1 {
				return false, assert.AnError // unreachable
			}
			return true, nil
		}),
		Interval: time.Second,
		Timeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Verify(context.Background(), check)
	}()

	clk.BlockUntil(2)
	clk.Advance(time.Second)

	require.NoError(t, <-errCh)
}

func TestPresets(t *testing.T) {
	t.Parallel()
	probe := health.ProbeFunc("x", func(ctx context.Context) (bool, error) { return true, nil })
	assert.Equal(t, ShortTimeout, Short(probe).Timeout)
	assert.Equal(t, LongTimeout, Long(probe).Timeout)
	assert.Less(t, ShortTimeout, LongTimeout)
}
