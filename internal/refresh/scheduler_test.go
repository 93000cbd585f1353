package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (l *countingLoader) Load(ctx context.Context) error {
	l.calls.Add(1)
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return l.err
}

type recordingObserver struct {
	mu   sync.Mutex
	errs []error
}

func (o *recordingObserver) ObserveRefresh(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func TestParseSchedule(t *testing.T) {
	for _, expr := range []string{"@every 5m", "*/10 * * * *", "0 */5 * * * *", "@hourly"} {
		_, err := ParseSchedule(expr)
		assert.NoError(t, err, expr)
	}

	_, err := ParseSchedule("every five minutes")
	assert.Error(t, err)
}

func TestScheduler_RunNow(t *testing.T) {
	loader := &countingLoader{err: errors.New("backend down")}
	obs := &recordingObserver{}
	s := NewScheduler(loader, DefaultConfig(), zerolog.Nop())
	s.SetObserver(obs)

	err := s.RunNow(context.Background())
	require.Error(t, err)

	last, lastErr := s.LastRun()
	assert.False(t, last.IsZero())
	assert.EqualError(t, lastErr, "backend down")

	loader.err = nil
	require.NoError(t, s.RunNow(context.Background()))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.errs, 2)
	assert.Error(t, obs.errs[0])
	assert.NoError(t, obs.errs[1])
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	loader := &countingLoader{}
	s := NewScheduler(loader, Config{Schedule: "@every 1s", Timeout: time.Second}, zerolog.Nop())

	require.NoError(t, s.Start())
	assert.False(t, s.NextRun().IsZero())

	require.Eventually(t, func() bool { return loader.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	<-s.Stop().Done()
	assert.True(t, s.NextRun().IsZero())

	n := loader.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, n, loader.calls.Load())
}

func TestScheduler_StartErrors(t *testing.T) {
	s := NewScheduler(&countingLoader{}, Config{}, zerolog.Nop())
	assert.Error(t, s.Start())

	s = NewScheduler(&countingLoader{}, Config{Schedule: "not a schedule"}, zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestScheduler_StopWhenNotRunning(t *testing.T) {
	s := NewScheduler(&countingLoader{}, DefaultConfig(), zerolog.Nop())

	select {
	case <-s.Stop().Done():
	default:
		t.Fatal("expected a done context when the scheduler never started")
	}
}

func TestScheduler_TimeoutBoundsReload(t *testing.T) {
	loader := &countingLoader{delay: time.Second}
	s := NewScheduler(loader, Config{Schedule: "@every 1m", Timeout: 20 * time.Millisecond}, zerolog.Nop())

	s.tick()

	_, err := s.LastRun()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
