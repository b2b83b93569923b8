package resilience

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreakers(threshold int) (*HostBreakers, *fakeClock, *[]string) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var transitions []string
	b := NewHostBreakers(Settings{
		Threshold: threshold,
		Cooldown:  time.Minute,
		OnStateChange: func(host string, from, to State) {
			transitions = append(transitions, host+": "+from.String()+" -> "+to.String())
		},
		now: clock.Now,
	})
	return b, clock, &transitions
}

func fetch(t *testing.T, b *HostBreakers, host string, ok bool) error {
	t.Helper()
	release, err := b.Acquire(host)
	if err != nil {
		return err
	}
	release(ok)
	return nil
}

func TestHostBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{"stays closed on successes", []bool{true, true, true}, StateClosed},
		{"success resets the count", []bool{false, false, true, false, false}, StateClosed},
		{"opens after consecutive failures", []bool{false, false, false}, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, _ := newTestBreakers(3)
			for _, ok := range tt.requests {
				require.NoError(t, fetch(t, b, "mirror.example", ok))
			}
			assert.Equal(t, tt.expectedState, b.State("mirror.example"))
		})
	}
}

func TestHostBreakerOpenRefuses(t *testing.T) {
	b, clock, transitions := newTestBreakers(2)

	require.NoError(t, fetch(t, b, "mirror.example", false))
	require.NoError(t, fetch(t, b, "mirror.example", false))

	err := fetch(t, b, "mirror.example", true)
	assert.ErrorIs(t, err, ErrHostUnavailable)
	assert.ErrorContains(t, err, "retry in 1m0s")

	// Other hosts are unaffected.
	assert.NoError(t, fetch(t, b, "cdn.example", true))

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, fetch(t, b, "mirror.example", true), ErrHostUnavailable)

	assert.Equal(t, []string{"mirror.example: closed -> open"}, *transitions)
}

func TestHostBreakerHalfOpen(t *testing.T) {
	t.Run("probe success closes", func(t *testing.T) {
		b, clock, transitions := newTestBreakers(1)
		require.NoError(t, fetch(t, b, "mirror.example", false))
		clock.Advance(time.Minute)
		assert.Equal(t, StateHalfOpen, b.State("mirror.example"))

		release, err := b.Acquire("mirror.example")
		require.NoError(t, err)

		// Only one probe at a time.
		_, err = b.Acquire("mirror.example")
		assert.ErrorIs(t, err, ErrHostUnavailable)

		release(true)
		assert.Equal(t, StateClosed, b.State("mirror.example"))
		assert.Equal(t, []string{
			"mirror.example: closed -> open",
			"mirror.example: open -> half-open",
			"mirror.example: half-open -> closed",
		}, *transitions)
	})

	t.Run("probe failure reopens", func(t *testing.T) {
		b, clock, _ := newTestBreakers(1)
		require.NoError(t, fetch(t, b, "mirror.example", false))
		clock.Advance(time.Minute)

		require.NoError(t, fetch(t, b, "mirror.example", false))
		assert.Equal(t, StateOpen, b.State("mirror.example"))
		assert.ErrorIs(t, fetch(t, b, "mirror.example", true), ErrHostUnavailable)
	})
}

func TestHostBreakerStaleRelease(t *testing.T) {
	b, _, _ := newTestBreakers(1)

	slow, err := b.Acquire("mirror.example")
	require.NoError(t, err)
	require.NoError(t, fetch(t, b, "mirror.example", false))
	require.Equal(t, StateOpen, b.State("mirror.example"))

	// A fetch that started before the host opened cannot close it.
	slow(true)
	slow(true)
	assert.Equal(t, StateOpen, b.State("mirror.example"))
}

func TestHostBreakerDisabled(t *testing.T) {
	b := NewHostBreakers(Settings{})
	assert.False(t, b.Enabled())

	for i := 0; i < 10; i++ {
		require.NoError(t, fetch(t, b, "mirror.example", false))
	}
	assert.Equal(t, StateClosed, b.State("mirror.example"))

	var nilBreakers *HostBreakers
	assert.False(t, nilBreakers.Enabled())
}

func TestHostBreakerConcurrentUse(t *testing.T) {
	b, _, _ := newTestBreakers(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(ok bool) {
			defer wg.Done()
			release, err := b.Acquire("mirror.example")
			if err == nil {
				release(ok)
			}
		}(i%2 == 0)
	}
	wg.Wait()
	assert.Equal(t, StateClosed, b.State("mirror.example"))
}
