package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrHostUnavailable is returned while a host's breaker is open.
var ErrHostUnavailable = errors.New("host temporarily unavailable")

// State represents a host breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the per-host breakers.
type Settings struct {
	// Threshold is the number of consecutive failures that opens a host.
	// Zero disables the breakers.
	Threshold int
	// Cooldown is how long a host stays open before a single probe fetch is
	// let through.
	Cooldown time.Duration
	// OnStateChange is called whenever a host changes state, with the lock
	// released.
	OnStateChange func(host string, from, to State)

	now func() time.Time
}

type hostState struct {
	state      State
	failures   int
	openedAt   time.Time
	generation uint64
	probing    bool
}

// HostBreakers tracks one breaker per host. Fetches to a host that keeps
// failing are refused until its cooldown passes.
type HostBreakers struct {
	settings Settings

	mu    sync.Mutex
	hosts map[string]*hostState
}

// NewHostBreakers creates the breaker set.
func NewHostBreakers(settings Settings) *HostBreakers {
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.now == nil {
		settings.now = time.Now
	}
	return &HostBreakers{
		settings: settings,
		hosts:    make(map[string]*hostState),
	}
}

// Enabled reports whether breakers are active.
func (b *HostBreakers) Enabled() bool {
	return b != nil && b.settings.Threshold > 0
}

// State returns the current state of host.
func (b *HostBreakers) State(host string) State {
	if !b.Enabled() {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	hs, ok := b.hosts[host]
	if !ok {
		return StateClosed
	}
	if hs.state == StateOpen && b.cooledDown(hs) {
		return StateHalfOpen
	}
	return hs.state
}

// Acquire asks to fetch from host. On success the caller must invoke
// release exactly once with whether the host behaved.
func (b *HostBreakers) Acquire(host string) (release func(ok bool), err error) {
	if !b.Enabled() {
		return func(bool) {}, nil
	}

	b.mu.Lock()
	hs := b.host(host)
	var change func()
	switch hs.state {
	case StateOpen:
		if !b.cooledDown(hs) {
			remaining := hs.openedAt.Add(b.settings.Cooldown).Sub(b.settings.now()).Round(time.Millisecond)
			b.mu.Unlock()
			return nil, fmt.Errorf("%w: %s (retry in %s)", ErrHostUnavailable, host, remaining)
		}
		change = b.transition(host, hs, StateHalfOpen)
		hs.probing = true
	case StateHalfOpen:
		if hs.probing {
			b.mu.Unlock()
			return nil, fmt.Errorf("%w: %s (probe in flight)", ErrHostUnavailable, host)
		}
		hs.probing = true
	}
	generation := hs.generation
	b.mu.Unlock()
	notify(change)

	var once sync.Once
	return func(ok bool) {
		once.Do(func() { b.release(host, generation, ok) })
	}, nil
}

func (b *HostBreakers) release(host string, generation uint64, ok bool) {
	b.mu.Lock()
	hs := b.host(host)
	if hs.generation != generation {
		// The host changed state since this fetch started.
		b.mu.Unlock()
		return
	}

	var change func()
	switch hs.state {
	case StateClosed:
		if ok {
			hs.failures = 0
		} else {
			hs.failures++
			if hs.failures >= b.settings.Threshold {
				change = b.transition(host, hs, StateOpen)
			}
		}
	case StateHalfOpen:
		hs.probing = false
		if ok {
			change = b.transition(host, hs, StateClosed)
		} else {
			change = b.transition(host, hs, StateOpen)
		}
	}
	b.mu.Unlock()
	notify(change)
}

func (b *HostBreakers) host(host string) *hostState {
	hs, ok := b.hosts[host]
	if !ok {
		hs = &hostState{}
		b.hosts[host] = hs
	}
	return hs
}

func (b *HostBreakers) cooledDown(hs *hostState) bool {
	return !b.settings.now().Before(hs.openedAt.Add(b.settings.Cooldown))
}

// transition changes state under the lock and returns the callback to run
// once it is released.
func (b *HostBreakers) transition(host string, hs *hostState, to State) func() {
	from := hs.state
	hs.state = to
	hs.failures = 0
	hs.generation++
	if to == StateOpen {
		hs.openedAt = b.settings.now()
	}
	if b.settings.OnStateChange == nil {
		return nil
	}
	return func() { b.settings.OnStateChange(host, from, to) }
}

func notify(change func()) {
	if change != nil {
		change()
	}
}
