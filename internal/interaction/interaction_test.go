package interaction

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boost struct {
	name string
	d    time.Duration
}

type fakeBooster struct {
	mu    sync.Mutex
	calls []boost
}

func (f *fakeBooster) BeginFor(name string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, boost{name, d})
}

func (f *fakeBooster) boosts() []boost {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]boost, len(f.calls))
	copy(out, f.calls)
	return out
}

// newTestHandler pins the handler's clock so debounce windows are exact.
func newTestHandler(t *testing.T) (*Handler, *fakeBooster, *time.Time) {
	t.Helper()
	fake := &fakeBooster{}
	h := New(fake, slog.New(slog.NewTextHandler(io.Discard, nil)))
	clock := time.Now()
	h.now = func() time.Time { return clock }
	return h, fake, &clock
}

func TestPadding(t *testing.T) {
	h, fake, _ := newTestHandler(t)

	h.Acquire(1000)
	calls := fake.boosts()
	require.Len(t, calls, 1)
	assert.Equal(t, "INTERACTION", calls[0].name)
	assert.Equal(t, 1650*time.Millisecond, calls[0].d)
}

func TestClamp(t *testing.T) {
	cases := []struct {
		name     string
		strength int32
		want     time.Duration
	}{
		{"below minimum", 0, 1400 * time.Millisecond},
		{"negative", -500, 1400 * time.Millisecond},
		{"in range", 2000, 2650 * time.Millisecond},
		{"above maximum", 100000, 5650 * time.Millisecond},
		{"exactly maximum", 5000, 5650 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, fake, _ := newTestHandler(t)
			h.Acquire(tc.strength)
			calls := fake.boosts()
			require.Len(t, calls, 1)
			assert.Equal(t, tc.want, calls[0].d)
		})
	}
}

func TestCoveredRequestSkipped(t *testing.T) {
	h, fake, clock := newTestHandler(t)

	h.Acquire(3000) // 3650ms boost
	require.Len(t, fake.boosts(), 1)

	// 1s in, a 1650ms request ends before the live boost does.
	*clock = clock.Add(time.Second)
	h.Acquire(1000)
	assert.Len(t, fake.boosts(), 1, "covered request must not re-issue")

	// 2.5s in, the same request outlives the live boost.
	*clock = clock.Add(1500 * time.Millisecond)
	h.Acquire(1000)
	assert.Len(t, fake.boosts(), 2)
}

func TestLongerRequestAlwaysIssues(t *testing.T) {
	h, fake, _ := newTestHandler(t)

	h.Acquire(1000)
	h.Acquire(3000) // longer than the live boost, same instant
	calls := fake.boosts()
	require.Len(t, calls, 2)
	assert.Equal(t, 3650*time.Millisecond, calls[1].d)
}

func TestEqualDurationBackToBackSkipped(t *testing.T) {
	h, fake, _ := newTestHandler(t)

	h.Acquire(1000)
	h.Acquire(1000) // same duration, zero elapsed: still covered
	assert.Len(t, fake.boosts(), 1)
}

func TestExpiredBoostDoesNotDebounce(t *testing.T) {
	h, fake, clock := newTestHandler(t)

	h.Acquire(1000) // 1650ms
	*clock = clock.Add(2 * time.Second)
	h.Acquire(1000)
	assert.Len(t, fake.boosts(), 2)
}
