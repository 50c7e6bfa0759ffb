package sysprop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSetGet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("powerhint.init", "1"))
	assert.Equal(t, "1", store.Get("powerhint.init"))

	// Overwrite
	require.NoError(t, store.Set("powerhint.init", "0"))
	assert.Equal(t, "0", store.Get("powerhint.init"))
}

func TestGetUnset(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, "", store.Get("powerhint.state"))

	_, ok := store.Lookup("powerhint.state")
	assert.False(t, ok)
}

func TestValueTrimmed(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("powerhint.state", "VR_SUSTAINED\n"))
	assert.Equal(t, "VR_SUSTAINED", store.Get("powerhint.state"))
}

func TestInvalidKeys(t *testing.T) {
	store := newTestStore(t)

	for _, key := range []string{"", "a/b", "../escape", ".hidden"} {
		t.Run(key, func(t *testing.T) {
			assert.Error(t, store.Set(key, "x"))
			assert.Equal(t, "", store.Get(key))
		})
	}
}

func TestUnset(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("powerhint.audio", "AUDIO_LOW_LATENCY"))
	require.NoError(t, store.Unset("powerhint.audio"))
	_, ok := store.Lookup("powerhint.audio")
	assert.False(t, ok)

	// Unsetting an absent key is fine
	require.NoError(t, store.Unset("powerhint.audio"))
}

func TestKeys(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("powerhint.init", "1"))
	require.NoError(t, store.Set("powerhint.state", "VR"))

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"powerhint.init", "powerhint.state"}, keys)
}

func TestWaitForAlreadySatisfied(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("powerhint.init", "1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, store.WaitFor(ctx, "powerhint.init", "1"))
}

func TestWaitForSatisfiedLater(t *testing.T) {
	store := newTestStore(t)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- store.WaitFor(ctx, "powerhint.init", "1")
	}()

	// Give the waiter time to register its watch, then flip the property.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, store.Set("powerhint.init", "1"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitFor did not observe the property change")
	}
}

func TestWaitForIgnoresOtherValues(t *testing.T) {
	store := newTestStore(t)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- store.WaitFor(ctx, "powerhint.init", "1")
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, store.Set("powerhint.init", "0"))
	time.Sleep(50 * time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("WaitFor returned early: %v", err)
	default:
	}

	require.NoError(t, store.Set("powerhint.init", "1"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitFor did not observe the final value")
	}
}

func TestWaitForCancelled(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- store.WaitFor(ctx, "powerhint.init", "1")
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitFor did not return after cancellation")
	}
}
