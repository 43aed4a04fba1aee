package spsc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, 3, 5, 6, 7, 100, 1000} {
		_, err := New[int](capacity)
		assert.Error(t, err, "capacity %d", capacity)
	}
}

func TestNewAcceptsPowerOfTwo(t *testing.T) {
	for _, capacity := range []int{1, 2, 4, 8, 1024, 1 << 16} {
		r, err := New[int](capacity)
		require.NoError(t, err, "capacity %d", capacity)
		assert.Equal(t, capacity, r.Cap())
		assert.Equal(t, 0, r.Len())
	}
}

func TestPopEmpty(t *testing.T) {
	r, err := New[string](8)
	require.NoError(t, err)

	v, ok := r.TryPop()
	assert.False(t, ok)
	assert.Equal(t, "", v)
}

func TestFIFO(t *testing.T) {
	r, err := New[int](16)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.True(t, r.TryPush(i))
		v, ok := r.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestCapacityBoundary(t *testing.T) {
	r, err := New[int](8)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		require.True(t, r.TryPush(i), "push %d", i)
	}
	assert.Equal(t, 8, r.Len())

	assert.False(t, r.TryPush(8), "push into a full ring must be rejected")

	v, ok := r.TryPop()
	require.True(t, ok)
	assert.Equal(t, 0, v)

	assert.True(t, r.TryPush(8), "one pop must make room for one push")
}

func TestFullThenDrain(t *testing.T) {
	r, err := New[string](8)
	require.NoError(t, err)

	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		require.True(t, r.TryPush(s))
	}
	require.False(t, r.TryPush("i"))

	v, ok := r.TryPop()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	require.True(t, r.TryPush("i"))

	want := []string{"b", "c", "d", "e", "f", "g", "h", "i"}
	for _, w := range want {
		v, ok := r.TryPop()
		require.True(t, ok)
		assert.Equal(t, w, v)
	}

	_, ok = r.TryPop()
	assert.False(t, ok, "ring must be empty after draining")
	assert.Equal(t, 0, r.Len())
}

func TestWraparound(t *testing.T) {
	r, err := New[int](8)
	require.NoError(t, err)

	// Far more operations than the capacity so the masked slot addressing
	// cycles through the buffer many times.
	for i := 0; i < 8*10; i++ {
		require.True(t, r.TryPush(i))
		require.True(t, r.TryPush(i+1000000))
		v, ok := r.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
		v, ok = r.TryPop()
		require.True(t, ok)
		assert.Equal(t, i+1000000, v)
	}
}

func TestPopClearsSlot(t *testing.T) {
	r, err := New[[]byte](2)
	require.NoError(t, err)

	require.True(t, r.TryPush([]byte("payload")))
	_, ok := r.TryPop()
	require.True(t, ok)

	assert.Nil(t, r.buf[0], "popped slot must not retain the payload")
}

func TestConcurrentConservation(t *testing.T) {
	const count = 200000

	r, err := New[int](64)
	require.NoError(t, err)

	go func() {
		for i := 0; i < count; i++ {
			for !r.TryPush(i) {
				// Spin until the consumer makes room.
			}
		}
	}()

	next := 0
	for next < count {
		v, ok := r.TryPop()
		if !ok {
			continue
		}
		if v != next {
			t.Fatalf("FIFO violation: expected %d, got %d", next, v)
		}
		next++
	}

	_, ok := r.TryPop()
	assert.False(t, ok, "ring must be empty after the consumer caught up")
}

func BenchmarkTryPushTryPop(b *testing.B) {
	r, _ := New[int](1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.TryPush(i)
		r.TryPop()
	}
}
