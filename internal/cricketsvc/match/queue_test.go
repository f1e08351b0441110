package match

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOPairing(t *testing.T) {
	q := NewQueue()
	require.True(t, q.Enqueue("s1", "one"))
	require.True(t, q.Enqueue("s2", "two"))
	require.True(t, q.Enqueue("s3", "three"))

	a, b, ok := q.DequeuePair()
	require.True(t, ok)
	assert.Equal(t, "s1", a.Handle)
	assert.Equal(t, "s2", b.Handle)
	assert.Equal(t, 1, q.Len())

	_, _, ok = q.DequeuePair()
	assert.False(t, ok, "a single waiter cannot be paired")
}

func TestQueue_DuplicateHandleNoOp(t *testing.T) {
	q := NewQueue()
	require.True(t, q.Enqueue("s1", "one"))
	assert.False(t, q.Enqueue("s1", "one again"))
	assert.Equal(t, 1, q.Len())
}

func TestQueue_RemoveBeforeMatch(t *testing.T) {
	q := NewQueue()
	q.Enqueue("s1", "one")
	q.Enqueue("s2", "two")
	q.Enqueue("s3", "three")

	require.True(t, q.Remove("s1"))
	assert.False(t, q.Remove("s1"), "second remove is a no-op")

	a, b, ok := q.DequeuePair()
	require.True(t, ok)
	assert.Equal(t, "s2", a.Handle)
	assert.Equal(t, "s3", b.Handle)
}

func TestQueue_Handles(t *testing.T) {
	q := NewQueue()
	q.Enqueue("s1", "one")
	q.Enqueue("s2", "two")
	assert.Equal(t, []string{"s1", "s2"}, q.Handles())
}

// No entry may be returned by two concurrent DequeuePair calls.
func TestQueue_ConcurrentPairingNeverDuplicates(t *testing.T) {
	q := NewQueue()
	const waiters = 100
	for i := 0; i < waiters; i++ {
		q.Enqueue(fmt.Sprintf("s%03d", i), "p")
	}

	var mu sync.Mutex
	seen := make(map[string]int)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				a, b, ok := q.DequeuePair()
				if !ok {
					return
				}
				mu.Lock()
				seen[a.Handle]++
				seen[b.Handle]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, waiters)
	for handle, n := range seen {
		assert.Equal(t, 1, n, "handle %s matched more than once", handle)
	}
}
