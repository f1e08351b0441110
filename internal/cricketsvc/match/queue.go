package match

import (
	"sync"
	"time"
)

// Entry is one waiting connection in the matchmaking queue.
type Entry struct {
	Handle      string
	DisplayName string
	EnqueuedAt  time.Time
}

// Queue is a FIFO of waiting connections. Pairing always takes the two
// oldest entries. All operations are atomic, an entry can never be handed
// to two concurrent DequeuePair calls.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a waiting connection. A handle that is already queued is
// a no-op and reports false.
func (q *Queue) Enqueue(handle, displayName string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.Handle == handle {
			return false
		}
	}

	q.entries = append(q.entries, Entry{
		Handle:      handle,
		DisplayName: displayName,
		EnqueuedAt:  time.Now().UTC(),
	})
	return true
}

// DequeuePair removes and returns the two oldest entries, or reports false
// when fewer than two connections are waiting.
func (q *Queue) DequeuePair() (Entry, Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) < 2 {
		return Entry{}, Entry{}, false
	}

	first, second := q.entries[0], q.entries[1]
	q.entries = append([]Entry(nil), q.entries[2:]...)
	return first, second, true
}

// Remove drops a handle from the queue, used on disconnect. Reports whether
// an entry was removed.
func (q *Queue) Remove(handle string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.Handle == handle {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Handles returns the waiting handles in queue order, the audience for
// online-count broadcasts.
func (q *Queue) Handles() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.Handle
	}
	return out
}
