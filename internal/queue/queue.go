package queue

import (
	"sync"

	"github.com/go-scripts/econcal/pkg/common"
)

// Queue represents a thread-safe FIFO of date chunks awaiting dispatch
type Queue struct {
	chunks []common.DateChunk
	mu     sync.Mutex
}

// New creates a new Queue holding chunks in the given order
func New(chunks []common.DateChunk) *Queue {
	return &Queue{chunks: append([]common.DateChunk(nil), chunks...)}
}

// Next removes and returns the chunk at the head of the queue
func (q *Queue) Next() (common.DateChunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) == 0 {
		return common.DateChunk{}, false
	}

	c := q.chunks[0]
	q.chunks = q.chunks[1:]
	return c, true
}

// Drain empties the queue and returns the chunks that were never dispatched
func (q *Queue) Drain() []common.DateChunk {
	q.mu.Lock()
	defer q.mu.Unlock()

	rest := q.chunks
	q.chunks = nil
	return rest
}

// Len returns the number of chunks still waiting
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}
