package capture

import "sync"

// DefaultMaxPending bounds the chunks held between two analysis ticks
const DefaultMaxPending = 16

// Queue hands captured chunks from the capture goroutine to the analysis loop.
// Push never blocks. When the queue is full the oldest chunk is dropped, and
// TakeLatest discards everything but the newest chunk.
type Queue struct {
	mu         sync.Mutex
	chunks     [][]float32
	maxPending int
	stopped    bool
	dropped    uint64
}

func NewQueue(maxPending int) *Queue {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	return &Queue{
		chunks:     make([][]float32, 0, maxPending),
		maxPending: maxPending,
	}
}

// Push appends a chunk. It returns false once the queue is stopped, in which case
// the chunk is not queued and the producer should halt.
func (q *Queue) Push(chunk []float32) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	if len(q.chunks) >= q.maxPending {
		q.chunks[0] = nil
		q.chunks = q.chunks[1:]
		q.dropped++
	}
	q.chunks = append(q.chunks, chunk)
	return true
}

// TakeLatest drains the queue and returns the newest chunk and the number of
// older chunks discarded with it. ok is false when nothing was pending.
func (q *Queue) TakeLatest() (chunk []float32, discarded int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.chunks)
	if n == 0 {
		return nil, 0, false
	}

	chunk = q.chunks[n-1]
	discarded = n - 1
	q.dropped += uint64(discarded)

	clear(q.chunks)
	q.chunks = q.chunks[:0]
	return chunk, discarded, true
}

// Stop refuses further pushes and releases pending chunks
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	clear(q.chunks)
	q.chunks = q.chunks[:0]
}

// Restart accepts pushes again after Stop
func (q *Queue) Restart() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = false
}

func (q *Queue) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Dropped is the total number of chunks never handed to the analysis loop
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
