package perception

import (
	"context"
	"sync"
)

// Queue is a Source fed from other goroutines. Perceive never blocks: it
// pops the oldest pending report or returns the ambient report.
type Queue struct {
	mu      sync.Mutex
	pending []Report
	ambient Report
}

// NewQueue returns a queue that reports ambient when nothing is pending.
func NewQueue(ambient Report) *Queue {
	return &Queue{ambient: ambient}
}

// Push enqueues a report.
func (q *Queue) Push(r Report) {
	q.mu.Lock()
	q.pending = append(q.pending, r)
	q.mu.Unlock()
}

// PushSpeech enqueues a speech-only report.
func (q *Queue) PushSpeech(text string) {
	q.Push(Report{Speech: text})
}

// Len returns the number of pending reports.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Perceive(ctx context.Context) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return q.ambient, nil
	}
	r := q.pending[0]
	q.pending = q.pending[1:]
	return r, nil
}
