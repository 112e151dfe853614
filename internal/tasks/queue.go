package tasks

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

type task struct {
	id   string
	name string
	run  func() error
}

// Queue is a bounded background worker pool for side work that must not
// block or fail the request path (confirmation emails, report writes).
// Every task gets an id and its completion or failure is logged, so nothing
// disappears into a detached goroutine.
type Queue struct {
	ch  chan task
	wg  sync.WaitGroup
	seq atomic.Uint64
}

func NewQueue(workers, buffer int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	q := &Queue{ch: make(chan task, buffer)}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue schedules fn for background execution. It never blocks: when the
// queue is full the task is dropped and reported, which is acceptable for
// best-effort side work.
func (q *Queue) Enqueue(name string, fn func() error) bool {
	id := fmt.Sprintf("%s-%d", name, q.seq.Add(1))
	select {
	case q.ch <- task{id: id, name: name, run: fn}:
		return true
	default:
		log.Printf("task queue full, dropping task %s", id)
		return false
	}
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (q *Queue) Close() {
	close(q.ch)
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.ch {
		started := time.Now()
		if err := t.run(); err != nil {
			log.Printf("task %s failed after %s: %v", t.id, time.Since(started).Round(time.Millisecond), err)
			continue
		}
		log.Printf("task %s completed in %s", t.id, time.Since(started).Round(time.Millisecond))
	}
}
