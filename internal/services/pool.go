package services

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many download-and-deliver jobs run at once so a burst
// of quality selections cannot spawn unbounded work.
type Pool struct {
	sem    *semaphore.Weighted
	active atomic.Int64
}

func NewPool(limit int64) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(limit)}
}

// TrySubmit runs fn on its own goroutine if a slot is free and reports
// whether the job was admitted.
func (p *Pool) TrySubmit(fn func()) bool {
	if !p.sem.TryAcquire(1) {
		return false
	}
	p.active.Add(1)
	go func() {
		defer func() {
			p.active.Add(-1)
			p.sem.Release(1)
		}()
		fn()
	}()
	return true
}

// Active returns the number of jobs currently running.
func (p *Pool) Active() int64 {
	return p.active.Load()
}
