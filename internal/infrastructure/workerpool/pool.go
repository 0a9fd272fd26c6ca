// Package workerpool bounds how many CPU-heavy extractions run at once.
// Waiters are admitted in arrival order.
package workerpool

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// WaitObserver receives the number of callers waiting for a slot.
type WaitObserver interface {
	SetPoolWaiting(n int)
}

type Pool struct {
	sem      *semaphore.Weighted
	size     int
	waiting  atomic.Int64
	observer WaitObserver
}

func New(size int, observer WaitObserver) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size, observer: observer}
}

func (p *Pool) Size() int {
	return p.size
}

// Do runs fn once a slot is free. A context cancelled while waiting returns
// its error without running fn; fn itself is never interrupted by the pool.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	p.report(p.waiting.Add(1))
	err := p.sem.Acquire(ctx, 1)
	p.report(p.waiting.Add(-1))
	if err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

func (p *Pool) report(n int64) {
	if p.observer != nil {
		p.observer.SetPoolWaiting(int(n))
	}
}
