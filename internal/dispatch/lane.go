package dispatch

import (
	"context"
	"sync"
)

// laneLock serializes work per session id while letting different sessions
// proceed in parallel. The map mutex is held only to find or create a lane.
type laneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// lane is a one-slot semaphore. refs counts holders and waiters; the lane is
// dropped from the map when it reaches zero.
type lane struct {
	sem  chan struct{}
	refs int
}

func newLaneLock() *laneLock {
	return &laneLock{lanes: make(map[string]*lane)}
}

// acquire blocks until the lane for key is free or ctx is done. The returned
// func releases the lane and must be called exactly once.
func (l *laneLock) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		ln = &lane{sem: make(chan struct{}, 1)}
		l.lanes[key] = ln
	}
	ln.refs++
	l.mu.Unlock()

	select {
	case ln.sem <- struct{}{}:
		return func() {
			<-ln.sem
			l.unref(key, ln)
		}, nil
	case <-ctx.Done():
		l.unref(key, ln)
		return nil, ctx.Err()
	}
}

func (l *laneLock) unref(key string, ln *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.refs--
	if ln.refs == 0 && l.lanes[key] == ln {
		delete(l.lanes, key)
	}
}

func (l *laneLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
