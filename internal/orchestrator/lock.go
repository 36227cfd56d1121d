package orchestrator

import (
	"context"
	"sync"

	"github.com/xssautomation/xssbot/internal/model"
)

// domainLocks hands out one mutual-exclusion token per domain. Entries are
// removed once nobody holds or waits for them.
type domainLocks struct {
	mu    sync.Mutex
	locks map[model.Domain]*domainLock
}

type domainLock struct {
	token chan struct{}
	refs  int
}

func newDomainLocks() *domainLocks {
	return &domainLocks{locks: make(map[model.Domain]*domainLock)}
}

// lock blocks until domain's token is acquired or ctx is done. On success
// the returned function releases the token.
func (d *domainLocks) lock(ctx context.Context, domain model.Domain) (func(), error) {
	d.mu.Lock()
	l, ok := d.locks[domain]
	if !ok {
		l = &domainLock{token: make(chan struct{}, 1)}
		d.locks[domain] = l
	}
	l.refs++
	d.mu.Unlock()

	select {
	case l.token <- struct{}{}:
		return func() {
			<-l.token
			d.release(domain, l)
		}, nil
	case <-ctx.Done():
		d.release(domain, l)
		return nil, ctx.Err()
	}
}

// tryLock acquires domain's token if it is free.
func (d *domainLocks) tryLock(domain model.Domain) (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[domain]
	if !ok {
		l = &domainLock{token: make(chan struct{}, 1)}
		d.locks[domain] = l
	}
	select {
	case l.token <- struct{}{}:
		l.refs++
		return func() {
			<-l.token
			d.release(domain, l)
		}, true
	default:
		return nil, false
	}
}

func (d *domainLocks) release(domain model.Domain, l *domainLock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(d.locks, domain)
	}
}

// held returns the number of domains currently locked or awaited.
func (d *domainLocks) held() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.locks)
}
