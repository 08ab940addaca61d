package memory

import (
	"context"
	"sync"

	"github.com/tetkool/concierge/internal/domain/conversation"
)

// Locker is a keyed mutex; entries are dropped once no goroutine holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	ch   chan struct{}
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*userLock)}
}

func (l *Locker) Lock(ctx context.Context, userID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &userLock{ch: make(chan struct{}, 1)}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.release(userID, entry)
		})
	}, nil
}

func (l *Locker) release(userID string, entry *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, userID)
	}
}

var _ conversation.Locker = (*Locker)(nil)
