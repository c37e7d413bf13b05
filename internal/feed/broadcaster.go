// Package feed delivers payload-less change notifications to subscribers.
package feed

import (
	"sync"

	"usdt-ledger/internal/ledger"
)

type subscriber struct {
	kind    ledger.EntityKind
	scope   string
	pending chan struct{}
	done    chan struct{}
}

// Broadcaster is an in-process ledger.ChangeFeed. Each subscriber has its
// own goroutine and a one-slot pending channel, so a burst of changes
// collapses into a single callback and a slow subscriber never blocks a
// publisher. Callbacks never run while the lock is held.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]func()
	logger      ledger.Logger
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster(logger ledger.Logger) *Broadcaster {
	if logger == nil {
		logger = ledger.NewNopLogger()
	}
	return &Broadcaster{
		subscribers: make(map[*subscriber]func()),
		logger:      logger,
	}
}

// Subscribe registers onChange for changes of kind within scope. An empty
// scope receives changes of every ledger.
func (b *Broadcaster) Subscribe(kind ledger.EntityKind, scope string, onChange func()) func() {
	sub := &subscriber{
		kind:    kind,
		scope:   scope,
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	b.subscribers[sub] = onChange
	total := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "kind", string(kind), "scope", scope, "total", total)

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case <-sub.pending:
				onChange()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, sub)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// Publish notifies every subscriber whose kind matches and whose scope is
// empty or equal to the change's ledger. Changes without a ledger reach
// every subscriber of the kind.
func (b *Broadcaster) Publish(change ledger.Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		if sub.kind != change.Kind {
			continue
		}
		if change.LedgerID != "" && sub.scope != "" && sub.scope != change.LedgerID {
			continue
		}
		select {
		case sub.pending <- struct{}{}:
		default:
			// A notification is already pending; it covers this one.
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

var _ ledger.ChangeFeed = (*Broadcaster)(nil)
