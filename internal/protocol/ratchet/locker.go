package ratchet

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"

	"safechat/internal/domain"
)

// Locker serialises work per contact. Lock waits honour context
// cancellation.
type Locker struct {
	slots *xsync.MapOf[domain.ContactID, chan struct{}]
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{slots: xsync.NewMapOf[domain.ContactID, chan struct{}]()}
}

func (l *Locker) slot(contact domain.ContactID) chan struct{} {
	ch, _ := l.slots.LoadOrCompute(contact, func() chan struct{} {
		return make(chan struct{}, 1)
	})
	return ch
}

// Lock blocks until contact is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, contact domain.ContactID) (unlock func(), err error) {
	ch := l.slot(contact)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do runs fn while holding the lock of contact.
func (l *Locker) Do(ctx context.Context, contact domain.ContactID, fn func() error) error {
	unlock, err := l.Lock(ctx, contact)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
