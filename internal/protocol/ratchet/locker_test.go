package ratchet_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safechat/internal/domain"
	"safechat/internal/protocol/ratchet"
)

func newID() uuid.UUID { return uuid.New() }

func TestLocker_SerialisesPerContact(t *testing.T) {
	l := ratchet.NewLocker()
	c := domain.ContactID(newID())
	var (
		mu      sync.Mutex
		running int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), c, func() error {
				mu.Lock()
				running++
				maxSeen = max(maxSeen, running)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLocker_Cancellation(t *testing.T) {
	l := ratchet.NewLocker()
	c := domain.ContactID(newID())
	unlock, err := l.Lock(context.Background(), c)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, c)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Another contact is not blocked.
	other, err := l.Lock(context.Background(), domain.ContactID(newID()))
	require.NoError(t, err)
	other()

	unlock()
	again, err := l.Lock(context.Background(), c)
	require.NoError(t, err)
	again()
}
