package lockfile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safechat/internal/lockfile"
)

func TestAcquire_Single(t *testing.T) {
	l, err := lockfile.Acquire(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, l.Release())
	assert.Error(t, l.Release())
}

func TestAcquire_SecondWaitsForRelease(t *testing.T) {
	home := t.TempDir()
	first, err := lockfile.Acquire(context.Background(), home)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = lockfile.Acquire(ctx, home)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan error, 1)
	go func() {
		l, err := lockfile.Acquire(context.Background(), home)
		if err == nil {
			err = l.Release()
		}
		got <- err
	}()

	select {
	case err := <-got:
		t.Fatalf("acquired while held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Release())
	select {
	case err := <-got:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lock not granted after release")
	}
}
