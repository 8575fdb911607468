package msgdb_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"safechat/internal/domain"
	"safechat/internal/domain/types"
	"safechat/internal/store/msgdb"
)

func openMem(t *testing.T) *msgdb.DB {
	t.Helper()
	db, err := msgdb.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func save(t *testing.T, db *msgdb.DB, c domain.ContactID, order float32) domain.SafeMessage {
	t.Helper()
	msg := domain.SafeMessage{
		ID:         types.NewMessageID(),
		ContactID:  c,
		Direction:  domain.DirectionSent,
		EncContent: []byte("content"),
		EncSentAt:  []byte{byte(int8(order))},
		Order:      order,
	}
	require.NoError(t, db.Save(context.Background(), msg))
	return msg
}

func orders(msgs []domain.SafeMessage) []float32 {
	out := make([]float32, len(msgs))
	for i, m := range msgs {
		out[i] = m.Order
	}
	return out
}

func TestDB_ListIsAscendingAcrossSigns(t *testing.T) {
	db := openMem(t)
	c := types.NewContactID()
	for _, o := range []float32{1.5, -2, 0, -0.5, 3, 0.75, -10.25} {
		save(t, db, c, o)
	}

	got, err := db.List(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []float32{-10.25, -2, -0.5, 0, 0.75, 1.5, 3}, orders(got))
}

func TestDB_RankQueries(t *testing.T) {
	ctx := context.Background()
	db := openMem(t)
	c := types.NewContactID()
	a := save(t, db, c, -1)
	b := save(t, db, c, 0)
	top := save(t, db, c, 2)

	most, err := db.MostRecent(ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, top.ID, most.ID)

	least, err := db.LeastRecent(ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, least.ID)

	mid, err := db.At(ctx, c, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, b.ID, mid.ID)
	assert.Equal(t, b.EncSentAt, mid.EncSentAt)

	out, err := db.At(ctx, c, 3, nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	n, err := db.Count(ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDB_ExcludeSkipsRows(t *testing.T) {
	ctx := context.Background()
	db := openMem(t)
	c := types.NewContactID()
	low := save(t, db, c, 0)
	high := save(t, db, c, 1)
	ex := []domain.MessageID{high.ID}

	most, err := db.MostRecent(ctx, c, ex)
	require.NoError(t, err)
	assert.Equal(t, low.ID, most.ID)

	n, err := db.Count(ctx, c, ex)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	least, err := db.LeastRecent(ctx, c, []domain.MessageID{low.ID, high.ID})
	require.NoError(t, err)
	assert.Nil(t, least)
}

func TestDB_ContactsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openMem(t)
	c1, c2 := types.NewContactID(), types.NewContactID()
	save(t, db, c1, 0)
	save(t, db, c2, 5)

	most, err := db.MostRecent(ctx, c1, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(0), most.Order)

	require.NoError(t, db.DeleteContact(ctx, c1))
	got, err := db.List(ctx, c1)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = db.List(ctx, c2)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDB_ByOrder(t *testing.T) {
	ctx := context.Background()
	db := openMem(t)
	c := types.NewContactID()
	want := save(t, db, c, 0.5)
	save(t, db, c, 1)

	got, err := db.ByOrder(ctx, c, 0.5)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	got, err = db.ByOrder(ctx, c, 0.75)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDB_Queue(t *testing.T) {
	ctx := context.Background()
	db := openMem(t)
	c := types.NewContactID()

	s1, err := db.Enqueue(ctx, c, []byte("one"))
	require.NoError(t, err)
	s2, err := db.Enqueue(ctx, c, []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s1)
	assert.Equal(t, uint64(2), s2)

	q, err := db.Queued(ctx, c)
	require.NoError(t, err)
	require.Len(t, q, 2)
	assert.Equal(t, []byte("one"), q[0].EncData)

	require.NoError(t, db.Dequeue(ctx, c, s1))
	q, err = db.Queued(ctx, c)
	require.NoError(t, err)
	require.Len(t, q, 1)
	assert.Equal(t, s2, q[0].Seq)

	s3, err := db.Enqueue(ctx, c, []byte("three"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), s3)

	require.NoError(t, db.DeleteContact(ctx, c))
	q, err = db.Queued(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, q)
}

func TestDB_ConcurrentEnqueueKeepsEveryEntry(t *testing.T) {
	ctx := context.Background()
	db := openMem(t)
	c := types.NewContactID()

	const n = 200
	var mu sync.Mutex
	seqs := make(map[uint64]bool, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			seq, err := db.Enqueue(ctx, c, []byte(fmt.Sprintf("payload-%d", i)))
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if seqs[seq] {
				return fmt.Errorf("sequence %d handed out twice", seq)
			}
			seqs[seq] = true
			return nil
		})
	}
	require.NoError(t, g.Wait())

	q, err := db.Queued(ctx, c)
	require.NoError(t, err)
	require.Len(t, q, n)
	for i, e := range q {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}

func TestDB_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	c := types.NewContactID()

	db, err := msgdb.Open(dir)
	require.NoError(t, err)
	want := save(t, db, c, 7)
	require.NoError(t, db.Close())

	db, err = msgdb.Open(dir)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.List(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestDB_CanceledContext(t *testing.T) {
	db := openMem(t)
	c := types.NewContactID()
	save(t, db, c, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.Count(ctx, c, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, db.Save(ctx, domain.SafeMessage{ContactID: c}), context.Canceled)
}
