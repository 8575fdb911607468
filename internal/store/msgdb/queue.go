package msgdb

import (
	"context"
	"encoding/binary"
	"slices"

	"github.com/syndtr/goleveldb/leveldb/util"

	"safechat/internal/domain"
)

// Enqueue appends encData to the contact's queue and returns its sequence
// number. Sequence numbers start at 1 and are never reused while the queue
// holds entries.
func (d *DB) Enqueue(ctx context.Context, contact domain.ContactID, encData []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.enqueue.Lock()
	defer d.enqueue.Unlock()

	it := d.db.NewIterator(util.BytesPrefix(contactPrefix(queuePrefix, contact)), nil)
	var seq uint64 = 1
	if it.Last() {
		k := it.Key()
		seq = binary.BigEndian.Uint64(k[len(k)-8:]) + 1
	}
	it.Release()
	if err := it.Error(); err != nil {
		return 0, err
	}
	if err := d.db.Put(queueKey(contact, seq), encData, nil); err != nil {
		return 0, err
	}
	return seq, nil
}

// Queued returns the contact's queue, oldest first.
func (d *DB) Queued(ctx context.Context, contact domain.ContactID) ([]domain.QueuedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it := d.db.NewIterator(util.BytesPrefix(contactPrefix(queuePrefix, contact)), nil)
	defer it.Release()
	var out []domain.QueuedMessage
	for it.Next() {
		k := it.Key()
		out = append(out, domain.QueuedMessage{
			Seq:     binary.BigEndian.Uint64(k[len(k)-8:]),
			EncData: slices.Clone(it.Value()),
		})
	}
	return out, it.Error()
}

// Dequeue removes one queue entry. Removing a missing entry is not an error.
func (d *DB) Dequeue(ctx context.Context, contact domain.ContactID, seq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Delete(queueKey(contact, seq), nil)
}
