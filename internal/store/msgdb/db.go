package msgdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"safechat/internal/domain"
)

const (
	messagePrefix = 'm'
	queuePrefix   = 'q'
)

// ErrCorruptedRow is returned when a stored value does not decode.
var ErrCorruptedRow = errors.New("msgdb: corrupted row")

// DB implements domain.MessageStore and domain.QueueStore.
type DB struct {
	db  *leveldb.DB
	log *logrus.Entry

	// enqueue guards queue sequence allocation.
	enqueue sync.Mutex
}

// Open opens or creates the database in dir. A corrupted database is
// recovered once before giving up.
func Open(dir string) (*DB, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if lerrors.IsCorrupted(err) {
		logrus.WithField("dir", dir).Warn("message database corrupted, recovering")
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open message database: %w", err)
	}
	return newDB(db), nil
}

// OpenMem returns a database held in memory.
func OpenMem() (*DB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newDB(db), nil
}

func newDB(db *leveldb.DB) *DB {
	return &DB{db: db, log: logrus.WithField("component", "msgdb")}
}

// Close releases the database.
func (d *DB) Close() error { return d.db.Close() }

// sortableOrder maps a float32 to 4 bytes whose byte order matches numeric
// order.
func sortableOrder(f float32) []byte {
	bits := math.Float32bits(f)
	if bits&0x80000000 == 0 {
		bits ^= 0x80000000
	} else {
		bits = ^bits
	}
	return binary.BigEndian.AppendUint32(nil, bits)
}

func contactPrefix(kind byte, contact domain.ContactID) []byte {
	return append([]byte{kind, '/'}, contact.Bytes()...)
}

func messageKey(msg domain.SafeMessage) []byte {
	k := contactPrefix(messagePrefix, msg.ContactID)
	k = append(k, sortableOrder(msg.Order)...)
	return append(k, msg.ID.Bytes()...)
}

func queueKey(contact domain.ContactID, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(contactPrefix(queuePrefix, contact), seq)
}

// Save stores msg.
func (d *DB) Save(ctx context.Context, msg domain.SafeMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := cbor.Marshal(msg)
	if err != nil {
		return err
	}
	return d.db.Put(messageKey(msg), b, nil)
}

// walk visits the contact's rows, most recent first, skipping excluded ids.
// fn returns false to stop.
func (d *DB) walk(
	ctx context.Context,
	contact domain.ContactID,
	exclude []domain.MessageID,
	fn func(domain.SafeMessage) bool,
) error {
	it := d.db.NewIterator(util.BytesPrefix(contactPrefix(messagePrefix, contact)), nil)
	defer it.Release()
	for ok := it.Last(); ok; ok = it.Prev() {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := decodeMessage(it)
		if err != nil {
			return err
		}
		if slices.Contains(exclude, msg.ID) {
			continue
		}
		if !fn(msg) {
			break
		}
	}
	return it.Error()
}

func decodeMessage(it iterator.Iterator) (domain.SafeMessage, error) {
	var msg domain.SafeMessage
	if err := cbor.Unmarshal(it.Value(), &msg); err != nil {
		return domain.SafeMessage{}, fmt.Errorf("%w: %x: %w", ErrCorruptedRow, it.Key(), err)
	}
	return msg, nil
}

func projection(msg domain.SafeMessage) *domain.MessageOrder {
	return &domain.MessageOrder{ID: msg.ID, Order: msg.Order, EncSentAt: msg.EncSentAt}
}

// MostRecent returns the row with the highest order, or nil.
func (d *DB) MostRecent(ctx context.Context, contact domain.ContactID, exclude []domain.MessageID) (*domain.MessageOrder, error) {
	return d.At(ctx, contact, 0, exclude)
}

// LeastRecent returns the row with the lowest order, or nil.
func (d *DB) LeastRecent(ctx context.Context, contact domain.ContactID, exclude []domain.MessageID) (*domain.MessageOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it := d.db.NewIterator(util.BytesPrefix(contactPrefix(messagePrefix, contact)), nil)
	defer it.Release()
	for ok := it.First(); ok; ok = it.Next() {
		msg, err := decodeMessage(it)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(exclude, msg.ID) {
			return projection(msg), nil
		}
	}
	return nil, it.Error()
}

// At returns the row at index, 0 being the most recent, or nil when out of
// range.
func (d *DB) At(ctx context.Context, contact domain.ContactID, index int, exclude []domain.MessageID) (*domain.MessageOrder, error) {
	if index < 0 {
		return nil, nil
	}
	var out *domain.MessageOrder
	i := 0
	err := d.walk(ctx, contact, exclude, func(msg domain.SafeMessage) bool {
		if i == index {
			out = projection(msg)
			return false
		}
		i++
		return true
	})
	return out, err
}

// Count returns the number of rows not excluded.
func (d *DB) Count(ctx context.Context, contact domain.ContactID, exclude []domain.MessageID) (int, error) {
	n := 0
	err := d.walk(ctx, contact, exclude, func(domain.SafeMessage) bool {
		n++
		return true
	})
	return n, err
}

// ByOrder returns a message stored with exactly order, or nil.
func (d *DB) ByOrder(ctx context.Context, contact domain.ContactID, order float32) (*domain.SafeMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := append(contactPrefix(messagePrefix, contact), sortableOrder(order)...)
	it := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	if !it.First() {
		return nil, it.Error()
	}
	msg, err := decodeMessage(it)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// List returns every message of the contact in ascending order.
func (d *DB) List(ctx context.Context, contact domain.ContactID) ([]domain.SafeMessage, error) {
	var out []domain.SafeMessage
	err := d.walk(ctx, contact, nil, func(msg domain.SafeMessage) bool {
		out = append(out, msg)
		return true
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// DeleteContact removes the contact's messages and queue.
func (d *DB) DeleteContact(ctx context.Context, contact domain.ContactID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for _, kind := range []byte{messagePrefix, queuePrefix} {
		it := d.db.NewIterator(util.BytesPrefix(contactPrefix(kind, contact)), nil)
		for it.Next() {
			batch.Delete(slices.Clone(it.Key()))
		}
		it.Release()
		if err := it.Error(); err != nil {
			return err
		}
	}
	d.log.WithFields(logrus.Fields{"contact": contact, "rows": batch.Len()}).Info("contact data deleted")
	return d.db.Write(batch, nil)
}

// Compile-time assertions that DB implements the domain stores.
var (
	_ domain.MessageStore = (*DB)(nil)
	_ domain.QueueStore   = (*DB)(nil)
)
