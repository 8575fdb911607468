package order

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"safechat/internal/domain"
	"safechat/internal/domain/types"
)

// ErrNoAnchor is returned when the search cannot make progress, e.g. the
// store shrinks under it.
var ErrNoAnchor = errors.New("order: no decryptable anchor")

// collisionNudge moves a computed order off an excluded row's order. With
// enough collisions it can land on another stored order.
const collisionNudge float32 = 0.01

// Calculator computes the order of new messages.
type Calculator struct {
	store domain.MessageOrderStore
	dec   domain.TimestampDecrypter
	log   *logrus.Entry
}

// New returns a Calculator reading rows from store and timestamps through
// dec.
func New(store domain.MessageOrderStore, dec domain.TimestampDecrypter) *Calculator {
	return &Calculator{
		store: store,
		dec:   dec,
		log:   logrus.WithField("component", "order"),
	}
}

// search carries the rows excluded during one call.
type search struct {
	contact  domain.ContactID
	key      *domain.ContactLocalKey
	excluded []domain.MessageID
	orders   []float32
}

// Calculate returns the order for a message sent at sentAt.
//
// Steps:
//  1. Find the most recent row whose timestamp decrypts. None: order 0.
//  2. Newer than it: the next integer above it, or above the highest
//     excluded row.
//  3. Otherwise binary search the rows, most recent first, tracking the
//     orders bounding the insertion point, and take their midpoint.
//  4. Nudge the result off any excluded row's order.
func (c *Calculator) Calculate(
	ctx context.Context,
	sentAt time.Time,
	contact domain.ContactID,
	key *domain.ContactLocalKey,
) (domain.OrderResult, error) {
	s := &search{contact: contact, key: key}

	last, lastSentAt, err := c.mostRecent(ctx, s)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if last == nil {
		return types.Found(s.guard(0)), nil
	}
	if sentAt.After(lastSentAt) {
		if len(s.orders) > 0 {
			return types.Found(s.guard(floor(slices.Max(s.orders) + 1))), nil
		}
		return types.Found(s.guard(floor(last.Order + 1))), nil
	}

	least, err := c.store.LeastRecent(ctx, contact, s.excluded)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if least == nil {
		return domain.OrderResult{}, ErrNoAnchor
	}
	count, err := c.store.Count(ctx, contact, s.excluded)
	if err != nil {
		return domain.OrderResult{}, err
	}

	var (
		start    = 0
		end      = count - 1
		next     = floor(last.Order + 1)
		previous = ceil(least.Order - 1)
		budget   = 2*count + 64
	)
	for start <= end {
		if err := ctx.Err(); err != nil {
			return domain.OrderResult{}, err
		}
		budget--
		if budget < 0 {
			return domain.OrderResult{}, ErrNoAnchor
		}

		mid := start + (end-start)/2
		row, err := c.store.At(ctx, contact, mid, s.excluded)
		if err != nil {
			return domain.OrderResult{}, err
		}
		if row == nil {
			return domain.OrderResult{}, ErrNoAnchor
		}
		rowSentAt, ok := c.sentAt(s, row)
		if !ok {
			// Same probe again against the remaining rows.
			if count, err = c.store.Count(ctx, contact, s.excluded); err != nil {
				return domain.OrderResult{}, err
			}
			end = min(end, count-1)
			continue
		}

		switch {
		case sentAt.Equal(rowSentAt):
			return c.duplicated(ctx, s, row, mid, count)
		case sentAt.Before(rowSentAt):
			start = mid + 1
			next = row.Order
		default:
			end = mid - 1
			previous = row.Order
		}
	}

	order := (next + previous) / 2
	if next == least.Order {
		order = ceil(least.Order - 1)
	}
	return types.Found(s.guard(order)), nil
}

func (c *Calculator) mostRecent(ctx context.Context, s *search) (*domain.MessageOrder, time.Time, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, time.Time{}, err
		}
		row, err := c.store.MostRecent(ctx, s.contact, s.excluded)
		if err != nil || row == nil {
			return nil, time.Time{}, err
		}
		if t, ok := c.sentAt(s, row); ok {
			return row, t, nil
		}
	}
}

// duplicated builds the candidate for a message sharing row's timestamp:
// past either end of the sequence, or halfway to the next more recent row.
// The candidate is kept off excluded rows like any found order.
func (c *Calculator) duplicated(
	ctx context.Context,
	s *search,
	row *domain.MessageOrder,
	mid, count int,
) (domain.OrderResult, error) {
	switch {
	case mid == 0:
		return types.Duplicated(s.guard(floor(row.Order+1)), row.Order), nil
	case mid == count-1:
		return types.Duplicated(s.guard(ceil(row.Order-1)), row.Order), nil
	}
	newer, err := c.store.At(ctx, s.contact, mid-1, s.excluded)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if newer == nil {
		return domain.OrderResult{}, ErrNoAnchor
	}
	return types.Duplicated(s.guard((newer.Order+row.Order)/2), row.Order), nil
}

// sentAt decrypts the row's timestamp, excluding the row when it cannot.
func (c *Calculator) sentAt(s *search, row *domain.MessageOrder) (time.Time, bool) {
	t, err := c.dec.DecryptTime(row.EncSentAt, s.key)
	if err == nil {
		return t, true
	}
	s.excluded = append(s.excluded, row.ID)
	s.orders = append(s.orders, row.Order)
	c.log.WithFields(logrus.Fields{
		"contact": s.contact.String(),
		"message": row.ID.String(),
		"order":   row.Order,
		"error":   err,
	}).Warn("excluding message with undecryptable timestamp")
	return time.Time{}, false
}

func (s *search) guard(order float32) float32 {
	if slices.Contains(s.orders, order) {
		return order + collisionNudge
	}
	return order
}

func floor(f float32) float32 { return float32(math.Floor(float64(f))) }
func ceil(f float32) float32  { return float32(math.Ceil(float64(f))) }

// Compile-time assertion that Calculator implements domain.OrderCalculator.
var _ domain.OrderCalculator = (*Calculator)(nil)
