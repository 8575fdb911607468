package types

import "fmt"

// OrderKind tells which variant an OrderResult holds.
type OrderKind uint8

const (
	OrderFound OrderKind = iota + 1
	OrderDuplicated
)

// OrderResult is the outcome of computing a sort position for a new message.
// Found carries Order only. Duplicated carries the candidate Order and the
// Conflicting order of the message that shares the same timestamp.
type OrderResult struct {
	Kind        OrderKind
	Order       float32
	Conflicting float32
}

// Found returns a result for an unambiguous position.
func Found(order float32) OrderResult {
	return OrderResult{Kind: OrderFound, Order: order}
}

// Duplicated returns a result for a timestamp collision.
func Duplicated(candidate, conflicting float32) OrderResult {
	return OrderResult{Kind: OrderDuplicated, Order: candidate, Conflicting: conflicting}
}

// IsDuplicated reports whether the new message collides with an existing one.
func (r OrderResult) IsDuplicated() bool { return r.Kind == OrderDuplicated }

func (r OrderResult) String() string {
	if r.IsDuplicated() {
		return fmt.Sprintf("Duplicated(%g, %g)", r.Order, r.Conflicting)
	}
	return fmt.Sprintf("Found(%g)", r.Order)
}
