// Package clock provides the wall clock used for message timestamps.
package clock

import "time"

// System reads the wall clock.
type System struct{}

// Now returns the current time in UTC.
func (System) Now() time.Time { return time.Now().UTC() }
