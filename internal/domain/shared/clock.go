package shared

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts the current time so freshness and timeout rules stay testable
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant. Used in tests.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant
func (c FixedClock) Now() time.Time {
	return c.At
}

// IDGenerator produces external identifiers (order numbers, payment ids, refund numbers)
type IDGenerator interface {
	NewID(prefix string) string
}

// UUIDGenerator builds identifiers from random UUIDs
type UUIDGenerator struct{}

// NewID returns prefix followed by 24 hex characters of a random UUID
func (UUIDGenerator) NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(prefix) + raw[:24]
}
