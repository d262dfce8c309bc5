package shared

// Result is a success-or-failure value for outcomes that are expected branches
// rather than errors, e.g. a discount that cannot be applied.
type Result[T any, E any] struct {
	value   T
	failure E
	ok      bool
}

// Ok wraps a successful value
func Ok[T any, E any](v T) Result[T, E] {
	return Result[T, E]{value: v, ok: true}
}

// Fail wraps a failure value
func Fail[T any, E any](f E) Result[T, E] {
	return Result[T, E]{failure: f}
}

// IsOk reports whether the result holds a value
func (r Result[T, E]) IsOk() bool {
	return r.ok
}

// Value returns the success value (zero value on failure)
func (r Result[T, E]) Value() T {
	return r.value
}

// Failure returns the failure value (zero value on success)
func (r Result[T, E]) Failure() E {
	return r.failure
}

// Get returns the value and whether it is present
func (r Result[T, E]) Get() (T, bool) {
	return r.value, r.ok
}
