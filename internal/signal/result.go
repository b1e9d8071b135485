// Package signal carries the outcome of an advisory pricing lookup.
//
// Pricing signals never fail their caller: a lookup either produced a value,
// found nothing to report, or hit an I/O failure that was already logged.
// Keeping the three states apart stops "no data" from being read as a zero price.
package signal

type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
	StateFailed  State = "failed"
)

type Result[T any] struct {
	state State
	value T
	err   error
}

func Present[T any](value T) Result[T] {
	return Result[T]{state: StatePresent, value: value}
}

func Absent[T any]() Result[T] {
	return Result[T]{state: StateAbsent}
}

func Failed[T any](err error) Result[T] {
	return Result[T]{state: StateFailed, err: err}
}

// State reports the outcome. The zero Result is absent.
func (r Result[T]) State() State {
	if r.state == "" {
		return StateAbsent
	}
	return r.state
}

func (r Result[T]) OK() bool {
	return r.state == StatePresent
}

// Get returns the value and whether one is present.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.state == StatePresent
}

// Err returns the absorbed failure, if any.
func (r Result[T]) Err() error {
	return r.err
}

// Map transforms a present value and preserves absent and failed states.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	switch r.State() {
	case StatePresent:
		return Present(fn(r.value))
	case StateFailed:
		return Failed[U](r.err)
	default:
		return Absent[U]()
	}
}

// Ptr returns a pointer to the value, or nil when no value is present.
func Ptr[T any](r Result[T]) *T {
	v, ok := r.Get()
	if !ok {
		return nil
	}
	return &v
}
