package stream

import (
	"context"
)

// First blocks until src emits a value, fails, or ctx is done.
func First[T any](ctx context.Context, src Observable[T]) (T, error) {
	return FirstWhere(ctx, src, func(T) bool { return true })
}

// FirstWhere blocks until src emits a value satisfying pred, fails,
// or ctx is done.
func FirstWhere[T any](ctx context.Context, src Observable[T], pred func(T) bool) (T, error) {
	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	send := func(r result) {
		select {
		case ch <- r:
		default:
		}
	}

	sub := src.Subscribe(Funcs[T]{
		Next: func(v T) {
			if pred(v) {
				send(result{value: v})
			}
		},
		Error: func(err error) { send(result{err: err}) },
	})
	defer sub.Unsubscribe()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Values forwards every value of src to the returned channel until
// ctx is done or src fails, then closes it. Values are buffered
// without bound so a slow reader never blocks the producer. The
// terminal error, if any, is sent on errc, which has capacity one,
// after the buffered values.
func Values[T any](ctx context.Context, src Observable[T]) (values <-chan T, errc <-chan error) {
	out := make(chan T)
	errs := make(chan error, 1)
	in := make(chan T)
	failed := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(out)

		var queue []T
		for {
			var send chan T
			var head T
			if len(queue) > 0 {
				send = out
				head = queue[0]
			}
			select {
			case v := <-in:
				queue = append(queue, v)
			case send <- head:
				queue = queue[1:]
			case err := <-failed:
				for _, v := range queue {
					select {
					case out <- v:
					case <-ctx.Done():
						return
					}
				}
				errs <- err
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	sub := src.Subscribe(Funcs[T]{
		Next: func(v T) {
			select {
			case in <- v:
			case <-done:
			}
		},
		Error: func(err error) {
			select {
			case failed <- err:
			default:
			}
		},
	})
	go func() {
		<-done
		sub.Unsubscribe()
	}()
	return out, errs
}
