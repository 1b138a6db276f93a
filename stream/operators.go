package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// Map transforms every value of src with f.
func Map[T, U any](src Observable[T], f func(T) U) Observable[U] {
	return MapErr(src, func(v T) (U, error) { return f(v), nil })
}

// MapErr transforms every value of src with f. An error returned by f
// terminates the resulting stream and releases the subscription to src.
func MapErr[T, U any](src Observable[T], f func(T) (U, error)) Observable[U] {
	return ObservableFunc[U](func(o Observer[U]) Subscription {
		var stopped atomic.Bool
		var upstream atomic.Pointer[Subscription]

		stop := func() {
			if p := upstream.Load(); p != nil {
				(*p).Unsubscribe()
			}
		}

		sub := src.Subscribe(Funcs[T]{
			Next: func(v T) {
				if stopped.Load() {
					return
				}
				u, err := f(v)
				if err != nil {
					stopped.Store(true)
					o.OnError(err)
					stop()
					return
				}
				o.OnNext(u)
			},
			Error: func(err error) {
				if stopped.Swap(true) {
					return
				}
				o.OnError(err)
			},
		})
		upstream.Store(&sub)
		if stopped.Load() {
			sub.Unsubscribe()
		}
		return SubscriptionFunc(func() {
			stopped.Store(true)
			sub.Unsubscribe()
		})
	})
}

// CombineLatest2 emits f(a, b) whenever either source emits, once both
// have emitted at least once. Values of one source that arrive before
// the other has produced anything only contribute their latest value.
// An error from either source terminates the combined stream.
func CombineLatest2[A, B, R any](a Observable[A], b Observable[B], f func(A, B) R) Observable[R] {
	return ObservableFunc[R](func(o Observer[R]) Subscription {
		c := &combiner[A, B, R]{out: &sink[R]{obs: o}, f: f}

		subA := a.Subscribe(Funcs[A]{Next: c.nextA, Error: c.fail})
		subB := b.Subscribe(Funcs[B]{Next: c.nextB, Error: c.fail})

		unsubscribe := func() {
			subA.Unsubscribe()
			subB.Unsubscribe()
		}
		c.mu.Lock()
		c.release = unsubscribe
		done := c.done
		c.mu.Unlock()
		if done {
			unsubscribe()
		}

		return SubscriptionFunc(func() {
			c.out.close()
			unsubscribe()
		})
	})
}

type combiner[A, B, R any] struct {
	mu      sync.Mutex
	a       A
	b       B
	hasA    bool
	hasB    bool
	done    bool
	release func()
	out     *sink[R]
	f       func(A, B) R
}

func (c *combiner[A, B, R]) nextA(v A) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.a, c.hasA = v, true
	c.emitLocked()
}

func (c *combiner[A, B, R]) nextB(v B) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.b, c.hasB = v, true
	c.emitLocked()
}

// emitLocked computes the combined value under c.mu, queues it and
// drains after unlocking.
func (c *combiner[A, B, R]) emitLocked() {
	if !c.hasA || !c.hasB {
		c.mu.Unlock()
		return
	}
	start := c.out.enqueue(event[R]{value: c.f(c.a, c.b)})
	c.mu.Unlock()
	if start {
		c.out.drain()
	}
}

func (c *combiner[A, B, R]) fail(err error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	release := c.release
	start := c.out.enqueue(event[R]{err: err})
	c.mu.Unlock()
	if start {
		c.out.drain()
	}
	if release != nil {
		release()
	}
}

// FromFunc returns a stream that runs fn once, on its own goroutine,
// when the first observer subscribes. The result, value or error, is
// replayed to every observer.
func FromFunc[T any](ctx context.Context, fn func(context.Context) (T, error)) Observable[T] {
	s := New[T]()
	var once sync.Once
	return ObservableFunc[T](func(o Observer[T]) Subscription {
		sub := s.Subscribe(o)
		once.Do(func() {
			go func() {
				v, err := fn(ctx)
				if err != nil {
					s.Error(err)
					return
				}
				s.Next(v)
			}()
		})
		return sub
	})
}
