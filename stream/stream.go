// Package stream provides push-based streams with multiple
// subscribers.
//
// A stream delivers values to each observer one at a time and in
// emission order. No lock is held while an observer runs, so an
// observer may emit into another stream, or the same one, without
// deadlocking. An error is terminal: after it, the observer receives
// nothing else.
package stream

import "sync"

// Observer receives the values and the terminal error of a stream.
type Observer[T any] interface {
	OnNext(value T)
	OnError(err error)
}

// Subscription cancels delivery to one observer. Unsubscribing does
// not abort work already started by the stream's producer.
type Subscription interface {
	Unsubscribe()
}

// Observable is a stream that observers can subscribe to.
type Observable[T any] interface {
	Subscribe(o Observer[T]) Subscription
}

// Funcs adapts a pair of functions to the Observer interface.
// Either may be nil.
type Funcs[T any] struct {
	Next  func(T)
	Error func(error)
}

func (f Funcs[T]) OnNext(v T) {
	if f.Next != nil {
		f.Next(v)
	}
}

func (f Funcs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// ObservableFunc is a helper that implements Observable.
type ObservableFunc[T any] func(o Observer[T]) Subscription

func (f ObservableFunc[T]) Subscribe(o Observer[T]) Subscription {
	return f(o)
}

// SubscriptionFunc is a helper that implements Subscription.
// The function runs at most once.
func SubscriptionFunc(f func()) Subscription {
	return &funcSubscription{f: f}
}

type funcSubscription struct {
	once sync.Once
	f    func()
}

func (s *funcSubscription) Unsubscribe() {
	s.once.Do(s.f)
}

// compile-time interface assertions
var (
	_ Observer[int]   = Funcs[int]{}
	_ Observable[int] = ObservableFunc[int](nil)
	_ Observable[int] = (*Subject[int])(nil)
)
