package stream

import "sync"

// Subject is a hot stream that remembers its latest value. New
// subscribers first receive the latest value, or the terminal error,
// then everything emitted after they subscribed.
type Subject[T any] struct {
	mu       sync.Mutex
	value    T
	hasValue bool
	err      error
	sinks    map[uint64]*sink[T]
	nextID   uint64
}

// New creates a subject with no value.
func New[T any]() *Subject[T] {
	return &Subject[T]{sinks: make(map[uint64]*sink[T])}
}

// NewWithValue creates a subject holding an initial value.
func NewWithValue[T any](v T) *Subject[T] {
	s := New[T]()
	s.value, s.hasValue = v, true
	return s
}

// Next emits a value. It is a no-op after Error.
func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.value, s.hasValue = v, true
	pending := s.enqueueLocked(event[T]{value: v})
	s.mu.Unlock()

	for _, k := range pending {
		k.drain()
	}
}

// Error terminates the subject. Only the first call has an effect.
func (s *Subject[T]) Error(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.err = err
	pending := s.enqueueLocked(event[T]{err: err})
	s.sinks = make(map[uint64]*sink[T])
	s.mu.Unlock()

	for _, k := range pending {
		k.drain()
	}
}

// Value returns the latest value, if any.
func (s *Subject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

// Err returns the terminal error, if any.
func (s *Subject[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe registers an observer.
func (s *Subject[T]) Subscribe(o Observer[T]) Subscription {
	k := &sink[T]{obs: o}

	s.mu.Lock()
	var start bool
	switch {
	case s.err != nil:
		start = k.enqueue(event[T]{err: s.err})
	case s.hasValue:
		start = k.enqueue(event[T]{value: s.value})
	}
	id := s.nextID
	s.nextID++
	if s.err == nil {
		s.sinks[id] = k
	}
	s.mu.Unlock()

	if start {
		k.drain()
	}
	return SubscriptionFunc(func() {
		s.mu.Lock()
		delete(s.sinks, id)
		s.mu.Unlock()
		k.close()
	})
}

// ObserverCount returns the number of live subscriptions.
func (s *Subject[T]) ObserverCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sinks)
}

// enqueueLocked queues e on every sink and returns the sinks the
// caller must drain. Caller holds s.mu.
func (s *Subject[T]) enqueueLocked(e event[T]) []*sink[T] {
	var pending []*sink[T]
	for _, k := range s.sinks {
		if k.enqueue(e) {
			pending = append(pending, k)
		}
	}
	return pending
}

type event[T any] struct {
	value T
	err   error
}

// sink serializes delivery to one observer. Whoever enqueues into an
// idle sink drains it; concurrent and re-entrant producers only
// append to the queue.
type sink[T any] struct {
	obs      Observer[T]
	mu       sync.Mutex
	queue    []event[T]
	draining bool
	closed   bool
}

// enqueue appends e and reports whether the caller must drain.
func (k *sink[T]) enqueue(e event[T]) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return false
	}
	k.queue = append(k.queue, e)
	if k.draining {
		return false
	}
	k.draining = true
	return true
}

func (k *sink[T]) drain() {
	for {
		k.mu.Lock()
		if k.closed || len(k.queue) == 0 {
			k.draining = false
			k.mu.Unlock()
			return
		}
		e := k.queue[0]
		k.queue[0] = event[T]{}
		k.queue = k.queue[1:]
		if e.err != nil {
			k.closed = true
			k.queue = nil
		}
		k.mu.Unlock()

		if e.err != nil {
			k.obs.OnError(e.err)
		} else {
			k.obs.OnNext(e.value)
		}
	}
}

func (k *sink[T]) close() {
	k.mu.Lock()
	k.closed = true
	k.queue = nil
	k.mu.Unlock()
}
