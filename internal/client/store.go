// Package client is the API consumer side: a REST client plus the auth and task stores a UI binds to.
package client

import "sync"

// observable holds a state value that only changes through reducers and notifies subscribers.
type observable[S any] struct {
	mu        sync.Mutex
	state     S
	listeners map[int]func(S)
	nextID    int
}

func newObservable[S any](initial S) *observable[S] {
	return &observable[S]{state: initial, listeners: make(map[int]func(S))}
}

func (o *observable[S]) get() S {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// apply runs reducer on the current state and notifies listeners with the result.
func (o *observable[S]) apply(reducer func(S) S) S {
	o.mu.Lock()
	next := reducer(o.state)
	o.state = next
	listeners := make([]func(S), 0, len(o.listeners))
	for _, fn := range o.listeners {
		listeners = append(listeners, fn)
	}
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

func (o *observable[S]) subscribe(fn func(S)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}
