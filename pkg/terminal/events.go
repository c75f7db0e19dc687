package terminal

import "sync"

// Emitter fans close events out to registered listeners.
type Emitter struct {
	mu        sync.Mutex
	next      uint64
	listeners map[uint64]CloseListener
}

type subscription struct {
	once sync.Once
	drop func()
}

func (s *subscription) Dispose() {
	s.once.Do(s.drop)
}

// Subscribe registers fn until the returned Disposable is disposed.
func (e *Emitter) Subscribe(fn CloseListener) Disposable {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[uint64]CloseListener)
	}
	id := e.next
	e.next++
	e.listeners[id] = fn

	return &subscription{drop: func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}}
}

// Fire calls every listener registered at the time of the call. Listeners
// run outside the lock, so they may dispose themselves.
func (e *Emitter) Fire(t Terminal) {
	e.mu.Lock()
	snapshot := make([]CloseListener, 0, len(e.listeners))
	for _, fn := range e.listeners {
		snapshot = append(snapshot, fn)
	}
	e.mu.Unlock()

	for _, fn := range snapshot {
		fn(t)
	}
}

// Len returns the number of registered listeners.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
