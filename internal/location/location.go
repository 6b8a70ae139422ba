// Package location tracks which incident the session points at and notifies
// listeners when that changes from outside the session.
package location

import (
	"strings"
	"sync"
)

// Root is the path of the introductory view, meaning no active incident.
const Root = ""

// Router holds the current path.
//
// Go publishes a path without notifying subscribers, the way a page confirms
// its own URL. Navigate models an external change (a pasted link, back and
// forward) and notifies every subscriber.
type Router struct {
	mu          sync.Mutex
	path        string
	nextID      int
	subscribers map[int]func(path string)
}

// NewRouter creates a router positioned at the given path.
func NewRouter(initial string) *Router {
	return &Router{
		path:        Normalize(initial),
		subscribers: make(map[int]func(string)),
	}
}

// Normalize trims surrounding whitespace and slashes from a path.
func Normalize(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

// Path returns the current path.
func (r *Router) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Subscribe registers fn for external path changes and returns a function
// that removes the subscription.
func (r *Router) Subscribe(fn func(path string)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subscribers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

// Go sets the current path without notifying subscribers.
func (r *Router) Go(path string) {
	r.mu.Lock()
	r.path = Normalize(path)
	r.mu.Unlock()
}

// Navigate sets the current path and notifies subscribers synchronously.
// Subscribers run outside the router lock and may call back into the router.
func (r *Router) Navigate(path string) {
	r.mu.Lock()
	r.path = Normalize(path)
	current := r.path
	fns := make([]func(string), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(current)
	}
}
