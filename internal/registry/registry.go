// Package registry holds in-memory admission gates and attempt sessions.
// Values are checked out for exclusive use and returned when the caller is
// done, so a value is never driven by two requests at once.
package registry

import (
	"sync"
	"time"

	"github.com/victornm/quizgate/internal/errors"
)

const defaultCapacity = 10000

type entry[T any] struct {
	v       T
	owner   string
	busy    bool
	touched time.Time
}

type Registry[T any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*entry[T]
	now      func() time.Time
}

func New[T any](capacity int) *Registry[T] {
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	return &Registry[T]{
		capacity: capacity,
		items:    make(map[string]*entry[T]),
		now:      time.Now,
	}
}

// Put stores v under id for owner. When the registry is full the least
// recently used idle value is evicted.
func (r *Registry[T]) Put(id, owner string, v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("registry: %s already exists", id))
	}

	if len(r.items) >= r.capacity && !r.evictLocked() {
		return errors.New(errors.CodeUnavailable, errors.WithMessagef("registry: capacity %d reached", r.capacity))
	}

	r.items[id] = &entry[T]{v: v, owner: owner, touched: r.now()}
	return nil
}

// Checkout hands v to the caller until release is called. A value owned by
// someone else is reported as not found.
func (r *Registry[T]) Checkout(id, owner string) (v T, release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok || e.owner != owner {
		return v, nil, errors.New(errors.CodeNotFound, errors.WithMessagef("registry: %s not found", id))
	}
	if e.busy {
		return v, nil, errors.InvalidState("registry: %s is busy", id)
	}

	e.busy = true
	e.touched = r.now()

	var once sync.Once
	release = func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			e.busy = false
			e.touched = r.now()
		})
	}

	return e.v, release, nil
}

func (r *Registry[T]) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, id)
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.items)
}

func (r *Registry[T]) evictLocked() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range r.items {
		if e.busy {
			continue
		}
		if oldestID == "" || e.touched.Before(oldest) {
			oldestID, oldest = id, e.touched
		}
	}

	if oldestID == "" {
		return false
	}

	delete(r.items, oldestID)
	return true
}
