// Package dedupe tracks idempotency keys of admin mutations so a retried
// request replays the first response instead of mutating twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	defaultMaxSize = 4096
	defaultTTL     = 24 * time.Hour
)

// State reports what Begin found for a key.
type State int

const (
	// StateNew means the key was unknown and is now reserved by the caller.
	StateNew State = iota
	// StateInFlight means another request holding the key has not finished.
	StateInFlight
	// StateDone means the key completed and its result is returned.
	StateDone
)

// Result is the recorded outcome of a completed request.
type Result struct {
	Status int
	Body   []byte
}

// Deduper records idempotency keys for at-most-once handling.
type Deduper interface {
	// Begin reserves key if it is unknown. For a completed key it returns the
	// recorded result.
	Begin(ctx context.Context, key string) (Result, State)

	// Complete records the result of a reserved key.
	Complete(ctx context.Context, key string, res Result)

	// Forget drops a key so the request can be retried, typically after a
	// failure that did not change anything.
	Forget(ctx context.Context, key string)

	Size() int
}

type entry struct {
	key     string
	done    bool
	result  Result
	expires time.Time
}

// inMemoryDeduper keeps keys in insertion order; the oldest entry is evicted
// when maxSize is reached. maxSize <= 0 disables eviction by size.
type inMemoryDeduper struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	clock   func() time.Time
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
		ttl:     defaultTTL,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) Begin(_ context.Context, key string) (Result, State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock()
	d.expire(now)

	if el, ok := d.entries[key]; ok {
		e := el.Value.(*entry)
		if !e.done {
			return Result{}, StateInFlight
		}
		return e.result, StateDone
	}

	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.entries[key] = d.order.PushFront(&entry{key: key, expires: now.Add(d.ttl)})
	return Result{}, StateNew
}

func (d *inMemoryDeduper) Complete(_ context.Context, key string, res Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.entries[key]
	if !ok {
		return
	}
	e := el.Value.(*entry)
	e.done = true
	e.result = Result{Status: res.Status, Body: append([]byte(nil), res.Body...)}
}

func (d *inMemoryDeduper) Forget(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.entries[key]; ok {
		d.order.Remove(el)
		delete(d.entries, key)
	}
}

// expire drops entries past their deadline. Must be called with d.mu held.
func (d *inMemoryDeduper) expire(now time.Time) {
	for el := d.order.Back(); el != nil; {
		e := el.Value.(*entry)
		if now.Before(e.expires) {
			return
		}
		prev := el.Prev()
		d.order.Remove(el)
		delete(d.entries, e.key)
		el = prev
	}
}

// evictOldest removes the least recently added entry. Must be called with
// d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.entries, el.Value.(*entry).key)
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
