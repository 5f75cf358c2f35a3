package kv

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/okian/klapi/internal/domain/model"
)

// mirror is the watcher-fed copy of one bucket.
type mirror struct {
	collection model.Collection

	mu      sync.Mutex
	values  map[string][]byte
	rev     uint64
	changed chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
}

func newMirror(c model.Collection) *mirror {
	return &mirror{
		collection: c,
		values:     make(map[string][]byte),
		changed:    make(chan struct{}),
		ready:      make(chan struct{}),
	}
}

func (m *mirror) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

func (m *mirror) isReady() bool {
	select {
	case <-m.ready:
		return true
	default:
		return false
	}
}

// apply records one watcher entry and reports whether membership changed.
// Initial values are taken as they come; later entries must advance the
// bucket revision. Waiters are woken by notify.
func (m *mirror) apply(e jetstream.KeyValueEntry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Revision() <= m.rev && m.isReady() {
		return false
	}
	m.rev = max(m.rev, e.Revision())
	switch e.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		delete(m.values, e.Key())
	default:
		m.values[e.Key()] = append([]byte(nil), e.Value()...)
	}
	return true
}

// notify wakes every goroutine blocked in waitFor.
func (m *mirror) notify() {
	m.mu.Lock()
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()
}

// snapshot returns the documents ordered by id and the bucket revision.
func (m *mirror) snapshot() ([][]byte, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type doc struct {
		id  string
		raw []byte
	}
	docs := make([]doc, 0, len(m.values))
	for k, v := range m.values {
		id, err := decodeKey(k)
		if err != nil {
			id = k
		}
		docs = append(docs, doc{id: id, raw: v})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].id < docs[j].id })
	out := make([][]byte, len(docs))
	for i, d := range docs {
		out[i] = d.raw
	}
	return out, m.rev
}

func (m *mirror) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

// waitFor blocks until cond holds under the mirror lock or ctx ends.
func (m *mirror) waitFor(ctx context.Context, cond func() bool) error {
	for {
		m.mu.Lock()
		ok := cond()
		ch := m.changed
		m.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("%w: %s write not observed: %v", ErrNotReady, m.collection, ctx.Err())
		}
	}
}

func (m *mirror) waitRevision(ctx context.Context, rev uint64) error {
	return m.waitFor(ctx, func() bool { return m.rev >= rev })
}

func (m *mirror) waitAbsent(ctx context.Context, key string) error {
	return m.waitFor(ctx, func() bool {
		_, ok := m.values[key]
		return !ok
	})
}
