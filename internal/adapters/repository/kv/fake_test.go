package kv

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
)

// ------------------------
// Fake KeyValue
// ------------------------

type fakeKeyValue struct {
	jetstream.KeyValue // embed to satisfy the interface

	mu       sync.Mutex
	name     string
	rev      uint64
	data     map[string]*fakeEntry
	watchers []*fakeWatcher
	failPut  bool
}

func newFakeKeyValue(name string) *fakeKeyValue {
	return &fakeKeyValue{name: name, data: make(map[string]*fakeEntry)}
}

func (f *fakeKeyValue) Bucket() string { return f.name }

func (f *fakeKeyValue) Put(_ context.Context, key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return 0, errors.New("nats: no responders available for request")
	}
	f.rev++
	e := &fakeEntry{key: key, value: append([]byte(nil), value...), rev: f.rev, op: jetstream.KeyValuePut}
	f.data[key] = e
	f.broadcast(e)
	return f.rev, nil
}

func (f *fakeKeyValue) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return jetstream.ErrKeyNotFound
	}
	delete(f.data, key)
	f.rev++
	f.broadcast(&fakeEntry{key: key, rev: f.rev, op: jetstream.KeyValueDelete})
	return nil
}

func (f *fakeKeyValue) WatchAll(_ context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWatcher{updates: make(chan jetstream.KeyValueEntry, 256)}
	initial := make([]*fakeEntry, 0, len(f.data))
	for _, e := range f.data {
		initial = append(initial, e)
	}
	sort.Slice(initial, func(i, j int) bool { return initial[i].rev < initial[j].rev })
	for _, e := range initial {
		w.updates <- e
	}
	w.updates <- nil
	f.watchers = append(f.watchers, w)
	return w, nil
}

func (f *fakeKeyValue) broadcast(e *fakeEntry) {
	for _, w := range f.watchers {
		w.updates <- e
	}
}

type fakeWatcher struct {
	jetstream.KeyWatcher
	updates chan jetstream.KeyValueEntry
}

func (w *fakeWatcher) Updates() <-chan jetstream.KeyValueEntry { return w.updates }
func (w *fakeWatcher) Stop() error                             { return nil }

type fakeEntry struct {
	jetstream.KeyValueEntry
	key   string
	value []byte
	rev   uint64
	op    jetstream.KeyValueOp
}

func (e *fakeEntry) Key() string                     { return e.key }
func (e *fakeEntry) Value() []byte                   { return e.value }
func (e *fakeEntry) Revision() uint64                { return e.rev }
func (e *fakeEntry) Operation() jetstream.KeyValueOp { return e.op }
