// Package kv implements the remote push backend on NATS JetStream key/value
// buckets, one bucket per collection.
package kv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/okian/klapi/internal/adapters/repository"
	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/pkg/logger"
	"github.com/okian/klapi/pkg/metrics"
)

const defaultWriteTimeout = 5 * time.Second

// ErrNotReady is returned when the initial bucket contents did not arrive in time.
var ErrNotReady = errors.New("kv store not ready")

// Store mirrors four buckets through watchers. Every bucket update publishes
// the full membership of that bucket. Writes return once the local mirror has
// observed them, so a Load after a successful write reflects it.
type Store struct {
	mirrors      map[model.Collection]*mirror
	buckets      map[model.Collection]jetstream.KeyValue
	log          logger.Logger
	writeTimeout time.Duration
	subs         repository.Subscribers
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	conn         *nats.Conn
	logSeq       func() string
}

var _ repository.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithWriteTimeout bounds how long a write waits for its own echo.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// BucketName returns the bucket holding a collection.
func BucketName(prefix string, c model.Collection) string {
	if prefix == "" {
		return string(c)
	}
	return prefix + "_" + string(c)
}

// Connect dials NATS, ensures the buckets exist and starts watching them.
func Connect(ctx context.Context, url, prefix string, opts ...Option) (*Store, error) {
	nc, err := nats.Connect(url, nats.Name("klapi-league"))
	if err != nil {
		return nil, fmt.Errorf("%w: connect nats: %v", repository.ErrUnavailable, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	s, err := Open(ctx, js, prefix, opts...)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.conn = nc
	return s, nil
}

// Open ensures the buckets exist on js and starts watching them.
func Open(ctx context.Context, js jetstream.JetStream, prefix string, opts ...Option) (*Store, error) {
	buckets := make(map[model.Collection]jetstream.KeyValue, len(model.AllCollections))
	for _, c := range model.AllCollections {
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      BucketName(prefix, c),
			Description: "klapi league " + string(c),
			History:     1,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: bucket %s: %v", repository.ErrUnavailable, c, err)
		}
		buckets[c] = kv
	}
	return New(ctx, buckets, opts...)
}

// New starts watching already opened buckets.
func New(ctx context.Context, buckets map[model.Collection]jetstream.KeyValue, opts ...Option) (*Store, error) {
	s := &Store{
		mirrors:      make(map[model.Collection]*mirror, len(buckets)),
		buckets:      buckets,
		writeTimeout: defaultWriteTimeout,
		logSeq:       logKeyFunc(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("kv")
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for _, c := range model.AllCollections {
		kv, ok := buckets[c]
		if !ok {
			cancel()
			return nil, fmt.Errorf("missing bucket for %s", c)
		}
		w, err := kv.WatchAll(watchCtx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("%w: watch %s: %v", repository.ErrUnavailable, c, err)
		}
		m := newMirror(c)
		s.mirrors[c] = m
		s.wg.Add(1)
		go s.run(watchCtx, m, w)
	}

	if err := s.waitReady(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) run(ctx context.Context, m *mirror, w jetstream.KeyWatcher) {
	defer s.wg.Done()
	defer func() { _ = w.Stop() }()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.Updates():
			if !ok {
				return
			}
			if e == nil {
				m.markReady()
				m.notify()
				continue
			}
			if m.apply(e) && m.isReady() {
				s.subs.Publish(s.changeFor(m.collection))
			}
			m.notify()
		}
	}
}

func (s *Store) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	for _, m := range s.mirrors {
		select {
		case <-m.ready:
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrNotReady, m.collection)
		}
	}
	return nil
}

// Load returns every collection as currently mirrored.
func (s *Store) Load(ctx context.Context) (repository.Change, error) {
	if err := s.waitReady(ctx); err != nil {
		return repository.Change{}, err
	}
	out := repository.Change{Revisions: make(map[model.Collection]uint64, len(s.mirrors))}
	for _, c := range model.AllCollections {
		part := s.changeFor(c)
		out.State.Replace(part.State, c)
		out.Revisions[c] = part.Revisions[c]
	}
	return out, nil
}

// changeFor decodes a collection's current membership. Players are ordered
// by name, logs by time and everything else by id.
func (s *Store) changeFor(c model.Collection) repository.Change {
	m := s.mirrors[c]
	values, rev := m.snapshot()
	var st model.State
	for _, raw := range values {
		if err := s.decodeInto(&st, c, raw); err != nil {
			s.log.Warn(context.Background(), "skipping malformed document",
				logger.String("collection", string(c)), logger.Error(err))
			metrics.RecordError("kv", "decode")
		}
	}
	switch c {
	case model.CollectionPlayers:
		sort.SliceStable(st.Players, func(i, j int) bool { return st.Players[i].Name < st.Players[j].Name })
	case model.CollectionLogs:
		sort.SliceStable(st.Logs, func(i, j int) bool { return st.Logs[i].Timestamp.Before(st.Logs[j].Timestamp) })
	}
	return repository.Change{State: st, Revisions: map[model.Collection]uint64{c: rev}}
}

func (s *Store) decodeInto(st *model.State, c model.Collection, raw []byte) error {
	switch c {
	case model.CollectionPlayers:
		var p model.Player
		if err := msgpack.Unmarshal(raw, &p); err != nil {
			return err
		}
		st.Players = append(st.Players, p)
	case model.CollectionEvents:
		var g model.GrandPrix
		if err := msgpack.Unmarshal(raw, &g); err != nil {
			return err
		}
		st.Events = append(st.Events, g)
	case model.CollectionPosts:
		var p model.Post
		if err := msgpack.Unmarshal(raw, &p); err != nil {
			return err
		}
		st.Posts = append(st.Posts, p)
	case model.CollectionLogs:
		var e model.LogEntry
		if err := msgpack.Unmarshal(raw, &e); err != nil {
			return err
		}
		st.Logs = append(st.Logs, e)
	}
	return nil
}

// Subscribe registers fn for per-bucket notifications.
func (s *Store) Subscribe(fn func(repository.Change)) func() {
	return s.subs.Add(fn)
}

// encodeKey maps an arbitrary id onto the restricted key alphabet.
func encodeKey(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeKey(key string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(key)
	return string(b), err
}

func (s *Store) put(ctx context.Context, c model.Collection, id string, doc any) error {
	raw, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	rev, err := s.buckets[c].Put(ctx, encodeKey(id), raw)
	if err != nil {
		return fmt.Errorf("%w: put %s/%s: %v", repository.ErrUnavailable, c, id, err)
	}
	return s.mirrors[c].waitRevision(ctx, rev)
}

func (s *Store) delete(ctx context.Context, c model.Collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	key := encodeKey(id)
	if !s.mirrors[c].has(key) {
		return nil
	}
	if err := s.buckets[c].Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("%w: delete %s/%s: %v", repository.ErrUnavailable, c, id, err)
	}
	return s.mirrors[c].waitAbsent(ctx, key)
}

// SavePlayer upserts a player document.
func (s *Store) SavePlayer(ctx context.Context, p model.Player) error {
	return s.put(ctx, model.CollectionPlayers, p.ID, p)
}

// DeletePlayer removes a player document.
func (s *Store) DeletePlayer(ctx context.Context, id string) error {
	return s.delete(ctx, model.CollectionPlayers, id)
}

// SaveEvent upserts an event document.
func (s *Store) SaveEvent(ctx context.Context, g model.GrandPrix) error {
	return s.put(ctx, model.CollectionEvents, g.ID, g)
}

// ConvertPlanned overwrites the planned document. Buckets have no order to keep.
func (s *Store) ConvertPlanned(ctx context.Context, g model.GrandPrix) error {
	return s.SaveEvent(ctx, g)
}

// DeleteEvent removes an event document.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return s.delete(ctx, model.CollectionEvents, id)
}

// SavePost upserts a post document.
func (s *Store) SavePost(ctx context.Context, p model.Post) error {
	return s.put(ctx, model.CollectionPosts, p.ID, p)
}

// DeletePost removes a post document.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.delete(ctx, model.CollectionPosts, id)
}

// AppendLog stores an audit entry under a time-ordered key.
func (s *Store) AppendLog(ctx context.Context, e model.LogEntry) error {
	return s.put(ctx, model.CollectionLogs, s.logSeq(), e)
}

// Close stops the watchers and the connection, if this store dialed it.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if s.conn != nil {
		return s.conn.Drain()
	}
	return nil
}

// logKeyFunc returns a generator of unique, time-ordered log ids.
func logKeyFunc() func() string {
	var (
		mu   sync.Mutex
		last int64
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n := time.Now().UnixNano()
		if n <= last {
			n = last + 1
		}
		last = n
		return fmt.Sprintf("%020d", n)
	}
}
