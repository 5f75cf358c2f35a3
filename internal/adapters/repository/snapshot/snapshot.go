// Package snapshot implements the local backend: the whole league state is one
// JSON record rewritten on every mutation.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/klapi/internal/adapters/repository"
	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/pkg/logger"
	"github.com/okian/klapi/pkg/metrics"
)

// Store keeps the league in a single blob. Every write is a read-modify-write
// of the full record; concurrent writers sharing the blob are not isolated and
// the last one to persist wins.
type Store struct {
	mu     sync.Mutex
	blob   Blob
	key    string
	clock  func() time.Time
	log    logger.Logger
	rev    uint64
	closed bool
	subs   repository.Subscribers
}

var _ repository.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the snapshot key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock overrides the clock used for the seed state.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New returns a snapshot store over blob.
func New(blob Blob, opts ...Option) *Store {
	s := &Store{
		blob:  blob,
		key:   model.SnapshotKey,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("snapshot")
	}
	return s
}

// read decodes the stored record. A missing or malformed record yields the
// seed state; seeded reports whether that happened.
func (s *Store) read(ctx context.Context) (state model.State, seeded bool, err error) {
	data, err := s.blob.Get(ctx, s.key)
	switch {
	case errors.Is(err, ErrBlobNotFound):
		return model.Seed(s.clock()), true, nil
	case err != nil:
		return model.State{}, false, fmt.Errorf("%w: read snapshot: %v", repository.ErrUnavailable, err)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Warn(ctx, "malformed snapshot, falling back to seed", logger.String("key", s.key), logger.Error(err))
		metrics.RecordError("snapshot", "decode")
		return model.Seed(s.clock()), true, nil
	}
	return state, false, nil
}

func (s *Store) write(ctx context.Context, state model.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.blob.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("%w: write snapshot: %v", repository.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) change(state model.State) repository.Change {
	revs := make(map[model.Collection]uint64, len(model.AllCollections))
	for _, c := range model.AllCollections {
		revs[c] = s.rev
	}
	return repository.Change{State: state.Clone(), Revisions: revs}
}

// Load returns the stored state. A seed fallback is persisted right away so
// later loads observe the same seed.
func (s *Store) Load(ctx context.Context) (repository.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repository.Change{}, repository.ErrClosed
	}

	state, seeded, err := s.read(ctx)
	if err != nil {
		return repository.Change{}, err
	}
	if seeded {
		metrics.RecordSnapshotFallback()
		if err := s.write(ctx, state); err != nil {
			s.log.Warn(ctx, "could not persist seed state", logger.Error(err))
		} else {
			s.rev++
		}
	}
	return s.change(state), nil
}

// Subscribe registers fn for full-state notifications after each write.
func (s *Store) Subscribe(fn func(repository.Change)) func() {
	return s.subs.Add(fn)
}

// mutate applies fn to the freshly read state and persists the result.
func (s *Store) mutate(ctx context.Context, fn func(*model.State)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return repository.ErrClosed
	}
	state, _, err := s.read(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	fn(&state)
	if err := s.write(ctx, state); err != nil {
		s.mu.Unlock()
		return err
	}
	s.rev++
	c := s.change(state)
	s.mu.Unlock()

	s.subs.Publish(c)
	return nil
}

// SavePlayer upserts a player, keeping its roster position.
func (s *Store) SavePlayer(ctx context.Context, p model.Player) error {
	return s.mutate(ctx, func(st *model.State) {
		for i := range st.Players {
			if st.Players[i].ID == p.ID {
				st.Players[i] = p
				return
			}
		}
		st.Players = append(st.Players, p)
	})
}

// DeletePlayer removes a player from the roster. Historical rounds are kept.
func (s *Store) DeletePlayer(ctx context.Context, id string) error {
	return s.mutate(ctx, func(st *model.State) {
		out := st.Players[:0]
		for _, p := range st.Players {
			if p.ID != id {
				out = append(out, p)
			}
		}
		st.Players = out
	})
}

// SaveEvent upserts an event, keeping its position.
func (s *Store) SaveEvent(ctx context.Context, g model.GrandPrix) error {
	return s.mutate(ctx, func(st *model.State) {
		for i := range st.Events {
			if st.Events[i].ID == g.ID {
				st.Events[i] = g
				return
			}
		}
		st.Events = append(st.Events, g)
	})
}

// ConvertPlanned replaces the event with g's id and moves it to the end of
// the collection.
func (s *Store) ConvertPlanned(ctx context.Context, g model.GrandPrix) error {
	return s.mutate(ctx, func(st *model.State) {
		for i := range st.Events {
			if st.Events[i].ID == g.ID {
				st.Events = append(st.Events[:i], st.Events[i+1:]...)
				break
			}
		}
		st.Events = append(st.Events, g)
	})
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return s.mutate(ctx, func(st *model.State) {
		out := st.Events[:0]
		for _, g := range st.Events {
			if g.ID != id {
				out = append(out, g)
			}
		}
		st.Events = out
	})
}

// SavePost upserts a post.
func (s *Store) SavePost(ctx context.Context, p model.Post) error {
	return s.mutate(ctx, func(st *model.State) {
		for i := range st.Posts {
			if st.Posts[i].ID == p.ID {
				st.Posts[i] = p
				return
			}
		}
		st.Posts = append(st.Posts, p)
	})
}

// DeletePost removes a post.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.mutate(ctx, func(st *model.State) {
		out := st.Posts[:0]
		for _, p := range st.Posts {
			if p.ID != id {
				out = append(out, p)
			}
		}
		st.Posts = out
	})
}

// AppendLog appends an audit entry.
func (s *Store) AppendLog(ctx context.Context, e model.LogEntry) error {
	return s.mutate(ctx, func(st *model.State) {
		st.Logs = append(st.Logs, e)
	})
}

// Close closes the underlying blob.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.blob.Close()
}
