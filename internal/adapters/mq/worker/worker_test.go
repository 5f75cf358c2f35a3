package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/klapi/internal/adapters/mq/queue"
	"github.com/okian/klapi/internal/adapters/mq/worker"
	"github.com/okian/klapi/internal/adapters/repository"
	"github.com/okian/klapi/internal/domain/model"
	logging "github.com/okian/klapi/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockApplier struct {
	mu   sync.Mutex
	revs []uint64
	fail map[uint64]error
}

func newMockApplier() *mockApplier {
	return &mockApplier{fail: make(map[uint64]error)}
}

func (m *mockApplier) Apply(_ context.Context, c queue.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev := c.Revisions[model.CollectionPlayers]
	if err, ok := m.fail[rev]; ok {
		return err
	}
	m.revs = append(m.revs, rev)
	return nil
}

func (m *mockApplier) applied() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.revs...)
}

func change(rev uint64) queue.Item {
	return repository.Change{Revisions: map[model.Collection]uint64{model.CollectionPlayers: rev}}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over an in-memory queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		applier := newMockApplier()
		w := worker.NewInMemoryWorker(q, applier, worker.WithName("test-dispatcher"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When changes are queued", func() {
			for i := uint64(1); i <= 5; i++ {
				q.Enqueue(ctx, change(i))
			}

			convey.Convey("Then they are applied in order", func() {
				convey.So(waitFor(func() bool { return len(applier.applied()) == 5 }), convey.ShouldBeTrue)
				convey.So(applier.applied(), convey.ShouldResemble, []uint64{1, 2, 3, 4, 5})
			})
		})

		convey.Convey("When applying a change fails", func() {
			applier.mu.Lock()
			applier.fail[2] = errors.New("boom")
			applier.mu.Unlock()
			q.Enqueue(ctx, change(1))
			q.Enqueue(ctx, change(2))
			q.Enqueue(ctx, change(3))

			convey.Convey("Then later changes are still applied", func() {
				convey.So(waitFor(func() bool { return len(applier.applied()) == 2 }), convey.ShouldBeTrue)
				convey.So(applier.applied(), convey.ShouldResemble, []uint64{1, 3})
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})

		convey.Convey("When the queue is closed", func() {
			_ = q.Close()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerContextCancel(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()
		w := worker.NewInMemoryWorker(queue.NewInMemoryQueue(), newMockApplier())
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)

		convey.Convey("Cancelling the context stops it", func() {
			cancel()
			select {
			case <-w.Done():
			case <-time.After(time.Second):
				convey.So("worker still running", convey.ShouldBeEmpty)
			}
		})
	})
}
