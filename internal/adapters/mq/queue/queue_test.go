package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/okian/klapi/internal/adapters/repository"
	"github.com/okian/klapi/internal/domain/model"
)

func change(rev uint64) Item {
	return repository.Change{Revisions: map[model.Collection]uint64{model.CollectionEvents: rev}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, change(1)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	it := <-q.Dequeue(ctx)
	if got := it.Revisions[model.CollectionEvents]; got != 1 {
		t.Errorf("expected revision 1, got %d", got)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, change(1)) || !q.Enqueue(ctx, change(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, change(3)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_Order(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	for i := 1; i <= 50; i++ {
		q.Enqueue(ctx, change(uint64(i)))
	}
	_ = q.Close()

	var want uint64 = 1
	for it := range q.Dequeue(ctx) {
		if got := it.Revisions[model.CollectionEvents]; got != want {
			t.Fatalf("expected revision %d, got %d", want, got)
		}
		want++
	}
	if want != 51 {
		t.Errorf("expected 50 items, got %d", want-1)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(ctx, change(uint64(j)))
			}
		}()
	}
	wg.Wait()

	if l := q.Len(); l != 1000 {
		t.Errorf("expected length 1000, got %d", l)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, change(1)) {
		t.Error("expected enqueue to fail after close")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close returned %v", err)
	}
	if _, ok := <-q.Dequeue(ctx); ok {
		t.Error("expected dequeue channel to be closed")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q.Enqueue(context.Background(), change(1))
	if q.Enqueue(ctx, change(2)) {
		t.Error("expected enqueue to fail")
	}
}
