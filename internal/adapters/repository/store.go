// Package repository defines the persistence contract shared by the league
// backends and the change notifications they emit.
package repository

import (
	"context"

	"github.com/okian/klapi/internal/domain/model"
)

// Change carries the full current membership of one or more collections.
// Only the collections present in Revisions are meaningful in State.
// Revisions grow monotonically per collection within one backend instance.
type Change struct {
	State     model.State
	Revisions map[model.Collection]uint64
}

// Collections returns the collections carried by the change in a stable order.
func (c Change) Collections() []model.Collection {
	out := make([]model.Collection, 0, len(c.Revisions))
	for _, col := range model.AllCollections {
		if _, ok := c.Revisions[col]; ok {
			out = append(out, col)
		}
	}
	return out
}

// Store is the persistence contract. Writes are upserts or idempotent
// deletes; a write either completes or returns an error, nothing is retried.
type Store interface {
	// Load returns every collection with its current revision.
	Load(ctx context.Context) (Change, error)
	// Subscribe registers fn for change notifications until cancel is called.
	// fn must not block.
	Subscribe(fn func(Change)) (cancel func())

	SavePlayer(ctx context.Context, p model.Player) error
	DeletePlayer(ctx context.Context, id string) error
	SaveEvent(ctx context.Context, g model.GrandPrix) error
	// ConvertPlanned stores g in place of the planned event with the same id.
	// Backends that keep insertion order move it to the end.
	ConvertPlanned(ctx context.Context, g model.GrandPrix) error
	DeleteEvent(ctx context.Context, id string) error
	SavePost(ctx context.Context, p model.Post) error
	DeletePost(ctx context.Context, id string) error
	AppendLog(ctx context.Context, e model.LogEntry) error

	Close() error
}
