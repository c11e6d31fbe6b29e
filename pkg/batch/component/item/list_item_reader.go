package item

import (
	"context"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
)

const listReaderIndexKey = "list.reader.index"

// ListItemReader reads items from an in-memory slice. Its position is the index of the
// next item, so it resumes exactly.
type ListItemReader[T any] struct {
	items []T
	index int
}

var _ port.ItemReader[any] = (*ListItemReader[any])(nil)

// NewListItemReader creates a reader over items.
func NewListItemReader[T any](items []T) *ListItemReader[T] {
	return &ListItemReader[T]{items: items}
}

func (r *ListItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.index = 0
	if idx, ok := ec.GetInt(listReaderIndexKey); ok && idx <= len(r.items) {
		r.index = idx
	}
	return nil
}

func (r *ListItemReader[T]) Read(ctx context.Context) (T, error) {
	if r.index >= len(r.items) {
		var zero T
		return zero, port.ErrNoMoreItems
	}
	item := r.items[r.index]
	r.index++
	return item, nil
}

func (r *ListItemReader[T]) Close(ctx context.Context) error {
	return nil
}

func (r *ListItemReader[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	ec.Put(listReaderIndexKey, r.index)
	return ec, nil
}
