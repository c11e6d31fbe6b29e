package item

import (
	"context"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
)

// CompositeItemProcessor runs its delegates in order. The first delegate that filters the
// item, or fails, ends the chain.
type CompositeItemProcessor[T any] struct {
	delegates []port.ItemProcessor[T, T]
}

var _ port.ItemProcessor[any, any] = (*CompositeItemProcessor[any])(nil)

// NewCompositeItemProcessor chains delegates.
func NewCompositeItemProcessor[T any](delegates ...port.ItemProcessor[T, T]) *CompositeItemProcessor[T] {
	return &CompositeItemProcessor[T]{delegates: delegates}
}

// Process implements port.ItemProcessor.
func (p *CompositeItemProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	current := item
	for _, d := range p.delegates {
		out, err := d.Process(ctx, current)
		if err != nil {
			var zero T
			return zero, err
		}
		if port.IsFiltered(out) {
			return out, nil
		}
		current = out
	}
	return current, nil
}
