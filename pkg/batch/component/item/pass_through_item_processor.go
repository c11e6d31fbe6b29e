package item

import (
	"context"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
)

// PassThroughItemProcessor returns every item unchanged.
type PassThroughItemProcessor[T any] struct{}

var _ port.ItemProcessor[any, any] = (*PassThroughItemProcessor[any])(nil)

// NewPassThroughItemProcessor creates a new PassThroughItemProcessor.
func NewPassThroughItemProcessor[T any]() *PassThroughItemProcessor[T] {
	return &PassThroughItemProcessor[T]{}
}

// Process implements port.ItemProcessor.
func (p *PassThroughItemProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	return item, nil
}

// FuncItemProcessor adapts a function to port.ItemProcessor.
type FuncItemProcessor[I, O any] func(ctx context.Context, item I) (O, error)

// Process implements port.ItemProcessor.
func (f FuncItemProcessor[I, O]) Process(ctx context.Context, item I) (O, error) {
	return f(ctx, item)
}
