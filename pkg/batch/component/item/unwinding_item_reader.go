// Package item provides generic readers and processors used to assemble chunk steps.
package item

import (
	"context"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
)

// UnwindingItemReader flattens a reader of item groups into a reader of single items.
//
// While items of a group are still pending, GetExecutionContext reports the position the
// delegate had before that group was fetched. A checkpoint therefore never points inside a
// group: a restart re-reads the whole group, and items already written are delivered again.
// Groups returned by the delegate are never modified.
type UnwindingItemReader[T any] struct {
	delegate port.ItemReader[[]T]
	group    []T
	next     int
	// boundary is the delegate position before the group currently being drained.
	boundary model.ExecutionContext
}

var _ port.ItemReader[any] = (*UnwindingItemReader[any])(nil)

// NewUnwindingItemReader wraps delegate.
func NewUnwindingItemReader[T any](delegate port.ItemReader[[]T]) *UnwindingItemReader[T] {
	return &UnwindingItemReader[T]{delegate: delegate}
}

// Open opens the delegate. Pending items of a previous run are discarded.
func (r *UnwindingItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.group, r.next = nil, 0
	r.boundary = nil
	return r.delegate.Open(ctx, ec)
}

// Read returns the next pending item, fetching groups from the delegate as needed.
// Empty groups are skipped over; only the delegate's ErrNoMoreItems ends the sequence.
func (r *UnwindingItemReader[T]) Read(ctx context.Context) (T, error) {
	for r.Pending() == 0 {
		boundary, err := r.delegate.GetExecutionContext(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		group, err := r.delegate.Read(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		r.boundary = boundary
		r.group, r.next = group, 0
	}

	item := r.group[r.next]
	r.next++
	if r.next == len(r.group) {
		r.group, r.next = nil, 0
	}
	return item, nil
}

// Close closes the delegate.
func (r *UnwindingItemReader[T]) Close(ctx context.Context) error {
	r.group, r.next = nil, 0
	return r.delegate.Close(ctx)
}

// GetExecutionContext returns the delegate position when no item is pending, otherwise the
// position before the group being drained.
func (r *UnwindingItemReader[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	if r.Pending() > 0 && r.boundary != nil {
		return r.boundary.Copy(), nil
	}
	return r.delegate.GetExecutionContext(ctx)
}

// Pending reports how many items of the current group have not been read yet.
func (r *UnwindingItemReader[T]) Pending() int {
	return len(r.group) - r.next
}
