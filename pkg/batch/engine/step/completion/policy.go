// Package completion provides chunk completion policies.
package completion

import (
	"fmt"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
)

// DefaultChunkSize is used when a step does not configure one.
const DefaultChunkSize = 1000

// SimpleCompletionPolicy completes a chunk once it holds ChunkSize items.
type SimpleCompletionPolicy struct {
	ChunkSize int
}

// NewSimpleCompletionPolicy returns a count-based policy. chunkSize must be positive.
func NewSimpleCompletionPolicy(chunkSize int) (*SimpleCompletionPolicy, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be a positive integer, got %d", chunkSize)
	}
	return &SimpleCompletionPolicy{ChunkSize: chunkSize}, nil
}

// ShouldFlush implements port.CompletionPolicy.
func (p *SimpleCompletionPolicy) ShouldFlush(currentChunkSize, readInChunk int) bool {
	return currentChunkSize >= p.ChunkSize
}

// ReadCountCompletionPolicy completes a chunk after a number of reads, filtered items included.
// It bounds the work per transaction when most items are filtered out.
type ReadCountCompletionPolicy struct {
	MaxReads int
}

// ShouldFlush implements port.CompletionPolicy.
func (p *ReadCountCompletionPolicy) ShouldFlush(currentChunkSize, readInChunk int) bool {
	return readInChunk >= p.MaxReads
}

// AnyCompletionPolicy completes a chunk as soon as one of its policies does.
type AnyCompletionPolicy []port.CompletionPolicy

// ShouldFlush implements port.CompletionPolicy.
func (a AnyCompletionPolicy) ShouldFlush(currentChunkSize, readInChunk int) bool {
	for _, p := range a {
		if p.ShouldFlush(currentChunkSize, readInChunk) {
			return true
		}
	}
	return false
}

var (
	_ port.CompletionPolicy = (*SimpleCompletionPolicy)(nil)
	_ port.CompletionPolicy = (*ReadCountCompletionPolicy)(nil)
	_ port.CompletionPolicy = AnyCompletionPolicy(nil)
)
