package port

import (
	"context"
	"testing"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"

	"github.com/stretchr/testify/assert"
)

type record struct{ id string }

func TestIsFiltered(t *testing.T) {
	var nilRecord *record
	var nilMap map[string]string

	assert.True(t, IsFiltered(nil))
	assert.True(t, IsFiltered(nilRecord))
	assert.True(t, IsFiltered(nilMap))
	assert.False(t, IsFiltered(&record{id: "1"}))
	assert.False(t, IsFiltered(record{}))
	assert.False(t, IsFiltered(0))
	assert.False(t, IsFiltered(""))
}

func TestStepExecutionContextPropagation(t *testing.T) {
	se := model.NewStepExecution(model.NewID(), nil, "load-variants")
	ctx := GetContextWithStepExecution(context.Background(), se)
	assert.Same(t, se, GetStepExecutionFromContext(ctx))
	assert.Nil(t, GetStepExecutionFromContext(context.Background()))
}
