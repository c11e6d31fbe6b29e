package item

import (
	"context"
	"errors"
	"strings"
	"testing"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positionOf(t *testing.T, r port.ItemReader[int]) int {
	t.Helper()
	ec, err := r.GetExecutionContext(context.Background())
	require.NoError(t, err)
	idx, ok := ec.GetInt(listReaderIndexKey)
	require.True(t, ok)
	return idx
}

func TestUnwindingItemReader_FlattensGroupsWithoutMidGroupCheckpoints(t *testing.T) {
	ctx := context.Background()
	groups := [][]int{{1, 2}, {}, {3, 4, 5}, {6}}
	reader := NewUnwindingItemReader[int](NewListItemReader(groups))
	require.NoError(t, reader.Open(ctx, model.NewExecutionContext()))

	var got []int
	var positions []int
	for {
		v, err := reader.Read(ctx)
		if errors.Is(err, port.ErrNoMoreItems) {
			break
		}
		require.NoError(t, err)
		got = append(got, v)
		positions = append(positions, positionOf(t, reader))
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, got)
	// Inside a group the position stays on the group boundary.
	assert.Equal(t, []int{0, 1, 2, 2, 3, 4}, positions)
	require.NoError(t, reader.Close(ctx))
}

func TestUnwindingItemReader_ResumesAtGroupBoundary(t *testing.T) {
	ctx := context.Background()
	groups := [][]int{{1, 2}, {}, {3, 4, 5}, {6}}

	first := NewUnwindingItemReader[int](NewListItemReader(groups))
	require.NoError(t, first.Open(ctx, model.NewExecutionContext()))
	for i := 0; i < 4; i++ {
		_, err := first.Read(ctx)
		require.NoError(t, err)
	}
	checkpoint, err := first.GetExecutionContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Pending())

	resumed := NewUnwindingItemReader[int](NewListItemReader(groups))
	require.NoError(t, resumed.Open(ctx, checkpoint))
	var got []int
	for {
		v, err := resumed.Read(ctx)
		if errors.Is(err, port.ErrNoMoreItems) {
			break
		}
		require.NoError(t, err)
		got = append(got, v)
	}
	// The group holding items 3-5 is read again as a whole.
	assert.Equal(t, []int{3, 4, 5, 6}, got)
}

func TestUnwindingItemReader_AllEmptyGroups(t *testing.T) {
	ctx := context.Background()
	reader := NewUnwindingItemReader[int](NewListItemReader([][]int{{}, {}, {}}))
	require.NoError(t, reader.Open(ctx, model.NewExecutionContext()))
	_, err := reader.Read(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
}

func TestUnwindingItemReader_LeavesDelegateGroupsIntact(t *testing.T) {
	ctx := context.Background()
	a, b, c := "a", "b", "c"
	groups := [][]*string{{&a, &b}, {&c}}
	reader := NewUnwindingItemReader[*string](NewListItemReader(groups))
	require.NoError(t, reader.Open(ctx, model.NewExecutionContext()))
	for i := 0; i < 3; i++ {
		v, err := reader.Read(ctx)
		require.NoError(t, err)
		require.NotNil(t, v)
	}

	assert.Equal(t, [][]*string{{&a, &b}, {&c}}, groups)
	assert.Zero(t, reader.Pending())
}

func upper() port.ItemProcessor[*string, *string] {
	return FuncItemProcessor[*string, *string](func(_ context.Context, s *string) (*string, error) {
		u := strings.ToUpper(*s)
		return &u, nil
	})
}

func TestCompositeItemProcessor(t *testing.T) {
	ctx := context.Background()
	calls := 0
	dropX := FuncItemProcessor[*string, *string](func(_ context.Context, s *string) (*string, error) {
		calls++
		if strings.HasPrefix(*s, "x") {
			return nil, nil
		}
		return s, nil
	})
	failing := FuncItemProcessor[*string, *string](func(_ context.Context, s *string) (*string, error) {
		if *s == "BAD" {
			return nil, errors.New("malformed")
		}
		return s, nil
	})
	p := NewCompositeItemProcessor[*string](dropX, upper(), failing)

	in := "abc"
	out, err := p.Process(ctx, &in)
	require.NoError(t, err)
	assert.Equal(t, "ABC", *out)

	filtered := "xyz"
	out, err = p.Process(ctx, &filtered)
	require.NoError(t, err)
	assert.True(t, port.IsFiltered(out))

	bad := "bad"
	_, err = p.Process(ctx, &bad)
	assert.EqualError(t, err, "malformed")
	assert.Equal(t, 3, calls)
}

func TestListItemReader_Resume(t *testing.T) {
	ctx := context.Background()
	r := NewListItemReader([]string{"a", "b", "c"})
	ec := model.NewExecutionContext()
	ec.Put(listReaderIndexKey, 2)
	require.NoError(t, r.Open(ctx, ec))

	v, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", v)
	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
}

func TestPassThroughItemProcessor(t *testing.T) {
	out, err := NewPassThroughItemProcessor[int]().Process(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}
