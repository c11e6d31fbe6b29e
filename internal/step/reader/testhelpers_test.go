package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// drain opens r on ec and reads it to the end, collecting items and read errors apart.
func drain[T any](t *testing.T, r port.ItemReader[T], ec model.ExecutionContext) ([]T, []error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.Open(ctx, ec))
	defer func() { require.NoError(t, r.Close(ctx)) }()
	var items []T
	var errs []error
	for {
		item, err := r.Read(ctx)
		if errors.Is(err, port.ErrNoMoreItems) {
			return items, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, item)
	}
}
