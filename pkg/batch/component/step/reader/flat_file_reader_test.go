package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

const numbers = "##fileformat=test\n#value\n1\n2\n\nthree\n4\n"

func writeFile(t *testing.T, name, content string, compress bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	if !compress {
		_, err = f.WriteString(content)
		require.NoError(t, err)
		return path
	}
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

func atoiMapper(line string, _ int) (int, error) {
	return strconv.Atoi(line)
}

func readAll(t *testing.T, r port.ItemReader[int]) ([]int, []error) {
	t.Helper()
	var items []int
	var errs []error
	for {
		item, err := r.Read(context.Background())
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

func TestFlatFileReader_PlainAndGzip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run("gzip="+strconv.FormatBool(compress), func(t *testing.T) {
			path := writeFile(t, "numbers.txt", numbers, compress)
			var headers []string
			r := NewFlatFileReader("numbers", FileOpener(path), atoiMapper,
				WithCommentPrefix[int]("#"),
				WithHeaderHandler[int](func(line string) error {
					headers = append(headers, line)
					return nil
				}))
			require.NoError(t, r.Open(context.Background(), model.NewExecutionContext()))
			defer r.Close(context.Background())

			items, errs := readAll(t, r)
			assert.Equal(t, []int{1, 2, 4}, items)
			require.Len(t, errs, 1)
			assert.True(t, errors.Is(errs[0], exception.ErrFlatFileParse))
			var parseErr *exception.ParseError
			require.ErrorAs(t, errs[0], &parseErr)
			assert.Equal(t, 6, parseErr.LineNumber)
			assert.Equal(t, "three", parseErr.Input)
			assert.Equal(t, []string{"##fileformat=test", "#value"}, headers)
		})
	}
}

func TestFlatFileReader_ResumesAfterCheckpoint(t *testing.T) {
	path := writeFile(t, "numbers.txt.gz", numbers, true)
	ctx := context.Background()

	first := NewFlatFileReader("numbers", FileOpener(path), atoiMapper, WithCommentPrefix[int]("#"))
	require.NoError(t, first.Open(ctx, model.NewExecutionContext()))
	v, err := first.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	checkpoint, err := first.GetExecutionContext(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	var headers int
	second := NewFlatFileReader("numbers", FileOpener(path), atoiMapper,
		WithCommentPrefix[int]("#"),
		WithHeaderHandler[int](func(string) error { headers++; return nil }))
	require.NoError(t, second.Open(ctx, checkpoint))
	defer second.Close(ctx)
	items, errs := readAll(t, second)
	assert.Equal(t, []int{2, 4}, items)
	assert.Len(t, errs, 1)
	assert.Equal(t, 2, headers, "header lines skipped on resume are still handled")
}

func TestFlatFileReader_CheckpointPastEndFails(t *testing.T) {
	path := writeFile(t, "numbers.txt", numbers, false)
	ec := model.NewExecutionContext()
	ec.Put("numbers.line.count", 100)

	r := NewFlatFileReader("numbers", FileOpener(path), atoiMapper)
	assert.Error(t, r.Open(context.Background(), ec))
}

func TestFlatFileReader_MissingFile(t *testing.T) {
	r := NewFlatFileReader("numbers", FileOpener(filepath.Join(t.TempDir(), "missing.vcf")), atoiMapper)
	err := r.Open(context.Background(), model.NewExecutionContext())
	require.Error(t, err)
	assert.False(t, errors.Is(err, exception.ErrFlatFileParse))
}
