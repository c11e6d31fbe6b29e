package writer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage"
	storageconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/config"
	_ "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/local"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
)

type exportRow struct {
	ID         string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Chromosome string `parquet:"name=chromosome, type=BYTE_ARRAY, convertedtype=UTF8"`
	Start      int64  `parquet:"name=start, type=INT64"`
}

func readRows(t *testing.T, file string) []exportRow {
	t.Helper()
	fr, err := local.NewLocalFileReader(file)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(exportRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	rows := make([]exportRow, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	return rows
}

func TestParquetWriter_WritesOneFilePerPartition(t *testing.T) {
	baseDir := t.TempDir()
	provider := storage.NewStorageProvider(storageconfig.DatasourcesConfig{
		"export": {Type: "local", BaseDir: baseDir},
	})
	w, err := NewParquetWriter("export-variants", map[string]interface{}{
		"storageRef":      "export",
		"outputBaseDir":   "variants",
		"compressionType": "NONE",
	}, provider, new(exportRow), func(r exportRow) (string, error) { return "chromosome=" + r.Chromosome, nil })
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	require.NoError(t, w.Write(ctx, []exportRow{
		{ID: "1_100_A_T", Chromosome: "1", Start: 100},
		{ID: "2_50_C_G", Chromosome: "2", Start: 50},
	}))
	require.NoError(t, w.Write(ctx, []exportRow{{ID: "1_200_G_A", Chromosome: "1", Start: 200}}))
	require.NoError(t, w.Close(ctx))

	chr1 := readRows(t, filepath.Join(baseDir, "variants", "chromosome=1", "data.parquet"))
	require.Len(t, chr1, 2)
	assert.Equal(t, "1_100_A_T", chr1[0].ID)
	assert.Equal(t, int64(200), chr1[1].Start)

	chr2 := readRows(t, filepath.Join(baseDir, "variants", "chromosome=2", "data.parquet"))
	require.Len(t, chr2, 1)
	assert.Equal(t, "2_50_C_G", chr2[0].ID)
}

func TestNewParquetWriter_RequiresProperties(t *testing.T) {
	provider := storage.NewStorageProvider(nil)

	_, err := NewParquetWriter[exportRow]("w", map[string]interface{}{"outputBaseDir": "x"}, provider, new(exportRow), nil)
	assert.ErrorContains(t, err, "storageRef")

	_, err = NewParquetWriter[exportRow]("w", map[string]interface{}{"storageRef": "export"}, provider, new(exportRow), nil)
	assert.ErrorContains(t, err, "outputBaseDir")

	_, err = NewParquetWriter[exportRow]("w", map[string]interface{}{"storageRef": "export", "outputBaseDir": "x", "compressionType": "LZMA"}, provider, new(exportRow), nil)
	assert.Error(t, err)
}

func TestParquetWriter_NothingWrittenUploadsNothing(t *testing.T) {
	baseDir := t.TempDir()
	provider := storage.NewStorageProvider(storageconfig.DatasourcesConfig{
		"export": {Type: "local", BaseDir: baseDir},
	})
	w, err := NewParquetWriter[exportRow]("w", map[string]interface{}{"storageRef": "export", "outputBaseDir": "out"}, provider, new(exportRow), nil)
	require.NoError(t, err)
	require.NoError(t, w.Open(context.Background(), model.NewExecutionContext()))
	require.NoError(t, w.Close(context.Background()))
	assert.NoDirExists(t, filepath.Join(baseDir, "out"))
}
