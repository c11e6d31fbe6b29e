package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage"
	storageconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/config"
)

func TestLocalAdapter_UploadDownloadListDelete(t *testing.T) {
	ctx := context.Background()
	conn, err := NewLocalAdapter(storageconfig.StorageConfig{BaseDir: t.TempDir(), BucketName: "exports"}, "export")
	require.NoError(t, err)

	require.NoError(t, conn.Upload(ctx, "", "study/variants.parquet", strings.NewReader("PAR1"), "application/octet-stream"))
	require.NoError(t, conn.Upload(ctx, "", "other.txt", strings.NewReader("x"), "text/plain"))

	rc, err := conn.Download(ctx, "exports", "study/variants.parquet")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "PAR1", string(data))

	var listed []string
	require.NoError(t, conn.ListObjects(ctx, "", "study/", func(name string) error {
		listed = append(listed, name)
		return nil
	}))
	assert.Equal(t, []string{"study/variants.parquet"}, listed)

	require.NoError(t, conn.DeleteObject(ctx, "", "study/variants.parquet"))
	require.NoError(t, conn.DeleteObject(ctx, "", "study/variants.parquet"), "deleting a missing object is not an error")
}

func TestLocalAdapter_RejectsPathsOutsideBaseDir(t *testing.T) {
	conn, err := NewLocalAdapter(storageconfig.StorageConfig{BaseDir: t.TempDir()}, "export")
	require.NoError(t, err)

	err = conn.Upload(context.Background(), "", "../escape.txt", strings.NewReader("x"), "text/plain")
	assert.ErrorContains(t, err, "outside of BaseDir")
}

func TestStorageProvider_OpensLocalConnectionsByName(t *testing.T) {
	provider := storage.NewStorageProvider(storageconfig.DatasourcesConfig{
		"export": {Type: ProviderType, BaseDir: t.TempDir()},
	})
	defer provider.CloseAll()

	conn, err := provider.GetConnection(context.Background(), "export")
	require.NoError(t, err)
	assert.Equal(t, "export", conn.Name())
	assert.Equal(t, ProviderType, conn.Type())

	_, err = provider.GetConnection(context.Background(), "missing")
	assert.Error(t, err)

	_, err = provider.FindByType(context.Background(), "gcs")
	assert.Error(t, err)
}
