package gcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/config"
)

func TestClientOptions(t *testing.T) {
	assert.Empty(t, ClientOptions(storageconfig.StorageConfig{}))
	assert.Len(t, ClientOptions(storageconfig.StorageConfig{CredentialsFile: "key.json"}), 1)
	assert.Len(t, ClientOptions(storageconfig.StorageConfig{Endpoint: "http://localhost:4443/storage/v1/"}), 2)
}

func TestGCSAdapter_RequiresBucket(t *testing.T) {
	conn, err := NewGCSAdapter(context.Background(), storageconfig.StorageConfig{Endpoint: "http://localhost:4443/storage/v1/"}, "inputs")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Download(context.Background(), "", "small.vcf")
	assert.ErrorContains(t, err, "no bucket given")
}
