package configbinder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type options struct {
	Input      string        `yaml:"input.vcf"`
	ChunkSize  int           `yaml:"config.chunk.size"`
	AllowStart bool          `yaml:"config.restartability.allow"`
	Exceptions []string      `yaml:"skippable"`
	Timeout    time.Duration `yaml:"timeout"`
}

func TestBindProperties_WeakTypes(t *testing.T) {
	var opts options
	err := BindProperties(map[string]interface{}{
		"input.vcf":                   "/data/small.vcf.gz",
		"config.chunk.size":           "100",
		"config.restartability.allow": "true",
		"skippable":                   "FlatFileParseException,io.ErrUnexpectedEOF",
		"timeout":                     "30s",
	}, &opts)

	require.NoError(t, err)
	assert.Equal(t, "/data/small.vcf.gz", opts.Input)
	assert.Equal(t, 100, opts.ChunkSize)
	assert.True(t, opts.AllowStart)
	assert.Equal(t, []string{"FlatFileParseException", "io.ErrUnexpectedEOF"}, opts.Exceptions)
	assert.Equal(t, 30*time.Second, opts.Timeout)
}

func TestBindProperties_InvalidValue(t *testing.T) {
	var opts options
	err := BindProperties(map[string]interface{}{"config.chunk.size": "many"}, &opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "options")
}
