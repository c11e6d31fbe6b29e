package job

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selvaebi/eva-pipeline/internal/step/reader"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

func params(kv ...string) model.JobParameters {
	p := model.NewJobParameters()
	for i := 0; i+1 < len(kv); i += 2 {
		p.Put(kv[i], kv[i+1])
	}
	return p
}

func TestBindParameters_OverlaysDefaults(t *testing.T) {
	defaults := DefaultParameters(config.NewConfig().Eva.Batch)

	p, err := BindParameters(JobGenotypedVcf, params(
		ParamInputVcf, "small.vcf.gz",
		ParamChunkSize, "25",
		ParamAllowStartIfComplete, "true",
		ParamVepArgs, "--cache,--offline",
		"run.id", "3",
	), defaults)
	require.NoError(t, err)

	assert.Equal(t, "small.vcf.gz", p.InputVcf)
	assert.Equal(t, 25, p.ChunkSize)
	assert.Equal(t, 50, p.SkipLimit)
	assert.True(t, p.AllowStartIfComplete)
	assert.Equal(t, []string{"--cache", "--offline"}, p.VepArgs)
	assert.Equal(t, "variants", p.VariantsCollection)
	assert.Equal(t, "sample_properties", p.PropertiesCollection)
}

func TestBindParameters_InvalidValueIsAValidationError(t *testing.T) {
	_, err := BindParameters(JobGenotypedVcf, params(ParamSkipLimit, "lots"), DefaultParameters(config.BatchConfig{}))
	require.Error(t, err)
	assert.True(t, exception.IsValidationError(err))
}

func TestParameters_VariantSourceAndVepInputPath(t *testing.T) {
	p := Parameters{StudyID: "PRJEB1", VcfID: "f1", Aggregation: "exac", AnnotationOutputDir: "/tmp/ann"}

	source, err := p.VariantSource()
	require.NoError(t, err)
	assert.Equal(t, reader.AggregationExAC, source.Aggregation)
	assert.Equal(t, "PRJEB1", source.StudyID)
	assert.Equal(t, filepath.Join("/tmp/ann", "PRJEB1_f1_variants_to_annotate.tsv"), p.VepInputPath())

	p.Aggregation = "GNOMAD"
	_, err = p.VariantSource()
	assert.Error(t, err)
}
