// Package job assembles the loader jobs from their steps and registers them by name.
package job

import (
	"fmt"
	"path/filepath"

	"github.com/selvaebi/eva-pipeline/internal/step/reader"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/configbinder"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

// Job parameter keys.
const (
	ParamInputVcf              = "input.vcf"
	ParamVcfID                 = "input.vcf.id"
	ParamStudyID               = "input.study.id"
	ParamAggregation           = "input.vcf.aggregation"
	ParamInputGtf              = "input.gtf"
	ParamVepOutput             = "input.vep.output"
	ParamSampleProperties      = "input.samples.properties"
	ParamAnnotationOutputDir   = "output.dir.annotation"
	ParamExportDir             = "output.export"
	ParamVariantsCollection    = "db.collections.variants.name"
	ParamFeaturesCollection    = "db.collections.features.name"
	ParamAnnotationsCollection = "db.collections.annotations.name"
	ParamPropertiesCollection  = "db.collections.properties.name"
	ParamChunkSize             = "config.chunk.size"
	ParamSkipLimit             = "config.skip.limit"
	ParamAllowStartIfComplete  = "config.restartability.allow"
	ParamIncludeStatistics     = "statistics.include"
	ParamVepPath               = "app.vep.path"
	ParamVepArgs               = "app.vep.args"
)

// GenesChunkSize is the chunk size of the genes load, whatever config.chunk.size says.
const GenesChunkSize = 10

// Parameters are the job parameters of every loader job, with defaults applied.
type Parameters struct {
	InputVcf              string   `yaml:"input.vcf"`
	VcfID                 string   `yaml:"input.vcf.id"`
	StudyID               string   `yaml:"input.study.id"`
	Aggregation           string   `yaml:"input.vcf.aggregation"`
	InputGtf              string   `yaml:"input.gtf"`
	VepOutput             string   `yaml:"input.vep.output"`
	SampleProperties      string   `yaml:"input.samples.properties"`
	AnnotationOutputDir   string   `yaml:"output.dir.annotation"`
	ExportDir             string   `yaml:"output.export"`
	VariantsCollection    string   `yaml:"db.collections.variants.name"`
	FeaturesCollection    string   `yaml:"db.collections.features.name"`
	AnnotationsCollection string   `yaml:"db.collections.annotations.name"`
	PropertiesCollection  string   `yaml:"db.collections.properties.name"`
	ChunkSize             int      `yaml:"config.chunk.size"`
	SkipLimit             int      `yaml:"config.skip.limit"`
	AllowStartIfComplete  bool     `yaml:"config.restartability.allow"`
	IncludeStatistics     bool     `yaml:"statistics.include"`
	VepPath               string   `yaml:"app.vep.path"`
	VepArgs               []string `yaml:"app.vep.args"`
}

// DefaultParameters takes the chunk size and skip limit from the batch configuration.
func DefaultParameters(cfg config.BatchConfig) Parameters {
	return Parameters{
		Aggregation:           string(reader.AggregationNone),
		VariantsCollection:    "variants",
		FeaturesCollection:    "features",
		AnnotationsCollection: "annotations",
		PropertiesCollection:  "sample_properties",
		ChunkSize:             cfg.ChunkSize,
		SkipLimit:             cfg.ItemSkip.SkipLimit,
	}
}

// BindParameters overlays the job parameters on the defaults. Values given as strings on the
// command line are converted to the field types.
func BindParameters(jobName string, params model.JobParameters, defaults Parameters) (Parameters, error) {
	p := defaults
	if err := configbinder.BindProperties(params.Params, &p); err != nil {
		return Parameters{}, exception.NewValidationError(jobName, err)
	}
	return p, nil
}

// VariantSource describes the VCF being loaded.
func (p Parameters) VariantSource() (reader.VariantSource, error) {
	aggregation, err := reader.ParseAggregation(p.Aggregation)
	if err != nil {
		return reader.VariantSource{}, err
	}
	return reader.VariantSource{FileID: p.VcfID, StudyID: p.StudyID, Aggregation: aggregation}, nil
}

// VepInputPath is where generate-vep-input writes the variants to annotate.
func (p Parameters) VepInputPath() string {
	return filepath.Join(p.AnnotationOutputDir, fmt.Sprintf("%s_%s_variants_to_annotate.tsv", p.StudyID, p.VcfID))
}
