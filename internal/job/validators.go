package job

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/selvaebi/eva-pipeline/internal/step/reader"
	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/job/validator"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

// Each step contributes the validators of the parameters it reads; a job validates the
// parameters of all its steps before the first one starts.

func collectionNames(keys ...string) port.JobParametersValidator {
	return validator.Func(func(params model.JobParameters) error {
		var result *multierror.Error
		for _, key := range keys {
			name, ok := params.Params[key]
			if !ok {
				continue
			}
			if err := gormadapter.ValidateCollectionName(fmt.Sprint(name)); err != nil {
				result = multierror.Append(result, exception.InvalidParameter(key, err.Error(),
					"collection names are used as table names"))
			}
		}
		return result.ErrorOrNil()
	})
}

func chunkValidators() []port.JobParametersValidator {
	return []port.JobParametersValidator{
		validator.PositiveInt(ParamChunkSize),
		validator.NonNegativeInt(ParamSkipLimit),
		validator.Bool(ParamAllowStartIfComplete),
	}
}

// PrepareDatabaseValidators checks the collection names the job may create.
func PrepareDatabaseValidators() []port.JobParametersValidator {
	return []port.JobParametersValidator{
		collectionNames(ParamVariantsCollection, ParamFeaturesCollection, ParamAnnotationsCollection, ParamPropertiesCollection),
	}
}

// LoadVariantsValidators checks the VCF and its identifiers.
func LoadVariantsValidators() []port.JobParametersValidator {
	return append(chunkValidators(),
		validator.Required(ParamInputVcf, ParamVcfID, ParamStudyID),
		validator.ReadableFile(ParamInputVcf),
		validator.OneOf(ParamAggregation, reader.Aggregations...),
		validator.Bool(ParamIncludeStatistics),
	)
}

// aggregated requires an aggregation other than NONE.
func aggregated() port.JobParametersValidator {
	return validator.Func(func(params model.JobParameters) error {
		value := strings.ToUpper(strings.TrimSpace(fmt.Sprint(params.Get(ParamAggregation))))
		if params.Get(ParamAggregation) == nil || value == "" || value == string(reader.AggregationNone) {
			return exception.InvalidParameter(ParamAggregation, "must name the aggregation of the file",
				"use one of BASIC, EVS, EXAC")
		}
		return nil
	})
}

// genotyped rejects aggregated files.
func genotyped() port.JobParametersValidator {
	return validator.Func(func(params model.JobParameters) error {
		if params.Get(ParamAggregation) == nil {
			return nil
		}
		value := strings.ToUpper(strings.TrimSpace(fmt.Sprint(params.Get(ParamAggregation))))
		if value != "" && value != string(reader.AggregationNone) {
			return exception.InvalidParameter(ParamAggregation, "must be NONE for a genotyped file",
				"load aggregated files with the aggregated-vcf job")
		}
		return nil
	})
}

// GenesLoadValidators checks the GTF input.
func GenesLoadValidators() []port.JobParametersValidator {
	return []port.JobParametersValidator{
		validator.Required(ParamInputGtf),
		validator.ReadableFile(ParamInputGtf),
		validator.NonNegativeInt(ParamSkipLimit),
	}
}

// GenerateVepInputValidators checks where the VEP input goes.
func GenerateVepInputValidators() []port.JobParametersValidator {
	return append(chunkValidators(),
		validator.Required(ParamAnnotationOutputDir, ParamVcfID, ParamStudyID),
		validator.WritableDirectory(ParamAnnotationOutputDir),
	)
}

// LoadVepAnnotationValidators checks the VEP output. Without a VEP executable the output must
// already exist.
func LoadVepAnnotationValidators() []port.JobParametersValidator {
	return append(chunkValidators(),
		validator.Required(ParamVepOutput),
		validator.Func(func(params model.JobParameters) error {
			if path, ok := params.GetString(ParamVepPath); ok && path != "" {
				return nil
			}
			return validator.ReadableFile(ParamVepOutput).Validate(params)
		}),
	)
}

// LoadSamplePropertiesValidators checks the sample table definition.
func LoadSamplePropertiesValidators() []port.JobParametersValidator {
	return append(chunkValidators(),
		validator.Required(ParamSampleProperties),
		validator.ReadableFile(ParamSampleProperties),
	)
}

// ExportVariantsValidators checks the export destination.
func ExportVariantsValidators() []port.JobParametersValidator {
	return append(chunkValidators(),
		validator.Required(ParamExportDir),
		collectionNames(ParamVariantsCollection),
	)
}
