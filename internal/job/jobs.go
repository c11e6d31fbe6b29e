package job

import (
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/usecase"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/job/runner"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/job/validator"
)

// Job names.
const (
	JobGenotypedVcf         = "genotyped-vcf"
	JobAggregatedVcf        = "aggregated-vcf"
	JobAnnotateVariants     = "annotate-variants"
	JobLoadSampleProperties = "load-sample-properties"
	JobExportVariants       = "export-variants"
)

// Catalogue builds every loader job.
type Catalogue struct {
	steps    *StepFactory
	defaults Parameters
}

// NewCatalogue creates a Catalogue whose jobs default their parameters from the batch
// configuration.
func NewCatalogue(steps *StepFactory) *Catalogue {
	return &Catalogue{steps: steps, defaults: DefaultParameters(steps.Config.Eva.Batch)}
}

// Register adds every job of the catalogue to registry.
func (c *Catalogue) Register(registry *usecase.JobRegistry) error {
	builders := map[string]usecase.JobBuilder{
		JobGenotypedVcf:         c.GenotypedVcf,
		JobAggregatedVcf:        c.AggregatedVcf,
		JobAnnotateVariants:     c.AnnotateVariants,
		JobLoadSampleProperties: c.LoadSampleProperties,
		JobExportVariants:       c.ExportVariants,
	}
	for name, builder := range builders {
		if err := registry.Register(name, builder); err != nil {
			return err
		}
	}
	return nil
}

// prepare validates and binds params. Steps are only built from valid parameters.
func (c *Catalogue) prepare(name string, params model.JobParameters, validators []port.JobParametersValidator) (Parameters, *validator.Composite, error) {
	v := validator.NewComposite(name, validators...)
	if err := v.Validate(params); err != nil {
		return Parameters{}, nil, err
	}
	p, err := BindParameters(name, params, c.defaults)
	if err != nil {
		return Parameters{}, nil, err
	}
	return p, v, nil
}

func (c *Catalogue) newJob(name string, p Parameters, v port.JobParametersValidator, steps ...port.Step) port.Job {
	f := c.steps
	return runner.NewSimpleJob(name, steps, f.Repo,
		runner.WithValidator(v),
		runner.WithAllowStartIfComplete(p.AllowStartIfComplete),
		runner.WithJobListeners(f.Listeners.Job),
		runner.WithMetricRecorder(f.Recorder),
		runner.WithTracer(f.Tracer))
}

func join(groups ...[]port.JobParametersValidator) []port.JobParametersValidator {
	var all []port.JobParametersValidator
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

// GenotypedVcf loads a VCF with one genotype column per sample.
func (c *Catalogue) GenotypedVcf(params model.JobParameters) (port.Job, error) {
	return c.loadVcf(JobGenotypedVcf, params, genotyped())
}

// AggregatedVcf loads a VCF carrying per-cohort allele counts instead of genotypes.
func (c *Catalogue) AggregatedVcf(params model.JobParameters) (port.Job, error) {
	return c.loadVcf(JobAggregatedVcf, params, aggregated())
}

func (c *Catalogue) loadVcf(name string, params model.JobParameters, mode port.JobParametersValidator) (port.Job, error) {
	p, v, err := c.prepare(name, params, join(PrepareDatabaseValidators(), LoadVariantsValidators(), []port.JobParametersValidator{mode}))
	if err != nil {
		return nil, err
	}
	prepare, err := c.steps.PrepareDatabase(p.VariantsCollection)
	if err != nil {
		return nil, err
	}
	load, err := c.steps.LoadVariants(p)
	if err != nil {
		return nil, err
	}
	return c.newJob(name, p, v, prepare, load), nil
}

// AnnotateVariants loads the genes, then annotates the variants that have no annotation yet.
func (c *Catalogue) AnnotateVariants(params model.JobParameters) (port.Job, error) {
	p, v, err := c.prepare(JobAnnotateVariants, params, join(PrepareDatabaseValidators(), GenesLoadValidators(),
		GenerateVepInputValidators(), LoadVepAnnotationValidators()))
	if err != nil {
		return nil, err
	}
	prepare, err := c.steps.PrepareDatabase(p.VariantsCollection, p.FeaturesCollection, p.AnnotationsCollection)
	if err != nil {
		return nil, err
	}
	genes, err := c.steps.GenesLoad(p)
	if err != nil {
		return nil, err
	}
	vepInput, err := c.steps.GenerateVepInput(p)
	if err != nil {
		return nil, err
	}
	annotations, err := c.steps.LoadVepAnnotation(p)
	if err != nil {
		return nil, err
	}
	return c.newJob(JobAnnotateVariants, p, v, prepare, genes, vepInput, c.steps.RunVep(p), annotations), nil
}

// LoadSampleProperties loads a sample table definition.
func (c *Catalogue) LoadSampleProperties(params model.JobParameters) (port.Job, error) {
	p, v, err := c.prepare(JobLoadSampleProperties, params, join(PrepareDatabaseValidators(), LoadSamplePropertiesValidators()))
	if err != nil {
		return nil, err
	}
	prepare, err := c.steps.PrepareDatabase(p.PropertiesCollection)
	if err != nil {
		return nil, err
	}
	load, err := c.steps.LoadSampleProperties(p)
	if err != nil {
		return nil, err
	}
	return c.newJob(JobLoadSampleProperties, p, v, prepare, load), nil
}

// ExportVariants exports the variants collection to Parquet.
func (c *Catalogue) ExportVariants(params model.JobParameters) (port.Job, error) {
	p, v, err := c.prepare(JobExportVariants, params, ExportVariantsValidators())
	if err != nil {
		return nil, err
	}
	export, err := c.steps.ExportVariants(p)
	if err != nil {
		return nil, err
	}
	return c.newJob(JobExportVariants, p, v, export), nil
}
