package job

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	"github.com/selvaebi/eva-pipeline/internal/step/processor"
	"github.com/selvaebi/eva-pipeline/internal/step/reader"
	evatasklet "github.com/selvaebi/eva-pipeline/internal/step/tasklet"
	"github.com/selvaebi/eva-pipeline/internal/step/writer"
	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	"github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage"
	"github.com/selvaebi/eva-pipeline/pkg/batch/component/item"
	batchreader "github.com/selvaebi/eva-pipeline/pkg/batch/component/step/reader"
	batchwriter "github.com/selvaebi/eva-pipeline/pkg/batch/component/step/writer"
	"github.com/selvaebi/eva-pipeline/pkg/batch/component/tasklet/migration"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/metrics"
	chunk "github.com/selvaebi/eva-pipeline/pkg/batch/engine/step/item"
	"github.com/selvaebi/eva-pipeline/pkg/batch/engine/step/skip"
	"github.com/selvaebi/eva-pipeline/pkg/batch/engine/step/tasklet"
	"github.com/selvaebi/eva-pipeline/pkg/batch/listener/logging"
)

// Step names.
const (
	StepPrepareDatabase      = "prepare-database"
	StepLoadVariants         = "load-variants"
	StepGenesLoad            = "genes-load"
	StepGenerateVepInput     = "generate-vep-input"
	StepRunVep               = "run-vep"
	StepLoadVepAnnotation    = "load-vep-annotation"
	StepLoadSampleProperties = "load-sample-properties"
	StepExportVariants       = "export-variants"
)

// StepFactory builds the steps of the loader jobs for one set of parameters.
type StepFactory struct {
	Config    *config.Config
	Repo      repository.JobRepository
	DB        *gormadapter.DBProvider
	Storage   *storage.StorageProvider
	Recorder  metrics.MetricRecorder
	Tracer    metrics.Tracer
	Listeners logging.Listeners
}

func (f *StepFactory) documents() (*gorm.DB, error) {
	return f.DB.GetConnection(f.Config.Eva.Infrastructure.DocumentStoreDBRef)
}

func (f *StepFactory) chunkOptions(p Parameters, chunkSize int) []chunk.Option {
	return []chunk.Option{
		chunk.WithChunkSize(chunkSize),
		chunk.WithSkipPolicy(skip.NewLimitCheckingSkipPolicy(p.SkipLimit, f.Config.Eva.Batch.ItemSkip.SkippableExceptions...)),
		chunk.WithStepExecutionListeners(f.Listeners.Step),
		chunk.WithChunkListeners(f.Listeners.Chunk),
		chunk.WithSkipListeners(f.Listeners.Skip),
		chunk.WithMetricRecorder(f.Recorder),
		chunk.WithTracer(f.Tracer),
	}
}

func (f *StepFactory) taskletStep(name string, t port.Tasklet) port.Step {
	return tasklet.NewTaskletStep(name, t, f.Repo,
		tasklet.WithStepExecutionListeners(f.Listeners.Step),
		tasklet.WithMetricRecorder(f.Recorder),
		tasklet.WithTracer(f.Tracer))
}

func (f *StepFactory) opener(uri string) batchreader.Opener {
	return batchreader.URIOpener(f.Storage, uri)
}

// PrepareDatabase migrates the document store and creates the given collections.
func (f *StepFactory) PrepareDatabase(collections ...string) (port.Step, error) {
	t, err := migration.NewPrepareDatabaseTasklet(f.DB, f.Config.Eva.Infrastructure.DocumentStoreDBRef, collections)
	if err != nil {
		return nil, err
	}
	return f.taskletStep(StepPrepareDatabase, t), nil
}

// LoadVariants reads a VCF one variant at a time and merges every variant into the variants
// collection.
func (f *StepFactory) LoadVariants(p Parameters) (port.Step, error) {
	source, err := p.VariantSource()
	if err != nil {
		return nil, err
	}
	groups, err := reader.NewVariantReader(source, f.opener(p.InputVcf))
	if err != nil {
		return nil, err
	}
	db, err := f.documents()
	if err != nil {
		return nil, err
	}
	w, err := batchwriter.NewDocumentWriter[*entity.Variant](StepLoadVariants, db, p.VariantsCollection, writer.VariantDocument,
		batchwriter.WithMerge[*entity.Variant](writer.MergeVariants))
	if err != nil {
		return nil, err
	}
	return chunk.NewChunkStep[*entity.Variant, *entity.Variant](StepLoadVariants,
		item.NewUnwindingItemReader[*entity.Variant](groups),
		processor.StatisticsProcessor{Include: p.IncludeStatistics},
		w, f.Repo, f.chunkOptions(p, p.ChunkSize)...), nil
}

// GenesLoad loads the genes and transcripts of a GTF file.
func (f *StepFactory) GenesLoad(p Parameters) (port.Step, error) {
	db, err := f.documents()
	if err != nil {
		return nil, err
	}
	w, err := batchwriter.NewDocumentWriter[*entity.FeatureCoordinates](StepGenesLoad, db, p.FeaturesCollection, writer.FeatureDocument)
	if err != nil {
		return nil, err
	}
	return chunk.NewChunkStep[*entity.FeatureCoordinates, *entity.FeatureCoordinates](StepGenesLoad,
		reader.NewGtfReader(f.opener(p.InputGtf)),
		processor.GeneFilterProcessor{},
		w, f.Repo, f.chunkOptions(p, GenesChunkSize)...), nil
}

// NotAnnotated keeps the variants without any document in the annotations collection.
func NotAnnotated(annotations string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where(fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s a WHERE a.ref_id = %s.id)", annotations, batchreader.DocumentAlias))
	}
}

// GenerateVepInput writes the variants still lacking annotations in the VEP input format.
func (f *StepFactory) GenerateVepInput(p Parameters) (port.Step, error) {
	if err := gormadapter.ValidateCollectionName(p.AnnotationsCollection); err != nil {
		return nil, err
	}
	db, err := f.documents()
	if err != nil {
		return nil, err
	}
	r, err := batchreader.NewDocumentReader[*entity.Variant](StepGenerateVepInput, db, p.VariantsCollection, writer.DecodeVariant,
		batchreader.WithPageSize[*entity.Variant](p.ChunkSize),
		batchreader.WithScopes[*entity.Variant](NotAnnotated(p.AnnotationsCollection)))
	if err != nil {
		return nil, err
	}
	w, err := batchwriter.NewFlatFileWriter[*entity.Variant](StepGenerateVepInput, p.VepInputPath(), writer.VepInputLine)
	if err != nil {
		return nil, err
	}
	return chunk.NewChunkStep[*entity.Variant, *entity.Variant](StepGenerateVepInput, r,
		item.NewPassThroughItemProcessor[*entity.Variant](),
		w, f.Repo, f.chunkOptions(p, p.ChunkSize)...), nil
}

// RunVep annotates the generated input with VEP when an executable is configured.
func (f *StepFactory) RunVep(p Parameters) port.Step {
	return f.taskletStep(StepRunVep, evatasklet.NewVepTasklet(p.VepPath, p.VepArgs, p.VepInputPath(), p.VepOutput))
}

// LoadVepAnnotation loads the consequence types predicted by VEP.
func (f *StepFactory) LoadVepAnnotation(p Parameters) (port.Step, error) {
	db, err := f.documents()
	if err != nil {
		return nil, err
	}
	w, err := batchwriter.NewDocumentWriter[*entity.Annotation](StepLoadVepAnnotation, db, p.AnnotationsCollection, writer.AnnotationDocument)
	if err != nil {
		return nil, err
	}
	return chunk.NewChunkStep[*entity.Annotation, *entity.Annotation](StepLoadVepAnnotation,
		reader.NewVepOutputReader(f.opener(p.VepOutput)),
		item.NewPassThroughItemProcessor[*entity.Annotation](),
		w, f.Repo, f.chunkOptions(p, p.ChunkSize)...), nil
}

// LoadSampleProperties loads the columns of a sample table definition.
func (f *StepFactory) LoadSampleProperties(p Parameters) (port.Step, error) {
	db, err := f.documents()
	if err != nil {
		return nil, err
	}
	w, err := batchwriter.NewDocumentWriter[*entity.SampleProperty](StepLoadSampleProperties, db, p.PropertiesCollection, writer.SamplePropertyDocument)
	if err != nil {
		return nil, err
	}
	return chunk.NewChunkStep[*entity.SamplePropertyDefinition, *entity.SampleProperty](StepLoadSampleProperties,
		reader.NewSamplePropertyReader(f.opener(p.SampleProperties)),
		processor.SamplePropertyProcessor{},
		w, f.Repo, f.chunkOptions(p, p.ChunkSize)...), nil
}

// ExportVariants writes the variants collection as Parquet files partitioned by chromosome.
// The export is rebuilt from the first variant on every attempt.
func (f *StepFactory) ExportVariants(p Parameters) (port.Step, error) {
	db, err := f.documents()
	if err != nil {
		return nil, err
	}
	r, err := batchreader.NewDocumentReader[*entity.Variant](StepExportVariants, db, p.VariantsCollection, writer.DecodeVariant,
		batchreader.WithPageSize[*entity.Variant](p.ChunkSize),
		batchreader.WithSaveState[*entity.Variant](false))
	if err != nil {
		return nil, err
	}
	w, err := batchwriter.NewParquetWriter[processor.VariantRow](StepExportVariants, map[string]interface{}{
		"storageRef":    f.Config.Eva.Infrastructure.ExportStorageRef,
		"outputBaseDir": p.ExportDir,
	}, f.Storage, new(processor.VariantRow), processor.PartitionByChromosome)
	if err != nil {
		return nil, err
	}
	return chunk.NewChunkStep[*entity.Variant, processor.VariantRow](StepExportVariants, r,
		processor.VariantRowProcessor{},
		w, f.Repo, f.chunkOptions(p, p.ChunkSize)...), nil
}
