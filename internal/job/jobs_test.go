package job

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	parquetreader "github.com/xitongsys/parquet-go/reader"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	"github.com/selvaebi/eva-pipeline/internal/step/processor"
	"github.com/selvaebi/eva-pipeline/internal/step/writer"
	dbconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/config"
	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	_ "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage"
	storageconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/config"
	_ "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/local"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/usecase"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/metrics"
	"github.com/selvaebi/eva-pipeline/pkg/batch/infrastructure/repository/inmemory"
	"github.com/selvaebi/eva-pipeline/pkg/batch/listener/logging"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

type fixture struct {
	dir      string
	db       *gormadapter.DBProvider
	repo     *inmemory.InMemoryJobRepository
	launcher *usecase.SimpleJobLauncher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Eva.Database = dbconfig.DatasourcesConfig{
		"documents": {Type: "sqlite", Database: filepath.Join(dir, "documents.db"), Pool: dbconfig.PoolConfig{MaxOpenConns: 1}},
	}
	cfg.Eva.Storage = storageconfig.DatasourcesConfig{
		"export": {Type: "local", BaseDir: filepath.Join(dir, "export")},
	}
	db := gormadapter.NewDBProvider(cfg.Eva.Database)
	t.Cleanup(func() { db.CloseAll() })
	files := storage.NewStorageProvider(cfg.Eva.Storage)
	t.Cleanup(func() { files.CloseAll() })

	repo := inmemory.NewInMemoryJobRepository()
	steps := &StepFactory{
		Config:    cfg,
		Repo:      repo,
		DB:        db,
		Storage:   files,
		Recorder:  metrics.NewNoOpMetricRecorder(),
		Tracer:    metrics.NewNoOpTracer(),
		Listeners: logging.NewListeners(),
	}
	registry := usecase.NewJobRegistry()
	require.NoError(t, NewCatalogue(steps).Register(registry))
	return &fixture{dir: dir, db: db, repo: repo, launcher: usecase.NewSimpleJobLauncher(repo, registry)}
}

func (f *fixture) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) launch(t *testing.T, jobName string, params map[string]interface{}) *model.JobExecution {
	t.Helper()
	jp := model.NewJobParameters()
	for k, v := range params {
		jp.Put(k, v)
	}
	je, err := f.launcher.Launch(context.Background(), jobName, jp)
	require.NoError(t, err)
	return je
}

func (f *fixture) variants(t *testing.T) map[string]*entity.Variant {
	t.Helper()
	db, err := f.db.GetConnection("documents")
	require.NoError(t, err)
	var records []gormadapter.DocumentRecord
	require.NoError(t, db.Table("variants").Order("id").Find(&records).Error)
	out := make(map[string]*entity.Variant, len(records))
	for _, r := range records {
		v, err := writer.DecodeVariant(r)
		require.NoError(t, err)
		out[r.ID] = v
	}
	return out
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	db, err := f.db.GetConnection("documents")
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Table(table).Count(&n).Error)
	return n
}

func step(t *testing.T, je *model.JobExecution, name string) *model.StepExecution {
	t.Helper()
	for _, se := range je.StepExecutions {
		if se.StepName == name {
			return se
		}
	}
	t.Fatalf("no execution of step %s", name)
	return nil
}

const fileOneVcf = "##fileformat=VCFv4.1\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n" +
	"1\t100\trs1\tA\tT\t.\tPASS\tCSQ.x=1\tGT\t0|1\n" +
	"1\tNaN\t.\tA\tT\t.\t.\t.\tGT\t0|1\n" +
	"1\t200\t.\tC\tG,CT\t.\tPASS\t.\tGT\t1|2\n" +
	"2\t300\trs3\tG\tA\t.\tPASS\t.\tGT\t0|0\n"

const fileTwoVcf = "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS2\n" +
	"1\t100\trs9\tA\tT\t.\tPASS\t.\tGT\t1|1\n"

func vcfParams(path, fileID string) map[string]interface{} {
	return map[string]interface{}{
		ParamInputVcf:  path,
		ParamVcfID:     fileID,
		ParamStudyID:   "PRJEB1",
		ParamChunkSize: "2",
	}
}

func TestGenotypedVcf_LoadsAndMergesFiles(t *testing.T) {
	f := newFixture(t)

	je := f.launch(t, JobGenotypedVcf, vcfParams(f.file(t, "one.vcf", fileOneVcf), "f1"))
	require.Equal(t, model.BatchStatusCompleted, je.Status, je.Failures)
	load := step(t, je, StepLoadVariants)
	assert.Equal(t, 4, load.WriteCount)
	assert.Equal(t, 1, load.SkipReadCount)
	assert.Equal(t, 2, load.CommitCount)

	je = f.launch(t, JobGenotypedVcf, vcfParams(f.file(t, "two.vcf", fileTwoVcf), "f2"))
	require.Equal(t, model.BatchStatusCompleted, je.Status, je.Failures)

	variants := f.variants(t)
	require.Len(t, variants, 4)
	assert.Contains(t, variants, "1_200_C_G")
	assert.Contains(t, variants, "1_201__T")
	merged := variants["1_100_A_T"]
	require.Len(t, merged.SourceEntries, 2)
	assert.ElementsMatch(t, []string{"rs1", "rs9"}, merged.IDs)
	entry, ok := merged.SourceEntry("PRJEB1", "f1")
	require.True(t, ok)
	assert.Equal(t, "1", entry.Attributes["CSQ.x"])
}

func TestGenotypedVcf_SkipLimitExceededFailsTheJob(t *testing.T) {
	f := newFixture(t)
	params := vcfParams(f.file(t, "one.vcf", fileOneVcf), "f1")
	params[ParamSkipLimit] = "0"

	je := f.launch(t, JobGenotypedVcf, params)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Equal(t, model.BatchStatusFailed, step(t, je, StepLoadVariants).Status)
}

func TestJobs_RejectInvalidParameters(t *testing.T) {
	f := newFixture(t)
	vcf := f.file(t, "one.vcf", fileOneVcf)
	tests := []struct {
		name   string
		job    string
		params map[string]interface{}
		hint   string
	}{
		{"missing vcf", JobGenotypedVcf, map[string]interface{}{ParamVcfID: "f", ParamStudyID: "s"}, ParamInputVcf},
		{"aggregated without aggregation", JobAggregatedVcf, vcfParams(vcf, "f1"), ParamAggregation},
		{"genotyped with aggregation", JobGenotypedVcf, merge(vcfParams(vcf, "f1"), ParamAggregation, "EVS"), ParamAggregation},
		{"unknown aggregation", JobAggregatedVcf, merge(vcfParams(vcf, "f1"), ParamAggregation, "GNOMAD"), ParamAggregation},
		{"zero chunk", JobGenotypedVcf, merge(vcfParams(vcf, "f1"), ParamChunkSize, "0"), ParamChunkSize},
		{"bad collection", JobGenotypedVcf, merge(vcfParams(vcf, "f1"), ParamVariantsCollection, "variants; DROP TABLE x"), ParamVariantsCollection},
		{"missing export dir", JobExportVariants, map[string]interface{}{}, ParamExportDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jp := model.NewJobParameters()
			for k, v := range tt.params {
				jp.Put(k, v)
			}
			je, err := f.launcher.Launch(context.Background(), tt.job, jp)
			require.Error(t, err)
			assert.Nil(t, je)
			assert.True(t, exception.IsValidationError(err), err)
			assert.ErrorContains(t, err, tt.hint)
		})
	}
}

func merge(params map[string]interface{}, key string, value interface{}) map[string]interface{} {
	params[key] = value
	return params
}

func TestAggregatedVcf_StatisticsOnlyWhenIncluded(t *testing.T) {
	f := newFixture(t)
	content := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\t.\tA\tT\t.\t.\tAC=3;AN=10\n"
	params := merge(vcfParams(f.file(t, "agg.vcf", content), "f1"), ParamAggregation, "basic")

	je := f.launch(t, JobAggregatedVcf, params)
	require.Equal(t, model.BatchStatusCompleted, je.Status, je.Failures)
	assert.Nil(t, f.variants(t)["1_100_A_T"].SourceEntries[0].CohortStats)

	params[ParamIncludeStatistics] = "true"
	je = f.launch(t, JobAggregatedVcf, params)
	require.Equal(t, model.BatchStatusCompleted, je.Status, je.Failures)
	stats := f.variants(t)["1_100_A_T"].SourceEntries[0].CohortStats
	require.Contains(t, stats, "ALL")
	assert.Equal(t, 3, stats["ALL"].AltAlleleCount)
}

const genesGtf = "1\tensembl\tgene\t50\t500\t.\t+\t.\tgene_id \"ENSG1\"; gene_name \"G1\";\n" +
	"1\tensembl\ttranscript\t50\t500\t.\t+\t.\tgene_id \"ENSG1\"; transcript_id \"ENST1\";\n" +
	"1\tensembl\texon\t50\t120\t.\t+\t.\tgene_id \"ENSG1\";\n" +
	"1\tensembl\tgene\tbroken\n"

func TestAnnotateVariants(t *testing.T) {
	f := newFixture(t)
	je := f.launch(t, JobGenotypedVcf, vcfParams(f.file(t, "one.vcf", fileOneVcf), "f1"))
	require.Equal(t, model.BatchStatusCompleted, je.Status, je.Failures)

	vepOutput := f.file(t, "vep.tsv", "#Uploaded_variation\tLocation\tAllele\tGene\tFeature\tFeature_type\tConsequence\tcDNA_position\tCDS_position\tProtein_position\tAmino_acids\tCodons\tExisting_variation\tExtra\n"+
		"1_100_A/T\t1:100\tT\tENSG1\tENST1\tTranscript\tmissense_variant\t10\t10\t4\tK/N\taaA/aaT\trs1\t-\n"+
		"1_201_-/T\t1:200-201\tT\tENSG1\tENST1\tTranscript\tframeshift_variant\t-\t-\t-\t-\t-\t-\t-\n")
	annotationDir := filepath.Join(f.dir, "annotation")
	require.NoError(t, os.Mkdir(annotationDir, 0o755))

	je = f.launch(t, JobAnnotateVariants, map[string]interface{}{
		ParamInputGtf:             f.file(t, "genes.gtf", genesGtf),
		ParamVepOutput:            vepOutput,
		ParamAnnotationOutputDir:  annotationDir,
		ParamStudyID:              "PRJEB1",
		ParamVcfID:                "f1",
		ParamAllowStartIfComplete: "true",
	})
	require.Equal(t, model.BatchStatusCompleted, je.Status, je.Failures)

	genes := step(t, je, StepGenesLoad)
	assert.Equal(t, 2, genes.WriteCount)
	assert.Equal(t, 1, genes.FilterCount)
	assert.Equal(t, 1, genes.SkipReadCount)
	assert.Equal(t, int64(2), f.count(t, "features"))

	vepInput, err := os.ReadFile(filepath.Join(annotationDir, "PRJEB1_f1_variants_to_annotate.tsv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(vepInput)), "\n")
	assert.Equal(t, []string{
		"1\t100\t100\tA/T\t+",
		"1\t200\t200\tC/G\t+",
		"1\t201\t200\t-/T\t+",
		"2\t300\t300\tG/A\t+",
	}, lines)

	assert.Equal(t, 2, step(t, je, StepLoadVepAnnotation).WriteCount)
	assert.Equal(t, int64(2), f.count(t, "annotations"))

	// Only the variants without annotation are left to annotate.
	je = f.launch(t, JobAnnotateVariants, map[string]interface{}{
		ParamInputGtf:            f.file(t, "genes.gtf", genesGtf),
		ParamVepOutput:           vepOutput,
		ParamAnnotationOutputDir: annotationDir,
		ParamStudyID:             "PRJEB1",
		ParamVcfID:               "f1",
	})
	require.Equal(t, model.BatchStatusCompleted, je.Status, je.Failures)
	assert.Equal(t, 2, step(t, je, StepGenerateVepInput).WriteCount)
}

func TestLoadSampleProperties(t *testing.T) {
	f := newFixture(t)
	definition := f.file(t, "samples.tsv", "ID\tString\nAGE\tjava.lang.Integer\nBORN\tDate\nBMI\tDouble\n")

	je := f.launch(t, JobLoadSampleProperties, map[string]interface{}{ParamSampleProperties: definition})
	require.Equal(t, model.BatchStatusCompleted, je.Status, je.Failures)
	load := step(t, je, StepLoadSampleProperties)
	assert.Equal(t, 3, load.WriteCount)
	assert.Equal(t, 1, load.SkipProcessCount)
	assert.Equal(t, int64(3), f.count(t, "sample_properties"))
}

func TestExportVariants(t *testing.T) {
	f := newFixture(t)
	je := f.launch(t, JobGenotypedVcf, vcfParams(f.file(t, "one.vcf", fileOneVcf), "f1"))
	require.Equal(t, model.BatchStatusCompleted, je.Status, je.Failures)

	je = f.launch(t, JobExportVariants, map[string]interface{}{ParamExportDir: "variants", ParamChunkSize: "3"})
	require.Equal(t, model.BatchStatusCompleted, je.Status, je.Failures)
	assert.Equal(t, 4, step(t, je, StepExportVariants).WriteCount)

	fr, err := local.NewLocalFileReader(filepath.Join(f.dir, "export", "variants", "chromosome=1", "data.parquet"))
	require.NoError(t, err)
	defer fr.Close()
	pr, err := parquetreader.NewParquetReader(fr, new(processor.VariantRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	rows := make([]processor.VariantRow, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "1_100_A_T", rows[0].ID)
	assert.Equal(t, "PRJEB1", rows[0].Studies)
}
