package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	"github.com/selvaebi/eva-pipeline/pkg/batch/component/item"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/engine/step/skip"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

func TestGeneFilterProcessor(t *testing.T) {
	ctx := context.Background()
	for feature, kept := range map[string]bool{"gene": true, "transcript": true, "exon": false, "CDS": false} {
		out, err := GeneFilterProcessor{}.Process(ctx, &entity.FeatureCoordinates{ID: "x", Feature: feature})
		require.NoError(t, err)
		assert.Equal(t, !kept, port.IsFiltered(out), feature)
	}
}

func variantWithStats() *entity.Variant {
	v := entity.NewVariant("1", 100, "A", "T")
	v.SourceEntries = []entity.VariantSourceEntry{{
		FileID:      "f",
		StudyID:     "s",
		CohortStats: map[string]*entity.VariantStats{"ALL": entity.NewVariantStats(v, 1, 10)},
	}}
	return v
}

func TestStatisticsProcessor(t *testing.T) {
	ctx := context.Background()

	kept, err := StatisticsProcessor{Include: true}.Process(ctx, variantWithStats())
	require.NoError(t, err)
	assert.Contains(t, kept.SourceEntries[0].CohortStats, "ALL")

	dropped, err := StatisticsProcessor{}.Process(ctx, variantWithStats())
	require.NoError(t, err)
	assert.Nil(t, dropped.SourceEntries[0].CohortStats)
}

func TestSamplePropertyProcessor(t *testing.T) {
	ctx := context.Background()

	p, err := SamplePropertyProcessor{}.Process(ctx, &entity.SamplePropertyDefinition{Name: "AGE", Type: "java.lang.Integer", Position: 3})
	require.NoError(t, err)
	assert.Equal(t, entity.PropertyTypeInteger, p.Type)
	assert.Equal(t, entity.PropertyFalse, p.Searchable)
	require.NotNil(t, p.Sort)
	assert.Equal(t, 3.0, *p.Sort)

	_, err = SamplePropertyProcessor{}.Process(ctx, &entity.SamplePropertyDefinition{Name: "WHEN", Type: "Date"})
	require.Error(t, err)
	assert.True(t, skip.NewLimitCheckingSkipPolicy(skip.DefaultSkipLimit).IsSkippable(err))
	assert.True(t, exception.IsBatchError(err))
}

func TestVariantRowProcessor(t *testing.T) {
	v := entity.NewVariant("2", 50, "CA", "C")
	v.IDs = []string{"rs1", "rs2"}
	v.SourceEntries = []entity.VariantSourceEntry{{StudyID: "s2", FileID: "a"}, {StudyID: "s1", FileID: "b"}, {StudyID: "s2", FileID: "c"}}

	row, err := VariantRowProcessor{}.Process(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, VariantRow{
		ID: "2_51_A_", Chromosome: "2", Start: 51, End: 51, Reference: "A", Type: entity.VariantTypeINDEL,
		Length: 1, IDs: "rs1,rs2", Studies: "s1,s2", Files: 3,
	}, row)

	key, err := PartitionByChromosome(row)
	require.NoError(t, err)
	assert.Equal(t, "chromosome=2", key)
}

func TestCompositeWithFilter(t *testing.T) {
	chain := item.NewCompositeItemProcessor[*entity.FeatureCoordinates](GeneFilterProcessor{}, GeneFilterProcessor{})
	out, err := chain.Process(context.Background(), &entity.FeatureCoordinates{Feature: "exon"})
	require.NoError(t, err)
	assert.Nil(t, out)
}
