package reader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	"github.com/selvaebi/eva-pipeline/pkg/batch/component/item"
	batchreader "github.com/selvaebi/eva-pipeline/pkg/batch/component/step/reader"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

const genotypedVcf = "##fileformat=VCFv4.1\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tHG00096\tHG00097\n" +
	"1\t100\trs1\tA\tT\t50\tPASS\tDP=10;DB\tGT:DP\t0|1:4\t1|1:6\n" +
	"1\t200\t.\tAC\tA,ACT\t.\t.\tAF=0.1,0.2\tGT\t1|0\t0|2\n" +
	"1\tabc\t.\tA\tT\t.\t.\t.\tGT\t0|0\t0|0\n" +
	"2\t300\t.\tG\t<DEL>\t.\t.\t.\tGT\t0|1\t0|0\n"

func TestParseAggregation(t *testing.T) {
	a, err := ParseAggregation("exac")
	require.NoError(t, err)
	assert.Equal(t, AggregationExAC, a)

	a, err = ParseAggregation("")
	require.NoError(t, err)
	assert.Equal(t, AggregationNone, a)

	_, err = ParseAggregation("GNOMAD")
	assert.Error(t, err)
}

func TestVcfReader_GroupsAllelesOfOneLine(t *testing.T) {
	path := writeInput(t, "genotyped.vcf", genotypedVcf)
	r := NewVcfReader(VariantSource{FileID: "f1", StudyID: "s1"}, batchreader.FileOpener(path))

	groups, errs := drain[[]*entity.Variant](t, r, model.NewExecutionContext())

	require.Len(t, errs, 1)
	assert.True(t, exception.IsErrorOfType(errs[0], "FlatFileParseException"))

	require.Len(t, groups, 3)
	require.Len(t, groups[0], 1)
	snv := groups[0][0]
	assert.Equal(t, "1_100_A_T", snv.ID())
	assert.Equal(t, []string{"rs1"}, snv.IDs)
	entry, ok := snv.SourceEntry("s1", "f1")
	require.True(t, ok)
	assert.Equal(t, "GT:DP", entry.Format)
	assert.Equal(t, map[string]string{"GT": "1|1", "DP": "6"}, entry.SamplesData["HG00097"])
	assert.Equal(t, "true", entry.Attributes["DB"])
	assert.Equal(t, "PASS", entry.Attributes["FILTER"])
	assert.Nil(t, entry.CohortStats)

	require.Len(t, groups[1], 2)
	assert.Equal(t, "1_201_C_", groups[1][0].ID())
	assert.Equal(t, "1_202__T", groups[1][1].ID())

	assert.Empty(t, groups[2], "symbolic alleles yield an empty group")
}

func TestVcfReader_SampleCountMismatchIsParseError(t *testing.T) {
	content := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n" +
		"1\t100\t.\tA\tT\t.\t.\t.\tGT\t0|1\n"
	r := NewVcfReader(VariantSource{FileID: "f", StudyID: "s"}, batchreader.FileOpener(writeInput(t, "bad.vcf", content)))

	groups, errs := drain[[]*entity.Variant](t, r, model.NewExecutionContext())
	assert.Empty(t, groups)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "header declares 2")
}

func TestVcfReader_MissingAlternateIsParseError(t *testing.T) {
	content := "1\t100\t.\tA\t.\t.\t.\t.\n"
	r := NewVcfReader(VariantSource{}, batchreader.FileOpener(writeInput(t, "noalt.vcf", content)))

	_, errs := drain[[]*entity.Variant](t, r, model.NewExecutionContext())
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "missing alternate allele")
}

func TestVcfReader_AlternateEqualToReferenceIsParseError(t *testing.T) {
	content := "1\t100\t.\tAC\tT,ac\t.\t.\t.\n" +
		"1\t150\t.\tG\tC\t.\t.\t.\n"
	r := NewVcfReader(VariantSource{}, batchreader.FileOpener(writeInput(t, "same.vcf", content)))

	groups, errs := drain[[]*entity.Variant](t, r, model.NewExecutionContext())
	require.Len(t, errs, 1)
	assert.True(t, exception.IsErrorOfType(errs[0], "FlatFileParseException"))
	assert.ErrorContains(t, errs[0], "equals the reference allele")
	require.Len(t, groups, 1)
	assert.Equal(t, "1_150_G_C", groups[0][0].ID())
}

func TestVcfReader_UnwoundAndResumed(t *testing.T) {
	path := writeInput(t, "genotyped.vcf", genotypedVcf)
	ctx := context.Background()
	source := VariantSource{FileID: "f1", StudyID: "s1"}

	first := item.NewUnwindingItemReader[*entity.Variant](NewVcfReader(source, batchreader.FileOpener(path)))
	require.NoError(t, first.Open(ctx, model.NewExecutionContext()))
	v, err := first.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1_100_A_T", v.ID())
	checkpoint, err := first.GetExecutionContext(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	resumed := item.NewUnwindingItemReader[*entity.Variant](NewVcfReader(source, batchreader.FileOpener(path)))
	variants, errs := drain[*entity.Variant](t, resumed, checkpoint)
	assert.Len(t, errs, 1)
	require.Len(t, variants, 2)
	assert.Equal(t, "1_201_C_", variants[0].ID())
	entry, ok := variants[0].SourceEntry("s1", "f1")
	require.True(t, ok)
	assert.Contains(t, entry.SamplesData, "HG00096", "sample names come from the header skipped on resume")
}

func statsOf(t *testing.T, v *entity.Variant) map[string]*entity.VariantStats {
	t.Helper()
	require.Len(t, v.SourceEntries, 1)
	return v.SourceEntries[0].CohortStats
}

func TestAggregatedVcfReader_Basic(t *testing.T) {
	content := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\t.\tA\tT,G\t.\t.\tAC=3,1;AN=10;AF=0.3,0.1\n" +
		"1\t200\t.\tC\tT\t.\t.\tDP=5\n"
	r, err := NewVariantReader(VariantSource{FileID: "f", StudyID: "s", Aggregation: AggregationBasic},
		batchreader.FileOpener(writeInput(t, "basic.vcf", content)))
	require.NoError(t, err)
	require.IsType(t, &AggregatedVcfReader{}, r)

	groups, errs := drain[[]*entity.Variant](t, r, model.NewExecutionContext())
	require.Empty(t, errs)
	require.Len(t, groups, 2)
	require.Len(t, groups[0], 2)

	all := statsOf(t, groups[0][0])["ALL"]
	require.NotNil(t, all)
	assert.Equal(t, 3, all.AltAlleleCount)
	assert.Equal(t, 7, all.RefAlleleCount)
	assert.InDelta(t, 0.3, all.MAF, 1e-9)
	assert.Equal(t, "T", all.MAFAllele)
	assert.Equal(t, 1, statsOf(t, groups[0][1])["ALL"].AltAlleleCount)

	assert.Nil(t, statsOf(t, groups[1][0]), "no AC/AN, no statistics")
}

func TestAggregatedVcfReader_ExAC(t *testing.T) {
	content := "1\t100\t.\tA\tT\t.\t.\tAC=4;AN=20;AC_AFR=1;AN_AFR=8;AC_NFE=3;AN_NFE=12;AC_Het=2\n"
	r, err := NewAggregatedVcfReader(VariantSource{Aggregation: AggregationExAC},
		batchreader.FileOpener(writeInput(t, "exac.vcf", content)))
	require.NoError(t, err)

	groups, errs := drain[[]*entity.Variant](t, r, model.NewExecutionContext())
	require.Empty(t, errs)
	stats := statsOf(t, groups[0][0])
	assert.Len(t, stats, 3)
	assert.Equal(t, 4, stats["ALL"].AltAlleleCount)
	assert.Equal(t, 7, stats["AFR"].RefAlleleCount)
	assert.Equal(t, 9, stats["NFE"].RefAlleleCount)
}

func TestAggregatedVcfReader_EVS(t *testing.T) {
	content := "1\t100\t.\tA\tT\t.\t.\tEA_AC=2,98;AA_AC=1,49;TAC=3,147;GTS=TT,TA,AA;EA_GTC=0,2,48\n"
	r, err := NewAggregatedVcfReader(VariantSource{Aggregation: AggregationEVS},
		batchreader.FileOpener(writeInput(t, "evs.vcf", content)))
	require.NoError(t, err)

	groups, errs := drain[[]*entity.Variant](t, r, model.NewExecutionContext())
	require.Empty(t, errs)
	stats := statsOf(t, groups[0][0])
	require.Len(t, stats, 3)
	assert.Equal(t, 2, stats["EA"].AltAlleleCount)
	assert.Equal(t, 98, stats["EA"].RefAlleleCount)
	assert.Equal(t, map[string]int{"TT": 0, "TA": 2, "AA": 48}, stats["EA"].GenotypesCount)
	assert.Nil(t, stats["AA"].GenotypesCount)
	assert.Equal(t, 147, stats["ALL"].RefAlleleCount)
}

func TestAggregatedVcfReader_BadCountsAreParseErrors(t *testing.T) {
	content := "1\t100\t.\tA\tT,G\t.\t.\tAC=x;AN=10\n" +
		"1\t101\t.\tA\tT,G\t.\t.\tAC=1;AN=10\n"
	r, err := NewAggregatedVcfReader(VariantSource{Aggregation: AggregationBasic},
		batchreader.FileOpener(writeInput(t, "bad.vcf", content)))
	require.NoError(t, err)

	groups, errs := drain[[]*entity.Variant](t, r, model.NewExecutionContext())
	assert.Empty(t, groups)
	require.Len(t, errs, 2)
	assert.ErrorContains(t, errs[0], "non-integer")
	assert.ErrorContains(t, errs[1], "do not match")
}

func TestNewAggregatedVcfReader_RejectsNone(t *testing.T) {
	_, err := NewAggregatedVcfReader(VariantSource{Aggregation: AggregationNone}, batchreader.FileOpener("x"))
	assert.Error(t, err)

	r, err := NewVariantReader(VariantSource{Aggregation: AggregationNone}, batchreader.FileOpener("x"))
	require.NoError(t, err)
	assert.IsType(t, &VcfReader{}, r)
}
