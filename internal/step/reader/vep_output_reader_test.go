package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	batchreader "github.com/selvaebi/eva-pipeline/pkg/batch/component/step/reader"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
)

const vepOutput = "## ENSEMBL VARIANT EFFECT PREDICTOR v78\n" +
	"#Uploaded_variation\tLocation\tAllele\tGene\tFeature\tFeature_type\tConsequence\tcDNA_position\tCDS_position\tProtein_position\tAmino_acids\tCodons\tExisting_variation\tExtra\n" +
	"20_60343_G/A\t20:60343\tA\tENSG01\tENST01\tTranscript\tmissense_variant,splice_region_variant\t100\t90\t30\tR/H\tcGc/cAc\trs1,rs2\tSTRAND=1;SIFT=deleterious(0)\n" +
	"20_60344_-/TT\t20:60343-60344\tTT\t-\t-\t-\tintergenic_variant\t-\t-\t-\t-\t-\t-\t-\n" +
	"20_60345_G\t20:60345\tA\t-\t-\t-\tintergenic_variant\t-\t-\t-\t-\t-\t-\t-\n"

func TestVepOutputReader(t *testing.T) {
	r := NewVepOutputReader(batchreader.FileOpener(writeInput(t, "vep.tsv", vepOutput)))

	annotations, errs := drain[*entity.Annotation](t, r, model.NewExecutionContext())

	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "malformed alleles")

	require.Len(t, annotations, 2)
	missense := annotations[0]
	assert.Equal(t, "20_60343_G_A", missense.VariantID)
	assert.Equal(t, "20_60343_G_A_ENST01_A", missense.ID())
	assert.Equal(t, []string{"missense_variant", "splice_region_variant"}, missense.ConsequenceType.SoTerms)
	assert.Equal(t, "R/H", missense.ConsequenceType.AminoAcids)
	assert.Equal(t, []string{"rs1", "rs2"}, missense.ExistingVariations)
	assert.Equal(t, map[string]string{"STRAND": "1", "SIFT": "deleterious(0)"}, missense.ConsequenceType.Extra)

	insertion := annotations[1]
	assert.Equal(t, "20_60344__TT", insertion.VariantID)
	assert.Equal(t, int64(60343), insertion.Start)
	assert.Equal(t, int64(60344), insertion.End)
	assert.Empty(t, insertion.ConsequenceType.FeatureID)
	assert.Nil(t, insertion.ConsequenceType.Extra)
	assert.Equal(t, "20_60344__TT_-_TT", insertion.ID())
}

func TestParseLocation_Malformed(t *testing.T) {
	for _, value := range []string{"20", "20:x", "20:1-y"} {
		_, _, _, err := parseLocation(value)
		assert.Error(t, err, value)
	}
}
