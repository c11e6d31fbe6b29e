package reader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	batchreader "github.com/selvaebi/eva-pipeline/pkg/batch/component/step/reader"
)

// Columns of the default VEP output format.
const (
	vepUploadedVariation = iota
	vepLocation
	vepAllele
	vepGene
	vepFeature
	vepFeatureType
	vepConsequence
	vepCDNAPosition
	vepCDSPosition
	vepProteinPosition
	vepAminoAcids
	vepCodons
	vepExistingVariation
	vepExtra
	vepColumns
)

// VepOutputReader reads the consequence types predicted by VEP, one annotation per line.
type VepOutputReader struct {
	*batchreader.FlatFileReader[*entity.Annotation]
}

// NewVepOutputReader creates a VepOutputReader.
func NewVepOutputReader(open batchreader.Opener) *VepOutputReader {
	return &VepOutputReader{
		FlatFileReader: batchreader.NewFlatFileReader[*entity.Annotation]("vep-output-reader", open, mapVepLine,
			batchreader.WithCommentPrefix[*entity.Annotation]("#")),
	}
}

func mapVepLine(line string, _ int) (*entity.Annotation, error) {
	columns := strings.Split(line, "\t")
	if len(columns) < vepColumns {
		return nil, fmt.Errorf("expected %d tab-separated columns, found %d", vepColumns, len(columns))
	}
	variantID, err := parseUploadedVariation(columns[vepUploadedVariation])
	if err != nil {
		return nil, err
	}
	chromosome, start, end, err := parseLocation(columns[vepLocation])
	if err != nil {
		return nil, err
	}
	consequence := entity.ConsequenceType{
		GeneID:          vepValue(columns[vepGene]),
		FeatureID:       vepValue(columns[vepFeature]),
		FeatureType:     vepValue(columns[vepFeatureType]),
		SoTerms:         vepList(columns[vepConsequence]),
		CDNAPosition:    vepValue(columns[vepCDNAPosition]),
		CDSPosition:     vepValue(columns[vepCDSPosition]),
		ProteinPosition: vepValue(columns[vepProteinPosition]),
		AminoAcids:      vepValue(columns[vepAminoAcids]),
		Codons:          vepValue(columns[vepCodons]),
		Extra:           parseVepExtra(columns[vepExtra]),
	}
	if len(consequence.SoTerms) == 0 {
		return nil, fmt.Errorf("no consequence for %s", columns[vepUploadedVariation])
	}
	return &entity.Annotation{
		VariantID:          variantID,
		Chromosome:         chromosome,
		Start:              start,
		End:                end,
		Allele:             columns[vepAllele],
		ExistingVariations: vepList(columns[vepExistingVariation]),
		ConsequenceType:    consequence,
	}, nil
}

// parseUploadedVariation turns "chr_start_REF/ALT" back into the id of the variant it was
// generated from. "-" stands for an empty allele.
func parseUploadedVariation(value string) (string, error) {
	alleles := strings.LastIndex(value, "_")
	if alleles < 0 {
		return "", fmt.Errorf("malformed uploaded variation %q", value)
	}
	position := strings.LastIndex(value[:alleles], "_")
	if position < 0 {
		return "", fmt.Errorf("malformed uploaded variation %q", value)
	}
	start, err := strconv.ParseInt(value[position+1:alleles], 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed position in uploaded variation %q", value)
	}
	ref, alt, found := strings.Cut(value[alleles+1:], "/")
	if !found {
		return "", fmt.Errorf("malformed alleles in uploaded variation %q", value)
	}
	return entity.BuildVariantID(value[:position], start, vepValue(ref), vepValue(alt)), nil
}

// parseLocation reads "chr:start" or "chr:start-end".
func parseLocation(value string) (string, int64, int64, error) {
	chromosome, span, found := strings.Cut(value, ":")
	if !found {
		return "", 0, 0, fmt.Errorf("malformed location %q", value)
	}
	from, to, isRange := strings.Cut(span, "-")
	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed location %q", value)
	}
	end := start
	if isRange {
		if end, err = strconv.ParseInt(to, 10, 64); err != nil {
			return "", 0, 0, fmt.Errorf("malformed location %q", value)
		}
	}
	return chromosome, start, end, nil
}

func vepValue(value string) string {
	if value == "-" {
		return ""
	}
	return value
}

func vepList(value string) []string {
	if value = vepValue(value); value == "" {
		return nil
	}
	return strings.Split(value, ",")
}

func parseVepExtra(value string) map[string]string {
	if value = vepValue(value); value == "" {
		return nil
	}
	extra := make(map[string]string)
	for _, field := range strings.Split(value, ";") {
		if field == "" {
			continue
		}
		k, v, _ := strings.Cut(field, "=")
		extra[k] = v
	}
	return extra
}
