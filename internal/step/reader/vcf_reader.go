// Package reader provides the readers of the genomic input files.
package reader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	batchreader "github.com/selvaebi/eva-pipeline/pkg/batch/component/step/reader"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
)

// Aggregation tells how a VCF file reports its samples.
type Aggregation string

const (
	// AggregationNone means one genotype column per sample.
	AggregationNone Aggregation = "NONE"
	// AggregationBasic carries AC/AN/AF for the whole cohort.
	AggregationBasic Aggregation = "BASIC"
	// AggregationEVS follows the Exome Variant Server layout (EA/AA populations).
	AggregationEVS Aggregation = "EVS"
	// AggregationExAC follows the ExAC layout (AC_<POP>/AN_<POP> per population).
	AggregationExAC Aggregation = "EXAC"
)

// Aggregations lists every supported aggregation.
var Aggregations = []string{string(AggregationNone), string(AggregationBasic), string(AggregationEVS), string(AggregationExAC)}

// ParseAggregation accepts any case.
func ParseAggregation(value string) (Aggregation, error) {
	a := Aggregation(strings.ToUpper(strings.TrimSpace(value)))
	switch a {
	case AggregationNone, AggregationBasic, AggregationEVS, AggregationExAC:
		return a, nil
	case "":
		return AggregationNone, nil
	}
	return "", fmt.Errorf("unknown aggregation %q", value)
}

// VariantSource identifies the file being loaded.
type VariantSource struct {
	FileID      string
	StudyID     string
	Aggregation Aggregation
}

// VariantGroupReader yields the variants of one VCF line at a time, one per ALT allele.
type VariantGroupReader = port.ItemReader[[]*entity.Variant]

// VcfReader reads a VCF with genotype columns.
type VcfReader struct {
	*batchreader.FlatFileReader[[]*entity.Variant]
}

// NewVcfReader creates a reader of a non-aggregated VCF.
func NewVcfReader(source VariantSource, open batchreader.Opener) *VcfReader {
	m := &vcfLineMapper{source: source, withSamples: true}
	return &VcfReader{FlatFileReader: newVcfFlatFileReader("vcf-reader", open, m)}
}

// AggregatedVcfReader reads a VCF without genotype columns, taking per-cohort statistics from
// the INFO column.
type AggregatedVcfReader struct {
	*batchreader.FlatFileReader[[]*entity.Variant]
}

// NewAggregatedVcfReader creates a reader for source.Aggregation, which must not be NONE.
func NewAggregatedVcfReader(source VariantSource, open batchreader.Opener) (*AggregatedVcfReader, error) {
	extract, ok := statsExtractors[source.Aggregation]
	if !ok {
		return nil, fmt.Errorf("aggregation %q has no statistics layout", source.Aggregation)
	}
	m := &vcfLineMapper{source: source, stats: extract}
	return &AggregatedVcfReader{FlatFileReader: newVcfFlatFileReader("aggregated-vcf-reader", open, m)}, nil
}

// NewVariantReader picks the reader matching source.Aggregation.
func NewVariantReader(source VariantSource, open batchreader.Opener) (VariantGroupReader, error) {
	if source.Aggregation == AggregationNone || source.Aggregation == "" {
		return NewVcfReader(source, open), nil
	}
	return NewAggregatedVcfReader(source, open)
}

func newVcfFlatFileReader(name string, open batchreader.Opener, m *vcfLineMapper) *batchreader.FlatFileReader[[]*entity.Variant] {
	return batchreader.NewFlatFileReader[[]*entity.Variant](name, open, m.mapLine,
		batchreader.WithCommentPrefix[[]*entity.Variant]("#"),
		batchreader.WithHeaderHandler[[]*entity.Variant](m.header))
}

type statsExtractor func(v *entity.Variant, allele int, info map[string]string) (map[string]*entity.VariantStats, error)

var statsExtractors = map[Aggregation]statsExtractor{
	AggregationBasic: basicStats,
	AggregationEVS:   evsStats,
	AggregationExAC:  exacStats,
}

type vcfLineMapper struct {
	source      VariantSource
	withSamples bool
	samples     []string
	stats       statsExtractor
}

const vcfFixedColumns = 8

func (m *vcfLineMapper) header(line string) error {
	if !strings.HasPrefix(line, "#CHROM") {
		return nil
	}
	columns := strings.Split(line, "\t")
	if len(columns) < vcfFixedColumns {
		return fmt.Errorf("header line has %d columns, expected at least %d", len(columns), vcfFixedColumns)
	}
	m.samples = nil
	if len(columns) > vcfFixedColumns+1 {
		m.samples = append(m.samples, columns[vcfFixedColumns+1:]...)
	}
	return nil
}

func (m *vcfLineMapper) mapLine(line string, _ int) ([]*entity.Variant, error) {
	columns := strings.Split(line, "\t")
	if len(columns) < vcfFixedColumns {
		return nil, fmt.Errorf("expected at least %d tab-separated columns, found %d", vcfFixedColumns, len(columns))
	}
	chromosome := strings.TrimPrefix(columns[0], "chr")
	pos, err := strconv.ParseInt(columns[1], 10, 64)
	if err != nil || pos <= 0 {
		return nil, fmt.Errorf("invalid position %q", columns[1])
	}
	ref := columns[3]
	if ref == "" || ref == "." {
		return nil, errors.New("missing reference allele")
	}
	if columns[4] == "" || columns[4] == "." {
		return nil, errors.New("missing alternate allele")
	}

	info := parseInfo(columns[7])
	attributes := make(map[string]string, len(info)+2)
	for k, v := range info {
		attributes[k] = v
	}
	attributes["QUAL"] = columns[5]
	attributes["FILTER"] = columns[6]

	var format string
	var samplesData map[string]map[string]string
	if m.withSamples && len(columns) > vcfFixedColumns {
		format = columns[vcfFixedColumns]
		samplesData, err = m.parseSamples(format, columns[vcfFixedColumns+1:])
		if err != nil {
			return nil, err
		}
	}

	ids := parseIDs(columns[2])
	alternates := strings.Split(columns[4], ",")
	variants := make([]*entity.Variant, 0, len(alternates))
	for i, alt := range alternates {
		if isSymbolic(alt) {
			continue
		}
		if strings.EqualFold(alt, ref) {
			return nil, fmt.Errorf("alternate allele %q equals the reference allele", alt)
		}
		v := entity.NewVariant(chromosome, pos, ref, alt)
		v.IDs = ids
		entry := entity.VariantSourceEntry{
			FileID:      m.source.FileID,
			StudyID:     m.source.StudyID,
			Attributes:  attributes,
			Format:      format,
			SamplesData: samplesData,
		}
		if m.stats != nil {
			stats, err := m.stats(v, i, info)
			if err != nil {
				return nil, err
			}
			entry.CohortStats = stats
		}
		v.SourceEntries = []entity.VariantSourceEntry{entry}
		variants = append(variants, v)
	}
	return variants, nil
}

func (m *vcfLineMapper) parseSamples(format string, columns []string) (map[string]map[string]string, error) {
	if len(m.samples) > 0 && len(columns) != len(m.samples) {
		return nil, fmt.Errorf("found %d sample columns, header declares %d", len(columns), len(m.samples))
	}
	keys := strings.Split(format, ":")
	data := make(map[string]map[string]string, len(columns))
	for i, column := range columns {
		name := fmt.Sprintf("sample_%d", i+1)
		if i < len(m.samples) {
			name = m.samples[i]
		}
		values := strings.Split(column, ":")
		if len(values) > len(keys) {
			return nil, fmt.Errorf("sample %s has %d values for %d FORMAT keys", name, len(values), len(keys))
		}
		sample := make(map[string]string, len(keys))
		for j, v := range values {
			sample[keys[j]] = v
		}
		data[name] = sample
	}
	return data, nil
}

// isSymbolic reports alleles that do not spell bases, e.g. <DEL> or the spanning deletion *.
func isSymbolic(allele string) bool {
	return strings.HasPrefix(allele, "<") || allele == "*" || strings.ContainsAny(allele, "[]")
}

func parseIDs(column string) []string {
	if column == "" || column == "." {
		return nil
	}
	return strings.Split(column, ";")
}

func parseInfo(column string) map[string]string {
	info := make(map[string]string)
	if column == "" || column == "." {
		return info
	}
	for _, field := range strings.Split(column, ";") {
		if field == "" {
			continue
		}
		key, value, found := strings.Cut(field, "=")
		if !found {
			value = "true"
		}
		info[key] = value
	}
	return info
}

func intList(info map[string]string, key string) ([]int, bool, error) {
	raw, ok := info[key]
	if !ok || raw == "." {
		return nil, false, nil
	}
	parts := strings.Split(raw, ",")
	values := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false, fmt.Errorf("INFO %s has non-integer value %q", key, p)
		}
		values[i] = n
	}
	return values, true, nil
}

// alleleCountStats builds the stats of a cohort from an AC list (one value per ALT) and AN.
func alleleCountStats(v *entity.Variant, allele int, info map[string]string, acKey, anKey string) (*entity.VariantStats, error) {
	ac, okAC, err := intList(info, acKey)
	if err != nil {
		return nil, err
	}
	an, okAN, err := intList(info, anKey)
	if err != nil {
		return nil, err
	}
	if !okAC || !okAN {
		return nil, nil
	}
	if allele >= len(ac) || len(an) != 1 {
		return nil, fmt.Errorf("INFO %s/%s do not match the ALT alleles", acKey, anKey)
	}
	return entity.NewVariantStats(v, ac[allele], an[0]), nil
}

func basicStats(v *entity.Variant, allele int, info map[string]string) (map[string]*entity.VariantStats, error) {
	all, err := alleleCountStats(v, allele, info, "AC", "AN")
	if err != nil || all == nil {
		return nil, err
	}
	return map[string]*entity.VariantStats{"ALL": all}, nil
}

func exacStats(v *entity.Variant, allele int, info map[string]string) (map[string]*entity.VariantStats, error) {
	stats := make(map[string]*entity.VariantStats)
	all, err := alleleCountStats(v, allele, info, "AC", "AN")
	if err != nil {
		return nil, err
	}
	if all != nil {
		stats["ALL"] = all
	}
	for key := range info {
		population, ok := strings.CutPrefix(key, "AC_")
		if !ok {
			continue
		}
		if _, hasAN := info["AN_"+population]; !hasAN {
			continue
		}
		s, err := alleleCountStats(v, allele, info, key, "AN_"+population)
		if err != nil {
			return nil, err
		}
		if s != nil {
			stats[population] = s
		}
	}
	if len(stats) == 0 {
		return nil, nil
	}
	return stats, nil
}

// evsCohorts maps the EVS cohorts to their allele count and genotype count keys. Allele
// counts list every ALT count followed by the REF count.
var evsCohorts = map[string][2]string{
	"EA":  {"EA_AC", "EA_GTC"},
	"AA":  {"AA_AC", "AA_GTC"},
	"ALL": {"TAC", "GTC"},
}

func evsStats(v *entity.Variant, allele int, info map[string]string) (map[string]*entity.VariantStats, error) {
	var labels []string
	if gts, ok := info["GTS"]; ok {
		labels = strings.Split(gts, ",")
	}
	stats := make(map[string]*entity.VariantStats)
	for cohort, keys := range evsCohorts {
		counts, ok, err := intList(info, keys[0])
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if allele >= len(counts)-1 {
			return nil, fmt.Errorf("INFO %s does not match the ALT alleles", keys[0])
		}
		an := 0
		for _, c := range counts {
			an += c
		}
		s := entity.NewVariantStats(v, counts[allele], an)
		genotypes, ok, err := intList(info, keys[1])
		if err != nil {
			return nil, err
		}
		if ok && len(genotypes) == len(labels) {
			s.GenotypesCount = make(map[string]int, len(labels))
			for i, label := range labels {
				s.GenotypesCount[label] = genotypes[i]
			}
		}
		stats[cohort] = s
	}
	if len(stats) == 0 {
		return nil, nil
	}
	return stats, nil
}
