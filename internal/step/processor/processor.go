// Package processor holds the record processors of the loader steps.
package processor

import (
	"context"
	"sort"
	"strings"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

const module = "processor"

// GeneFilterProcessor keeps genes and transcripts and filters every other feature.
type GeneFilterProcessor struct{}

var _ port.ItemProcessor[*entity.FeatureCoordinates, *entity.FeatureCoordinates] = GeneFilterProcessor{}

func (GeneFilterProcessor) Process(_ context.Context, f *entity.FeatureCoordinates) (*entity.FeatureCoordinates, error) {
	if f.Feature == entity.FeatureGene || f.Feature == entity.FeatureTranscript {
		return f, nil
	}
	return nil, nil
}

// StatisticsProcessor removes the cohort statistics of a variant unless they are to be loaded.
type StatisticsProcessor struct {
	Include bool
}

var _ port.ItemProcessor[*entity.Variant, *entity.Variant] = StatisticsProcessor{}

func (p StatisticsProcessor) Process(_ context.Context, v *entity.Variant) (*entity.Variant, error) {
	if p.Include {
		return v, nil
	}
	for i := range v.SourceEntries {
		v.SourceEntries[i].CohortStats = nil
	}
	return v, nil
}

// SamplePropertyProcessor turns a column definition into the stored property. Properties are
// sorted by their position in the definition file.
type SamplePropertyProcessor struct{}

var _ port.ItemProcessor[*entity.SamplePropertyDefinition, *entity.SampleProperty] = SamplePropertyProcessor{}

func (SamplePropertyProcessor) Process(_ context.Context, d *entity.SamplePropertyDefinition) (*entity.SampleProperty, error) {
	propertyType, err := entity.TranslatePropertyType(d.Type)
	if err != nil {
		return nil, exception.NewBatchError(module, "property "+d.Name, err, true, false)
	}
	p := entity.NewSampleProperty(d.Name, propertyType)
	position := float64(d.Position)
	p.Sort = &position
	return p, nil
}

// VariantRow is the flat, columnar form of a variant.
type VariantRow struct {
	ID         string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Chromosome string `parquet:"name=chromosome, type=BYTE_ARRAY, convertedtype=UTF8"`
	Start      int64  `parquet:"name=start, type=INT64"`
	End        int64  `parquet:"name=end, type=INT64"`
	Reference  string `parquet:"name=reference, type=BYTE_ARRAY, convertedtype=UTF8"`
	Alternate  string `parquet:"name=alternate, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Length     int32  `parquet:"name=length, type=INT32"`
	IDs        string `parquet:"name=ids, type=BYTE_ARRAY, convertedtype=UTF8"`
	Studies    string `parquet:"name=studies, type=BYTE_ARRAY, convertedtype=UTF8"`
	Files      int32  `parquet:"name=files, type=INT32"`
}

// VariantRowProcessor flattens variants for the columnar export. Identifiers and studies are
// joined with commas, studies sorted and deduplicated.
type VariantRowProcessor struct{}

var _ port.ItemProcessor[*entity.Variant, VariantRow] = VariantRowProcessor{}

func (VariantRowProcessor) Process(_ context.Context, v *entity.Variant) (VariantRow, error) {
	studies := make(map[string]struct{}, len(v.SourceEntries))
	for _, e := range v.SourceEntries {
		studies[e.StudyID] = struct{}{}
	}
	names := make([]string, 0, len(studies))
	for s := range studies {
		names = append(names, s)
	}
	sort.Strings(names)

	return VariantRow{
		ID:         v.ID(),
		Chromosome: v.Chromosome,
		Start:      v.Start,
		End:        v.End,
		Reference:  v.Reference,
		Alternate:  v.Alternate,
		Type:       v.Type,
		Length:     int32(v.Length),
		IDs:        strings.Join(v.IDs, ","),
		Studies:    strings.Join(names, ","),
		Files:      int32(len(v.SourceEntries)),
	}, nil
}

// PartitionByChromosome lays export files out as chromosome=<chr>/.
func PartitionByChromosome(row VariantRow) (string, error) {
	return "chromosome=" + row.Chromosome, nil
}
