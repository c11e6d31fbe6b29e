package reader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	batchreader "github.com/selvaebi/eva-pipeline/pkg/batch/component/step/reader"
)

const gtfColumns = 9

// GtfReader reads the features of a GTF file. Features other than genes and transcripts are
// read too; filtering them is left to the step.
type GtfReader struct {
	*batchreader.FlatFileReader[*entity.FeatureCoordinates]
}

// NewGtfReader creates a GtfReader.
func NewGtfReader(open batchreader.Opener) *GtfReader {
	return &GtfReader{
		FlatFileReader: batchreader.NewFlatFileReader[*entity.FeatureCoordinates]("gtf-reader", open, mapGtfLine,
			batchreader.WithCommentPrefix[*entity.FeatureCoordinates]("#")),
	}
}

func mapGtfLine(line string, _ int) (*entity.FeatureCoordinates, error) {
	columns := strings.Split(line, "\t")
	if len(columns) != gtfColumns {
		return nil, fmt.Errorf("expected %d tab-separated columns, found %d", gtfColumns, len(columns))
	}
	start, err := strconv.ParseInt(columns[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start %q", columns[3])
	}
	end, err := strconv.ParseInt(columns[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid end %q", columns[4])
	}
	if end < start {
		return nil, fmt.Errorf("end %d before start %d", end, start)
	}
	attributes, err := parseGtfAttributes(columns[8])
	if err != nil {
		return nil, err
	}

	feature := &entity.FeatureCoordinates{
		Feature:    columns[2],
		Chromosome: strings.TrimPrefix(columns[0], "chr"),
		Start:      start,
		End:        end,
	}
	switch feature.Feature {
	case entity.FeatureTranscript:
		feature.ID, feature.Name = attributes["transcript_id"], attributes["transcript_name"]
	default:
		feature.ID, feature.Name = attributes["gene_id"], attributes["gene_name"]
	}
	if feature.ID == "" {
		return nil, fmt.Errorf("%s feature without identifier", feature.Feature)
	}
	return feature, nil
}

// parseGtfAttributes reads `key "value"; key "value";`.
func parseGtfAttributes(column string) (map[string]string, error) {
	attributes := make(map[string]string)
	for _, field := range strings.Split(column, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, found := strings.Cut(field, " ")
		if !found {
			return nil, fmt.Errorf("malformed attribute %q", field)
		}
		attributes[key] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return attributes, nil
}
