package reader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	batchreader "github.com/selvaebi/eva-pipeline/pkg/batch/component/step/reader"
)

// SamplePropertyReader reads a sample table definition, one "name<TAB>type" column per line.
// The position of a property is the line it is declared on.
type SamplePropertyReader struct {
	*batchreader.FlatFileReader[*entity.SamplePropertyDefinition]
}

// NewSamplePropertyReader creates a SamplePropertyReader.
func NewSamplePropertyReader(open batchreader.Opener) *SamplePropertyReader {
	return &SamplePropertyReader{
		FlatFileReader: batchreader.NewFlatFileReader[*entity.SamplePropertyDefinition]("sample-property-reader", open, mapSamplePropertyLine,
			batchreader.WithCommentPrefix[*entity.SamplePropertyDefinition]("#")),
	}
}

func mapSamplePropertyLine(line string, lineNumber int) (*entity.SamplePropertyDefinition, error) {
	columns := strings.Split(line, "\t")
	if len(columns) > 2 {
		return nil, fmt.Errorf("expected at most 2 tab-separated columns, found %d", len(columns))
	}
	name := strings.TrimSpace(columns[0])
	if name == "" {
		return nil, errors.New("property without name")
	}
	definition := &entity.SamplePropertyDefinition{Name: name, Position: lineNumber}
	if len(columns) == 2 {
		definition.Type = strings.TrimSpace(columns[1])
	}
	return definition, nil
}
