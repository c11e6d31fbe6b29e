// Package writer maps genomic records to their stored and file forms.
package writer

import (
	"fmt"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	batchwriter "github.com/selvaebi/eva-pipeline/pkg/batch/component/step/writer"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/serialization"
)

// VariantDocument maps a variant to its document. INFO keys may hold dots, which are escaped.
func VariantDocument(v *entity.Variant) (batchwriter.DocumentKey, interface{}, error) {
	doc := *v
	doc.SourceEntries = make([]entity.VariantSourceEntry, len(v.SourceEntries))
	for i, e := range v.SourceEntries {
		e.Attributes = serialization.EscapeKeys(e.Attributes)
		doc.SourceEntries[i] = e
	}
	return batchwriter.DocumentKey{ID: v.ID()}, &doc, nil
}

// DecodeVariant reads a stored variant back, unescaping its INFO keys.
func DecodeVariant(record gormadapter.DocumentRecord) (*entity.Variant, error) {
	v := new(entity.Variant)
	if err := serialization.UnmarshalDocument(record.Document, v); err != nil {
		return nil, err
	}
	for i := range v.SourceEntries {
		v.SourceEntries[i].Attributes = serialization.UnescapeKeys(v.SourceEntries[i].Attributes)
	}
	return v, nil
}

// MergeVariants combines the stored document of a variant with a new one: source entries of
// other files are kept, the entry of the same study and file is replaced.
func MergeVariants(stored, incoming string) (string, error) {
	var current, update entity.Variant
	if err := serialization.UnmarshalDocument(stored, &current); err != nil {
		return "", fmt.Errorf("stored variant: %w", err)
	}
	if err := serialization.UnmarshalDocument(incoming, &update); err != nil {
		return "", fmt.Errorf("incoming variant: %w", err)
	}
	current.MergeSourceEntries(&update)
	return serialization.MarshalDocument(&current)
}

// FeatureDocument keys a feature by its Ensembl id.
func FeatureDocument(f *entity.FeatureCoordinates) (batchwriter.DocumentKey, interface{}, error) {
	return batchwriter.DocumentKey{ID: f.ID}, f, nil
}

// AnnotationDocument keys an annotation by variant, feature and allele. The variant id is kept
// as reference, which is what marks a variant as annotated.
func AnnotationDocument(a *entity.Annotation) (batchwriter.DocumentKey, interface{}, error) {
	return batchwriter.DocumentKey{ID: a.ID(), RefID: a.VariantID}, a, nil
}

// SamplePropertyDocument keys a sample property by its name.
func SamplePropertyDocument(p *entity.SampleProperty) (batchwriter.DocumentKey, interface{}, error) {
	return batchwriter.DocumentKey{ID: p.ID}, p, nil
}
