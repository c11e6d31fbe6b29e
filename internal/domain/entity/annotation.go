package entity

import "fmt"

// ConsequenceType is one VEP prediction for a variant on one feature.
type ConsequenceType struct {
	GeneID          string            `json:"ensg,omitempty"`
	FeatureID       string            `json:"enst,omitempty"`
	FeatureType     string            `json:"feat,omitempty"`
	SoTerms         []string          `json:"so"`
	CDNAPosition    string            `json:"cDnaPos,omitempty"`
	CDSPosition     string            `json:"cdsPos,omitempty"`
	ProteinPosition string            `json:"aaPos,omitempty"`
	AminoAcids      string            `json:"aaChange,omitempty"`
	Codons          string            `json:"codon,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Annotation is a consequence of one allele of a variant on one feature.
type Annotation struct {
	VariantID          string          `json:"variantId"`
	Chromosome         string          `json:"chr"`
	Start              int64           `json:"start"`
	End                int64           `json:"end"`
	Allele             string          `json:"allele"`
	ExistingVariations []string        `json:"xrefs,omitempty"`
	ConsequenceType    ConsequenceType `json:"ct"`
}

// ID returns the natural key "variantId_feature_allele".
func (a *Annotation) ID() string {
	feature := a.ConsequenceType.FeatureID
	if feature == "" {
		feature = "-"
	}
	return fmt.Sprintf("%s_%s_%s", a.VariantID, feature, a.Allele)
}
