package entity

// Feature types kept by the genes load.
const (
	FeatureGene       = "gene"
	FeatureTranscript = "transcript"
)

// FeatureCoordinates locates a genome annotation feature read from a GTF file.
type FeatureCoordinates struct {
	ID         string `json:"_id"`
	Name       string `json:"name,omitempty"`
	Feature    string `json:"feature"`
	Chromosome string `json:"chromosome"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
}
