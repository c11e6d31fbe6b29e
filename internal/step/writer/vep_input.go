package writer

import (
	"fmt"

	"github.com/selvaebi/eva-pipeline/internal/domain/entity"
)

// VepInputLine formats a variant in the default VEP input format:
// "chr start end ref/alt strand", with "-" for an empty allele.
func VepInputLine(v *entity.Variant) (string, error) {
	return fmt.Sprintf("%s\t%d\t%d\t%s/%s\t+", v.Chromosome, v.Start, v.End, vepAllele(v.Reference), vepAllele(v.Alternate)), nil
}

func vepAllele(allele string) string {
	if allele == "" {
		return "-"
	}
	return allele
}
