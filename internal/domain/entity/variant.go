// Package entity holds the genomic records moved by the loader jobs.
package entity

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// Variant types.
const (
	VariantTypeSNV   = "SNV"
	VariantTypeMNV   = "MNV"
	VariantTypeINDEL = "INDEL"
)

// maxAlleleLengthInID is the allele length above which a variant id carries the allele digest.
const maxAlleleLengthInID = 50

// Variant is one alternate allele at one position. Alleles are normalized: bases shared by
// the reference and the alternate are trimmed, so an insertion has an empty reference and a
// deletion an empty alternate.
type Variant struct {
	Chromosome    string               `json:"chr"`
	Start         int64                `json:"start"`
	End           int64                `json:"end"`
	Reference     string               `json:"ref"`
	Alternate     string               `json:"alt"`
	Type          string               `json:"type"`
	Length        int                  `json:"len"`
	IDs           []string             `json:"ids,omitempty"`
	SourceEntries []VariantSourceEntry `json:"files"`
}

// ID returns the natural key of the variant.
func (v *Variant) ID() string {
	return BuildVariantID(v.Chromosome, v.Start, v.Reference, v.Alternate)
}

// BuildVariantID builds the "chr_start_ref_alt" key. Alleles longer than 50 bases are
// replaced by their SHA-1 digest to keep ids short.
func BuildVariantID(chromosome string, start int64, reference, alternate string) string {
	return fmt.Sprintf("%s_%d_%s_%s", chromosome, start, shortAllele(reference), shortAllele(alternate))
}

func shortAllele(allele string) string {
	if len(allele) <= maxAlleleLengthInID {
		return allele
	}
	sum := sha1.Sum([]byte(allele))
	return hex.EncodeToString(sum[:])
}

// NewVariant normalizes one REF/ALT pair read at position pos (1-based). An insertion ends
// one base before it starts.
func NewVariant(chromosome string, pos int64, reference, alternate string) *Variant {
	reference = strings.ToUpper(reference)
	alternate = strings.ToUpper(alternate)

	prefix := 0
	for prefix < len(reference) && prefix < len(alternate) && reference[prefix] == alternate[prefix] {
		prefix++
	}
	reference, alternate = reference[prefix:], alternate[prefix:]
	suffix := 0
	for suffix < len(reference) && suffix < len(alternate) &&
		reference[len(reference)-1-suffix] == alternate[len(alternate)-1-suffix] {
		suffix++
	}
	reference, alternate = reference[:len(reference)-suffix], alternate[:len(alternate)-suffix]

	start := pos + int64(prefix)
	v := &Variant{
		Chromosome: chromosome,
		Start:      start,
		End:        start + int64(len(reference)) - 1,
		Reference:  reference,
		Alternate:  alternate,
	}
	switch {
	case len(reference) == 1 && len(alternate) == 1:
		v.Type = VariantTypeSNV
		v.Length = 1
	case len(reference) == len(alternate):
		v.Type = VariantTypeMNV
		v.Length = len(reference)
	default:
		v.Type = VariantTypeINDEL
		v.Length = max(len(reference), len(alternate))
	}
	return v
}

// VariantSourceEntry is what one file of one study says about a variant.
type VariantSourceEntry struct {
	FileID     string            `json:"fid"`
	StudyID    string            `json:"sid"`
	Attributes map[string]string `json:"attrs,omitempty"`
	Format     string            `json:"fm,omitempty"`
	// SamplesData holds the FORMAT values of every sample, keyed by sample name.
	SamplesData map[string]map[string]string `json:"samp,omitempty"`
	CohortStats map[string]*VariantStats     `json:"st,omitempty"`
}

// SourceEntry returns the entry of fileID in studyID, if any.
func (v *Variant) SourceEntry(studyID, fileID string) (*VariantSourceEntry, bool) {
	for i := range v.SourceEntries {
		if v.SourceEntries[i].StudyID == studyID && v.SourceEntries[i].FileID == fileID {
			return &v.SourceEntries[i], true
		}
	}
	return nil, false
}

// MergeSourceEntries adds the entries of other, replacing entries of the same study and file.
func (v *Variant) MergeSourceEntries(other *Variant) {
	for _, entry := range other.SourceEntries {
		if existing, ok := v.SourceEntry(entry.StudyID, entry.FileID); ok {
			*existing = entry
			continue
		}
		v.SourceEntries = append(v.SourceEntries, entry)
	}
	for _, id := range other.IDs {
		if !contains(v.IDs, id) {
			v.IDs = append(v.IDs, id)
		}
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// VariantStats are the allele counts of one cohort, as carried by an aggregated VCF.
type VariantStats struct {
	RefAlleleCount int            `json:"refAc"`
	AltAlleleCount int            `json:"altAc"`
	RefAlleleFreq  float64        `json:"refAf"`
	AltAlleleFreq  float64        `json:"altAf"`
	MAF            float64        `json:"maf"`
	MAFAllele      string         `json:"mafAl"`
	GenotypesCount map[string]int `json:"numGt,omitempty"`
}

// NewVariantStats derives frequencies from allele counts. an is the total number of alleles.
func NewVariantStats(v *Variant, altCount, an int) *VariantStats {
	s := &VariantStats{AltAlleleCount: altCount, RefAlleleCount: an - altCount}
	if s.RefAlleleCount < 0 {
		s.RefAlleleCount = 0
	}
	if an > 0 {
		s.AltAlleleFreq = float64(altCount) / float64(an)
		s.RefAlleleFreq = float64(s.RefAlleleCount) / float64(an)
	}
	s.MAF, s.MAFAllele = s.AltAlleleFreq, v.Alternate
	if s.RefAlleleFreq < s.AltAlleleFreq {
		s.MAF, s.MAFAllele = s.RefAlleleFreq, v.Reference
	}
	return s
}
