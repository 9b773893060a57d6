// Package manifest parses the sample sheet that drives a pipeline run and
// defines the identifier types threaded through every downstream stage.
//
// Two line layouts are recognized. In fastq mode each line describes one
// sequencing run of one sample:
//
//	patient status sample run fastq1 fastq2
//
// In bam mode each line describes one already-aligned sample:
//
//	patient status sample bam bai
//
// Fields are whitespace-delimited. The status field must be "0" (normal
// tissue) or "1" (tumor tissue) and is folded into the sample identifier so
// that every later stage can classify a record without carrying a side table.
package manifest

import (
	"fmt"
	"strings"
)

// PatientID identifies the individual a sample was taken from. Samples from
// the same patient are paired by the status router; samples from different
// patients must never be.
type PatientID string

// SampleID identifies one biological sample. It always ends in a status
// suffix: "__0" for normal tissue, "__1" for tumor tissue.
type SampleID string

// RunID identifies one sequencing run (lane) of a sample. Empty in bam mode,
// where runs have already been merged.
type RunID string

// Status distinguishes normal from tumor tissue.
type Status int

const (
	// Normal marks germline samples.
	Normal Status = iota
	// Tumor marks somatic samples.
	Tumor
)

func (s Status) String() string {
	if s == Tumor {
		return "tumor"
	}
	return "normal"
}

const (
	suffixNormal = "__0"
	suffixTumor  = "__1"
)

// MakeSampleID builds a SampleID from the raw sample and status manifest
// fields. The status field must be exactly "0" or "1".
func MakeSampleID(sample, status string) (SampleID, error) {
	switch status {
	case "0", "1":
		return SampleID(sample + "__" + status), nil
	}
	return "", fmt.Errorf("sample %s: status must be 0 or 1, got %q", sample, status)
}

// Status classifies the sample by its suffix. The two suffixes are disjoint
// and exhaustive; any SampleID not ending in one of them is malformed.
func (s SampleID) Status() (Status, error) {
	switch {
	case strings.HasSuffix(string(s), suffixNormal):
		return Normal, nil
	case strings.HasSuffix(string(s), suffixTumor):
		return Tumor, nil
	}
	return 0, fmt.Errorf("sample %s: missing __0/__1 status suffix", s)
}

// Base returns the sample name with the status suffix stripped.
func (s SampleID) Base() string {
	str := string(s)
	if i := strings.LastIndex(str, "__"); i >= 0 {
		return str[:i]
	}
	return str
}

// Mode selects the manifest line layout.
type Mode int

const (
	// Fastq mode: per-run records carrying read pairs.
	Fastq Mode = iota
	// Bam mode: per-sample records carrying aligned files.
	Bam
)

func (m Mode) String() string {
	if m == Bam {
		return "bam"
	}
	return "fastq"
}

// A Record is one parsed manifest line. In fastq mode Fastq1/Fastq2 are set
// and Bam/Bai are empty; in bam mode the reverse. As records flow through the
// pipeline the file fields are rewritten stage by stage while the identifiers
// stay fixed, so one Record type serves the whole preprocessing path.
type Record struct {
	Patient PatientID
	Sample  SampleID
	Run     RunID

	Fastq1, Fastq2 string
	Bam, Bai       string
}

// Files lists the paths a record references, in manifest column order.
func (r *Record) Files() []string {
	var paths []string
	for _, p := range []string{r.Fastq1, r.Fastq2, r.Bam, r.Bai} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
