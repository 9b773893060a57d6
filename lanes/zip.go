package lanes

import (
	"sort"

	"github.com/ajtock/sarek/manifest"
	"github.com/grailbio/base/errors"
)

// A Tagged is one file emitted by a multi-output external stage, tagged with
// the identity it belongs to. Stages that return several parallel lists
// (realignment returns BAMs and their indexes as independent lists) tag each
// element so the lists can be re-correlated by identity instead of by
// position.
type Tagged struct {
	Patient manifest.PatientID
	Sample  manifest.SampleID
	Path    string
}

func sortTagged(ts []Tagged) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Patient != ts[j].Patient {
			return ts[i].Patient < ts[j].Patient
		}
		return ts[i].Sample < ts[j].Sample
	})
}

// ZipOutputs reconciles the two parallel output lists of an external stage
// into per-sample records. Both lists are sorted by (patient, sample) before
// zipping, so correlation never depends on the order the stage happened to
// return them in. A length or identity mismatch between the lists is an
// error: positional trust is exactly what this function exists to avoid.
func ZipOutputs(bams, bais []Tagged) ([]manifest.Record, error) {
	if len(bams) != len(bais) {
		return nil, errors.E("parallel output lists differ in length:", len(bams), "bams,", len(bais), "indexes")
	}
	bams = append([]Tagged{}, bams...)
	bais = append([]Tagged{}, bais...)
	sortTagged(bams)
	sortTagged(bais)
	recs := make([]manifest.Record, len(bams))
	for i := range bams {
		if bams[i].Patient != bais[i].Patient || bams[i].Sample != bais[i].Sample {
			return nil, errors.E("parallel output lists disagree at", string(bams[i].Sample), "vs", string(bais[i].Sample))
		}
		recs[i] = manifest.Record{
			Patient: bams[i].Patient,
			Sample:  bams[i].Sample,
			Bam:     bams[i].Path,
			Bai:     bais[i].Path,
		}
	}
	return recs, nil
}
