// Package pairs splits recalibrated samples into normal and tumor sets and
// joins them into per-patient analysis pairs. The tumor/normal split is
// total: every sample identifier carries exactly one status suffix, and a
// malformed identifier fails the join rather than being dropped.
package pairs

import (
	"github.com/ajtock/sarek/flow"
	"github.com/ajtock/sarek/manifest"
	"github.com/grailbio/base/errors"
)

// A BamPair is one normal/tumor combination for one patient, the unit every
// caller stage consumes. Invariant: both samples belong to Patient.
type BamPair struct {
	Patient      manifest.PatientID
	NormalSample manifest.SampleID
	NormalBam    string
	NormalBai    string
	TumorSample  manifest.SampleID
	TumorBam     string
	TumorBai     string
}

// Partition splits the canonical per-sample stream by status suffix. The
// predicate is total; a record whose sample identifier has no valid suffix
// is reported on errc and the split stops. Both outputs must be consumed.
func Partition(in <-chan manifest.Record) (normals, tumors <-chan manifest.Record, errc <-chan error) {
	type classified struct {
		rec   manifest.Record
		tumor bool
	}
	checked := make(chan classified)
	ec := make(chan error, 1)
	go func() {
		defer close(checked)
		defer close(ec)
		for rec := range in {
			status, err := rec.Sample.Status()
			if err != nil {
				ec <- errors.E(err, "status partition")
				return
			}
			checked <- classified{rec: rec, tumor: status == manifest.Tumor}
		}
	}()
	n, t := flow.Partition(checked, func(c classified) bool { return !c.tumor })
	strip := func(c classified) manifest.Record { return c.rec }
	return flow.Map(n, strip), flow.Map(t, strip), ec
}

// Join computes the per-patient cross product: every normal sample paired
// with every tumor sample of the same patient. The patient-equality filter
// is explicit; a manifest interleaving several patients yields only
// same-patient pairs, never a cross-patient one. A patient with one normal
// and k tumors yields k pairs. Pairs are emitted grouped by patient in
// normal-then-tumor sample order, so the output is deterministic for a given
// input set.
func Join(normals, tumors <-chan manifest.Record) <-chan BamPair {
	out := make(chan BamPair)
	go func() {
		defer close(out)
		byPatientN := map[manifest.PatientID][]manifest.Record{}
		var patientOrder []manifest.PatientID
		done := make(chan []manifest.Record)
		go func() { done <- flow.Collect(tumors) }()
		for rec := range normals {
			if _, ok := byPatientN[rec.Patient]; !ok {
				patientOrder = append(patientOrder, rec.Patient)
			}
			byPatientN[rec.Patient] = append(byPatientN[rec.Patient], rec)
		}
		byPatientT := map[manifest.PatientID][]manifest.Record{}
		for _, rec := range <-done {
			byPatientT[rec.Patient] = append(byPatientT[rec.Patient], rec)
		}
		for _, patient := range patientOrder {
			for _, n := range byPatientN[patient] {
				for _, t := range byPatientT[patient] {
					// Same-patient guard, kept explicit even though the
					// per-patient buckets already imply it.
					if n.Patient != t.Patient {
						continue
					}
					out <- BamPair{
						Patient:      patient,
						NormalSample: n.Sample,
						NormalBam:    n.Bam,
						NormalBai:    n.Bai,
						TumorSample:  t.Sample,
						TumorBam:     t.Bam,
						TumorBai:     t.Bai,
					}
				}
			}
		}
	}()
	return out
}
