package pairs_test

import (
	"testing"

	"github.com/ajtock/sarek/flow"
	"github.com/ajtock/sarek/manifest"
	"github.com/ajtock/sarek/pairs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(patient, sample string) manifest.Record {
	return manifest.Record{
		Patient: manifest.PatientID(patient),
		Sample:  manifest.SampleID(sample),
		Bam:     sample + ".bam",
		Bai:     sample + ".bam.bai",
	}
}

func TestPartitionTotal(t *testing.T) {
	normals, tumors, errc := pairs.Partition(flow.From(
		rec("P1", "n1__0"), rec("P1", "t1__1"), rec("P2", "n2__0"),
	))
	var tumorRecs []manifest.Record
	done := make(chan struct{})
	go func() {
		tumorRecs = flow.Collect(tumors)
		close(done)
	}()
	normalRecs := flow.Collect(normals)
	<-done
	require.NoError(t, <-errc)
	require.Len(t, normalRecs, 2)
	require.Len(t, tumorRecs, 1)
	assert.Equal(t, manifest.SampleID("t1__1"), tumorRecs[0].Sample)
}

func TestPartitionRejectsMalformedSuffix(t *testing.T) {
	normals, tumors, errc := pairs.Partition(flow.From(rec("P1", "nosuffix")))
	flow.Drain(normals)
	flow.Drain(tumors)
	err := <-errc
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nosuffix")
}

// One normal and one tumor for P1, one normal and two tumors for P2:
// exactly 1 and 2 pairs respectively, and never a pair mixing patients.
func TestJoinPerPatientCardinality(t *testing.T) {
	// Patients deliberately interleaved: pairing must come from the explicit
	// patient filter, not from input grouping.
	normals := flow.From(rec("P1", "P1n__0"), rec("P2", "P2n__0"))
	tumors := flow.From(rec("P2", "P2t1__1"), rec("P1", "P1t__1"), rec("P2", "P2t2__1"))

	got := flow.Collect(pairs.Join(normals, tumors))
	require.Len(t, got, 3)
	perPatient := map[manifest.PatientID]int{}
	for _, p := range got {
		perPatient[p.Patient]++
		// No cross-patient pair: both samples carry the pair's patient prefix.
		assert.Equal(t, string(p.Patient), string(p.NormalSample)[:2], "pair %+v", p)
		assert.Equal(t, string(p.Patient), string(p.TumorSample)[:2], "pair %+v", p)
	}
	assert.Equal(t, 1, perPatient["P1"])
	assert.Equal(t, 2, perPatient["P2"])
}

func TestJoinCarriesFiles(t *testing.T) {
	got := flow.Collect(pairs.Join(
		flow.From(rec("P1", "n__0")),
		flow.From(rec("P1", "t__1")),
	))
	require.Len(t, got, 1)
	p := got[0]
	assert.Equal(t, manifest.PatientID("P1"), p.Patient)
	assert.Equal(t, "n__0.bam", p.NormalBam)
	assert.Equal(t, "n__0.bam.bai", p.NormalBai)
	assert.Equal(t, "t__1.bam", p.TumorBam)
	assert.Equal(t, "t__1.bam.bai", p.TumorBai)
}

// A patient with no tumor (or no normal) yields no pairs rather than a
// partial one.
func TestJoinUnpairedPatient(t *testing.T) {
	got := flow.Collect(pairs.Join(
		flow.From(rec("P1", "n__0"), rec("P2", "lonely__0")),
		flow.From(rec("P1", "t__1")),
	))
	require.Len(t, got, 1)
	assert.Equal(t, manifest.PatientID("P1"), got[0].Patient)
}
