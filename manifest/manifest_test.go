package manifest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ajtock/sarek/manifest"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleIDStatus(t *testing.T) {
	tests := []struct {
		id     manifest.SampleID
		status manifest.Status
		ok     bool
	}{
		{"P1.norm__0", manifest.Normal, true},
		{"P1.tum__1", manifest.Tumor, true},
		{"P1.tum", 0, false},
		{"P1__2", 0, false},
		{"", 0, false},
	}
	for _, test := range tests {
		status, err := test.id.Status()
		if !test.ok {
			assert.Error(t, err, "id %q", test.id)
			continue
		}
		require.NoError(t, err, "id %q", test.id)
		assert.Equal(t, test.status, status, "id %q", test.id)
	}
}

func TestMakeSampleID(t *testing.T) {
	id, err := manifest.MakeSampleID("s1", "0")
	require.NoError(t, err)
	assert.Equal(t, manifest.SampleID("s1__0"), id)
	assert.Equal(t, "s1", id.Base())

	_, err = manifest.MakeSampleID("s1", "normal")
	assert.Error(t, err)
}

func TestScannerFastq(t *testing.T) {
	in := strings.NewReader(`
P1 0 n1 L001 a_1.fq.gz a_2.fq.gz
P1 1 t1 L001 b_1.fq.gz b_2.fq.gz
`)
	s := manifest.NewScanner(in, manifest.Fastq)
	var rec manifest.Record
	require.True(t, s.Scan(&rec))
	assert.Equal(t, manifest.PatientID("P1"), rec.Patient)
	assert.Equal(t, manifest.SampleID("n1__0"), rec.Sample)
	assert.Equal(t, manifest.RunID("L001"), rec.Run)
	assert.Equal(t, []string{"a_1.fq.gz", "a_2.fq.gz"}, rec.Files())
	require.True(t, s.Scan(&rec))
	assert.Equal(t, manifest.SampleID("t1__1"), rec.Sample)
	assert.False(t, s.Scan(&rec))
	assert.NoError(t, s.Err())
}

func TestScannerBam(t *testing.T) {
	in := strings.NewReader("P1 1 t1 t1.bam t1.bam.bai\n")
	s := manifest.NewScanner(in, manifest.Bam)
	var rec manifest.Record
	require.True(t, s.Scan(&rec))
	assert.Equal(t, manifest.SampleID("t1__1"), rec.Sample)
	assert.Empty(t, rec.Run)
	assert.Equal(t, "t1.bam", rec.Bam)
	assert.Equal(t, "t1.bam.bai", rec.Bai)
}

func TestScannerFieldCount(t *testing.T) {
	s := manifest.NewScanner(strings.NewReader("P1 0 n1 L001 a_1.fq.gz\n"), manifest.Fastq)
	var rec manifest.Record
	assert.False(t, s.Scan(&rec))
	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "line 1")
}

func TestScannerBadStatus(t *testing.T) {
	s := manifest.NewScanner(strings.NewReader("P1 x n1 L001 a b\n"), manifest.Fastq)
	var rec manifest.Record
	assert.False(t, s.Scan(&rec))
	assert.Error(t, s.Err())
}

func touch(t *testing.T, path string) {
	require.NoError(t, os.WriteFile(path, []byte("x"), 0666))
}

func TestLoadFastq(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a_1.fq", "a_2.fq"} {
		touch(t, filepath.Join(dir, name))
	}
	sheet := filepath.Join(dir, "samples.tsv")
	line := strings.Join([]string{"P1", "0", "n1", "L001",
		filepath.Join(dir, "a_1.fq"), filepath.Join(dir, "a_2.fq")}, " ")
	require.NoError(t, os.WriteFile(sheet, []byte(line+"\n"), 0666))

	recs, err := manifest.Load(sheet, manifest.Fastq)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, manifest.SampleID("n1__0"), recs[0].Sample)
}

func TestLoadMissingFileNamesIt(t *testing.T) {
	dir := t.TempDir()
	sheet := filepath.Join(dir, "samples.tsv")
	missing := filepath.Join(dir, "gone_1.fq")
	line := strings.Join([]string{"P1", "0", "n1", "L001", missing, missing}, " ")
	require.NoError(t, os.WriteFile(sheet, []byte(line+"\n"), 0666))

	_, err := manifest.Load(sheet, manifest.Fastq)
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)
}

func writeTestBam(t *testing.T, path string) {
	ref, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{ref})
	require.NoError(t, err)
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := bam.NewWriter(f, header, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestLoadBamChecksHeader(t *testing.T) {
	dir := t.TempDir()
	bamPath := filepath.Join(dir, "t1.bam")
	writeTestBam(t, bamPath)
	touch(t, bamPath+".bai")
	sheet := filepath.Join(dir, "samples.tsv")
	line := strings.Join([]string{"P1", "1", "t1", bamPath, bamPath + ".bai"}, " ")
	require.NoError(t, os.WriteFile(sheet, []byte(line+"\n"), 0666))

	recs, err := manifest.Load(sheet, manifest.Bam)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, bamPath, recs[0].Bam)

	// A file that is not a BAM must be rejected by the header check.
	bogus := filepath.Join(dir, "bogus.bam")
	touch(t, bogus)
	touch(t, bogus+".bai")
	line = strings.Join([]string{"P1", "1", "t2", bogus, bogus + ".bai"}, " ")
	require.NoError(t, os.WriteFile(sheet, []byte(line+"\n"), 0666))
	_, err = manifest.Load(sheet, manifest.Bam)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bogus)
}
