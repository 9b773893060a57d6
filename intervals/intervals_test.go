package intervals_test

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/ajtock/sarek/intervals"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestToken(t *testing.T) {
	tests := []struct{ raw, token string }{
		{"1:1-1000", "1_1-1000"},
		{"chrX:500-600", "chrX_500-600"},
		{"MT", "MT"},
	}
	for _, test := range tests {
		expect.EQ(t, intervals.Token(test.raw), test.token)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.intervals")
	assert.NoError(t, os.WriteFile(path, []byte("1:1-1000\n\n1:1001-2000\n"), 0666))
	ivals, err := intervals.Load(path)
	assert.NoError(t, err)
	assert.EQ(t, len(ivals), 2)
	expect.EQ(t, ivals[0], intervals.Interval{Raw: "1:1-1000", Token: "1_1-1000"})
	expect.EQ(t, ivals[1], intervals.Interval{Raw: "1:1001-2000", Token: "1_1001-2000"})
}

func TestLoadGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.intervals.gz")
	f, err := os.Create(path)
	assert.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("2:1-500\n"))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	assert.NoError(t, f.Close())

	ivals, err := intervals.Load(path)
	assert.NoError(t, err)
	assert.EQ(t, len(ivals), 1)
	expect.EQ(t, ivals[0].Token, "2_1-500")
}

func TestLoadEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.intervals")
	assert.NoError(t, os.WriteFile(path, []byte("\n"), 0666))
	if _, err := intervals.Load(path); err == nil {
		t.Error("expected error for empty interval list")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := intervals.Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing interval list")
	}
}
