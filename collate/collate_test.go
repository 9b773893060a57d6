package collate_test

import (
	"fmt"
	"testing"

	"github.com/ajtock/sarek/collate"
	"github.com/ajtock/sarek/pairs"
	"github.com/grailbio/base/traverse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = collate.Key{Patient: "P", Normal: "P.norm__0", Tumor: "P.tum__1"}

func TestKeyOf(t *testing.T) {
	p := pairs.BamPair{Patient: "P", NormalSample: "P.norm__0", TumorSample: "P.tum__1"}
	assert.Equal(t, key, collate.KeyOf(p))
	assert.Equal(t, "P/P.tum__1_vs_P.norm__0", key.String())
}

func TestBarrierFiresAtFullCardinality(t *testing.T) {
	c := collate.NewCollator()
	require.NoError(t, c.Expect(key, 2))

	require.NoError(t, c.Add(key, "r_1_1001-2000.vcf"))
	select {
	case b := <-c.Done():
		t.Fatalf("bucket fired before barrier: %+v", b)
	default:
	}

	require.NoError(t, c.Add(key, "r_1_1-1000.vcf"))
	b := <-c.Done()
	assert.Equal(t, key, b.Key)
	// Paths come back sorted, not in arrival order.
	assert.Equal(t, []string{"r_1_1-1000.vcf", "r_1_1001-2000.vcf"}, b.Paths)

	c.Close()
	assert.Empty(t, c.Incomplete())
}

// A bucket with only 1 of 2 expected results never completes; it is
// reported as starved, not merged partially.
func TestStarvedBucketNeverCompletes(t *testing.T) {
	c := collate.NewCollator()
	require.NoError(t, c.Expect(key, 2))
	require.NoError(t, c.Add(key, "only.vcf"))
	c.Close()

	var fired []collate.Bucket
	for b := range c.Done() {
		fired = append(fired, b)
	}
	assert.Empty(t, fired)
	starved := c.Incomplete()
	require.Len(t, starved, 1)
	assert.Contains(t, starved[0], key.String())
	assert.Contains(t, starved[0], "1 of 2")
}

func TestAddErrors(t *testing.T) {
	c := collate.NewCollator()
	assert.Error(t, c.Add(key, "x.vcf"), "undeclared key")

	require.NoError(t, c.Expect(key, 1))
	assert.Error(t, c.Expect(key, 1), "key declared twice")
	assert.Error(t, c.Expect(collate.Key{Patient: "Q"}, 0), "zero cardinality")

	require.NoError(t, c.Add(key, "x.vcf"))
	assert.Error(t, c.Add(key, "y.vcf"), "excess result")
	<-c.Done()
	c.Close()
}

func TestConcurrentProducers(t *testing.T) {
	const n = 64
	c := collate.NewCollator()
	require.NoError(t, c.Expect(key, n))
	done := make(chan []string)
	go func() {
		var got []string
		for b := range c.Done() {
			got = b.Paths
		}
		done <- got
	}()
	err := traverse.Each(n, func(i int) error {
		return c.Add(key, fmt.Sprintf("r%03d.vcf", i))
	})
	require.NoError(t, err)
	c.Close()
	got := <-done
	require.Len(t, got, n)
	assert.Empty(t, c.Incomplete())
}

func TestIndependentBuckets(t *testing.T) {
	other := collate.Key{Patient: "Q", Normal: "Q.n__0", Tumor: "Q.t__1"}
	c := collate.NewCollator()
	require.NoError(t, c.Expect(key, 1))
	require.NoError(t, c.Expect(other, 2))
	require.NoError(t, c.Add(other, "q1.vcf"))
	require.NoError(t, c.Add(key, "p1.vcf"))
	b := <-c.Done()
	assert.Equal(t, key, b.Key)
	c.Close()
	starved := c.Incomplete()
	require.Len(t, starved, 1)
	assert.Contains(t, starved[0], other.String())
}
