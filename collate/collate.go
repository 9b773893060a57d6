// Package collate gathers scattered per-interval results back into one
// result per normal/tumor pair. Buckets are keyed by biological identity,
// never by arrival order, and a bucket only completes once every interval
// dispatched for its key has reported — a join barrier, not an incremental
// reducer. A bucket starved by an upstream failure never completes and is
// reported as such; no partial merge is ever emitted.
package collate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ajtock/sarek/manifest"
	"github.com/ajtock/sarek/pairs"
	"github.com/grailbio/base/errors"
)

// A Key identifies one gather bucket. All work items scattered from the
// same pair share one Key regardless of interval.
type Key struct {
	Patient manifest.PatientID
	Normal  manifest.SampleID
	Tumor   manifest.SampleID
}

// KeyOf derives the collation key from the pair a work item was scattered
// from.
func KeyOf(p pairs.BamPair) Key {
	return Key{Patient: p.Patient, Normal: p.NormalSample, Tumor: p.TumorSample}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s_vs_%s", k.Patient, k.Tumor, k.Normal)
}

// A Bucket is one completed gather: the key plus every per-interval result
// path, sorted by path for reproducible merges. Paths embed the interval
// token, so the sort is also a deterministic interval order.
type Bucket struct {
	Key   Key
	Paths []string
}

type bucketState struct {
	expected int
	paths    []string
}

// A Collator accumulates per-interval results and releases each bucket on
// its completeness barrier. Expect declares how many results a key will
// receive (once, at scatter time); Add records one result. Completed
// buckets are delivered on Done in completion order. Collators are safe for
// concurrent use by many result producers.
type Collator struct {
	mu      sync.Mutex
	buckets map[Key]*bucketState
	done    chan Bucket
}

// NewCollator returns an empty Collator. Close must be called once all
// producers have finished so consumers of Done terminate.
func NewCollator() *Collator {
	return &Collator{
		buckets: map[Key]*bucketState{},
		done:    make(chan Bucket, 64),
	}
}

// Expect declares that n interval results will arrive for key. It must be
// called before the first Add for the key and exactly once per key.
func (c *Collator) Expect(key Key, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buckets[key]; ok {
		return errors.E("collation key declared twice:", key.String())
	}
	if n <= 0 {
		return errors.E("collation key", key.String(), "expects no results")
	}
	c.buckets[key] = &bucketState{expected: n}
	return nil
}

// Add records one per-interval result for key. When the count of results
// reaches the declared cardinality the bucket fires on Done, exactly once.
func (c *Collator) Add(key Key, path string) error {
	c.mu.Lock()
	b, ok := c.buckets[key]
	if !ok {
		c.mu.Unlock()
		return errors.E("result for undeclared collation key:", key.String())
	}
	if len(b.paths) == b.expected {
		c.mu.Unlock()
		return errors.E("excess result for collation key:", key.String())
	}
	b.paths = append(b.paths, path)
	var fired *Bucket
	if len(b.paths) == b.expected {
		paths := append([]string{}, b.paths...)
		sort.Strings(paths)
		fired = &Bucket{Key: key, Paths: paths}
	}
	c.mu.Unlock()
	if fired != nil {
		// Delivered outside the lock so a slow consumer never wedges
		// concurrent producers.
		c.done <- *fired
	}
	return nil
}

// Done delivers completed buckets.
func (c *Collator) Done() <-chan Bucket {
	return c.done
}

// Close ends the Done stream. Call it only after every producer has
// stopped adding results.
func (c *Collator) Close() {
	close(c.done)
}

// Incomplete reports the keys whose barrier never fired, with received and
// expected counts, sorted by key. A non-empty result after the run drains
// means an upstream failure starved those buckets; the run must be reported
// failed naming them.
func (c *Collator) Incomplete() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var starved []string
	for key, b := range c.buckets {
		if len(b.paths) != b.expected {
			starved = append(starved,
				fmt.Sprintf("%s (%d of %d interval results)", key.String(), len(b.paths), b.expected))
		}
	}
	sort.Strings(starved)
	return starved
}
