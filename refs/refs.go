// Package refs holds the fixed set of reference files a run depends on and
// checks them before any stage is scheduled: a missing reference fails the
// whole run up front rather than hours in.
package refs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

// A Set names every reference artifact the external tools consume. Entries
// left empty are treated as not required for the selected steps.
type Set struct {
	// Genome sequence and its companions.
	Fasta string
	Fai   string
	Dict  string

	// Known-sites sets for recalibration and realignment.
	DbSNP       string
	DbSNPIndex  string
	KnownIndels []string

	// Scatter source.
	Intervals string

	// Caller-specific reference copies.
	CosmicVCF   string
	CosmicIndex string
	AcLoci      string
}

// named flattens the set into (label, path) entries for checking and
// logging, in stable label order.
func (s *Set) named() map[string]string {
	m := map[string]string{
		"genome fasta":  s.Fasta,
		"fasta index":   s.Fai,
		"sequence dict": s.Dict,
		"dbsnp":         s.DbSNP,
		"dbsnp index":   s.DbSNPIndex,
		"interval list": s.Intervals,
		"cosmic vcf":    s.CosmicVCF,
		"cosmic index":  s.CosmicIndex,
		"ascat loci":    s.AcLoci,
	}
	for i, p := range s.KnownIndels {
		m[fmt.Sprintf("known indels #%d", i+1)] = p
	}
	return m
}

// Validate existence-checks every configured reference. All missing entries
// are reported together, each named.
func (s *Set) Validate() error {
	ctx := vcontext.Background()
	named := s.named()
	labels := make([]string, 0, len(named))
	for label := range named {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	var missing []string
	for _, label := range labels {
		path := named[label]
		if path == "" {
			continue
		}
		if _, err := file.Stat(ctx, path); err != nil {
			missing = append(missing, label+": "+path)
			continue
		}
		log.Debug.Printf("refs: %s ok (%s)", label, path)
	}
	if len(missing) > 0 {
		return errors.E("missing reference files:", strings.Join(missing, "; "))
	}
	return nil
}
