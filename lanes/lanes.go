// Package lanes routes per-run alignment outputs into one canonical
// per-sample stream. Samples sequenced on a single run take a pure rename
// path; samples spread over several runs take a merge path. Downstream
// consumers cannot tell which path produced a record.
package lanes

import (
	"sort"
	"strings"

	"github.com/ajtock/sarek/flow"
	"github.com/ajtock/sarek/manifest"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// A Group is the set of per-run records belonging to one sample. Records
// are held in ascending run order regardless of arrival order, so every
// operation on a Group is deterministic.
type Group struct {
	Sample  manifest.SampleID
	Records []manifest.Record
}

// MergedRunLabel is the stable label for a multi-run merge: the run IDs
// sorted and joined. Two ingests of the same manifest in different orders
// produce the same label.
func (g Group) MergedRunLabel() manifest.RunID {
	runs := make([]string, len(g.Records))
	for i, r := range g.Records {
		runs[i] = string(r.Run)
	}
	sort.Strings(runs)
	return manifest.RunID(strings.Join(runs, "_"))
}

// GroupRuns gathers the per-run stream into one Group per sample. Grouping
// is a barrier over the input; groups are emitted in sample order with their
// records sorted by run.
func GroupRuns(in <-chan manifest.Record) <-chan Group {
	grouped := flow.GroupBy(in,
		func(r manifest.Record) manifest.SampleID { return r.Sample },
		func(a, b manifest.SampleID) bool { return a < b })
	return flow.Map(grouped, func(g flow.Group[manifest.SampleID, manifest.Record]) Group {
		recs := append([]manifest.Record{}, g.Items...)
		sort.Slice(recs, func(i, j int) bool { return recs[i].Run < recs[j].Run })
		return Group{Sample: g.Key, Records: recs}
	})
}

// Ops are the two file actions the router dispatches to. Rename relabels a
// single run's files to the canonical per-sample names without touching
// content; MergeRuns combines all run files of a group into one logical
// per-sample file. Both return the canonical per-sample record.
type Ops interface {
	Rename(rec manifest.Record) (manifest.Record, error)
	MergeRuns(g Group) (manifest.Record, error)
}

// Unify routes each Group down the rename path (exactly one run) or the
// merge path (more than one), then re-unifies both paths into one canonical
// per-sample conduit. Every input sample appears exactly once in the output,
// in deterministic sample order. The first op failure stops routing and is
// reported on the returned error channel.
func Unify(groups <-chan Group, ops Ops) (<-chan manifest.Record, <-chan error) {
	out := make(chan manifest.Record)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for g := range groups {
			rec, err := route(g, ops)
			if err != nil {
				errc <- err
				return
			}
			out <- rec
		}
	}()
	return out, errc
}

func route(g Group, ops Ops) (manifest.Record, error) {
	switch len(g.Records) {
	case 0:
		return manifest.Record{}, errors.E("empty run group for sample", string(g.Sample))
	case 1:
		log.Debug.Printf("lanes: sample %s has one run (%s), rename path", g.Sample, g.Records[0].Run)
		rec, err := ops.Rename(g.Records[0])
		if err != nil {
			return manifest.Record{}, errors.E(err, "rename", string(g.Sample))
		}
		return rec, nil
	default:
		label := g.MergedRunLabel()
		log.Debug.Printf("lanes: sample %s has %d runs, merge path (runs %s)", g.Sample, len(g.Records), label)
		rec, err := ops.MergeRuns(g)
		if err != nil {
			return manifest.Record{}, errors.E(err, "merge runs", string(g.Sample))
		}
		rec.Run = label
		return rec, nil
	}
}
