package runner

import (
	"context"

	"github.com/ajtock/sarek/lanes"
	"github.com/ajtock/sarek/manifest"
)

// Ops adapts the Builder and Executor to the lane router's two file
// actions. Both return the canonical per-sample record the rest of the
// pipeline flows on.
type Ops struct {
	Ctx  context.Context
	B    *Builder
	Exec *Executor
}

var _ lanes.Ops = Ops{}

// Rename relabels a single-run sample to its canonical per-sample files.
func (o Ops) Rename(rec manifest.Record) (manifest.Record, error) {
	cmd, out := o.B.Rename(rec)
	if err := o.Exec.Run(o.Ctx, cmd); err != nil {
		return manifest.Record{}, err
	}
	rec.Bam, rec.Bai = out, out+".bai"
	return rec, nil
}

// MergeRuns combines a multi-run sample into its canonical per-sample
// files. The lane router stamps the merged run label afterwards.
func (o Ops) MergeRuns(g lanes.Group) (manifest.Record, error) {
	cmd, out := o.B.MergeRuns(g)
	if err := o.Exec.Run(o.Ctx, cmd); err != nil {
		return manifest.Record{}, err
	}
	rec := g.Records[0]
	rec.Fastq1, rec.Fastq2 = "", ""
	rec.Bam, rec.Bai = out, out+".bai"
	return rec, nil
}
