package workflow

import (
	"context"
	"path/filepath"

	"github.com/ajtock/sarek/flow"
	"github.com/ajtock/sarek/lanes"
	"github.com/ajtock/sarek/manifest"
	"github.com/ajtock/sarek/runner"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// preprocess takes the manifest records to the recalibrated per-sample set
// the status router consumes, per the selected entry mode:
//
//	preprocessing:     align -> lane merge -> markdup -> realign -> recalibrate
//	realign:           realign -> recalibrate (input already deduplicated)
//	skipPreprocessing: input is already recalibrated
//
// Each stage writes a per-patient sample sheet for the next phase.
func (g *Graph) preprocess(ctx context.Context) ([]manifest.Record, error) {
	recs := g.recs
	var err error
	switch g.cfg.Steps.EntryMode() {
	case Preprocessing:
		if recs, err = g.align(ctx, recs); err != nil {
			return nil, err
		}
		if recs, err = g.mergeLanes(ctx, recs); err != nil {
			return nil, err
		}
		if recs, err = g.markDuplicates(ctx, recs); err != nil {
			return nil, err
		}
		fallthrough
	case Realign:
		if g.cfg.Steps.EntryMode() == Realign {
			log.Printf("workflow: realign entry, skipping alignment and duplicate marking")
		}
		if recs, err = g.realign(ctx, recs); err != nil {
			return nil, err
		}
		if recs, err = g.recalibrate(ctx, recs); err != nil {
			return nil, err
		}
	case SkipPreprocessing:
		log.Printf("workflow: skipPreprocessing entry, input treated as recalibrated")
	}
	return recs, nil
}

// align maps every sequencing run independently. Output order matches input
// order; failures abort preprocessing.
func (g *Graph) align(ctx context.Context, recs []manifest.Record) ([]manifest.Record, error) {
	out := make([]manifest.Record, len(recs))
	err := traverse.Each(len(recs), func(i int) error {
		cmd, bam := g.builder.Align(recs[i])
		if err := g.exec.Run(ctx, cmd); err != nil {
			return err
		}
		rec := recs[i]
		rec.Fastq1, rec.Fastq2 = "", ""
		rec.Bam, rec.Bai = bam, bam+".bai"
		out[i] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mergeLanes routes per-run BAMs through the lane router: single-run
// samples are relabeled, multi-run samples merged, and both paths re-unify
// into exactly one record per sample.
func (g *Graph) mergeLanes(ctx context.Context, recs []manifest.Record) ([]manifest.Record, error) {
	ops := runner.Ops{Ctx: ctx, B: g.builder, Exec: g.exec}
	unified, errc := lanes.Unify(lanes.GroupRuns(flow.From(recs...)), ops)
	out := flow.Collect(unified)
	if err := <-errc; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Graph) markDuplicates(ctx context.Context, recs []manifest.Record) ([]manifest.Record, error) {
	out := make([]manifest.Record, len(recs))
	err := traverse.Each(len(recs), func(i int) error {
		cmd, bam := g.builder.MarkDuplicates(recs[i])
		if err := g.exec.Run(ctx, cmd); err != nil {
			return err
		}
		rec := recs[i]
		rec.Bam, rec.Bai = bam, bam+".bai"
		out[i] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// realign runs indel realignment per sample. The stage's outputs come back
// as two independently ordered lists (BAMs, indexes); they are re-correlated
// by identity via the sort-then-zip discipline, never by position.
func (g *Graph) realign(ctx context.Context, recs []manifest.Record) ([]manifest.Record, error) {
	bams := make([]lanes.Tagged, len(recs))
	bais := make([]lanes.Tagged, len(recs))
	runLabels := map[manifest.SampleID]manifest.RunID{}
	for _, rec := range recs {
		runLabels[rec.Sample] = rec.Run
	}
	err := traverse.Each(len(recs), func(i int) error {
		cmd, bam := g.builder.Realign(recs[i])
		if err := g.exec.Run(ctx, cmd); err != nil {
			return err
		}
		bams[i] = lanes.Tagged{Patient: recs[i].Patient, Sample: recs[i].Sample, Path: bam}
		bais[i] = lanes.Tagged{Patient: recs[i].Patient, Sample: recs[i].Sample, Path: bam + ".bai"}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out, err := lanes.ZipOutputs(bams, bais)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Run = runLabels[out[i].Sample]
	}
	return out, nil
}

// recalibrate runs base quality recalibration per sample and writes the
// per-patient sample sheet handed to the calling phase.
func (g *Graph) recalibrate(ctx context.Context, recs []manifest.Record) ([]manifest.Record, error) {
	sheet := runner.NewSheet(filepath.Join(g.cfg.OutDir, "recal"))
	defer sheet.Close() // nolint: errcheck
	out := make([]manifest.Record, len(recs))
	err := traverse.Each(len(recs), func(i int) error {
		cmd, bam := g.builder.Recalibrate(recs[i])
		if err := g.exec.Run(ctx, cmd); err != nil {
			return err
		}
		rec := recs[i]
		rec.Bam, rec.Bai = bam, bam+".bai"
		out[i] = rec
		return sheet.Append(rec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
