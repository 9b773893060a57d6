package runner

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ajtock/sarek/collate"
	"github.com/ajtock/sarek/intervals"
	"github.com/ajtock/sarek/lanes"
	"github.com/ajtock/sarek/manifest"
	"github.com/ajtock/sarek/pairs"
	"github.com/ajtock/sarek/refs"
)

// A Builder constructs the external tool command lines. Each stage writes
// under its own subdirectory of OutDir, so concurrent stages never share an
// output namespace.
type Builder struct {
	Refs   *refs.Set
	OutDir string
}

func (b *Builder) stageDir(stage string, patient manifest.PatientID) string {
	return filepath.Join(b.OutDir, stage, string(patient))
}

// sh wraps a shell pipeline; the external aligners and callers are composed
// of piped tools, so commands run under sh -c.
func sh(pipeline string) []string {
	return []string{"sh", "-c", pipeline}
}

// Align maps one sequencing run with bwa and sorts the output. Returns the
// command and the per-run BAM it produces.
func (b *Builder) Align(rec manifest.Record) (Command, string) {
	dir := b.stageDir("align", rec.Patient)
	out := filepath.Join(dir, fmt.Sprintf("%s__%s.bam", rec.Sample, rec.Run))
	rg := fmt.Sprintf(`@RG\tID:%s_%s\tSM:%s\tLB:%s\tPL:illumina`, rec.Sample, rec.Run, rec.Sample, rec.Sample)
	cmd := Command{
		Stage: "align",
		Label: fmt.Sprintf("%s/%s", rec.Sample, rec.Run),
		Argv: sh(fmt.Sprintf(
			"mkdir -p %s && bwa mem -R %q -B 3 -t 4 -M %s %s %s | samtools sort --output-fmt BAM - > %s && samtools index %s",
			dir, rg, b.Refs.Fasta, rec.Fastq1, rec.Fastq2, out, out)),
		MemGB:   16,
		Timeout: 8 * time.Hour,
	}
	return cmd, out
}

// canonicalBam is the per-sample filename both lane paths converge on.
func (b *Builder) canonicalBam(rec manifest.Record) string {
	return filepath.Join(b.stageDir("merged", rec.Patient), string(rec.Sample)+".bam")
}

// Rename relabels a single-run BAM to the canonical per-sample name. Pure
// relabeling: content is untouched, the move exists only so downstream
// stages see one naming scheme.
func (b *Builder) Rename(rec manifest.Record) (Command, string) {
	out := b.canonicalBam(rec)
	cmd := Command{
		Stage: "merge",
		Label: string(rec.Sample),
		Argv: sh(fmt.Sprintf("mkdir -p %s && mv %s %s && mv %s %s",
			filepath.Dir(out), rec.Bam, out, rec.Bai, out+".bai")),
		MemGB:   1,
		Timeout: 30 * time.Minute,
	}
	return cmd, out
}

// MergeRuns combines all run BAMs of one sample into the canonical
// per-sample BAM.
func (b *Builder) MergeRuns(g lanes.Group) (Command, string) {
	rec := g.Records[0]
	out := b.canonicalBam(rec)
	ins := make([]string, len(g.Records))
	for i, r := range g.Records {
		ins[i] = r.Bam
	}
	cmd := Command{
		Stage: "merge",
		Label: fmt.Sprintf("%s (%d runs)", rec.Sample, len(g.Records)),
		Argv: sh(fmt.Sprintf("mkdir -p %s && samtools merge -f %s %s && samtools index %s",
			filepath.Dir(out), out, strings.Join(ins, " "), out)),
		MemGB:   4,
		Timeout: 4 * time.Hour,
	}
	return cmd, out
}

// MarkDuplicates flags PCR duplicates on the canonical per-sample BAM.
func (b *Builder) MarkDuplicates(rec manifest.Record) (Command, string) {
	dir := b.stageDir("markdup", rec.Patient)
	out := filepath.Join(dir, string(rec.Sample)+".md.bam")
	cmd := Command{
		Stage: "markdup",
		Label: string(rec.Sample),
		Argv: sh(fmt.Sprintf(
			"mkdir -p %s && gatk --java-options -Xmx{memGB}g MarkDuplicates -I %s -O %s -M %s.metrics --CREATE_INDEX true",
			dir, rec.Bam, out, out)),
		MemGB:   8,
		Timeout: 6 * time.Hour,
	}
	return cmd, out
}

// Realign runs indel realignment around known sites.
func (b *Builder) Realign(rec manifest.Record) (Command, string) {
	dir := b.stageDir("realign", rec.Patient)
	out := filepath.Join(dir, string(rec.Sample)+".real.bam")
	known := knownArgs("-known", b.Refs.KnownIndels)
	cmd := Command{
		Stage: "realign",
		Label: string(rec.Sample),
		Argv: sh(fmt.Sprintf(
			"mkdir -p %s && gatk3 -Xmx{memGB}g -T RealignerTargetCreator -R %s -I %s %s -o %s.intervals"+
				" && gatk3 -Xmx{memGB}g -T IndelRealigner -R %s -I %s %s -targetIntervals %s.intervals -o %s",
			dir, b.Refs.Fasta, rec.Bam, known, out,
			b.Refs.Fasta, rec.Bam, known, out, out)),
		MemGB:   8,
		Timeout: 8 * time.Hour,
	}
	return cmd, out
}

// Recalibrate builds and applies the base quality recalibration table.
func (b *Builder) Recalibrate(rec manifest.Record) (Command, string) {
	dir := b.stageDir("recal", rec.Patient)
	out := filepath.Join(dir, string(rec.Sample)+".recal.bam")
	known := knownArgs("--known-sites", append([]string{b.Refs.DbSNP}, b.Refs.KnownIndels...))
	cmd := Command{
		Stage: "recalibrate",
		Label: string(rec.Sample),
		Argv: sh(fmt.Sprintf(
			"mkdir -p %s && gatk --java-options -Xmx{memGB}g BaseRecalibrator -R %s -I %s %s -O %s.table"+
				" && gatk --java-options -Xmx{memGB}g ApplyBQSR -R %s -I %s --bqsr-recal-file %s.table -O %s",
			dir, b.Refs.Fasta, rec.Bam, known, out,
			b.Refs.Fasta, rec.Bam, out, out)),
		MemGB:   8,
		Timeout: 8 * time.Hour,
	}
	return cmd, out
}

func knownArgs(flag string, paths []string) string {
	var args []string
	for _, p := range paths {
		if p != "" {
			args = append(args, flag+" "+p)
		}
	}
	return strings.Join(args, " ")
}

// Caller builds the invocation of one variant caller for one pair. ival is
// nil for the whole-genome callers; scattering callers get a per-interval
// restriction and a per-interval output name.
func (b *Builder) Caller(stage string, p pairs.BamPair, ival *intervals.Interval) (Command, string) {
	dir := b.stageDir(stage, p.Patient)
	base := fmt.Sprintf("%s_vs_%s", p.TumorSample, p.NormalSample)
	label := string(p.Patient) + "/" + base
	out := filepath.Join(dir, base+".vcf")
	region := ""
	if ival != nil {
		out = filepath.Join(dir, base+"__"+ival.Token+".vcf")
		label += "/" + ival.Token
		region = ival.Raw
	}
	var line string
	switch stage {
	case "MuTect1":
		line = fmt.Sprintf(
			"java -Xmx{memGB}g -jar mutect-1.1.5.jar --analysis_type MuTect -R %s --cosmic %s --dbsnp %s -L %s"+
				" --input_file:normal %s --input_file:tumor %s --vcf %s",
			b.Refs.Fasta, b.Refs.CosmicVCF, b.Refs.DbSNP, region, p.NormalBam, p.TumorBam, out)
	case "MuTect2":
		line = fmt.Sprintf(
			"gatk --java-options -Xmx{memGB}g Mutect2 -R %s -L %s -I %s -normal %s -I %s -tumor %s -O %s",
			b.Refs.Fasta, region, p.NormalBam, p.NormalSample, p.TumorBam, p.TumorSample, out)
	case "VarDict":
		line = fmt.Sprintf(
			"vardict-java -G %s -N %s -b '%s|%s' -R %s -c 1 -S 2 -E 3 | var2vcf_paired.pl -N '%s|%s' > %s",
			b.Refs.Fasta, p.TumorSample, p.TumorBam, p.NormalBam, region, p.TumorSample, p.NormalSample, out)
	case "HaplotypeCaller":
		line = fmt.Sprintf(
			"gatk --java-options -Xmx{memGB}g HaplotypeCaller -R %s -L %s -I %s --dbsnp %s -O %s",
			b.Refs.Fasta, region, p.NormalBam, b.Refs.DbSNP, out)
	case "Strelka":
		line = fmt.Sprintf(
			"configureStrelkaSomaticWorkflow.py --referenceFasta %s --normalBam %s --tumorBam %s --runDir %s/strelka_%s"+
				" && %s/strelka_%s/runWorkflow.py -m local && cp %s/strelka_%s/results/variants/somatic.snvs.vcf.gz %s.gz && gunzip -f %s.gz",
			b.Refs.Fasta, p.NormalBam, p.TumorBam, dir, base,
			dir, base, dir, base, out, out)
	case "Manta":
		line = fmt.Sprintf(
			"configManta.py --referenceFasta %s --normalBam %s --tumorBam %s --runDir %s/manta_%s"+
				" && %s/manta_%s/runWorkflow.py -m local && cp %s/manta_%s/results/variants/somaticSV.vcf.gz %s.gz && gunzip -f %s.gz",
			b.Refs.Fasta, p.NormalBam, p.TumorBam, dir, base,
			dir, base, dir, base, out, out)
	case "ascat":
		out = filepath.Join(dir, base+".ascat.txt")
		line = fmt.Sprintf(
			"alleleCounter -l %s -r %s -b %s -o %s.tumor.count && alleleCounter -l %s -r %s -b %s -o %s.normal.count"+
				" && run_ascat.r %s.tumor.count %s.normal.count %s",
			b.Refs.AcLoci, b.Refs.Fasta, p.TumorBam, out, b.Refs.AcLoci, b.Refs.Fasta, p.NormalBam, out,
			out, out, out)
	}
	cmd := Command{
		Stage:   stage,
		Label:   label,
		Argv:    sh(fmt.Sprintf("mkdir -p %s && %s", dir, line)),
		MemGB:   8,
		Timeout: 4 * time.Hour,
	}
	return cmd, out
}

// Concat merges the per-interval results of one completed bucket into the
// final per-pair output, named by the (patient, normal, tumor) triple. The
// path list must be complete and key-homogeneous; the collation barrier
// guarantees both.
func (b *Builder) Concat(stage string, bucket collate.Bucket) (Command, string) {
	dir := b.stageDir(stage, bucket.Key.Patient)
	out := filepath.Join(dir, fmt.Sprintf("%s_vs_%s.vcf", bucket.Key.Tumor, bucket.Key.Normal))
	cmd := Command{
		Stage: stage,
		Label: bucket.Key.String() + "/concat",
		Argv: sh(fmt.Sprintf("vcf-concat %s | vcf-sort > %s",
			strings.Join(bucket.Paths, " "), out)),
		MemGB:   2,
		Timeout: time.Hour,
	}
	return cmd, out
}
