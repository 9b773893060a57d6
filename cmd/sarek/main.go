package main

/*
sarek routes tumor/normal sequencing samples through a multi-stage analysis
pipeline: alignment and preprocessing of per-run reads, per-patient
normal/tumor pairing, interval-scattered variant calling, and identity-keyed
gathering of the scattered results. The external genomics tools are invoked
as opaque commands; this binary owns the routing.
*/

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/ajtock/sarek/manifest"
	"github.com/ajtock/sarek/refs"
	"github.com/ajtock/sarek/workflow"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

var (
	samplePath  = flag.String("sample", "", "Sample manifest path (required)")
	stepSpec    = flag.String("steps", "", "Comma-separated step names, e.g. 'preprocessing,MuTect2,Strelka'. Defaults to preprocessing")
	outDir      = flag.String("out", "out", "Output directory root; each stage writes under its own subdirectory")
	parallelism = flag.Int("parallelism", runtime.NumCPU(), "Maximum number of concurrently running external tools")
	dryRun      = flag.Bool("dry-run", false, "Build the graph and log the commands without executing them")

	genomeFasta = flag.String("genome", "", "Reference genome fasta (required)")
	genomeFai   = flag.String("genome-index", "", "Reference fasta index. Defaults to genome + .fai")
	genomeDict  = flag.String("genome-dict", "", "Reference sequence dictionary. Defaults to genome with a .dict extension")
	dbsnp       = flag.String("dbsnp", "", "dbSNP VCF")
	dbsnpIndex  = flag.String("dbsnp-index", "", "dbSNP VCF index. Defaults to dbsnp + .idx")
	knownIndels = flag.String("known-indels", "", "Comma-separated known-indels VCFs")
	intervalsF  = flag.String("intervals", "", "Interval list for scattered calling, one chrom:start-end per line")
	cosmic      = flag.String("cosmic", "", "COSMIC VCF (MuTect1)")
	cosmicIndex = flag.String("cosmic-index", "", "COSMIC VCF index. Defaults to cosmic + .idx")
	acLoci      = flag.String("ac-loci", "", "Allele-count loci file (ascat)")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -sample manifest.tsv -genome ref.fasta [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	shutdown := grail.Init()
	defer shutdown()
	flag.Usage = usage

	if flag.NArg() > 0 {
		log.Fatalf("unparsed arguments: %s", strings.Join(flag.Args(), " "))
	}
	if *samplePath == "" {
		log.Fatalf("-sample is required")
	}
	if *genomeFasta == "" {
		log.Fatalf("-genome is required")
	}

	steps, err := workflow.ParseSteps(*stepSpec)
	if err != nil {
		log.Fatalf("%v", err)
	}
	mode := manifest.Fastq
	if steps.EntryMode() != workflow.Preprocessing {
		mode = manifest.Bam
	}

	cfg := workflow.Config{
		Steps:        steps,
		ManifestPath: *samplePath,
		Mode:         mode,
		Refs:         referenceSet(),
		OutDir:       *outDir,
		Parallelism:  *parallelism,
		DryRun:       *dryRun,
	}
	graph, err := workflow.New(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := graph.Run(vcontext.Background()); err != nil {
		log.Error.Printf("%v", err)
		os.Exit(2)
	}
}

// referenceSet assembles the reference mapping from flags, deriving the
// conventional companion names where not given.
func referenceSet() *refs.Set {
	s := &refs.Set{
		Fasta:       *genomeFasta,
		Fai:         *genomeFai,
		Dict:        *genomeDict,
		DbSNP:       *dbsnp,
		DbSNPIndex:  *dbsnpIndex,
		Intervals:   *intervalsF,
		CosmicVCF:   *cosmic,
		CosmicIndex: *cosmicIndex,
		AcLoci:      *acLoci,
	}
	if s.Fai == "" && s.Fasta != "" {
		s.Fai = s.Fasta + ".fai"
	}
	if s.Dict == "" && s.Fasta != "" {
		s.Dict = strings.TrimSuffix(s.Fasta, ".fasta") + ".dict"
	}
	if s.DbSNPIndex == "" && s.DbSNP != "" {
		s.DbSNPIndex = s.DbSNP + ".idx"
	}
	if s.CosmicIndex == "" && s.CosmicVCF != "" {
		s.CosmicIndex = s.CosmicVCF + ".idx"
	}
	if *knownIndels != "" {
		for _, p := range strings.Split(*knownIndels, ",") {
			if p = strings.TrimSpace(p); p != "" {
				s.KnownIndels = append(s.KnownIndels, p)
			}
		}
	}
	return s
}
