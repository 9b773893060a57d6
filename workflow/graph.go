package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ajtock/sarek/collate"
	"github.com/ajtock/sarek/flow"
	"github.com/ajtock/sarek/intervals"
	"github.com/ajtock/sarek/manifest"
	"github.com/ajtock/sarek/pairs"
	"github.com/ajtock/sarek/refs"
	"github.com/ajtock/sarek/runner"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// A WorkItem is the scatter unit dispatched to a caller: one pair restricted
// to one interval.
type WorkItem struct {
	Pair     pairs.BamPair
	Interval intervals.Interval
}

// Config fixes everything a run needs. All of it is validated before any
// node starts: a bad step list, a missing reference, or a broken manifest
// aborts the run without executing a single stage.
type Config struct {
	Steps        Steps
	ManifestPath string
	Mode         manifest.Mode
	Refs         *refs.Set
	OutDir       string
	Parallelism  int
	DryRun       bool
}

// A Graph is one run's constructed dataflow: the validated inputs plus the
// activation set, ready to execute. Only nodes whose activation predicate
// holds are ever built; everything else observes closed conduits.
type Graph struct {
	cfg     Config
	recs    []manifest.Record
	ivals   []intervals.Interval
	exec    *runner.Executor
	builder *runner.Builder
	tracker *Tracker
}

// New checks every static precondition and constructs the graph. Reference
// files are existence-checked, the manifest is parsed with its files
// verified, and the interval list is loaded once if any scattering caller
// is active.
func New(cfg Config) (*Graph, error) {
	if cfg.Steps.EntryMode() == Preprocessing && cfg.Mode != manifest.Fastq {
		return nil, errors.E("preprocessing starts from fastq input, got", cfg.Mode.String(), "manifest")
	}
	if cfg.Steps.EntryMode() != Preprocessing && cfg.Mode != manifest.Bam {
		return nil, errors.E(string(cfg.Steps.EntryMode()), "starts from bam input, got", cfg.Mode.String(), "manifest")
	}
	if err := cfg.Refs.Validate(); err != nil {
		return nil, err
	}
	recs, err := manifest.Load(cfg.ManifestPath, cfg.Mode)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.E("manifest", cfg.ManifestPath, "has no samples")
	}
	g := &Graph{
		cfg:     cfg,
		recs:    recs,
		exec:    runner.NewExecutor(cfg.Parallelism, cfg.DryRun),
		builder: &runner.Builder{Refs: cfg.Refs, OutDir: cfg.OutDir},
		tracker: NewTracker(cfg.Steps),
	}
	for _, c := range cfg.Steps.ActiveCallers() {
		if c.Scatters() {
			if cfg.Refs.Intervals == "" {
				return nil, errors.E(string(c), "scatters by interval but no interval list is configured")
			}
			g.ivals, err = intervals.Load(cfg.Refs.Intervals)
			if err != nil {
				return nil, err
			}
			break
		}
	}
	return g, nil
}

// Tracker exposes the per-stage state accounting, mainly for tests and
// status reporting.
func (g *Graph) Tracker() *Tracker {
	return g.tracker
}

// Executor exposes the underlying executor (dry-run inspection).
func (g *Graph) Executor() *runner.Executor {
	return g.exec
}

// Run executes the graph: preprocessing per the entry mode, the
// normal/tumor join, then every active caller with its scatter and gather.
// The run fails if any static stage fails or any gather bucket is starved.
func (g *Graph) Run(ctx context.Context) error {
	recal, err := g.preprocess(ctx)
	if err != nil {
		return err
	}
	callers := g.cfg.Steps.ActiveCallers()
	if len(callers) == 0 {
		log.Printf("workflow: no callers selected, run ends after preprocessing")
		return nil
	}

	normals, tumors, perrc := pairs.Partition(flow.From(recal...))
	pairList := flow.Collect(pairs.Join(normals, tumors))
	if err := <-perrc; err != nil {
		return err
	}
	if len(pairList) == 0 {
		return errors.E("no normal/tumor pairs could be formed from", fmt.Sprint(len(recal)), "samples")
	}
	log.Printf("workflow: %d normal/tumor pairs, %d active callers", len(pairList), len(callers))

	// Each active caller consumes the full pair sequence; scattering callers
	// additionally consume the full interval sequence. Both are fanned out
	// once, one independent copy per consumer.
	pairCopies := flow.Tee(flow.From(pairList...), len(callers))
	var nScatter int
	for _, c := range callers {
		if c.Scatters() {
			nScatter++
		}
	}
	var ivalCopies []<-chan intervals.Interval
	if nScatter > 0 {
		ivalCopies = flow.Tee(flow.From(g.ivals...), nScatter)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []string
	)
	fail := func(msg string) {
		mu.Lock()
		failures = append(failures, msg)
		mu.Unlock()
	}
	ivalIdx := 0
	for i, c := range callers {
		wg.Add(1)
		if c.Scatters() {
			go g.runScatterCaller(ctx, &wg, c, pairCopies[i], ivalCopies[ivalIdx], fail)
			ivalIdx++
		} else {
			go g.runWholeGenomeCaller(ctx, &wg, c, pairCopies[i], fail)
		}
	}
	wg.Wait()
	if len(failures) > 0 {
		return errors.E("run failed:", strings.Join(failures, "; "))
	}
	return nil
}

// runScatterCaller fans the caller's pair copy out across its interval copy,
// invokes the caller once per work item, and gathers per-interval results on
// the collation barrier. Buckets starved by permanently failed work items
// are reported by key; no partial merge is emitted.
func (g *Graph) runScatterCaller(ctx context.Context, wg *sync.WaitGroup, c Step,
	pairC <-chan pairs.BamPair, ivalC <-chan intervals.Interval, fail func(string)) {
	defer wg.Done()
	g.tracker.Transition(c, Scattering)

	items := flow.Collect(flow.Map(
		flow.Cross(pairC, ivalC),
		func(p flow.Pair[pairs.BamPair, intervals.Interval]) WorkItem {
			return WorkItem{Pair: p.A, Interval: p.B}
		}))
	coll := collate.NewCollator()
	dispatched := map[collate.Key]int{}
	for _, item := range items {
		dispatched[collate.KeyOf(item.Pair)]++
	}
	for key, n := range dispatched {
		if err := coll.Expect(key, n); err != nil {
			fail(err.Error())
			return
		}
	}
	log.Printf("workflow: %s: %d work items across %d buckets", c, len(items), len(dispatched))

	// Gather side: one concat per completed bucket.
	var gatherWG sync.WaitGroup
	gatherWG.Add(1)
	go func() {
		defer gatherWG.Done()
		for bucket := range coll.Done() {
			cmd, out := g.builder.Concat(string(c), bucket)
			if err := g.exec.Run(ctx, cmd); err != nil {
				fail(err.Error())
				continue
			}
			log.Printf("workflow: %s: bucket %s complete (%d interval results) -> %s",
				c, bucket.Key.String(), len(bucket.Paths), out)
		}
	}()

	// Scatter side: work items are independent and run concurrently under
	// the executor's ceiling. A permanently failed item is recorded but does
	// not stop its siblings; it starves its bucket instead.
	g.tracker.Transition(c, Collecting)
	_ = traverse.Each(len(items), func(i int) error {
		item := items[i]
		cmd, out := g.builder.Caller(string(c), item.Pair, &item.Interval)
		if err := g.exec.Run(ctx, cmd); err != nil {
			fail(err.Error())
			return nil
		}
		if err := coll.Add(collate.KeyOf(item.Pair), out); err != nil {
			fail(err.Error())
		}
		return nil
	})
	coll.Close()
	gatherWG.Wait()

	if starved := coll.Incomplete(); len(starved) > 0 {
		fail(fmt.Sprintf("%s: buckets never completed: %s", c, strings.Join(starved, ", ")))
		return
	}
	g.tracker.Transition(c, Complete)
}

// runWholeGenomeCaller invokes the caller once per pair, no interval
// scatter and no gather barrier.
func (g *Graph) runWholeGenomeCaller(ctx context.Context, wg *sync.WaitGroup, c Step,
	pairC <-chan pairs.BamPair, fail func(string)) {
	defer wg.Done()
	g.tracker.Transition(c, Scattering)
	pairList := flow.Collect(pairC)
	g.tracker.Transition(c, Collecting)
	var failed atomic.Bool
	_ = traverse.Each(len(pairList), func(i int) error {
		cmd, _ := g.builder.Caller(string(c), pairList[i], nil)
		if err := g.exec.Run(ctx, cmd); err != nil {
			fail(err.Error())
			failed.Store(true)
		}
		return nil
	})
	if !failed.Load() {
		g.tracker.Transition(c, Complete)
	}
}
