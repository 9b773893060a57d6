// Package workflow builds and runs the pipeline graph: which steps are
// active, how samples are routed between them, and how scattered work is
// gathered back together.
package workflow

import (
	"fmt"
	"strings"
)

// A Step is one named, independently activatable phase of the pipeline.
type Step string

// The fixed step vocabulary. Unknown names fail validation before any stage
// executes.
const (
	Preprocessing     Step = "preprocessing"
	Realign           Step = "realign"
	SkipPreprocessing Step = "skipPreprocessing"
	MuTect1           Step = "MuTect1"
	MuTect2           Step = "MuTect2"
	VarDict           Step = "VarDict"
	Strelka           Step = "Strelka"
	HaplotypeCaller   Step = "HaplotypeCaller"
	Manta             Step = "Manta"
	Ascat             Step = "ascat"
)

// entryModes are mutually exclusive: at most one may be selected per run.
// With none selected the run defaults to Preprocessing.
var entryModes = []Step{Preprocessing, Realign, SkipPreprocessing}

var vocabulary = []Step{
	Preprocessing, Realign, SkipPreprocessing,
	MuTect1, MuTect2, VarDict, Strelka, HaplotypeCaller, Manta, Ascat,
}

// ScatterCallers are the caller steps that fan work out per genomic
// interval.
var ScatterCallers = []Step{MuTect1, MuTect2, VarDict, HaplotypeCaller}

// WholeGenomeCallers consume whole-genome BAM pairs directly, with no
// interval scatter.
var WholeGenomeCallers = []Step{Strelka, Manta, Ascat}

// Callers lists every caller step, scattering or not.
var Callers = append(append([]Step{}, ScatterCallers...), WholeGenomeCallers...)

// Scatters reports whether the step fans out per interval.
func (s Step) Scatters() bool {
	for _, c := range ScatterCallers {
		if s == c {
			return true
		}
	}
	return false
}

func (s Step) isEntryMode() bool {
	for _, m := range entryModes {
		if s == m {
			return true
		}
	}
	return false
}

// Steps is the validated, immutable activation set for one run. It is built
// once by ParseSteps and consulted by every stage transition thereafter.
type Steps struct {
	active map[Step]bool
	entry  Step
}

// ParseSteps validates a comma-separated step list against the vocabulary
// and resolves entry-mode exclusivity. An empty list selects the default
// entry mode and no callers.
func ParseSteps(list string) (Steps, error) {
	s := Steps{active: map[Step]bool{}}
	var entries []Step
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		step, err := lookupStep(name)
		if err != nil {
			return Steps{}, err
		}
		if step.isEntryMode() && !s.active[step] {
			entries = append(entries, step)
		}
		s.active[step] = true
	}
	if len(entries) > 1 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = string(e)
		}
		return Steps{}, fmt.Errorf("steps %s are mutually exclusive: pick one entry mode",
			strings.Join(names, ", "))
	}
	if len(entries) == 0 {
		entries = []Step{Preprocessing}
		s.active[Preprocessing] = true
	}
	s.entry = entries[0]
	return s, nil
}

func lookupStep(name string) (Step, error) {
	for _, step := range vocabulary {
		if string(step) == name {
			return step, nil
		}
	}
	known := make([]string, len(vocabulary))
	for i, step := range vocabulary {
		known[i] = string(step)
	}
	return "", fmt.Errorf("unknown step %q (known steps: %s)", name, strings.Join(known, ", "))
}

// Active reports whether the step was selected for this run. Every stage
// transition in the graph is guarded by it.
func (s Steps) Active(step Step) bool {
	return s.active[step]
}

// EntryMode returns the resolved entry mode for the run.
func (s Steps) EntryMode() Step {
	return s.entry
}

// ActiveCallers returns the selected caller steps, scattering callers first,
// in vocabulary order.
func (s Steps) ActiveCallers() []Step {
	var out []Step
	for _, c := range Callers {
		if s.active[c] {
			out = append(out, c)
		}
	}
	return out
}
