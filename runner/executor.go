// Package runner invokes the external genomics tools the pipeline
// orchestrates. Tools are opaque file-in/file-out commands; this package
// owns command construction, the bounded-retry/resource-escalation
// contract, the run-wide concurrency ceiling, and the per-stage sample
// sheets handed to the next pipeline phase.
package runner

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/retry"
	"golang.org/x/sync/semaphore"
)

// A Command is one external tool invocation. Argv may contain the
// placeholders {memGB} and {timeoutMin}, substituted with the escalated
// grant of the current attempt, so a retried command asks the tool itself
// for more headroom.
type Command struct {
	// Stage names the pipeline step the command belongs to; Label
	// distinguishes the unit of work within it (sample, pair, interval).
	Stage string
	Label string

	Argv []string

	// Base resource grants for attempt 1. Attempt n runs with n times the
	// grant.
	MemGB   int
	Timeout time.Duration
}

func (c Command) String() string {
	return c.Stage + "/" + c.Label
}

// An Executor runs Commands under a run-wide concurrency ceiling, retrying
// transient failures with escalating resource grants. Exhausting
// MaxAttempts permanently fails the unit of work; the caller decides what
// that starves downstream.
type Executor struct {
	dryRun      bool
	maxAttempts int
	backoff     retry.Policy
	sem         *semaphore.Weighted

	mu  sync.Mutex
	ran []Command
}

const defaultMaxAttempts = 3

// NewExecutor returns an Executor allowing at most parallelism concurrent
// commands. With dryRun set, commands are recorded instead of executed and
// always succeed; tests and -dry-run builds use this to exercise routing
// without the external tools installed.
func NewExecutor(parallelism int, dryRun bool) *Executor {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Executor{
		dryRun:      dryRun,
		maxAttempts: defaultMaxAttempts,
		backoff:     retry.Backoff(time.Second, 30*time.Second, 2),
		sem:         semaphore.NewWeighted(int64(parallelism)),
	}
}

// SetMaxAttempts overrides the bounded attempt count. n must be at least 1.
func (e *Executor) SetMaxAttempts(n int) {
	if n >= 1 {
		e.maxAttempts = n
	}
}

// Run executes cmd to completion, retrying with escalated grants. It blocks
// while the concurrency ceiling is saturated.
func (e *Executor) Run(ctx context.Context, cmd Command) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return errors.E(err, cmd.String())
	}
	defer e.sem.Release(1)
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := retry.Wait(ctx, e.backoff, attempt-2); err != nil {
				return errors.E(err, cmd.String())
			}
			log.Printf("%s: attempt %d/%d with %dGB, %v",
				cmd.String(), attempt, e.maxAttempts, cmd.MemGB*attempt, cmd.Timeout*time.Duration(attempt))
		}
		lastErr = e.runOnce(ctx, cmd, attempt)
		if lastErr == nil {
			return nil
		}
		log.Error.Printf("%s: attempt %d/%d failed: %v", cmd.String(), attempt, e.maxAttempts, lastErr)
	}
	return errors.E(lastErr, cmd.String(), "permanently failed after",
		strconv.Itoa(e.maxAttempts), "attempts")
}

func (e *Executor) runOnce(ctx context.Context, cmd Command, attempt int) error {
	argv := expandGrants(cmd, attempt)
	if e.dryRun {
		e.mu.Lock()
		e.ran = append(e.ran, cmd)
		e.mu.Unlock()
		log.Debug.Printf("%s (dry run): %s", cmd.String(), strings.Join(argv, " "))
		return nil
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout*time.Duration(attempt))
		defer cancel()
	}
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := c.CombinedOutput()
	if err != nil {
		return errors.E(err, strings.TrimSpace(string(out)))
	}
	return nil
}

// expandGrants substitutes the escalated resource grants of this attempt
// into the command line.
func expandGrants(cmd Command, attempt int) []string {
	mem := strconv.Itoa(cmd.MemGB * attempt)
	timeoutMin := strconv.Itoa(int(cmd.Timeout/time.Minute) * attempt)
	argv := make([]string, len(cmd.Argv))
	for i, a := range cmd.Argv {
		a = strings.ReplaceAll(a, "{memGB}", mem)
		a = strings.ReplaceAll(a, "{timeoutMin}", timeoutMin)
		argv[i] = a
	}
	return argv
}

// Ran returns the commands recorded in dry-run mode, in execution order.
func (e *Executor) Ran() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Command{}, e.ran...)
}
