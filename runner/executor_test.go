package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandGrants(t *testing.T) {
	cmd := Command{
		Argv:    []string{"sh", "-c", "tool -Xmx{memGB}g --time {timeoutMin}"},
		MemGB:   4,
		Timeout: 30 * time.Minute,
	}
	assert.Equal(t, "tool -Xmx4g --time 30", expandGrants(cmd, 1)[2])
	// Attempt n escalates both grants n-fold.
	assert.Equal(t, "tool -Xmx12g --time 90", expandGrants(cmd, 3)[2])
}

func TestDryRunRecords(t *testing.T) {
	e := NewExecutor(2, true)
	cmd := Command{Stage: "align", Label: "s1/L001", Argv: []string{"bwa", "mem"}}
	require.NoError(t, e.Run(context.Background(), cmd))
	ran := e.Ran()
	require.Len(t, ran, 1)
	assert.Equal(t, "align/s1/L001", ran[0].String())
}

func TestRunSuccess(t *testing.T) {
	e := NewExecutor(1, false)
	err := e.Run(context.Background(), Command{
		Stage: "t", Label: "true", Argv: []string{"true"},
	})
	assert.NoError(t, err)
}

func TestRunExhaustsAttempts(t *testing.T) {
	e := NewExecutor(1, false)
	e.SetMaxAttempts(2)
	err := e.Run(context.Background(), Command{
		Stage: "t", Label: "false", Argv: []string{"false"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permanently failed after 2 attempts")
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewExecutor(1, true)
	err := e.Run(ctx, Command{Stage: "t", Label: "x", Argv: []string{"true"}})
	assert.Error(t, err)
}
