package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSteps(t *testing.T) {
	tests := []struct {
		list    string
		entry   Step
		active  []Step
		wantErr string
	}{
		{list: "", entry: Preprocessing},
		{list: "preprocessing", entry: Preprocessing},
		{list: "realign", entry: Realign},
		{list: "skipPreprocessing,MuTect2", entry: SkipPreprocessing, active: []Step{MuTect2}},
		{list: "MuTect1, Strelka", entry: Preprocessing, active: []Step{MuTect1, Strelka}},
		{list: "preprocessing,preprocessing", entry: Preprocessing},
		{list: "preprocessing,realign", wantErr: "mutually exclusive"},
		{list: "realign,skipPreprocessing", wantErr: "mutually exclusive"},
		{list: "frobnicate", wantErr: "unknown step"},
		{list: "mutect2", wantErr: "unknown step"}, // vocabulary is case-sensitive
	}
	for _, test := range tests {
		steps, err := ParseSteps(test.list)
		if test.wantErr != "" {
			require.Error(t, err, "list %q", test.list)
			assert.Contains(t, err.Error(), test.wantErr, "list %q", test.list)
			continue
		}
		require.NoError(t, err, "list %q", test.list)
		assert.Equal(t, test.entry, steps.EntryMode(), "list %q", test.list)
		for _, step := range test.active {
			assert.True(t, steps.Active(step), "list %q step %s", test.list, step)
		}
	}
}

func TestDefaultEntryModeIsActive(t *testing.T) {
	steps, err := ParseSteps("MuTect2")
	require.NoError(t, err)
	assert.True(t, steps.Active(Preprocessing))
	assert.Equal(t, Preprocessing, steps.EntryMode())
}

func TestActiveCallersScatterSplit(t *testing.T) {
	steps, err := ParseSteps("MuTect2,Strelka,VarDict")
	require.NoError(t, err)
	callers := steps.ActiveCallers()
	assert.Equal(t, []Step{MuTect2, VarDict, Strelka}, callers)
	assert.True(t, MuTect2.Scatters())
	assert.True(t, VarDict.Scatters())
	assert.False(t, Strelka.Scatters())
	assert.False(t, Ascat.Scatters())
}

func TestTrackerStartsInactive(t *testing.T) {
	steps, err := ParseSteps("MuTect2")
	require.NoError(t, err)
	tr := NewTracker(steps)
	for _, c := range Callers {
		assert.Equal(t, Inactive, tr.State(c))
	}
	tr.Transition(MuTect2, Scattering)
	assert.Equal(t, Scattering, tr.State(MuTect2))
	assert.Equal(t, Inactive, tr.State(Strelka))
}
