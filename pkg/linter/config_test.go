package linter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.True(t, s.Checks.UnusedDependency)
	assert.True(t, s.Checks.DisableViewBinding)
	assert.False(t, s.Checks.SortDependencies)
	assert.False(t, s.Checks.Depths)
	assert.NotEmpty(t, s.DependencyComparators)
	assert.NotEmpty(t, s.PluginComparators)
	assert.False(t, s.Skips(":app"))
}

func TestNewSettings(t *testing.T) {
	s, err := NewSettings(
		WithIgnoreUnused(":core"),
		WithDoNotCheck(":legacy"),
		WithHostToolVersion("8.1.0"),
		WithComparators([]string{`api.*`, `implementation.*`}, nil),
	)
	require.NoError(t, err)

	assert.True(t, s.IgnoresUnused(":core"))
	assert.False(t, s.IgnoresUnused(":app"))
	assert.True(t, s.Skips(":legacy"))
	assert.Equal(t, "8.1.0", s.HostToolVersion)
	require.Len(t, s.DependencyComparators, 2)
	assert.True(t, s.DependencyComparators[0].MatchString(`api(project(":a"))`))
	assert.False(t, s.DependencyComparators[0].MatchString(`testApi(project(":a"))`))
}

func TestNewSettings_InvalidComparator(t *testing.T) {
	_, err := NewSettings(WithComparators([]string{`api(`}, nil))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dependency comparator")
}

func TestChecks_Enabled(t *testing.T) {
	c := Checks{UnusedKapt: true}

	tests := []struct {
		id   string
		want bool
	}{
		{id: RuleUnusedKaptProcessor, want: true},
		{id: RuleUnusedKaptPlugin, want: false},
		{id: RuleUnusedDependency, want: false},
		{id: "third-party-rule", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Enabled(tt.id))
		})
	}
}
