package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedContent_Dependencies(t *testing.T) {
	text := `dependencies {
  implementation(project(":b"))
  kapt(libs.dagger.compiler)
  api(project(":a"))
  implementation(project(":a"))
}
`
	parsed := Parse(text, true)
	block := parsed.LastDependenciesBlock()
	require.NotNil(t, block)

	comparators, err := CompileComparators(DefaultDependencyComparators)
	require.NoError(t, err)

	assert.False(t, IsSorted(text, block, comparators, true))

	sorted, ok := SortedContent(text, block, comparators, true)
	require.True(t, ok)
	assert.Equal(t, "\n"+
		"  kapt(libs.dagger.compiler)\n"+
		"\n"+
		"  api(project(\":a\"))\n"+
		"\n"+
		"  implementation(project(\":a\"))\n"+
		"  implementation(project(\":b\"))\n", sorted)

	rewritten := text[:block.ContentStart] + sorted + text[block.ContentEnd:]
	again := Parse(rewritten, true).LastDependenciesBlock()
	assert.True(t, IsSorted(rewritten, again, comparators, true))
}

func TestSortedContent_Plugins(t *testing.T) {
	text := "plugins {\n  kotlin(\"kapt\")\n  id(\"com.android.library\")\n}\n"
	parsed := Parse(text, true)

	comparators, err := CompileComparators(DefaultPluginComparators)
	require.NoError(t, err)

	sorted, ok := SortedContent(text, parsed.Plugins, comparators, false)
	require.True(t, ok)
	assert.Equal(t, "\n  id(\"com.android.library\")\n  kotlin(\"kapt\")\n", sorted)
}

func TestSortedContent_KeepsAttachedComments(t *testing.T) {
	text := "dependencies {\n  // networking\n  implementation(project(\":net\"))\n  api(project(\":core\"))\n}\n"
	block := Parse(text, true).LastDependenciesBlock()
	comparators, err := CompileComparators(DefaultDependencyComparators)
	require.NoError(t, err)

	sorted, ok := SortedContent(text, block, comparators, true)
	require.True(t, ok)
	assert.Equal(t, "\n  api(project(\":core\"))\n\n  // networking\n  implementation(project(\":net\"))\n", sorted)
}

func TestSortedContent_UnplaceableText(t *testing.T) {
	text := "dependencies {\n  api(project(\":core\"))\n\n  // trailing note\n}\n"
	block := Parse(text, true).LastDependenciesBlock()
	comparators, err := CompileComparators(DefaultDependencyComparators)
	require.NoError(t, err)

	_, ok := SortedContent(text, block, comparators, true)
	assert.False(t, ok)
	assert.True(t, IsSorted(text, block, comparators, true))
}

func TestCompileComparators_Invalid(t *testing.T) {
	_, err := CompileComparators([]string{"("})
	assert.Error(t, err)
}
