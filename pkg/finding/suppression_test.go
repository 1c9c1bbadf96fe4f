package finding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/project"
)

func TestSuppressionsFromDescriptor(t *testing.T) {
	text := `plugins {
  //noinspection unused-kapt-plugin
  kotlin("kapt")
}

android {
  buildFeatures {
    @Suppress("disable-view-binding")
    viewBinding = true
  }
}

@Suppress("sort-dependencies")
dependencies {
  @Suppress("unusedDependency")
  api(project(":core"))
  implementation(project(":net"))
}
`
	s := SuppressionsFromDescriptor(descriptor.Parse(text, true))

	core := project.ProjectDependency("api", ":core", false)
	net := project.ProjectDependency("implementation", ":net", false)

	assert.True(t, s.IsSuppressed(DependencyKey(core), "unused-dependency"))
	assert.False(t, s.IsSuppressed(DependencyKey(net), "unused-dependency"))
	assert.True(t, s.IsSuppressed(DependencyKey(net), "sort-dependencies"))
	assert.True(t, s.IsSuppressed(BlockKey("dependencies"), "sort-dependencies"))
	assert.True(t, s.IsSuppressed(PluginKey("org.jetbrains.kotlin.kapt"), "unused-kapt-plugin"))
	assert.True(t, s.IsSuppressed(FeatureKey("viewBinding"), "disable-view-binding"))

	sortFinding := &Finding{Module: ":app", RuleID: "sort-dependencies", Kind: Sort, Block: "dependencies"}
	assert.True(t, s.Suppresses(sortFinding))
}

func TestCamelCase(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "unused-dependency", want: "unusedDependency"},
		{id: "disable-android-resources", want: "disableAndroidResources"},
		{id: "single", want: "single"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, CamelCase(tt.id))
		})
	}
}
