package project

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
)

func TestDependency_Key(t *testing.T) {
	a := ProjectDependency("api", ":core", false)
	b := ProjectDependency("api", ":core", true)
	c := ProjectDependency("implementation", ":core", false)

	assert.NotEqual(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, a.Key(), a.WithConfiguration("api").Key())
	assert.Equal(t, `api(testFixtures(:core))`, b.String())
}

func TestDependencySet(t *testing.T) {
	core := ProjectDependency("api", ":core", false)
	net := ProjectDependency("implementation", ":net", false)
	okio := Dependency{Configuration: "implementation", Coordinates: "com.squareup.okio:okio"}
	testCore := ProjectDependency("testImplementation", ":core", false)

	set := NewDependencySet(core, net, okio, core)
	assert.Equal(t, 3, set.Len())
	assert.False(t, set.Add(net))
	assert.True(t, set.Add(testCore))

	assert.Equal(t, []Dependency{core, net, okio, testCore}, set.All())
	assert.Equal(t, []Dependency{net, okio}, set.InConfiguration("implementation"))
	assert.Equal(t, []Dependency{testCore}, set.InSourceSet(Test))
	assert.Equal(t, []string{":core", ":net"}, set.Targets())

	assert.True(t, set.Remove(net))
	assert.False(t, set.Remove(net))
	assert.False(t, set.Contains(net))
	assert.True(t, set.Contains(okio))
	assert.Equal(t, []Dependency{core, okio, testCore}, set.All())

	// index stays consistent after removal
	assert.True(t, set.Remove(testCore))
	assert.Equal(t, []Dependency{core, okio}, set.All())
}

func TestFromStatement(t *testing.T) {
	stmts := descriptor.Parse("dependencies {\n  testImplementation(testFixtures(project(\":core\")))\n  implementation(\"g:a:1.0\")\n}\n", true).Statements()

	fixtures := FromStatement(stmts[0])
	assert.Equal(t, ProjectDependency("testImplementation", ":core", true), fixtures)
	assert.True(t, fixtures.Matches(stmts[0]))
	assert.False(t, ProjectDependency("testImplementation", ":core", false).Matches(stmts[0]))

	external := FromStatement(stmts[1])
	assert.Equal(t, "g:a", external.Identifier())
	assert.Equal(t, "1.0", external.Version)
}
