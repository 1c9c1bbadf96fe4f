package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace_Graph(t *testing.T) {
	core := NewModule(":core", "/ws/core", nil)
	app := NewModule(":app", "/ws/app", nil)
	app.Dependencies.Add(ProjectDependency("implementation", ":core", false))
	app.Dependencies.Add(ProjectDependency("testImplementation", ":core", true))
	app.Dependencies.Add(Dependency{Configuration: "implementation", Coordinates: "g:a"})

	ws := NewWorkspace("/ws", core, app)
	assert.Equal(t, 2, ws.Len())

	graph := ws.Graph()
	assert.Equal(t, []string{":app", ":core"}, graph.Modules())
	assert.Len(t, graph.GetDependencies(":app"), 2)

	depths, err := graph.Depths()
	require.NoError(t, err)
	assert.Equal(t, 1, depths[":app"])

	dependents := ws.Dependents(":core")
	require.Len(t, dependents, 1)
	assert.Equal(t, ":app", dependents[0].Path)
	assert.NoError(t, ws.Validate())
}
