package descriptor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build.gradle.kts")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestFile_Replace(t *testing.T) {
	ctx := context.Background()
	path := writeDescriptor(t, "dependencies {\n  api(project(\":core\"))\n}\n")

	f := NewFile(nil, path)
	assert.True(t, f.IsKotlin())
	assert.Equal(t, filepath.Dir(path), f.Dir())

	require.NoError(t, f.Replace(ctx, `api(project(":core"))`, `implementation(project(":core"))`))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dependencies {\n  implementation(project(\":core\"))\n}\n", string(data))

	text, err := f.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(data), text)
	assert.Equal(t, 0, f.ExternalChanges())
}

func TestFile_ReplaceMissing(t *testing.T) {
	ctx := context.Background()
	path := writeDescriptor(t, "dependencies {\n}\n")

	f := NewFile(nil, path)
	err := f.Replace(ctx, `api(project(":core"))`, "")
	assert.ErrorIs(t, err, ErrStatementNotFound)

	err = f.Replace(ctx, "", "x")
	assert.ErrorIs(t, err, ErrStatementNotFound)
}

func TestFile_ExternalModification(t *testing.T) {
	ctx := context.Background()
	path := writeDescriptor(t, "dependencies {\n  api(project(\":core\"))\n}\n")

	f := NewFile(nil, path)
	_, err := f.Text(ctx)
	require.NoError(t, err)

	// another writer rewrites the statement before we get to it
	require.NoError(t, os.WriteFile(path, []byte("dependencies {\n  api(project(\":other\"))\n}\n"), 0o644))

	err = f.Replace(ctx, `api(project(":core"))`, "")
	assert.ErrorIs(t, err, ErrStatementNotFound)
	assert.Equal(t, 1, f.ExternalChanges())

	text, err := f.Text(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, ":other")
}

func TestFile_Append(t *testing.T) {
	ctx := context.Background()
	path := writeDescriptor(t, "plugins {\n}\n")

	f := NewFile(nil, path)
	require.NoError(t, f.Append(ctx, "\ndependencies {\n  api(project(\":core\"))\n}\n"))

	parsed, err := f.Parse(ctx)
	require.NoError(t, err)
	require.Len(t, parsed.Statements(), 1)
	assert.Equal(t, ":core", parsed.Statements()[0].ProjectPath)
}
