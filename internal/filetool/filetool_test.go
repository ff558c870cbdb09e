package filetool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditor_WriteAndReadFile(t *testing.T) {
	e := NewEditor(t.TempDir())

	_, err := e.WriteFile("a.txt", []string{"one", "two", "three"})
	require.NoError(t, err)

	lines, err := e.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestEditor_ReadLinesClampsRange(t *testing.T) {
	e := NewEditor(t.TempDir())
	_, err := e.WriteFile("a.txt", []string{"l1", "l2", "l3", "l4"})
	require.NoError(t, err)

	lines, err := e.ReadLines("a.txt", 2, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"l2", "l3", "l4"}, lines)

	lines, err = e.ReadLines("a.txt", 10, 20)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestEditor_EditLinesReplacesRange(t *testing.T) {
	e := NewEditor(t.TempDir())
	_, err := e.WriteFile("a.txt", []string{"l1", "l2", "l3", "l4"})
	require.NoError(t, err)

	res, err := e.EditLines("a.txt", 2, 3, []string{"new2", "new3", "new3b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"l2", "l3"}, res.OldContent)

	lines, err := e.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "new2", "new3", "new3b", "l4"}, lines)
}

func TestEditor_InsertLinesAfter(t *testing.T) {
	e := NewEditor(t.TempDir())
	_, err := e.WriteFile("a.txt", []string{"l1", "l2"})
	require.NoError(t, err)

	_, err = e.InsertLines("a.txt", 1, []string{"inserted"})
	require.NoError(t, err)

	lines, err := e.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "inserted", "l2"}, lines)
}

func TestEditor_InsertLinesCreatesMissingFile(t *testing.T) {
	e := NewEditor(t.TempDir())

	_, err := e.InsertLines("new.txt", 0, []string{"hello"})
	require.NoError(t, err)

	lines, err := e.ReadFile("new.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, lines)
}

func TestEditor_DeleteLinesRemovesRange(t *testing.T) {
	e := NewEditor(t.TempDir())
	_, err := e.WriteFile("a.txt", []string{"l1", "l2", "l3", "l4"})
	require.NoError(t, err)

	res, err := e.DeleteLines("a.txt", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"l2", "l3"}, res.OldContent)

	lines, err := e.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l4"}, lines)
}

func TestEditor_FileExists(t *testing.T) {
	e := NewEditor(t.TempDir())
	assert.False(t, e.FileExists("missing.txt"))

	_, err := e.WriteFile("present.txt", []string{"x"})
	require.NoError(t, err)
	assert.True(t, e.FileExists("present.txt"))
}

func TestEditor_WriteFileCreatesNestedDirs(t *testing.T) {
	dir := t.TempDir()
	e := NewEditor(dir)

	_, err := e.WriteFile(filepath.Join("nested", "dir", "f.txt"), []string{"x"})
	require.NoError(t, err)
	assert.True(t, e.FileExists(filepath.Join("nested", "dir", "f.txt")))
}
