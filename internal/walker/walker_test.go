package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, root string, maxSize int64) []string {
	t.Helper()
	files, errs := Walk(root, maxSize)
	var paths []string
	for f := range files {
		paths = append(paths, f.RelPath)
	}
	require.NoError(t, <-errs)
	return paths
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkFindsSourceFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.go", "package main\n")
	write(t, root, "lib/util.py", "x = 1\n")
	write(t, root, "readme.rst", "not a known language\n")

	paths := collect(t, root, 1_000_000)
	assert.ElementsMatch(t, []string{"main.go", "lib/util.py"}, paths)
}

func TestWalkSkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	write(t, root, "app.py", "x\n")
	write(t, root, "node_modules/dep/index.js", "x\n")
	write(t, root, ".git/hooks/pre-commit.sh", "x\n")
	write(t, root, "venv/lib/site.py", "x\n")

	paths := collect(t, root, 1_000_000)
	assert.ElementsMatch(t, []string{"app.py"}, paths)
}

func TestWalkSkipsOversizedAndEmptyFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "small.go", "package p\n")
	write(t, root, "empty.go", "")
	write(t, root, "big.go", string(make([]byte, 200)))

	paths := collect(t, root, 100)
	assert.ElementsMatch(t, []string{"small.go"}, paths)
}

func TestWalkCreatesDefaultIgnoreFile(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.go", "package a\n")

	collect(t, root, 1_000_000)

	data, err := os.ReadFile(filepath.Join(root, ".repopilotignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "node_modules")
}

func TestWalkHonorsCustomIgnoreFile(t *testing.T) {
	root := t.TempDir()
	write(t, root, ".repopilotignore", "generated\n")
	write(t, root, "keep.go", "package k\n")
	write(t, root, "generated/out.go", "package g\n")

	paths := collect(t, root, 1_000_000)
	assert.ElementsMatch(t, []string{"keep.go"}, paths)
}
