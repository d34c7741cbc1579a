package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howell-aikit/ideaforge/internal/project"
	"github.com/howell-aikit/ideaforge/pkg/git"
)

func exportableProject(t *testing.T) *project.Context {
	t.Helper()
	pctx := project.New("idea", nil)
	require.NoError(t, pctx.SetFile("cmd/app/main.go", "package main"))
	require.NoError(t, pctx.SetFile("store/db.go", "package store"))
	require.NoError(t, pctx.SetArtifact("Dockerfile", "FROM golang:1.22"))
	return pctx
}

func TestExportWritesTree(t *testing.T) {
	dir := t.TempDir()
	pctx := exportableProject(t)

	res, err := New(nil).Export(pctx, dir, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.FileCount)
	assert.Empty(t, res.CommitHash)

	data, err := os.ReadFile(filepath.Join(dir, "cmd", "app", "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "Dockerfile"))
	require.NoError(t, err)
	assert.Equal(t, "FROM golang:1.22", string(data))
}

func TestExportWithCommit(t *testing.T) {
	dir := t.TempDir()
	pctx := exportableProject(t)

	res, err := New(nil).Export(pctx, dir, true)
	require.NoError(t, err)
	assert.NotEmpty(t, res.CommitHash)
	assert.True(t, git.IsGitRepo(dir))

	repo, err := git.Open(dir)
	require.NoError(t, err)
	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty, "everything exported must be committed")
}

func TestExportEmptyProject(t *testing.T) {
	pctx := project.New("idea", nil)
	_, err := New(nil).Export(pctx, t.TempDir(), false)
	assert.Error(t, err)
}
