package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howell-aikit/ideaforge/internal/gateway"
	"github.com/howell-aikit/ideaforge/internal/project"
)

func refinableProject(t *testing.T, store *project.Store) *project.Context {
	t.Helper()
	pctx, err := store.Create("idea", nil)
	require.NoError(t, err)
	require.NoError(t, pctx.SetFile("handlers.go", "package api // original handlers"))
	require.NoError(t, pctx.SetFile("db.go", "package api // original db"))
	require.NoError(t, store.Save(pctx))
	return pctx
}

func TestRefineFilesReplacesOnlyTargets(t *testing.T) {
	gw := &scriptedGateway{}
	gw.fn = func(p string) (string, error) {
		if strings.Contains(p, "handlers.go") {
			return "```go\npackage api // hardened handlers\n```", nil
		}
		return "", fmt.Errorf("unexpected prompt")
	}
	eng, store := newTestEngine(t, gw, &scriptedConversation{}, Options{})
	pctx := refinableProject(t, store)

	err := eng.RefineFiles(context.Background(), pctx, "AddErrorHandling", []string{"handlers.go"})
	require.NoError(t, err)

	// The targeted entry was replaced wholesale
	assert.Equal(t, "package api // hardened handlers", pctx.GeneratedCode["handlers.go"])
	// Untouched entries are preserved exactly
	assert.Equal(t, "package api // original db", pctx.GeneratedCode["db.go"])

	// The sub-injection saw the previous content and the path
	require.NotEmpty(t, gw.prompts)
	assert.Contains(t, gw.prompts[0], "original handlers")

	loaded, err := store.Load(pctx.ID)
	require.NoError(t, err)
	assert.Equal(t, "package api // hardened handlers", loaded.GeneratedCode["handlers.go"])
}

func TestRefineFilesConcurrentBatch(t *testing.T) {
	gw := &scriptedGateway{}
	gw.fn = func(p string) (string, error) {
		switch {
		case strings.Contains(p, "handlers.go"):
			return "```go\nrefined handlers\n```", nil
		case strings.Contains(p, "db.go"):
			return "```go\nrefined db\n```", nil
		}
		return "", fmt.Errorf("unexpected prompt")
	}
	eng, store := newTestEngine(t, gw, &scriptedConversation{}, Options{RefineConcurrency: 2})
	pctx := refinableProject(t, store)

	err := eng.RefineFiles(context.Background(), pctx, "RefactorCode", []string{"handlers.go", "db.go"})
	require.NoError(t, err)

	assert.Equal(t, "refined handlers", pctx.GeneratedCode["handlers.go"])
	assert.Equal(t, "refined db", pctx.GeneratedCode["db.go"])
}

func TestRefineFilesFailedBatchChangesNothing(t *testing.T) {
	gw := &scriptedGateway{}
	gw.fn = func(p string) (string, error) {
		if strings.Contains(p, "handlers.go") {
			return "```go\nrefined handlers\n```", nil
		}
		return "", &gateway.TransportError{Op: "net", Err: fmt.Errorf("down")}
	}
	eng, store := newTestEngine(t, gw, &scriptedConversation{}, Options{})
	pctx := refinableProject(t, store)

	err := eng.RefineFiles(context.Background(), pctx, "OptimizeCode", []string{"handlers.go", "db.go"})
	require.Error(t, err)

	// Application is all-or-nothing
	assert.Equal(t, "package api // original handlers", pctx.GeneratedCode["handlers.go"])
	assert.Equal(t, "package api // original db", pctx.GeneratedCode["db.go"])
}

func TestRefineFilesUnknownPath(t *testing.T) {
	eng, store := newTestEngine(t, &scriptedGateway{}, &scriptedConversation{}, Options{})
	pctx := refinableProject(t, store)

	err := eng.RefineFiles(context.Background(), pctx, "RefactorCode", []string{"missing.go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.go")
}

func TestRefineFilesEmptyBatch(t *testing.T) {
	eng, store := newTestEngine(t, &scriptedGateway{}, &scriptedConversation{}, Options{})
	pctx := refinableProject(t, store)

	require.NoError(t, eng.RefineFiles(context.Background(), pctx, "RefactorCode", nil))
}

func TestLanguageFor(t *testing.T) {
	assert.Equal(t, "Go", languageFor("cmd/app/main.go"))
	assert.Equal(t, "Python", languageFor("script.py"))
	assert.Equal(t, "YAML", languageFor("ci.yml"))
	assert.Equal(t, "plain text", languageFor("Dockerfile"))
}
