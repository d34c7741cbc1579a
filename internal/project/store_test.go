package project

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), time.Second)
	require.NoError(t, err)
	return store
}

func TestStoreCreateAndLoad(t *testing.T) {
	store := newTestStore(t)

	pctx, err := store.Create("build a todo app", []string{"PerformanceFocus"})
	require.NoError(t, err)

	loaded, err := store.Load(pctx.ID)
	require.NoError(t, err)
	assert.Equal(t, pctx.ID, loaded.ID)
	assert.Equal(t, "build a todo app", loaded.InitialRequest)
	assert.Equal(t, []string{"PerformanceFocus"}, loaded.SelectedWrappers)
	assert.Equal(t, PhaseRequirements, loaded.CurrentPhase)
}

func TestStoreRoundTripFidelity(t *testing.T) {
	store := newTestStore(t)

	pctx, err := store.Create("idea", nil)
	require.NoError(t, err)

	pctx.SetRequirements(map[string]any{"summary": "a thing", "features": []any{"one"}})
	pctx.SetArchitecture(map[string]any{"components": []any{"api"}}, []string{"Go"})
	require.NoError(t, pctx.SetFile("main.go", "package main"))
	pctx.SetTestReport(&TestReport{Status: "passed", Summary: "fine"})
	require.NoError(t, pctx.SetArtifact("Dockerfile", "FROM scratch"))
	pctx.AppendRecord(PhaseRecord{Phase: PhaseRequirements, Status: RecordSucceeded, Retries: 1})
	require.NoError(t, store.Save(pctx))

	loaded, err := store.Load(pctx.ID)
	require.NoError(t, err)
	assert.Equal(t, "a thing", loaded.RefinedRequirements["summary"])
	assert.Equal(t, []string{"Go"}, loaded.TechnologyStack)
	assert.Equal(t, "package main", loaded.GeneratedCode["main.go"])
	assert.Equal(t, "passed", loaded.TestResults.Status)
	assert.Equal(t, "FROM scratch", loaded.DeploymentArtifacts["Dockerfile"])
	require.Len(t, loaded.PhaseHistory, 1)
	assert.Equal(t, 1, loaded.PhaseHistory[0].Retries)
}

func TestStoreCurrentPointer(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Create("first", nil)
	require.NoError(t, err)
	second, err := store.Create("second", nil)
	require.NoError(t, err)

	// Creation moves the current pointer
	id, err := store.CurrentID()
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)

	require.NoError(t, store.SetCurrent(first.ID))
	current, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)

	require.NoError(t, store.ClearCurrent())
	current, err = store.Current()
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("one", nil)
	require.NoError(t, err)
	_, err = store.Create("two", nil)
	require.NoError(t, err)

	projects, err := store.List()
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)

	pctx, err := store.Create("doomed", nil)
	require.NoError(t, err)

	require.NoError(t, store.Delete(pctx.ID))
	_, err = store.Load(pctx.ID)
	assert.Error(t, err)

	id, err := store.CurrentID()
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("nope1234")
	assert.Error(t, err)
}
