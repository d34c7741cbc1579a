package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howell-aikit/ideaforge/internal/gateway"
	"github.com/howell-aikit/ideaforge/internal/normalize"
	"github.com/howell-aikit/ideaforge/internal/project"
	"github.com/howell-aikit/ideaforge/internal/prompt"
	"github.com/howell-aikit/ideaforge/internal/template"
)

// scriptedGateway replays queued replies in order; fn overrides the
// script when set
type scriptedGateway struct {
	mu      sync.Mutex
	replies []string
	prompts []string
	fn      func(prompt string) (string, error)
}

func (g *scriptedGateway) Send(ctx context.Context, p string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	if g.fn != nil {
		return g.fn(p)
	}
	if len(g.replies) == 0 {
		return "", &gateway.TransportError{Op: "scripted", Err: fmt.Errorf("script exhausted")}
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	return reply, nil
}

// scriptedConversation replays queued user answers
type scriptedConversation struct {
	answers   []string
	questions [][]string
}

func (c *scriptedConversation) NextInput(ctx context.Context, questions []string) (string, error) {
	c.questions = append(c.questions, questions)
	if len(c.answers) == 0 {
		return "", fmt.Errorf("no scripted answer left")
	}
	answer := c.answers[0]
	c.answers = c.answers[1:]
	return answer, nil
}

func newTestEngine(t *testing.T, gw gateway.Gateway, convo Conversation, opts Options) (*Engine, *project.Store) {
	t.Helper()
	store, err := project.NewStore(t.TempDir(), time.Second)
	require.NoError(t, err)
	return newTestEngineWithStore(t, gw, convo, opts, store), store
}

func newTestEngineWithStore(t *testing.T, gw gateway.Gateway, convo Conversation, opts Options, store *project.Store) *Engine {
	t.Helper()
	tstore, err := template.Load("")
	require.NoError(t, err)
	renderer := template.NewRenderer(tstore)

	assembler := prompt.NewAssembler(tstore, renderer, nil)
	dispatcher := prompt.NewDispatcher(renderer, gw, nil)
	normalizer := normalize.New(renderer, gw, nil)

	return New(assembler, dispatcher, normalizer, gw, store, convo, opts, nil)
}

const (
	reqParsedJSON = `{"summary":"a todo app","features":["add","list"],"target_users":["individuals"],"status":"Parsed"}`
	archJSON      = `{"architecture_document":{"components":["api","store"],"storage":"single file"},"technology_stack":["Go","SQLite"]}`
	testJSON      = `{"status":"passed","summary":"all good","bugs_found":[],"suggested_fixes":[]}`

	codeReply = "--- File: main.go ---\n```go\npackage main\n```\n--- End File ---\n\n" +
		"--- File: store/db.go ---\n```go\npackage store\n```\n--- End File ---"

	deployReply = "--- File: Dockerfile ---\n```\nFROM golang:1.22\n```\n--- End File ---\n\n" +
		"--- File: README.md ---\n```\n# Todo App\n```\n--- End File ---"
)

func happyPathScript() []string {
	return []string{
		"free-form requirements analysis", // requirements main
		reqParsedJSON,                     // parse round trip
		"free-form architecture design",   // architecture main
		archJSON,                          // parse round trip
		codeReply,                         // code generation main (local extraction)
		"free-form test review",           // testing main
		testJSON,                          // parse round trip
		deployReply,                       // deployment main (local extraction)
	}
}

func TestRunHappyPath(t *testing.T) {
	gw := &scriptedGateway{replies: happyPathScript()}
	eng, store := newTestEngine(t, gw, &scriptedConversation{}, Options{})

	pctx, err := store.Create("build a todo app", nil)
	require.NoError(t, err)

	require.NoError(t, eng.Run(context.Background(), pctx))

	assert.Equal(t, project.PhaseDone, pctx.CurrentPhase)
	assert.Equal(t, "a todo app", pctx.RefinedRequirements["summary"])
	assert.Equal(t, []string{"Go", "SQLite"}, pctx.TechnologyStack)
	assert.Equal(t, "package main", pctx.GeneratedCode["main.go"])
	assert.Equal(t, "package store", pctx.GeneratedCode["store/db.go"])
	require.NotNil(t, pctx.TestResults)
	assert.Equal(t, "passed", pctx.TestResults.Status)
	assert.Equal(t, "FROM golang:1.22", pctx.DeploymentArtifacts["Dockerfile"])

	require.Len(t, pctx.PhaseHistory, 5)
	for i, phase := range project.Sequence {
		assert.Equal(t, phase, pctx.PhaseHistory[i].Phase)
		assert.Equal(t, project.RecordSucceeded, pctx.PhaseHistory[i].Status)
		assert.Zero(t, pctx.PhaseHistory[i].Retries)
	}

	// Exactly two round trips per JSON phase, one per code phase
	assert.Len(t, gw.prompts, 8)

	// Each phase prompt was assembled from the previous phase's applied
	// output, not from anything earlier or later
	assert.Contains(t, gw.prompts[2], "a todo app", "architecture prompt embeds parsed requirements")
	assert.Contains(t, gw.prompts[4], "SQLite", "code prompt embeds the applied technology stack")
	assert.Contains(t, gw.prompts[5], "package main", "testing prompt embeds the generated codebase")

	// The run was persisted in its final state
	loaded, err := store.Load(pctx.ID)
	require.NoError(t, err)
	assert.Equal(t, project.PhaseDone, loaded.CurrentPhase)
}

func TestRunConversationalRequirements(t *testing.T) {
	needsInput := `{"summary":"too vague","status":"NeedsUserInput","open_questions":["Web or mobile?"]}`
	script := append([]string{
		"vague analysis",           // requirements main
		needsInput,                 // parse: needs input
		"refined with the answer",  // ProcessUserResponse
		reqParsedJSON,              // parse: converged
	}, happyPathScript()[2:]...)

	gw := &scriptedGateway{replies: script}
	convo := &scriptedConversation{answers: []string{"A web app for individuals"}}
	eng, store := newTestEngine(t, gw, convo, Options{})

	pctx, err := store.Create("make something with todos", nil)
	require.NoError(t, err)

	require.NoError(t, eng.Run(context.Background(), pctx))

	assert.Equal(t, project.PhaseDone, pctx.CurrentPhase)
	assert.Equal(t, "a todo app", pctx.RefinedRequirements["summary"])

	// The user saw the open questions from the previous record
	require.Len(t, convo.questions, 1)
	assert.Equal(t, []string{"Web or mobile?"}, convo.questions[0])

	// The refine prompt carried the previous normalized record, not raw text
	refinePrompt := gw.prompts[2]
	assert.Contains(t, refinePrompt, "too vague")
	assert.Contains(t, refinePrompt, "A web app for individuals")
	assert.NotContains(t, refinePrompt, "vague analysis")

	assert.Equal(t, 1, pctx.PhaseHistory[0].UserRounds)
}

func TestRunRetriesMalformedThenSucceeds(t *testing.T) {
	script := []string{
		"analysis", "not json at all", // attempt 1: malformed parse
		"analysis", "still not json", // attempt 2: malformed parse
		"analysis", reqParsedJSON, // attempt 3: parsed
		// Script ends: architecture aborts on transport
	}
	gw := &scriptedGateway{replies: script}
	eng, store := newTestEngine(t, gw, &scriptedConversation{}, Options{MaxAttempts: 3})

	pctx, err := store.Create("idea", nil)
	require.NoError(t, err)

	err = eng.Run(context.Background(), pctx)
	var abortErr *AbortError
	require.True(t, errors.As(err, &abortErr))
	assert.Equal(t, project.PhaseArchitecture, abortErr.Abort.Phase)
	assert.Equal(t, project.AbortTransport, abortErr.Abort.Kind)

	// Requirements survived the retries and applied exactly once
	assert.Equal(t, "a todo app", pctx.RefinedRequirements["summary"])
	assert.Equal(t, project.RecordSucceeded, pctx.PhaseHistory[0].Status)
	assert.Equal(t, 2, pctx.PhaseHistory[0].Retries)
}

func TestRunAbortsAfterMalformedExhaustion(t *testing.T) {
	script := []string{
		"analysis", "garbage",
		"analysis", "garbage",
	}
	gw := &scriptedGateway{replies: script}
	eng, store := newTestEngine(t, gw, &scriptedConversation{}, Options{MaxAttempts: 2})

	pctx, err := store.Create("idea", nil)
	require.NoError(t, err)

	err = eng.Run(context.Background(), pctx)
	var abortErr *AbortError
	require.True(t, errors.As(err, &abortErr))
	assert.Equal(t, project.AbortMalformed, abortErr.Abort.Kind)
	assert.Equal(t, project.PhaseRequirements, abortErr.Abort.Phase)

	// No partial state leaked from rejected replies
	assert.Nil(t, pctx.RefinedRequirements)
	assert.Equal(t, project.PhaseAborted, pctx.CurrentPhase)

	loaded, err := store.Load(pctx.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Abort)
	assert.Equal(t, project.AbortMalformed, loaded.Abort.Kind)
}

func TestRunAbortsOnContentError(t *testing.T) {
	script := []string{
		"analysis",
		`{"error":"the request is self-contradictory"}`,
	}
	gw := &scriptedGateway{replies: script}
	eng, store := newTestEngine(t, gw, &scriptedConversation{}, Options{MaxAttempts: 3})

	pctx, err := store.Create("idea", nil)
	require.NoError(t, err)

	err = eng.Run(context.Background(), pctx)
	var abortErr *AbortError
	require.True(t, errors.As(err, &abortErr))
	assert.Equal(t, project.AbortContent, abortErr.Abort.Kind)
	assert.Contains(t, abortErr.Abort.Reason, "self-contradictory")

	// Content errors abort immediately, no retries
	assert.Len(t, gw.prompts, 2)
}

func TestRunAbortsOnConvergenceFailure(t *testing.T) {
	needsInput := `{"summary":"still vague","status":"NeedsUserInput","open_questions":["?"]}`
	script := []string{
		"analysis", needsInput,
		"refined once", needsInput,
		"refined twice", needsInput,
	}
	gw := &scriptedGateway{replies: script}
	convo := &scriptedConversation{answers: []string{"answer one", "answer two"}}
	eng, store := newTestEngine(t, gw, convo, Options{MaxUserRounds: 2})

	pctx, err := store.Create("idea", nil)
	require.NoError(t, err)

	err = eng.Run(context.Background(), pctx)
	var abortErr *AbortError
	require.True(t, errors.As(err, &abortErr))
	assert.Equal(t, project.AbortConvergence, abortErr.Abort.Kind)
	assert.Len(t, convo.questions, 2)
}

func TestRunPreconditionViolation(t *testing.T) {
	gw := &scriptedGateway{}
	eng, store := newTestEngine(t, gw, &scriptedConversation{}, Options{})

	pctx, err := store.Create("idea", nil)
	require.NoError(t, err)
	pctx.CurrentPhase = project.PhaseArchitecture // no requirements applied

	err = eng.Run(context.Background(), pctx)
	var abortErr *AbortError
	require.True(t, errors.As(err, &abortErr))
	assert.Equal(t, project.AbortPrecondition, abortErr.Abort.Kind)
	assert.Empty(t, gw.prompts, "a failed precondition must not reach the gateway")
}

func TestRunRefusesAbortedProject(t *testing.T) {
	eng, store := newTestEngine(t, &scriptedGateway{}, &scriptedConversation{}, Options{})

	pctx, err := store.Create("idea", nil)
	require.NoError(t, err)
	pctx.MarkAborted(project.Abort{Phase: project.PhaseRequirements, Kind: project.AbortContent, Reason: "x"})

	err = eng.Run(context.Background(), pctx)
	require.Error(t, err)
	var abortErr *AbortError
	assert.False(t, errors.As(err, &abortErr), "an already-aborted project is a plain error, not a new abort")
}

func TestRunResumesAfterCancellation(t *testing.T) {
	// First run: requirements succeeds, then the run is cancelled
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	gw := &scriptedGateway{}
	gw.fn = func(p string) (string, error) {
		calls++
		switch calls {
		case 1:
			return "analysis", nil
		case 2:
			return reqParsedJSON, nil
		}
		cancel()
		return "", &gateway.TransportError{Op: "net", Err: context.Canceled}
	}
	eng, store := newTestEngine(t, gw, &scriptedConversation{}, Options{})

	pctx, err := store.Create("build a todo app", nil)
	require.NoError(t, err)

	err = eng.Run(ctx, pctx)
	require.ErrorIs(t, err, context.Canceled)

	// Cancellation leaves the last fully-applied state, no abort record
	loaded, err := store.Load(pctx.ID)
	require.NoError(t, err)
	assert.Equal(t, project.PhaseArchitecture, loaded.CurrentPhase)
	assert.False(t, loaded.Aborted())
	assert.Equal(t, "a todo app", loaded.RefinedRequirements["summary"])

	// Second run picks up at architecture and finishes the pipeline
	gw2 := &scriptedGateway{replies: happyPathScript()[2:]}
	eng2 := newTestEngineWithStore(t, gw2, &scriptedConversation{}, Options{}, store)

	require.NoError(t, eng2.Run(context.Background(), loaded))
	assert.Equal(t, project.PhaseDone, loaded.CurrentPhase)
	assert.Equal(t, "FROM golang:1.22", loaded.DeploymentArtifacts["Dockerfile"])
}
