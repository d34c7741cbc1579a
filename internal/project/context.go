package project

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Phase identifies a pipeline stage
type Phase string

const (
	PhaseRequirements   Phase = "requirements"
	PhaseArchitecture   Phase = "architecture"
	PhaseCodeGeneration Phase = "code_generation"
	PhaseTesting        Phase = "testing"
	PhaseDeployment     Phase = "deployment"
	PhaseDone           Phase = "done"
	PhaseAborted        Phase = "aborted"
)

// Sequence is the fixed forward ordering of working phases
var Sequence = []Phase{
	PhaseRequirements,
	PhaseArchitecture,
	PhaseCodeGeneration,
	PhaseTesting,
	PhaseDeployment,
}

// Next returns the phase after p, or PhaseDone after the last working phase
func (p Phase) Next() Phase {
	for i, ph := range Sequence {
		if ph == p {
			if i == len(Sequence)-1 {
				return PhaseDone
			}
			return Sequence[i+1]
		}
	}
	return PhaseDone
}

// Terminal reports whether p is a terminal phase
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseAborted
}

// Title returns a human-readable phase name
func (p Phase) Title() string {
	switch p {
	case PhaseRequirements:
		return "Requirements Refinement"
	case PhaseArchitecture:
		return "Architecture Design"
	case PhaseCodeGeneration:
		return "Code Generation"
	case PhaseTesting:
		return "Testing"
	case PhaseDeployment:
		return "Deployment"
	case PhaseDone:
		return "Done"
	case PhaseAborted:
		return "Aborted"
	}
	return string(p)
}

// RecordStatus is the outcome recorded for a phase attempt
type RecordStatus string

const (
	RecordSucceeded RecordStatus = "succeeded"
	RecordFailed    RecordStatus = "failed"
)

// PhaseRecord captures one completed phase outcome. Immutable once appended.
type PhaseRecord struct {
	Phase       Phase          `json:"phase"`
	Status      RecordStatus   `json:"status"`
	RawOutput   string         `json:"raw_output"`
	Result      map[string]any `json:"result,omitempty"`
	Retries     int            `json:"retries"`
	UserRounds  int            `json:"user_rounds,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Abort records why a run stopped before completion
type Abort struct {
	Phase        Phase  `json:"phase"`
	Kind         string `json:"kind"`
	Reason       string `json:"reason"`
	LastResponse string `json:"last_response,omitempty"`
}

// Abort kinds
const (
	AbortContent      = "content_error"
	AbortMalformed    = "malformed_exhausted"
	AbortTransport    = "transport_exhausted"
	AbortTemplate     = "template_error"
	AbortConvergence  = "convergence_failure"
	AbortPrecondition = "precondition"
)

// TestReport holds the normalized outcome of the testing phase
type TestReport struct {
	Status         string            `json:"status"`
	Summary        string            `json:"summary"`
	BugsFound      []string          `json:"bugs_found,omitempty"`
	SuggestedFixes []string          `json:"suggested_fixes,omitempty"`
	GeneratedTests map[string]string `json:"generated_tests,omitempty"`
}

// Context is the shared project state every phase reads from and folds
// its results back into. The engine is its single writer.
type Context struct {
	ID                   string            `json:"id"`
	InitialRequest       string            `json:"initial_request"`
	RefinedRequirements  map[string]any    `json:"refined_requirements,omitempty"`
	ArchitectureDocument map[string]any    `json:"architecture_document,omitempty"`
	TechnologyStack      []string          `json:"technology_stack"`
	GeneratedCode        map[string]string `json:"generated_code"`
	TestResults          *TestReport       `json:"test_results,omitempty"`
	DeploymentArtifacts  map[string]string `json:"deployment_artifacts"`
	PhaseHistory         []PhaseRecord     `json:"phase_history"`
	CurrentPhase         Phase             `json:"current_phase"`
	SelectedWrappers     []string          `json:"selected_wrappers"`
	Abort                *Abort            `json:"abort,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`

	// CodeBudget caps FullCodebase output in characters. Zero means the
	// default budget.
	CodeBudget int `json:"-"`
}

const defaultCodeBudget = 10000

// New creates a fresh context positioned at the first phase
func New(initialRequest string, wrappers []string) *Context {
	now := time.Now()
	return &Context{
		ID:                  uuid.New().String()[:8],
		InitialRequest:      initialRequest,
		TechnologyStack:     []string{},
		GeneratedCode:       make(map[string]string),
		DeploymentArtifacts: make(map[string]string),
		SelectedWrappers:    wrappers,
		CurrentPhase:        PhaseRequirements,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// NormalizePath cleans a generated-file path into its canonical
// relative form. Absolute paths and paths escaping the tree are
// rejected.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("empty file path")
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("absolute file path %q not allowed", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("file path %q escapes the project tree", p)
	}
	return clean, nil
}

// SetRequirements replaces the refined requirements record
func (c *Context) SetRequirements(rec map[string]any) {
	c.RefinedRequirements = rec
	c.touch()
}

// SetArchitecture replaces the architecture document and technology stack
func (c *Context) SetArchitecture(doc map[string]any, stack []string) {
	c.ArchitectureDocument = doc
	if stack == nil {
		stack = []string{}
	}
	c.TechnologyStack = stack
	c.touch()
}

// SetFile stores one generated code file, replacing any prior content
// under the same normalized path
func (c *Context) SetFile(p, content string) error {
	clean, err := NormalizePath(p)
	if err != nil {
		return err
	}
	if c.GeneratedCode == nil {
		c.GeneratedCode = make(map[string]string)
	}
	c.GeneratedCode[clean] = content
	c.touch()
	return nil
}

// SetFiles stores a batch of generated code files
func (c *Context) SetFiles(files map[string]string) error {
	for p, content := range files {
		if err := c.SetFile(p, content); err != nil {
			return err
		}
	}
	return nil
}

// File returns the content of a generated file by normalized path
func (c *Context) File(p string) (string, bool) {
	clean, err := NormalizePath(p)
	if err != nil {
		return "", false
	}
	content, ok := c.GeneratedCode[clean]
	return content, ok
}

// SetTestReport stores the testing phase outcome
func (c *Context) SetTestReport(r *TestReport) {
	c.TestResults = r
	c.touch()
}

// SetArtifact stores one deployment artifact
func (c *Context) SetArtifact(p, content string) error {
	clean, err := NormalizePath(p)
	if err != nil {
		return err
	}
	if c.DeploymentArtifacts == nil {
		c.DeploymentArtifacts = make(map[string]string)
	}
	c.DeploymentArtifacts[clean] = content
	c.touch()
	return nil
}

// AppendRecord appends a phase record to the history
func (c *Context) AppendRecord(rec PhaseRecord) {
	c.PhaseHistory = append(c.PhaseHistory, rec)
	c.touch()
}

// Advance moves the current phase forward by exactly one step
func (c *Context) Advance(to Phase) error {
	if c.CurrentPhase.Terminal() {
		return fmt.Errorf("cannot advance from terminal phase %s", c.CurrentPhase)
	}
	if next := c.CurrentPhase.Next(); to != next {
		return fmt.Errorf("cannot advance from %s to %s (next is %s)", c.CurrentPhase, to, next)
	}
	c.CurrentPhase = to
	c.touch()
	return nil
}

// MarkAborted moves the context into the terminal aborted state
func (c *Context) MarkAborted(a Abort) {
	c.Abort = &a
	c.CurrentPhase = PhaseAborted
	c.touch()
}

// Aborted reports whether the run stopped with an abort record
func (c *Context) Aborted() bool {
	return c.Abort != nil
}

func (c *Context) touch() {
	c.UpdatedAt = time.Now()
}

// FullCodebase assembles all generated files into the file-marker wire
// format, in sorted path order, truncated to the code budget.
func (c *Context) FullCodebase() string {
	if len(c.GeneratedCode) == 0 {
		return "No code generated yet."
	}

	budget := c.CodeBudget
	if budget <= 0 {
		budget = defaultCodeBudget
	}

	paths := make([]string, 0, len(c.GeneratedCode))
	for p := range c.GeneratedCode {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var sb strings.Builder
	for i, p := range paths {
		block := fmt.Sprintf("--- File: %s ---\n%s\n--- End File ---\n\n", p, c.GeneratedCode[p])
		if sb.Len()+len(block) > budget {
			sb.WriteString(fmt.Sprintf("... [truncated, %d more files] ...\n", len(paths)-i))
			break
		}
		sb.WriteString(block)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FileList returns the generated file paths in sorted order
func (c *Context) FileList() []string {
	paths := make([]string, 0, len(c.GeneratedCode))
	for p := range c.GeneratedCode {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// RequirementsYAML renders the refined requirements as YAML for prompt
// embedding
func (c *Context) RequirementsYAML() string {
	if len(c.RefinedRequirements) == 0 {
		return "No requirements defined yet."
	}
	return toYAML(c.RefinedRequirements)
}

// ArchitectureYAML renders the architecture document as YAML for
// prompt embedding
func (c *Context) ArchitectureYAML() string {
	if len(c.ArchitectureDocument) == 0 {
		return "No architecture defined yet."
	}
	return toYAML(c.ArchitectureDocument)
}

// StackList renders the technology stack as a comma-separated list
func (c *Context) StackList() string {
	if len(c.TechnologyStack) == 0 {
		return "not specified"
	}
	return strings.Join(c.TechnologyStack, ", ")
}

func toYAML(v any) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("(unrenderable: %v)", err)
	}
	return strings.TrimRight(string(data), "\n")
}
