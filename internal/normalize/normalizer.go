package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/howell-aikit/ideaforge/internal/gateway"
	"github.com/howell-aikit/ideaforge/internal/project"
	"github.com/howell-aikit/ideaforge/internal/template"
)

// Status classifies a normalized reply
type Status string

const (
	StatusParsed         Status = "parsed"
	StatusNeedsUserInput Status = "needs_user_input"
	StatusMalformed      Status = "malformed"
	StatusError          Status = "error"
)

// ContentError marks a reply the collaborator itself flagged as
// unanswerable. It is never retried.
type ContentError struct {
	Phase   project.Phase
	Message string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content error in phase %s: %s", e.Phase, e.Message)
}

// Result is the outcome of normalizing one raw reply
type Result struct {
	Status   Status
	Record   map[string]any    // validated record for JSON-bearing phases
	Files    map[string]string // extracted files for code-bearing phases
	Warnings []string
	Detail   string // malformed or error detail
	Raw      string // the text that was decoded
}

// Normalizer turns free-form LLM replies into validated structured
// results. JSON-bearing phases take a second round trip through a
// parse prompt; code-bearing phases are extracted locally.
type Normalizer struct {
	renderer *template.Renderer
	gw       gateway.Gateway
	log      *zap.Logger
}

// New creates a normalizer
func New(renderer *template.Renderer, gw gateway.Gateway, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{renderer: renderer, gw: gw, log: log}
}

// Normalize processes the raw reply for a phase. A non-nil error means
// the normalization machinery itself failed (template or transport);
// everything the collaborator got wrong is reported through the
// Result status instead.
func (n *Normalizer) Normalize(ctx context.Context, phase project.Phase, raw string) (*Result, error) {
	switch phase {
	case project.PhaseCodeGeneration, project.PhaseDeployment:
		return n.normalizeFiles(raw), nil
	}

	sc, ok := schemas[phase]
	if !ok {
		return nil, fmt.Errorf("no schema for phase %s", phase)
	}
	return n.normalizeRecord(ctx, phase, sc, raw)
}

// normalizeFiles extracts the file-marker wire format locally
func (n *Normalizer) normalizeFiles(raw string) *Result {
	files, warnings := ExtractFiles(raw)
	if len(files) == 0 {
		return &Result{
			Status: StatusMalformed,
			Detail: "no file blocks found in reply",
			Raw:    raw,
		}
	}
	for _, w := range warnings {
		n.log.Warn("parsing warning", zap.String("warning", w))
	}
	return &Result{Status: StatusParsed, Files: files, Warnings: warnings, Raw: raw}
}

// normalizeRecord runs the parse round trip and validates the decoded
// record against the phase schema
func (n *Normalizer) normalizeRecord(ctx context.Context, phase project.Phase, sc schema, raw string) (*Result, error) {
	parsePrompt, err := n.renderer.Render("sub:"+sc.parseTemplate, map[string]any{
		"raw_text": raw,
	})
	if err != nil {
		return nil, fmt.Errorf("parse prompt for %s: %w", phase, err)
	}

	reply, err := n.gw.Send(ctx, parsePrompt)
	if err != nil {
		return nil, fmt.Errorf("parse round trip for %s: %w", phase, err)
	}

	rec, err := DecodeRecord(reply)
	if err != nil {
		n.log.Warn("malformed parser reply",
			zap.String("phase", string(phase)),
			zap.Error(err))
		return &Result{Status: StatusMalformed, Detail: err.Error(), Raw: reply}, nil
	}

	res := validate(phase, sc, rec)
	res.Raw = reply
	return res, nil
}

// DecodeRecord strips code fences and decodes the outermost JSON
// object in a parser reply
func DecodeRecord(reply string) (map[string]any, error) {
	text := stripFence(reply)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return rec, nil
}
