package prompt

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/howell-aikit/ideaforge/internal/project"
	"github.com/howell-aikit/ideaforge/internal/template"
)

// Assembler builds the final prompt for a phase: the phase's base
// template, wrapped by every matching functional wrapper in
// configuration order, with the tone wrapper outermost.
type Assembler struct {
	store    *template.Store
	renderer *template.Renderer
	log      *zap.Logger
}

// NewAssembler creates an assembler over the given template store
func NewAssembler(store *template.Store, renderer *template.Renderer, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{store: store, renderer: renderer, log: log}
}

// Assemble renders the full prompt for phase against the project
// context. Wrapper composition is not commutative: each wrapper
// re-renders with the running prompt bound to core_prompt, so the
// configuration order is the application order.
func (a *Assembler) Assemble(phase project.Phase, pctx *project.Context) (string, error) {
	scope := baseScope(phase, pctx)

	prompt, err := a.renderer.Render("main:"+string(phase), scope)
	if err != nil {
		return "", fmt.Errorf("base prompt for %s: %w", phase, err)
	}

	selected := make(map[string]bool, len(pctx.SelectedWrappers))
	for _, name := range pctx.SelectedWrappers {
		selected[name] = true
	}

	for _, w := range a.store.Wrappers() {
		if !w.AppliesTo(string(phase)) || !selected[w.Name] {
			continue
		}
		wrapScope := cloneScope(scope)
		wrapScope["core_prompt"] = prompt
		prompt, err = a.renderer.Render("wrapper:"+w.Name, wrapScope)
		if err != nil {
			return "", fmt.Errorf("wrapper %s for %s: %w", w.Name, phase, err)
		}
		a.log.Debug("applied wrapper", zap.String("wrapper", w.Name), zap.String("phase", string(phase)))
	}

	if tone := a.store.Tone(); tone != nil {
		toneScope := cloneScope(scope)
		toneScope["core_prompt"] = prompt
		toneScope["phase_title"] = phase.Title()
		toneScope["llm_role"] = roleFor(phase)
		prompt, err = a.renderer.Render("wrapper:"+tone.Name, toneScope)
		if err != nil {
			return "", fmt.Errorf("tone wrapper for %s: %w", phase, err)
		}
	}

	return prompt, nil
}

// baseScope is the variable scope every phase template renders against
func baseScope(phase project.Phase, pctx *project.Context) map[string]any {
	return map[string]any{
		"ctx":                pctx,
		"current_phase_name": string(phase),
		"initial_request":    pctx.InitialRequest,
	}
}

func cloneScope(scope map[string]any) map[string]any {
	out := make(map[string]any, len(scope)+3)
	for k, v := range scope {
		out[k] = v
	}
	return out
}

// roleFor names the professional role the tone wrapper casts the
// collaborator into for a phase
func roleFor(phase project.Phase) string {
	switch phase {
	case project.PhaseRequirements:
		return "Product Analyst"
	case project.PhaseArchitecture:
		return "System Architect"
	case project.PhaseCodeGeneration:
		return "Code Generation Lead"
	case project.PhaseTesting:
		return "Quality Assurance Lead"
	case project.PhaseDeployment:
		return "DevOps Engineer"
	}
	return "Project Specialist"
}
