package prompt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/howell-aikit/ideaforge/internal/gateway"
	"github.com/howell-aikit/ideaforge/internal/template"
)

// Dispatcher renders narrowly scoped auxiliary prompts and sends them
// through the gateway. It is stateless: callers own applying the
// results to project state.
type Dispatcher struct {
	renderer *template.Renderer
	gw       gateway.Gateway
	log      *zap.Logger
}

// NewDispatcher creates a sub-injection dispatcher
func NewDispatcher(renderer *template.Renderer, gw gateway.Gateway, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{renderer: renderer, gw: gw, log: log}
}

// Invoke renders the named sub-injection template against vars and
// returns the raw gateway reply
func (d *Dispatcher) Invoke(ctx context.Context, specID string, vars map[string]any) (string, error) {
	prompt, err := d.renderer.Render("sub:"+specID, vars)
	if err != nil {
		return "", fmt.Errorf("sub-injection %s: %w", specID, err)
	}

	d.log.Debug("invoking sub-injection", zap.String("spec", specID))

	reply, err := d.gw.Send(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("sub-injection %s: %w", specID, err)
	}
	return reply, nil
}
