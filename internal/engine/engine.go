package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/howell-aikit/ideaforge/internal/gateway"
	"github.com/howell-aikit/ideaforge/internal/normalize"
	"github.com/howell-aikit/ideaforge/internal/project"
	"github.com/howell-aikit/ideaforge/internal/prompt"
	"github.com/howell-aikit/ideaforge/internal/template"
)

// Conversation supplies the stakeholder's answers when the
// requirements phase asks for them
type Conversation interface {
	// NextInput returns the user's next free-form reply given the
	// outstanding open questions
	NextInput(ctx context.Context, questions []string) (string, error)
}

// Options bound the engine's retry and interaction behavior
type Options struct {
	MaxAttempts       int // per-phase attempts before aborting
	MaxUserRounds     int // requirements sub-loop rounds
	RefineConcurrency int // parallel sub-injection invocations
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.MaxUserRounds <= 0 {
		o.MaxUserRounds = 5
	}
	if o.RefineConcurrency <= 0 {
		o.RefineConcurrency = 3
	}
	return o
}

// AbortError reports that a run stopped with an abort record
type AbortError struct {
	Abort project.Abort
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("run aborted in phase %s (%s): %s", e.Abort.Phase, e.Abort.Kind, e.Abort.Reason)
}

// ConvergenceError reports that the requirements sub-loop exhausted
// its rounds without producing a parsed record
type ConvergenceError struct {
	Rounds int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("requirements did not converge after %d user rounds", e.Rounds)
}

// Engine drives a project context through the phase sequence. It is
// the single writer of the context it runs.
type Engine struct {
	assembler  *prompt.Assembler
	dispatcher *prompt.Dispatcher
	normalizer *normalize.Normalizer
	gw         gateway.Gateway
	store      *project.Store
	convo      Conversation
	opts       Options
	log        *zap.Logger
}

// New creates an engine
func New(assembler *prompt.Assembler, dispatcher *prompt.Dispatcher, normalizer *normalize.Normalizer, gw gateway.Gateway, store *project.Store, convo Conversation, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		assembler:  assembler,
		dispatcher: dispatcher,
		normalizer: normalizer,
		gw:         gw,
		store:      store,
		convo:      convo,
		opts:       opts.withDefaults(),
		log:        log,
	}
}

// Run executes phases from the context's current position until the
// pipeline completes or aborts. Resuming a previously persisted
// context picks up exactly where it left off.
func (e *Engine) Run(ctx context.Context, pctx *project.Context) error {
	if pctx.Aborted() {
		return fmt.Errorf("project %s was aborted in phase %s", pctx.ID, pctx.Abort.Phase)
	}

	for !pctx.CurrentPhase.Terminal() {
		def, ok := phaseDefs[pctx.CurrentPhase]
		if !ok {
			return fmt.Errorf("no definition for phase %s", pctx.CurrentPhase)
		}

		if err := def.requires(pctx); err != nil {
			return e.abort(pctx, project.Abort{
				Phase:  def.id,
				Kind:   project.AbortPrecondition,
				Reason: err.Error(),
			})
		}

		if err := e.runPhase(ctx, pctx, def); err != nil {
			return err
		}
	}

	e.log.Info("pipeline complete", zap.String("project", pctx.ID))
	return nil
}

// runPhase executes one phase to completion: assemble once, then
// send/normalize/apply, retrying the unmodified prompt on malformed
// replies up to the attempt bound.
func (e *Engine) runPhase(ctx context.Context, pctx *project.Context, def phaseDef) error {
	log := e.log.With(zap.String("project", pctx.ID), zap.String("phase", string(def.id)))
	log.Info("phase starting")

	assembled, err := e.assembler.Assemble(def.id, pctx)
	if err != nil {
		return e.abort(pctx, project.Abort{
			Phase:  def.id,
			Kind:   project.AbortTemplate,
			Reason: err.Error(),
		})
	}

	var lastRaw, lastDetail string
	userRounds := 0

	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		raw, err := e.gw.Send(ctx, assembled)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return e.abort(pctx, project.Abort{
				Phase:        def.id,
				Kind:         project.AbortTransport,
				Reason:       err.Error(),
				LastResponse: lastRaw,
			})
		}
		lastRaw = raw

		res, err := e.normalizer.Normalize(ctx, def.id, raw)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			kind := project.AbortTemplate
			if gateway.IsTransport(err) {
				kind = project.AbortTransport
			}
			return e.abort(pctx, project.Abort{
				Phase:        def.id,
				Kind:         kind,
				Reason:       err.Error(),
				LastResponse: raw,
			})
		}

		if res.Status == normalize.StatusNeedsUserInput {
			refined, rounds, convErr := e.converge(ctx, pctx, res)
			userRounds = rounds
			if convErr != nil {
				return e.convergeAbort(ctx, pctx, def.id, raw, convErr)
			}
			res = refined
		}

		switch res.Status {
		case normalize.StatusParsed:
			if applyErr := def.apply(pctx, res); applyErr != nil {
				lastDetail = applyErr.Error()
				log.Warn("reply could not be applied, retrying", zap.Int("attempt", attempt), zap.Error(applyErr))
				continue
			}

			pctx.AppendRecord(project.PhaseRecord{
				Phase:       def.id,
				Status:      project.RecordSucceeded,
				RawOutput:   raw,
				Result:      res.Record,
				Retries:     attempt - 1,
				UserRounds:  userRounds,
				Warnings:    res.Warnings,
				CompletedAt: time.Now(),
			})
			if err := pctx.Advance(def.id.Next()); err != nil {
				return err
			}
			if err := e.store.Save(pctx); err != nil {
				return fmt.Errorf("persist after %s: %w", def.id, err)
			}
			log.Info("phase complete", zap.Int("retries", attempt-1), zap.Int("user_rounds", userRounds))
			return nil

		case normalize.StatusMalformed:
			lastDetail = res.Detail
			log.Warn("malformed reply, retrying", zap.Int("attempt", attempt), zap.String("detail", res.Detail))
			continue

		case normalize.StatusError:
			return e.abort(pctx, project.Abort{
				Phase:        def.id,
				Kind:         project.AbortContent,
				Reason:       res.Detail,
				LastResponse: raw,
			})
		}
	}

	return e.abort(pctx, project.Abort{
		Phase:        def.id,
		Kind:         project.AbortMalformed,
		Reason:       fmt.Sprintf("exhausted %d attempts: %s", e.opts.MaxAttempts, lastDetail),
		LastResponse: lastRaw,
	})
}

// convergeAbort maps a sub-loop failure onto the abort taxonomy
func (e *Engine) convergeAbort(ctx context.Context, pctx *project.Context, phase project.Phase, raw string, convErr error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	kind := project.AbortConvergence
	var contentErr *normalize.ContentError
	var templateErr *template.TemplateError
	switch {
	case errors.As(convErr, &contentErr):
		kind = project.AbortContent
	case errors.As(convErr, &templateErr):
		kind = project.AbortTemplate
	case gateway.IsTransport(convErr):
		kind = project.AbortTransport
	}

	return e.abort(pctx, project.Abort{
		Phase:        phase,
		Kind:         kind,
		Reason:       convErr.Error(),
		LastResponse: raw,
	})
}

// abort records the failure, moves the context to its terminal state,
// persists it, and surfaces an AbortError
func (e *Engine) abort(pctx *project.Context, a project.Abort) error {
	e.log.Error("run aborting",
		zap.String("project", pctx.ID),
		zap.String("phase", string(a.Phase)),
		zap.String("kind", a.Kind),
		zap.String("reason", a.Reason))

	pctx.AppendRecord(project.PhaseRecord{
		Phase:       a.Phase,
		Status:      project.RecordFailed,
		RawOutput:   a.LastResponse,
		CompletedAt: time.Now(),
	})
	pctx.MarkAborted(a)

	if err := e.store.Save(pctx); err != nil {
		e.log.Error("failed to persist abort", zap.Error(err))
	}

	return &AbortError{Abort: a}
}
