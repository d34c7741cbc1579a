package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/howell-aikit/ideaforge/internal/normalize"
	"github.com/howell-aikit/ideaforge/internal/project"
)

// converge runs the conversational requirements sub-loop. Each round
// carries the previous normalized record, never raw reply text, into
// the refine prompt alongside the user's answer. It ends on a parsed
// record or when the round bound is exhausted.
func (e *Engine) converge(ctx context.Context, pctx *project.Context, first *normalize.Result) (*normalize.Result, int, error) {
	log := e.log.With(zap.String("project", pctx.ID))
	prev := first.Record

	for round := 1; round <= e.opts.MaxUserRounds; round++ {
		questions := normalize.StringList(prev["open_questions"])
		log.Info("requirements need user input",
			zap.Int("round", round),
			zap.Int("open_questions", len(questions)))

		input, err := e.convo.NextInput(ctx, questions)
		if err != nil {
			return nil, round, err
		}

		raw, err := e.dispatcher.Invoke(ctx, "ProcessUserResponse", map[string]any{
			"initial_request":       pctx.InitialRequest,
			"previous_requirements": prev,
			"user_response":         input,
		})
		if err != nil {
			return nil, round, err
		}

		res, err := e.normalizer.Normalize(ctx, project.PhaseRequirements, raw)
		if err != nil {
			return nil, round, err
		}

		switch res.Status {
		case normalize.StatusParsed:
			return res, round, nil
		case normalize.StatusNeedsUserInput:
			prev = res.Record
		case normalize.StatusMalformed:
			// Keep the previous record; the round is spent
			log.Warn("malformed refinement reply", zap.Int("round", round), zap.String("detail", res.Detail))
		case normalize.StatusError:
			return nil, round, &normalize.ContentError{Phase: project.PhaseRequirements, Message: res.Detail}
		}
	}

	return nil, e.opts.MaxUserRounds, &ConvergenceError{Rounds: e.opts.MaxUserRounds}
}
