package engine

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/howell-aikit/ideaforge/internal/normalize"
	"github.com/howell-aikit/ideaforge/internal/project"
)

// RefineFiles runs the named sub-injection against each file and
// replaces the matching generated_code entries wholesale. Invocations
// fan out with bounded concurrency; results are applied serially once
// every invocation has finished, so a failed batch changes nothing.
func (e *Engine) RefineFiles(ctx context.Context, pctx *project.Context, specID string, paths []string) error {
	if pctx.CurrentPhase == project.PhaseAborted {
		return fmt.Errorf("project %s is aborted", pctx.ID)
	}
	if len(paths) == 0 {
		return nil
	}

	type job struct {
		path string
		prev string
	}
	jobs := make([]job, 0, len(paths))
	for _, p := range paths {
		prev, ok := pctx.File(p)
		if !ok {
			return fmt.Errorf("no generated file %q", p)
		}
		clean, err := project.NormalizePath(p)
		if err != nil {
			return err
		}
		jobs = append(jobs, job{path: clean, prev: prev})
	}

	results := make([]string, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.RefineConcurrency)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			reply, err := e.dispatcher.Invoke(gctx, specID, map[string]any{
				"file_path":     j.path,
				"previous_code": j.prev,
				"language":      languageFor(j.path),
			})
			if err != nil {
				return fmt.Errorf("refine %s: %w", j.path, err)
			}

			code := normalize.StripFence(reply)
			if strings.TrimSpace(code) == "" {
				return fmt.Errorf("refine %s: empty reply", j.path)
			}
			results[i] = code
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, j := range jobs {
		if err := pctx.SetFile(j.path, results[i]); err != nil {
			return err
		}
		e.log.Info("file refined",
			zap.String("project", pctx.ID),
			zap.String("spec", specID),
			zap.String("path", j.path))
	}

	return e.store.Save(pctx)
}

// languageFor guesses the language name for a file path, used only to
// phrase the refinement prompt
func languageFor(p string) string {
	switch path.Ext(p) {
	case ".go":
		return "Go"
	case ".py":
		return "Python"
	case ".js":
		return "JavaScript"
	case ".ts":
		return "TypeScript"
	case ".rs":
		return "Rust"
	case ".java":
		return "Java"
	case ".rb":
		return "Ruby"
	case ".sh":
		return "shell"
	case ".sql":
		return "SQL"
	case ".html":
		return "HTML"
	case ".css":
		return "CSS"
	case ".json":
		return "JSON"
	case ".yaml", ".yml":
		return "YAML"
	}
	return "plain text"
}
