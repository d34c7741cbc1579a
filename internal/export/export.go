package export

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/howell-aikit/ideaforge/internal/project"
	"github.com/howell-aikit/ideaforge/pkg/git"
)

// Exporter materializes a project's generated code and deployment
// artifacts into a directory tree
type Exporter struct {
	log *zap.Logger
}

// New creates an exporter
func New(log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{log: log}
}

// Result summarizes an export
type Result struct {
	Dir        string
	FileCount  int
	CommitHash string
}

// Export writes every generated file and deployment artifact under
// dir. When commit is true the directory becomes (or already is) a git
// repository and the export lands as a single commit.
func (e *Exporter) Export(pctx *project.Context, dir string, commit bool) (*Result, error) {
	if len(pctx.GeneratedCode) == 0 && len(pctx.DeploymentArtifacts) == 0 {
		return nil, fmt.Errorf("project %s has nothing to export", pctx.ID)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	count := 0
	write := func(relPath, content string) error {
		clean, err := project.NormalizePath(relPath)
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(clean))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", clean, err)
		}
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", clean, err)
		}
		count++
		return nil
	}

	for p, content := range pctx.GeneratedCode {
		if err := write(p, content); err != nil {
			return nil, err
		}
	}
	for p, content := range pctx.DeploymentArtifacts {
		if err := write(p, content); err != nil {
			return nil, err
		}
	}

	res := &Result{Dir: dir, FileCount: count}
	e.log.Info("project exported",
		zap.String("project", pctx.ID),
		zap.String("dir", dir),
		zap.Int("files", count))

	if !commit {
		return res, nil
	}

	repo, err := git.InitOrOpen(dir)
	if err != nil {
		return nil, err
	}
	if err := repo.StageAll(); err != nil {
		return nil, err
	}

	dirty, err := repo.IsDirty()
	if err != nil {
		return nil, err
	}
	if !dirty {
		// Nothing changed since the last export
		hash, _ := repo.HeadHash()
		res.CommitHash = hash
		return res, nil
	}

	hash, err := repo.Commit(
		fmt.Sprintf("ideaforge: export project %s", pctx.ID),
		"ideaforge", "ideaforge@localhost",
	)
	if err != nil {
		return nil, err
	}
	res.CommitHash = hash

	e.log.Info("export committed", zap.String("project", pctx.ID), zap.String("commit", hash))
	return res, nil
}
