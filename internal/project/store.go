package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
)

// Store handles persistence of project contexts
type Store struct {
	stateDir    string
	lockTimeout time.Duration
}

// NewStore creates a new project store rooted at stateDir
func NewStore(stateDir string, lockTimeout time.Duration) (*Store, error) {
	projectsDir := filepath.Join(stateDir, "projects")
	if err := os.MkdirAll(projectsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}
	return &Store{stateDir: stateDir, lockTimeout: lockTimeout}, nil
}

// Create creates a new project context and persists it
func (s *Store) Create(initialRequest string, wrappers []string) (*Context, error) {
	pctx := New(initialRequest, wrappers)

	if err := s.Save(pctx); err != nil {
		return nil, err
	}

	if err := s.SetCurrent(pctx.ID); err != nil {
		return nil, err
	}

	return pctx, nil
}

// Save persists a project context to disk under a file lock
func (s *Store) Save(pctx *Context) error {
	pctx.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(pctx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	projectPath := s.projectPath(pctx.ID)

	unlock, err := s.lock(projectPath)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.WriteFile(projectPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write project file: %w", err)
	}

	return nil
}

// Load loads a project context from disk
func (s *Store) Load(id string) (*Context, error) {
	projectPath := s.projectPath(id)
	data, err := os.ReadFile(projectPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("project %s not found", id)
		}
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var pctx Context
	if err := json.Unmarshal(data, &pctx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}

	if pctx.GeneratedCode == nil {
		pctx.GeneratedCode = make(map[string]string)
	}
	if pctx.DeploymentArtifacts == nil {
		pctx.DeploymentArtifacts = make(map[string]string)
	}
	if pctx.TechnologyStack == nil {
		pctx.TechnologyStack = []string{}
	}

	return &pctx, nil
}

// Delete removes a project from disk
func (s *Store) Delete(id string) error {
	projectPath := s.projectPath(id)
	if err := os.Remove(projectPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete project file: %w", err)
	}

	currentID, _ := s.CurrentID()
	if currentID == id {
		_ = s.ClearCurrent()
	}

	return nil
}

// List returns all projects sorted by creation time (newest first)
func (s *Store) List() ([]*Context, error) {
	projectsDir := filepath.Join(s.stateDir, "projects")
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read projects directory: %w", err)
	}

	var projects []*Context
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-5] // Remove .json
		pctx, err := s.Load(id)
		if err != nil {
			continue // Skip corrupted files
		}
		projects = append(projects, pctx)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})

	return projects, nil
}

// SetCurrent sets the current active project
func (s *Store) SetCurrent(id string) error {
	currentPath := filepath.Join(s.stateDir, "current.json")
	data, err := json.Marshal(map[string]string{"project_id": id})
	if err != nil {
		return err
	}
	return os.WriteFile(currentPath, data, 0644)
}

// CurrentID returns the ID of the current project
func (s *Store) CurrentID() (string, error) {
	currentPath := filepath.Join(s.stateDir, "current.json")
	data, err := os.ReadFile(currentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var current map[string]string
	if err := json.Unmarshal(data, &current); err != nil {
		return "", err
	}

	return current["project_id"], nil
}

// Current returns the current active project
func (s *Store) Current() (*Context, error) {
	id, err := s.CurrentID()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	return s.Load(id)
}

// ClearCurrent clears the current project pointer
func (s *Store) ClearCurrent() error {
	currentPath := filepath.Join(s.stateDir, "current.json")
	err := os.Remove(currentPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// projectPath returns the file path for a project
func (s *Store) projectPath(id string) string {
	return filepath.Join(s.stateDir, "projects", id+".json")
}

// lock acquires an advisory lock guarding writes to the given file
func (s *Store) lock(projectPath string) (func(), error) {
	lockPath := projectPath + ".lock"
	lk := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()

	locked, err := lk.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock for %s: %w", projectPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("timeout waiting for lock on %s", projectPath)
	}

	return func() {
		_ = lk.Unlock()
		_ = os.Remove(lockPath)
	}, nil
}
