package engine

import (
	"fmt"

	"github.com/howell-aikit/ideaforge/internal/normalize"
	"github.com/howell-aikit/ideaforge/internal/project"
)

// phaseDef couples a phase with its input precondition and the
// function that folds a parsed result back into the context. Apply
// functions validate everything before mutating so a rejected reply
// never leaves partial state behind.
type phaseDef struct {
	id       project.Phase
	requires func(*project.Context) error
	apply    func(*project.Context, *normalize.Result) error
}

var phaseDefs = map[project.Phase]phaseDef{
	project.PhaseRequirements: {
		id: project.PhaseRequirements,
		requires: func(c *project.Context) error {
			if c.InitialRequest == "" {
				return fmt.Errorf("no initial request")
			}
			return nil
		},
		apply: func(c *project.Context, res *normalize.Result) error {
			c.SetRequirements(res.Record)
			return nil
		},
	},

	project.PhaseArchitecture: {
		id: project.PhaseArchitecture,
		requires: func(c *project.Context) error {
			if len(c.RefinedRequirements) == 0 {
				return fmt.Errorf("no refined requirements")
			}
			return nil
		},
		apply: func(c *project.Context, res *normalize.Result) error {
			doc, ok := res.Record["architecture_document"].(map[string]any)
			if !ok || len(doc) == 0 {
				return fmt.Errorf("architecture_document is empty")
			}
			c.SetArchitecture(doc, normalize.StringList(res.Record["technology_stack"]))
			return nil
		},
	},

	project.PhaseCodeGeneration: {
		id: project.PhaseCodeGeneration,
		requires: func(c *project.Context) error {
			if len(c.ArchitectureDocument) == 0 {
				return fmt.Errorf("no architecture document")
			}
			return nil
		},
		apply: func(c *project.Context, res *normalize.Result) error {
			cleaned, err := normalizePaths(res.Files)
			if err != nil {
				return err
			}
			return c.SetFiles(cleaned)
		},
	},

	project.PhaseTesting: {
		id: project.PhaseTesting,
		requires: func(c *project.Context) error {
			if len(c.GeneratedCode) == 0 {
				return fmt.Errorf("no generated code")
			}
			return nil
		},
		apply: func(c *project.Context, res *normalize.Result) error {
			status, _ := res.Record["status"].(string)
			summary, _ := res.Record["summary"].(string)

			corrected := normalize.StringMap(res.Record["corrected_code"])
			cleaned, err := normalizePaths(corrected)
			if err != nil {
				return err
			}

			c.SetTestReport(&project.TestReport{
				Status:         status,
				Summary:        summary,
				BugsFound:      normalize.StringList(res.Record["bugs_found"]),
				SuggestedFixes: normalize.StringList(res.Record["suggested_fixes"]),
				GeneratedTests: normalize.StringMap(res.Record["generated_tests"]),
			})
			return c.SetFiles(cleaned)
		},
	},

	project.PhaseDeployment: {
		id: project.PhaseDeployment,
		requires: func(c *project.Context) error {
			if len(c.GeneratedCode) == 0 {
				return fmt.Errorf("no generated code")
			}
			if c.TestResults == nil {
				return fmt.Errorf("no test results")
			}
			return nil
		},
		apply: func(c *project.Context, res *normalize.Result) error {
			cleaned, err := normalizePaths(res.Files)
			if err != nil {
				return err
			}
			for p, content := range cleaned {
				if err := c.SetArtifact(p, content); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// normalizePaths validates every path up front so application is
// all-or-nothing
func normalizePaths(files map[string]string) (map[string]string, error) {
	cleaned := make(map[string]string, len(files))
	for p, content := range files {
		clean, err := project.NormalizePath(p)
		if err != nil {
			return nil, err
		}
		cleaned[clean] = content
	}
	return cleaned, nil
}
