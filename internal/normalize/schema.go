package normalize

import (
	"fmt"

	"github.com/howell-aikit/ideaforge/internal/project"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindList
	kindMap
	kindFileMap
)

type field struct {
	name     string
	kind     fieldKind
	required bool
}

// schema describes how one JSON-bearing phase's reply is parsed and
// validated
type schema struct {
	parseTemplate   string
	fields          []field
	allowNeedsInput bool
}

var schemas = map[project.Phase]schema{
	project.PhaseRequirements: {
		parseTemplate:   "ParseRequirements",
		allowNeedsInput: true,
		fields: []field{
			{name: "summary", kind: kindString, required: true},
			{name: "features", kind: kindList},
			{name: "non_functional", kind: kindList},
			{name: "target_users", kind: kindList},
			{name: "assumptions", kind: kindList},
			{name: "open_questions", kind: kindList},
			{name: "status", kind: kindString},
		},
	},
	project.PhaseArchitecture: {
		parseTemplate: "ParseArchitecture",
		fields: []field{
			{name: "architecture_document", kind: kindMap, required: true},
			{name: "technology_stack", kind: kindList},
		},
	},
	project.PhaseTesting: {
		parseTemplate: "ParseTestReport",
		fields: []field{
			{name: "status", kind: kindString, required: true},
			{name: "summary", kind: kindString, required: true},
			{name: "bugs_found", kind: kindList},
			{name: "suggested_fixes", kind: kindList},
			{name: "generated_tests", kind: kindFileMap},
			{name: "corrected_code", kind: kindFileMap},
		},
	},
}

// validate checks a decoded record against the phase schema, filling
// defaults for absent optional fields. The reserved "error" key and an
// out-of-place NeedsUserInput status are handled before field checks.
func validate(phase project.Phase, sc schema, rec map[string]any) *Result {
	if msg, ok := rec["error"]; ok {
		if s, isStr := msg.(string); isStr && s != "" {
			return &Result{Status: StatusError, Detail: s}
		}
	}

	if status, _ := rec["status"].(string); status == "NeedsUserInput" {
		if !sc.allowNeedsInput {
			return &Result{
				Status: StatusMalformed,
				Detail: fmt.Sprintf("status NeedsUserInput is not valid for phase %s", phase),
			}
		}
		return &Result{Status: StatusNeedsUserInput, Record: rec}
	}

	for _, f := range sc.fields {
		val, present := rec[f.name]
		if !present || val == nil {
			if f.required {
				return &Result{
					Status: StatusMalformed,
					Detail: fmt.Sprintf("missing required key %q", f.name),
				}
			}
			rec[f.name] = defaultFor(f.kind)
			continue
		}
		if err := checkKind(f, val); err != nil {
			return &Result{Status: StatusMalformed, Detail: err.Error()}
		}
	}

	return &Result{Status: StatusParsed, Record: rec}
}

func defaultFor(kind fieldKind) any {
	switch kind {
	case kindString:
		return ""
	case kindList:
		return []any{}
	case kindMap, kindFileMap:
		return map[string]any{}
	}
	return nil
}

func checkKind(f field, val any) error {
	switch f.kind {
	case kindString:
		if _, ok := val.(string); !ok {
			return fmt.Errorf("key %q must be a string", f.name)
		}
	case kindList:
		if _, ok := val.([]any); !ok {
			return fmt.Errorf("key %q must be a list", f.name)
		}
	case kindMap, kindFileMap:
		if _, ok := val.(map[string]any); !ok {
			return fmt.Errorf("key %q must be an object", f.name)
		}
	}
	return nil
}

// StringList coerces a decoded JSON list into strings, skipping
// non-string entries
func StringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// StringMap coerces a decoded JSON object into a string-to-string map,
// skipping non-string values
func StringMap(v any) map[string]string {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, item := range obj {
		if s, ok := item.(string); ok {
			out[k] = s
		}
	}
	return out
}
