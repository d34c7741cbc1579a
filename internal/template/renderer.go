package template

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// TemplateError reports a template that could not be rendered, either
// because a required variable was absent or because the body failed to
// parse or execute.
type TemplateError struct {
	Template string
	Missing  []string
	Err      error
}

func (e *TemplateError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("template %s: missing required variables: %s", e.Template, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("template %s: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// Renderer renders store templates against a variable scope. Rendering
// is pure: the same template and scope always produce the same string.
type Renderer struct {
	store *Store
	funcs template.FuncMap

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// NewRenderer creates a renderer over the given store
func NewRenderer(store *Store) *Renderer {
	return &Renderer{
		store: store,
		funcs: template.FuncMap{
			"toyaml":  toYAMLFunc,
			"default": defaultFunc,
			"join":    strings.Join,
			"trim":    strings.TrimSpace,
		},
		cache: make(map[string]*template.Template),
	}
}

// Render renders the namespaced template against scope. Declared
// variables absent from the scope take their declared default; a
// required variable with no default yields a TemplateError.
func (r *Renderer) Render(id string, scope map[string]any) (string, error) {
	spec, ok := r.store.Spec(id)
	if !ok {
		return "", &TemplateError{Template: id, Err: fmt.Errorf("unknown template")}
	}

	bound := make(map[string]any, len(scope)+len(spec.Vars))
	for k, v := range scope {
		bound[k] = v
	}

	var missing []string
	for name, def := range spec.Vars {
		if _, present := bound[name]; present {
			continue
		}
		if def == nil {
			missing = append(missing, name)
			continue
		}
		bound[name] = *def
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &TemplateError{Template: id, Missing: missing}
	}

	tmpl, err := r.parsed(id, spec.Body)
	if err != nil {
		return "", &TemplateError{Template: id, Err: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, bound); err != nil {
		return "", &TemplateError{Template: id, Err: err}
	}
	return buf.String(), nil
}

func (r *Renderer) parsed(id, body string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := template.New(id).Funcs(r.funcs).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = tmpl
	r.mu.Unlock()
	return tmpl, nil
}

// toYAMLFunc serializes a value as YAML for prompt embedding
func toYAMLFunc(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// defaultFunc substitutes def when val is nil or empty, pipeline style:
// {{.status | default "Pending"}}
func defaultFunc(def, val any) any {
	switch t := val.(type) {
	case nil:
		return def
	case string:
		if t == "" {
			return def
		}
	}
	return val
}
