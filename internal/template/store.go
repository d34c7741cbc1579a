package template

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultFiles embed.FS

// Spec is one named prompt template with its declared variable
// contract. A declared variable with a nil default is required at
// render time.
type Spec struct {
	Name string
	Body string
	Vars map[string]*string
}

// WrapperSpec is a prompt wrapper. Phases limits where it applies;
// empty means every phase.
type WrapperSpec struct {
	Name        string
	Description string
	Phases      []string
	Body        string
}

// AppliesTo reports whether the wrapper matches the given phase
func (w *WrapperSpec) AppliesTo(phase string) bool {
	if len(w.Phases) == 0 {
		return true
	}
	for _, p := range w.Phases {
		if p == phase {
			return true
		}
	}
	return false
}

// Store holds every prompt template, loaded once at startup.
// Templates are addressed by namespaced IDs: "main:<phase>",
// "wrapper:<name>", "sub:<name>".
type Store struct {
	specs    map[string]Spec
	wrappers []WrapperSpec // configuration file order
	tone     *WrapperSpec
}

// rawSpec is the YAML shape of a single template entry
type rawSpec struct {
	Vars     map[string]*string `yaml:"vars"`
	Template string             `yaml:"template"`
}

// rawWrapper is the YAML shape of a wrapper entry
type rawWrapper struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Phases      []string `yaml:"phases"`
	Template    string   `yaml:"template"`
}

// rawWrapperFile is the YAML shape of wrapper_prompts.yaml
type rawWrapperFile struct {
	Wrappers []rawWrapper `yaml:"wrappers"`
	Tone     *rawWrapper  `yaml:"tone"`
}

// Load builds a store from the template directory, falling back to the
// embedded defaults for any file the directory does not provide. An
// empty dir loads only the embedded defaults.
func Load(dir string) (*Store, error) {
	s := &Store{specs: make(map[string]Spec)}

	mainData, err := readTemplateFile(dir, "main_prompts.yaml")
	if err != nil {
		return nil, err
	}
	if err := s.loadNamed("main", mainData); err != nil {
		return nil, fmt.Errorf("main_prompts.yaml: %w", err)
	}

	subData, err := readTemplateFile(dir, "sub_injection_prompts.yaml")
	if err != nil {
		return nil, err
	}
	if err := s.loadNamed("sub", subData); err != nil {
		return nil, fmt.Errorf("sub_injection_prompts.yaml: %w", err)
	}

	wrapData, err := readTemplateFile(dir, "wrapper_prompts.yaml")
	if err != nil {
		return nil, err
	}
	if err := s.loadWrappers(wrapData); err != nil {
		return nil, fmt.Errorf("wrapper_prompts.yaml: %w", err)
	}

	return s, nil
}

func readTemplateFile(dir, name string) ([]byte, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read template file %s: %w", name, err)
		}
	}
	data, err := defaultFiles.ReadFile("defaults/" + name)
	if err != nil {
		return nil, fmt.Errorf("missing embedded template file %s: %w", name, err)
	}
	return data, nil
}

// loadNamed loads a flat map of name -> template entry into the given
// namespace. yaml.v3 preserves document order through the node API, but
// flat entries are order-independent here.
func (s *Store) loadNamed(namespace string, data []byte) error {
	var entries map[string]rawSpec
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return err
	}
	for name, raw := range entries {
		if raw.Template == "" {
			return fmt.Errorf("template %s:%s has an empty body", namespace, name)
		}
		s.specs[namespace+":"+name] = Spec{
			Name: name,
			Body: raw.Template,
			Vars: raw.Vars,
		}
	}
	return nil
}

// loadWrappers loads the wrapper file. Wrapper order in the YAML list
// is the application order and is preserved.
func (s *Store) loadWrappers(data []byte) error {
	var file rawWrapperFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	for _, raw := range file.Wrappers {
		if raw.Name == "" || raw.Template == "" {
			return fmt.Errorf("wrapper entry missing name or template")
		}
		s.wrappers = append(s.wrappers, WrapperSpec{
			Name:        raw.Name,
			Description: raw.Description,
			Phases:      raw.Phases,
			Body:        raw.Template,
		})
		s.specs["wrapper:"+raw.Name] = Spec{Name: raw.Name, Body: raw.Template}
	}
	if file.Tone != nil {
		s.tone = &WrapperSpec{
			Name:        file.Tone.Name,
			Description: file.Tone.Description,
			Body:        file.Tone.Template,
		}
		s.specs["wrapper:"+file.Tone.Name] = Spec{Name: file.Tone.Name, Body: file.Tone.Template}
	}
	return nil
}

// Spec returns the template spec for a namespaced ID
func (s *Store) Spec(id string) (Spec, bool) {
	spec, ok := s.specs[id]
	return spec, ok
}

// Wrappers returns the functional wrappers in configuration order
func (s *Store) Wrappers() []WrapperSpec {
	return s.wrappers
}

// Tone returns the tone wrapper, or nil when none is configured
func (s *Store) Tone() *WrapperSpec {
	return s.tone
}
