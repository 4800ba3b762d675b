package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("dataset not found")

// TestItem is one evaluation input. The category is derived from the id
// prefix before the first hyphen, so ids like "math-001" group naturally.
type TestItem struct {
	ID       string            `yaml:"id" json:"id"`
	Input    string            `yaml:"input" json:"input"`
	Expected string            `yaml:"expected" json:"expected"`
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Dataset is a named, ordered collection of test items.
type Dataset struct {
	ID    string     `yaml:"id" json:"id"`
	Name  string     `yaml:"name" json:"name"`
	Items []TestItem `yaml:"items" json:"items"`
}

// Provider resolves dataset ids to their items in declaration order.
type Provider interface {
	Get(id string) (*Dataset, error)
}

// Registry is an in-memory Provider populated from files or literals.
type Registry struct {
	datasets map[string]*Dataset
}

func NewRegistry() *Registry {
	return &Registry{datasets: make(map[string]*Dataset)}
}

// Add registers a dataset, replacing any previous one with the same id.
func (r *Registry) Add(d *Dataset) {
	r.datasets[d.ID] = d
}

func (r *Registry) Get(id string) (*Dataset, error) {
	d, ok := r.datasets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// LoadFile parses a single dataset from a yaml file.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	var d Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	if err := validate(&d); err != nil {
		return nil, fmt.Errorf("invalid dataset %s: %w", path, err)
	}
	return &d, nil
}

// LoadDir loads every *.yaml and *.yml file in dir into a registry.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset dir %s: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		d, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		reg.Add(d)
	}
	return reg, nil
}

func validate(d *Dataset) error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(d.Items) == 0 {
		return fmt.Errorf("no items defined")
	}
	seen := make(map[string]struct{}, len(d.Items))
	for i, item := range d.Items {
		if item.ID == "" {
			return fmt.Errorf("item %d: id is required", i)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("item %d: duplicate id %q", i, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}
