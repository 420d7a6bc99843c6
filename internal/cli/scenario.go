package cli

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"gopkg.in/yaml.v3"
)

// Scenario is a replayable sequence of client writes.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Policy is the featured projection vacancy policy ("retain" when empty).
	Policy string `yaml:"policy,omitempty"`
	// MaxHops overrides the dispatcher hop bound when positive.
	MaxHops int `yaml:"maxHops,omitempty"`

	// Objects are attachment objects present before the first step.
	Objects []Object `yaml:"objects,omitempty"`
	// Seed documents are written without running any maintainer.
	Seed []SeedDoc `yaml:"seed,omitempty"`
	// Steps are applied in order, each followed by a settled cascade.
	Steps []Step `yaml:"steps"`
}

// Object is a stored attachment.
type Object struct {
	Path        string    `yaml:"path"`
	ContentType string    `yaml:"contentType"`
	SizeBytes   int64     `yaml:"sizeBytes"`
	CreatedAt   time.Time `yaml:"createdAt"`
}

// SeedDoc is a document present before the first step.
type SeedDoc struct {
	Path string         `yaml:"path"`
	Data map[string]any `yaml:"data"`
}

// Step is one client write. Op is set, update or delete. In an update a
// null field value removes the field.
type Step struct {
	Op   string         `yaml:"op"`
	Path string         `yaml:"path"`
	Data map[string]any `yaml:"data,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(raw)
}

// ParseScenario decodes a scenario, rejecting unknown keys.
func ParseScenario(raw []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks paths and operations.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	for i, d := range s.Seed {
		if !tree.IsDocument(d.Path) {
			return fmt.Errorf("seed %d: %q is not a document path", i, d.Path)
		}
	}
	for i, o := range s.Objects {
		if o.Path == "" {
			return fmt.Errorf("object %d: path is required", i)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s: no steps", s.Name)
	}
	for i, st := range s.Steps {
		if !tree.IsDocument(st.Path) {
			return fmt.Errorf("step %d: %q is not a document path", i+1, st.Path)
		}
		switch st.Op {
		case "set", "update":
			if st.Data == nil {
				return fmt.Errorf("step %d: %s needs data", i+1, st.Op)
			}
		case "delete":
		default:
			return fmt.Errorf("step %d: unknown op %q (want set, update or delete)", i+1, st.Op)
		}
	}
	return nil
}
