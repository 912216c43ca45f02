// Package catalog holds the read-only muscle catalog served to the selection UI.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed muscles.yaml
var defaultCatalog []byte

// Muscle describes one selectable muscle group.
type Muscle struct {
	Key              string    `yaml:"key" json:"key"`
	Name             string    `yaml:"name" json:"name"`
	Color            string    `yaml:"color" json:"color"`
	Description      string    `yaml:"description" json:"description"`
	PrimaryFunctions []string  `yaml:"primary_functions" json:"primaryFunctions"`
	ModelPath        string    `yaml:"model_path" json:"modelPath"`
	Workouts         []Workout `yaml:"workouts" json:"workouts"`
}

type Workout struct {
	Name           string `yaml:"name" json:"name"`
	Type           string `yaml:"type" json:"type"`
	Equipment      string `yaml:"equipment" json:"equipment"`
	Cues           string `yaml:"cues" json:"cues"`
	SampleSetsReps string `yaml:"sample_sets_reps" json:"sampleSetsReps"`
}

// Catalog is an ordered, validated list of muscles.
type Catalog struct {
	muscles []Muscle
	byKey   map[string]int
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from disk. An empty path yields the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var muscles []Muscle
	if err := yaml.Unmarshal(data, &muscles); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := Validate(muscles); err != nil {
		return nil, err
	}
	c := &Catalog{muscles: muscles, byKey: make(map[string]int, len(muscles))}
	for i, m := range muscles {
		c.byKey[m.Key] = i
	}
	return c, nil
}

// Validate ensures every entry carries the fields the UI depends on.
func Validate(muscles []Muscle) error {
	if len(muscles) == 0 {
		return fmt.Errorf("catalog must declare at least one muscle")
	}
	seen := make(map[string]struct{}, len(muscles))
	for i, m := range muscles {
		if m.Key == "" {
			return fmt.Errorf("muscles[%d].key is required", i)
		}
		if _, dup := seen[m.Key]; dup {
			return fmt.Errorf("muscles[%d].key %q is duplicated", i, m.Key)
		}
		seen[m.Key] = struct{}{}
		if m.Name == "" {
			return fmt.Errorf("muscle %q: name is required", m.Key)
		}
		if !colorPattern.MatchString(m.Color) {
			return fmt.Errorf("muscle %q: color %q must be #rrggbb", m.Key, m.Color)
		}
		for j, w := range m.Workouts {
			if w.Name == "" {
				return fmt.Errorf("muscle %q: workouts[%d].name is required", m.Key, j)
			}
		}
	}
	return nil
}

// List returns the muscles in file order.
func (c *Catalog) List() []Muscle {
	out := make([]Muscle, len(c.muscles))
	copy(out, c.muscles)
	return out
}

func (c *Catalog) Get(key string) (Muscle, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Muscle{}, false
	}
	return c.muscles[i], true
}

func (c *Catalog) Len() int { return len(c.muscles) }
