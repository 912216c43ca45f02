package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const customYAML = `- key: glutes
  name: Glutes
  color: "#aa33cc"
  workouts:
    - name: Hip Thrust
      cues: Drive through heels, squeeze at lockout.
- key: lats
  name: Lats
  color: "#123abc"
`

func TestDefaultCatalogIsValid(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if c.Len() != 13 {
		t.Fatalf("expected 13 muscles, got %d", c.Len())
	}
	first := c.List()[0]
	if first.Key != "chest" || first.Name != "Chest" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	bicep, ok := c.Get("biceps_left")
	if !ok {
		t.Fatalf("biceps_left missing")
	}
	if len(bicep.Workouts) != 2 || bicep.Workouts[1].Name != "Hammer Curl" {
		t.Fatalf("unexpected workouts %+v", bicep.Workouts)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muscles.yaml")
	if err := os.WriteFile(path, []byte(customYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 muscles, got %d", c.Len())
	}
	if _, ok := c.Get("chest"); ok {
		t.Fatalf("custom catalog should replace the default")
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := c.Get("abs"); !ok {
		t.Fatalf("expected embedded catalog")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string][]Muscle{
		"empty":     nil,
		"no key":    {{Name: "Chest", Color: "#ffffff"}},
		"duplicate": {{Key: "a", Name: "A", Color: "#ffffff"}, {Key: "a", Name: "B", Color: "#000000"}},
		"no name":   {{Key: "a", Color: "#ffffff"}},
		"bad color": {{Key: "a", Name: "A", Color: "red"}},
		"workout":   {{Key: "a", Name: "A", Color: "#ffffff", Workouts: []Workout{{Cues: "x"}}}},
	}
	for name, muscles := range cases {
		if err := Validate(muscles); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestParseReportsYAMLErrors(t *testing.T) {
	_, err := Parse([]byte("key: [unterminated"))
	if err == nil || !strings.Contains(err.Error(), "parse catalog") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
