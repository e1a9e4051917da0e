package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pmll/casefile/internal/model"
)

// Case is the input of an investigation run.
type Case struct {
	Events      []CaseEvent
	Relations   []model.Relation
	Investigate PathQuery
	Infer       int
	Notes       []string
	Extra       map[string]string
	Findings    map[string]string
}

// CaseEvent is an observation to log.
type CaseEvent struct {
	Content    string
	Source     string
	Confidence float64
}

// PathQuery names the entities whose connecting path is investigated.
type PathQuery struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// caseFile is the on-disk form. Confidence is a pointer so an explicit 0
// is kept and only a missing value gets the default.
type caseFile struct {
	Events []struct {
		Content    string   `yaml:"content"`
		Source     string   `yaml:"source"`
		Confidence *float64 `yaml:"confidence"`
	} `yaml:"events"`
	Relations []struct {
		Source     string   `yaml:"source"`
		Target     string   `yaml:"target"`
		Relation   string   `yaml:"relation"`
		Confidence *float64 `yaml:"confidence"`
	} `yaml:"relations"`
	Investigate PathQuery         `yaml:"investigate"`
	Infer       int               `yaml:"infer"`
	Notes       []string          `yaml:"notes"`
	Extra       map[string]string `yaml:"extra"`
	Findings    map[string]string `yaml:"findings"`
}

// LoadCase reads a YAML case file. Events without a source get "unknown";
// events and relations without a confidence get 1.0. Extra values are kept
// as their YAML text.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("case: read %s: %w", path, err)
	}

	var f caseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("case: parse %s: %w", path, err)
	}

	c := &Case{
		Investigate: f.Investigate,
		Infer:       f.Infer,
		Notes:       f.Notes,
		Extra:       f.Extra,
		Findings:    f.Findings,
	}

	for i, e := range f.Events {
		if e.Content == "" {
			return nil, fmt.Errorf("case: event %d has no content", i)
		}
		ev := CaseEvent{Content: e.Content, Source: e.Source, Confidence: 1.0}
		if ev.Source == "" {
			ev.Source = "unknown"
		}
		if e.Confidence != nil {
			ev.Confidence = *e.Confidence
		}
		if ev.Confidence < 0 || ev.Confidence > 1 {
			return nil, fmt.Errorf("case: event %d confidence %v outside [0,1]", i, ev.Confidence)
		}
		c.Events = append(c.Events, ev)
	}

	for i, r := range f.Relations {
		if r.Source == "" || r.Target == "" || r.Relation == "" {
			return nil, fmt.Errorf("case: relation %d needs source, target and relation", i)
		}
		rel := model.Relation{Source: r.Source, Target: r.Target, Relation: r.Relation, Confidence: 1.0}
		if r.Confidence != nil {
			rel.Confidence = *r.Confidence
		}
		c.Relations = append(c.Relations, rel)
	}
	return c, nil
}
