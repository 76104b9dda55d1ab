package grader

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rubric describes the criteria the oracle is asked to weigh. The criteria
// are data so alternate rubrics can ship as YAML files next to a run.
type Rubric struct {
	Name     string      `yaml:"name" json:"name"`
	Criteria []Criterion `yaml:"criteria" json:"criteria"`
}

// Criterion is a single named grading dimension.
type Criterion struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// DefaultRubric returns the compiled-in grading criteria.
func DefaultRubric() Rubric {
	return Rubric{
		Name: "code-quality",
		Criteria: []Criterion{
			{Name: "Readability", Description: "clear structure, meaningful names, comments/docstrings"},
			{Name: "Modularity", Description: "functions, separation of concerns, avoid duplication"},
			{Name: "Robustness", Description: "basic error handling, sanity checks when appropriate"},
			{Name: "Maintainability", Description: "easy to extend, minimal hard-coding, avoids hacks"},
		},
	}
}

// LoadRubric loads a rubric from a YAML file.
func LoadRubric(path string) (Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rubric{}, fmt.Errorf("read rubric: %w", err)
	}
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rubric{}, fmt.Errorf("decode rubric: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rubric{}, err
	}
	return r, nil
}

// Validate ensures the rubric is well-formed.
func (r Rubric) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rubric name is required")
	}
	if len(r.Criteria) == 0 {
		return fmt.Errorf("rubric criteria are required")
	}
	for _, c := range r.Criteria {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("rubric criterion name is required")
		}
	}
	return nil
}
