package generator

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type answersFile struct {
	Answers []string `yaml:"answers"`
}

// LoadAnswers reads a candidate list from a YAML file of the form
//
//	answers:
//	  - "Ask again later."
//	  - "Absolutely!"
func LoadAnswers(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}

	var f answersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}

	if len(f.Answers) == 0 {
		return nil, fmt.Errorf("answers file %s has no answers", path)
	}
	for i, a := range f.Answers {
		if strings.TrimSpace(a) == "" {
			return nil, fmt.Errorf("answers[%d] in %s is blank", i, path)
		}
	}

	return f.Answers, nil
}
