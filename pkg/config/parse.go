package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseStudyYAML parses a Study from YAML bytes, applies defaults and validates it.
// This is used for APIs where the study is provided as payload (not via filesystem).
func ParseStudyYAML(data []byte) (*Study, error) {
	var study Study
	if err := yaml.Unmarshal(data, &study); err != nil {
		return nil, fmt.Errorf("failed to parse study yaml: %w", err)
	}

	applyDefaults(&study)

	if err := validateStudy(&study); err != nil {
		return nil, fmt.Errorf("invalid study: %w", err)
	}

	return &study, nil
}

// ParseStudyYAMLString parses a Study from a YAML string and validates it.
func ParseStudyYAMLString(yamlText string) (*Study, error) {
	return ParseStudyYAML([]byte(yamlText))
}

// Marshal renders the study back to YAML
func (s *Study) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

func applyDefaults(s *Study) {
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.Name == "" {
		s.Name = s.Objective
	}
}
