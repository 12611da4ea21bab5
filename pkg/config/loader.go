package config

import (
	"fmt"
	"os"
)

// LoadStudy loads and parses a study file
func LoadStudy(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read study file %s: %w", path, err)
	}
	study, err := ParseStudyYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse study file %s: %w", path, err)
	}
	return study, nil
}

// validateStudy performs validation on the study definition
func validateStudy(s *Study) error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[s.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", s.LogLevel)
	}

	if s.Objective == "" {
		return fmt.Errorf("objective cannot be empty")
	}
	if s.Trials <= 0 {
		return fmt.Errorf("trials must be positive, got %d", s.Trials)
	}

	if len(s.Params) == 0 {
		return fmt.Errorf("at least one param must be defined")
	}
	names := make(map[string]bool)
	for i, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("param %d: name cannot be empty", i)
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate param name: %s", p.Name)
		}
		names[p.Name] = true

		if _, err := p.Distribution(); err != nil {
			return fmt.Errorf("param %s: %w", p.Name, err)
		}
		if err := validateCosts(p); err != nil {
			return fmt.Errorf("param %s: %w", p.Name, err)
		}
	}

	if s.Convergence != nil {
		if err := validateConvergence(s.Convergence); err != nil {
			return fmt.Errorf("convergence validation failed: %w", err)
		}
	}

	return nil
}

// validateCosts checks that costs are only given for categorical choices
func validateCosts(p Param) error {
	if len(p.Costs) == 0 {
		return nil
	}
	if p.Type != "categorical" {
		return fmt.Errorf("costs are only allowed for categorical params")
	}
	choices := make(map[string]bool, len(p.Choices))
	for _, c := range p.Choices {
		choices[c] = true
	}
	for label := range p.Costs {
		if !choices[label] {
			return fmt.Errorf("cost given for unknown choice %q", label)
		}
	}
	return nil
}

// validateConvergence validates the convergence configuration
func validateConvergence(c *Convergence) error {
	if c.Patience < 0 {
		return fmt.Errorf("patience cannot be negative, got %d", c.Patience)
	}
	if c.MinTrials < 0 {
		return fmt.Errorf("min_trials cannot be negative, got %d", c.MinTrials)
	}
	if c.PlateauTrials < 0 {
		return fmt.Errorf("plateau_trials cannot be negative, got %d", c.PlateauTrials)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance cannot be negative, got %f", c.Tolerance)
	}
	if c.Patience == 0 && c.PlateauTrials == 0 && c.Target == nil {
		return fmt.Errorf("at least one of patience, plateau_trials or target must be set")
	}
	return nil
}
