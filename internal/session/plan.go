/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package session runs blind ABX listening sessions against test plans.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soundbench/soundbench/internal/engine"
)

// DefaultTrials is the trial count when a comparison does not set one.
const DefaultTrials = 16

// Plan is a listening test plan loaded from YAML.
type Plan struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Comparisons []Comparison `yaml:"comparisons" json:"comparisons"`
}

// Comparison pairs two stimuli within a plan.
type Comparison struct {
	Name       string `yaml:"name" json:"name"`
	TrackA     string `yaml:"track_a" json:"track_a"`
	TrackB     string `yaml:"track_b" json:"track_b"`
	SwitchMode string `yaml:"switch_mode,omitempty" json:"switch_mode,omitempty"`
	Trials     int    `yaml:"trials,omitempty" json:"trials"`
}

// LoadPlan reads and validates one plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

// LoadPlans reads every plan in dir, sorted by name.
func LoadPlans(dir string) ([]*Plan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var plans []*Plan
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		p, err := LoadPlan(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans, nil
}

// Comparison returns the named comparison.
func (p *Plan) Comparison(name string) (*Comparison, error) {
	for i := range p.Comparisons {
		if p.Comparisons[i].Name == name {
			return &p.Comparisons[i], nil
		}
	}
	return nil, fmt.Errorf("plan %q has no comparison %q", p.Name, name)
}

func (p *Plan) validate() error {
	if p.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	if len(p.Comparisons) == 0 {
		return fmt.Errorf("plan %q has no comparisons", p.Name)
	}

	seen := make(map[string]bool)
	for i := range p.Comparisons {
		c := &p.Comparisons[i]
		if c.Name == "" {
			return fmt.Errorf("comparison %d has no name", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate comparison %q", c.Name)
		}
		seen[c.Name] = true

		if c.TrackA == "" || c.TrackB == "" {
			return fmt.Errorf("comparison %q must name both tracks", c.Name)
		}
		if c.SwitchMode != "" {
			if _, err := engine.ParseSwitchMode(c.SwitchMode); err != nil {
				return fmt.Errorf("comparison %q: %w", c.Name, err)
			}
		}
		if c.Trials == 0 {
			c.Trials = DefaultTrials
		}
		if c.Trials < 1 {
			return fmt.Errorf("comparison %q: trials must be positive", c.Name)
		}
	}
	return nil
}
