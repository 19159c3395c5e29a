// Package worker runs the batch populator, on demand or from Pub/Sub.
package worker

import (
	"fmt"
	"time"
)

// Step names one stage of a populate run.
type Step string

// Populate steps, in the order Run executes them.
const (
	StepGroups           Step = "groups"
	StepLocalAuthorities Step = "local_authorities"
	StepSpecies          Step = "species"
	StepSites            Step = "sites"
	StepHealthAdvice     Step = "health_advice"
)

// AllSteps lists every step in run order. Sites depend on local authorities.
var AllSteps = []Step{StepGroups, StepLocalAuthorities, StepSpecies, StepSites, StepHealthAdvice}

// StepNames returns AllSteps as strings.
func StepNames() []string {
	names := make([]string, len(AllSteps))
	for i, s := range AllSteps {
		names[i] = string(s)
	}
	return names
}

// ParseStep validates a step name.
func ParseStep(name string) (Step, error) {
	for _, s := range AllSteps {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown populate step %q", name)
}

// PopulateConfig holds configuration for a populate run.
type PopulateConfig struct {
	// Group is the upstream site group to populate from.
	// Default: "London"
	Group string

	// Steps to run. Run always executes them in AllSteps order.
	// Default: AllSteps
	Steps []Step

	// ExcludedSites are site codes never written, for sites known to carry
	// bad upstream data.
	ExcludedSites []string

	// SpeciesRequired makes a species catalog with no data fail the run.
	SpeciesRequired bool

	// StepTimeout bounds each step.
	// Default: 5 minutes
	StepTimeout time.Duration
}

// DefaultPopulateConfig returns the default populate configuration.
func DefaultPopulateConfig() PopulateConfig {
	return PopulateConfig{
		Group:       "London",
		Steps:       AllSteps,
		StepTimeout: 5 * time.Minute,
	}
}

func (c PopulateConfig) withDefaults() PopulateConfig {
	def := DefaultPopulateConfig()
	if c.Group == "" {
		c.Group = def.Group
	}
	if len(c.Steps) == 0 {
		c.Steps = def.Steps
	}
	if c.StepTimeout == 0 {
		c.StepTimeout = def.StepTimeout
	}
	return c
}

// enabled reports whether step is selected.
func (c PopulateConfig) enabled(step Step) bool {
	for _, s := range c.Steps {
		if s == step {
			return true
		}
	}
	return false
}
