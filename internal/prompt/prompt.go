// Package prompt builds the tutor system prompt. A persona file
// defines the base instructions plus guidance tiers that unlock more
// direct help as a conversation deepens.
package prompt

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tier adds guidance once a conversation reaches a number of user
// turns. Higher tiers permit progressively more direct hints.
type Tier struct {
	MinTurns int    `yaml:"min_turns"`
	Guidance string `yaml:"guidance"`
}

// Persona is the on-disk prompt definition.
type Persona struct {
	Name   string `yaml:"name"`
	System string `yaml:"system"`
	Tiers  []Tier `yaml:"tiers"`
}

// Builder renders system prompts from a persona.
type Builder struct {
	persona Persona
}

// Load reads a persona YAML file.
func Load(path string) (*Builder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: read persona file: %w", err)
	}
	var persona Persona
	if err := yaml.Unmarshal(data, &persona); err != nil {
		return nil, fmt.Errorf("prompt: parse persona file: %w", err)
	}
	if strings.TrimSpace(persona.System) == "" {
		return nil, fmt.Errorf("prompt: persona %q has no system prompt", persona.Name)
	}
	return New(persona), nil
}

// New builds a Builder from an in-memory persona. Tiers are sorted by
// their turn threshold.
func New(persona Persona) *Builder {
	sort.SliceStable(persona.Tiers, func(i, j int) bool {
		return persona.Tiers[i].MinTurns < persona.Tiers[j].MinTurns
	})
	return &Builder{persona: persona}
}

// Default returns the built-in Socratic math tutor persona.
func Default() *Builder {
	return New(Persona{
		Name: "socratic-tutor",
		System: strings.TrimSpace(`
You are a patient math tutor. Guide the student to the answer with
questions instead of handing them the solution. Acknowledge what they
got right before addressing what they got wrong. Keep responses short
and focused on the next step.`),
		Tiers: []Tier{
			{MinTurns: 3, Guidance: "The student has made several attempts. You may point directly at the step where their reasoning goes wrong."},
			{MinTurns: 6, Guidance: "The student is stuck. Walk through the next step explicitly, then let them finish the remaining steps themselves."},
		},
	})
}

// BuildSystem renders the system prompt for a conversation with the
// given number of user turns. The highest unlocked tier's guidance is
// appended to the base instructions.
func (b *Builder) BuildSystem(userTurns int) string {
	guidance := ""
	for _, tier := range b.persona.Tiers {
		if userTurns >= tier.MinTurns && strings.TrimSpace(tier.Guidance) != "" {
			guidance = tier.Guidance
		}
	}
	if guidance == "" {
		return b.persona.System
	}
	return b.persona.System + "\n\n" + guidance
}
