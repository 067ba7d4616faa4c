package match

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PredicateConfig is one predicate entry in a rules file.
type PredicateConfig struct {
	Kind    string `yaml:"kind"`
	Pattern string `yaml:"pattern"`
}

// RulesConfig is the top-level YAML rules file.
//
//	predicates:
//	  - kind: substring
//	    pattern: /api/graphql
//	only_operation: UserMedia
//	drop_error_status: true
type RulesConfig struct {
	Predicates      []PredicateConfig `yaml:"predicates"`
	OnlyOperation   *string           `yaml:"only_operation,omitempty"`
	DropErrorStatus *bool             `yaml:"drop_error_status,omitempty"`
}

// LoadRules reads and validates a rules file. Fields absent from the file
// keep the values already set on base.
func LoadRules(path string, base Rule) (Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rule{}, fmt.Errorf("rules config: %w", err)
	}
	var cfg RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Rule{}, fmt.Errorf("rules config: %w", err)
	}

	rule := base
	if len(cfg.Predicates) > 0 {
		rule.Predicates = make([]Predicate, 0, len(cfg.Predicates))
		for i, pc := range cfg.Predicates {
			p, err := NewPredicate(PredicateKind(pc.Kind), pc.Pattern)
			if err != nil {
				return Rule{}, fmt.Errorf("rules config: predicates[%d]: %w", i, err)
			}
			rule.Predicates = append(rule.Predicates, p)
		}
	}
	if cfg.OnlyOperation != nil {
		if *cfg.OnlyOperation == "" {
			rule.OnlyOperation = nil
		} else {
			op := *cfg.OnlyOperation
			rule.OnlyOperation = &op
		}
	}
	if cfg.DropErrorStatus != nil {
		rule.DropErrorStatus = *cfg.DropErrorStatus
	}
	return rule, nil
}
