package domain

import (
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/tenant"
)

type ruleFile struct {
	Rules []ruleFileEntry `yaml:"rules"`
}

type ruleFileEntry struct {
	From             string   `yaml:"from"`
	To               string   `yaml:"to"`
	Roles            []string `yaml:"roles"`
	RequiresApproval bool     `yaml:"requires_approval"`
	RequiresReason   bool     `yaml:"requires_reason"`
	MinTimeInStage   string   `yaml:"min_time_in_stage"`
	MinValueCents    *int64   `yaml:"min_value_cents"`
	MaxValueCents    *int64   `yaml:"max_value_cents"`
	Active           *bool    `yaml:"active"`
}

// ParseRuleFile decodes a YAML rule file:
//
//	rules:
//	  - from: contingency_signed
//	    to: project
//	    roles: [office, manager]
//	    requires_approval: true
//	    min_time_in_stage: 48h
//
// Rules are active unless "active: false" is given. Every rule is validated and a
// status pair may appear only once.
func ParseRuleFile(data []byte) ([]TransitionRule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.Wrapf(ErrInvalidRule, "parse rule file: %v", err)
	}
	if len(file.Rules) == 0 {
		return nil, apperrors.Wrap(ErrInvalidRule, "rule file contains no rules")
	}

	seen := make(map[[2]Status]struct{}, len(file.Rules))
	rules := make([]TransitionRule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		rule := TransitionRule{
			FromStatus:       Status(entry.From),
			ToStatus:         Status(entry.To),
			RequiresApproval: entry.RequiresApproval,
			RequiresReason:   entry.RequiresReason,
			MinValueCents:    entry.MinValueCents,
			MaxValueCents:    entry.MaxValueCents,
			Active:           entry.Active == nil || *entry.Active,
		}
		for _, role := range entry.Roles {
			rule.RequiredRoles = append(rule.RequiredRoles, tenant.Role(role))
		}
		if entry.MinTimeInStage != "" {
			d, err := time.ParseDuration(entry.MinTimeInStage)
			if err != nil {
				return nil, apperrors.Wrapf(ErrInvalidRule, "rule %d: invalid min_time_in_stage %q", i+1, entry.MinTimeInStage)
			}
			rule.MinTimeInStage = d
		}

		if err := rule.Validate(); err != nil {
			return nil, apperrors.Wrapf(err, "rule %d", i+1)
		}

		pair := [2]Status{rule.FromStatus, rule.ToStatus}
		if _, ok := seen[pair]; ok {
			return nil, apperrors.Wrapf(ErrInvalidRule, "rule %d: duplicate rule from %s to %s", i+1, rule.FromStatus, rule.ToStatus)
		}
		seen[pair] = struct{}{}

		rules = append(rules, rule)
	}

	return rules, nil
}
