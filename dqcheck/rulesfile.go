package dqcheck

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// RulesFile overrides parts of the built-in rule packs. duplicate_key and
// non_negative replace the defaults when present; allowed_values replaces
// the set of each listed column and keeps the other domain rules. A table
// not listed keeps its built-in pack.
//
//	tables:
//	  SAMPLE_BUREAU:
//	    allowed_values:
//	      CREDIT_CURRENCY: ["currency 1", "currency 2"]
type RulesFile struct {
	Tables map[string]TableOverride `yaml:"tables"`
}

type TableOverride struct {
	DuplicateKey  []string            `yaml:"duplicate_key"`
	NonNegative   []string            `yaml:"non_negative"`
	AllowedValues map[string][]string `yaml:"allowed_values"`
	Payment       *PaymentOverride    `yaml:"payment"`
}

type PaymentOverride struct {
	Over  string `yaml:"over"`
	Under string `yaml:"under"`
}

// LoadRulesFile builds a registry from the defaults plus the overrides in
// path. An empty path returns the default registry.
func LoadRulesFile(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return rf.Apply(DefaultSpecs())
}

func (rf RulesFile) Apply(specs []TableSpec) (*Registry, error) {
	known := make(map[string]bool, len(specs))
	for i := range specs {
		known[specs[i].Name] = true
		ov, ok := rf.Tables[specs[i].Name]
		if !ok {
			continue
		}
		if err := ov.apply(&specs[i]); err != nil {
			return nil, fmt.Errorf("table %s: %w", specs[i].Name, err)
		}
	}
	for name := range rf.Tables {
		if !known[name] {
			return nil, fmt.Errorf("rules file: %s: %w", name, ErrUnknownTable)
		}
	}
	return NewRegistry(specs...)
}

func (ov TableOverride) apply(spec *TableSpec) error {
	if len(ov.DuplicateKey) > 0 {
		spec.DuplicateKey = ov.DuplicateKey
	}
	if ov.NonNegative != nil {
		spec.NonNegative = ov.NonNegative
	}
	if len(ov.AllowedValues) > 0 {
		cols := make([]string, 0, len(ov.AllowedValues))
		for col := range ov.AllowedValues {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		domains := append([]DomainRule(nil), spec.Domains...)
		for _, col := range cols {
			rule := DomainRule{Column: col, Allowed: ov.AllowedValues[col]}
			replaced := false
			for i := range domains {
				if domains[i].Column == col {
					domains[i] = rule
					replaced = true
				}
			}
			if !replaced {
				domains = append(domains, rule)
			}
		}
		spec.Domains = domains
	}
	if ov.Payment != nil {
		if spec.Payment == nil {
			return fmt.Errorf("payment thresholds set on a table without a payment rule")
		}
		p := *spec.Payment
		if ov.Payment.Over != "" {
			d, err := decimal.NewFromString(ov.Payment.Over)
			if err != nil {
				return fmt.Errorf("payment.over: %w", err)
			}
			p.Over = d
		}
		if ov.Payment.Under != "" {
			d, err := decimal.NewFromString(ov.Payment.Under)
			if err != nil {
				return fmt.Errorf("payment.under: %w", err)
			}
			p.Under = d
		}
		spec.Payment = &p
	}
	return nil
}
