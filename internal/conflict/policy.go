package conflict

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

type Strategy string

const (
	StrategyLatest     Strategy = "latest"
	StrategyOldest     Strategy = "oldest"
	StrategyIgnore     Strategy = "ignore"
	StrategyAlwaysPull Strategy = "always-pull"
	StrategyAlwaysPush Strategy = "always-push"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyLatest, StrategyOldest, StrategyIgnore, StrategyAlwaysPull, StrategyAlwaysPush:
		return st, nil
	case "":
		return StrategyLatest, nil
	}
	return "", fmt.Errorf("unknown conflict strategy %q", s)
}

// Rule selects a strategy for paths matching a doublestar glob.
type Rule struct {
	Glob     string   `mapstructure:"glob" yaml:"glob"`
	Strategy Strategy `mapstructure:"strategy" yaml:"strategy"`
}

// Policy decides how each conflicting path is handled. The first matching rule
// wins, otherwise the fallback applies. With AutoResolve off nothing is resolved.
type Policy struct {
	AutoResolve bool
	Fallback    Strategy
	Rules       []Rule
}

func DefaultPolicy() *Policy {
	return &Policy{AutoResolve: true, Fallback: StrategyLatest}
}

// NewPolicy validates the fallback and every rule.
func NewPolicy(autoResolve bool, fallback string, rules []Rule) (*Policy, error) {
	fb, err := ParseStrategy(fallback)
	if err != nil {
		return nil, err
	}

	for i, rule := range rules {
		if !doublestar.ValidatePattern(rule.Glob) {
			return nil, fmt.Errorf("rule %d: invalid glob %q", i, rule.Glob)
		}
		st, err := ParseStrategy(string(rule.Strategy))
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules[i].Strategy = st
	}

	return &Policy{AutoResolve: autoResolve, Fallback: fb, Rules: rules}, nil
}

func (p *Policy) StrategyFor(path string) Strategy {
	if !p.AutoResolve {
		return StrategyIgnore
	}
	for _, rule := range p.Rules {
		if ok, _ := doublestar.Match(rule.Glob, path); ok {
			return rule.Strategy
		}
	}
	if p.Fallback == "" {
		return StrategyLatest
	}
	return p.Fallback
}
