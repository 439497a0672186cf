// engine/internal/rank/rules_scorer.go
package rank

import (
	"strings"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/domain"
)

const keywordPoints = 10

// RuleScorer scores free text against a fixed list of service rules.
// Rule order matters: on equal scores the earlier rule wins.
type RuleScorer struct {
	Rules []config.Rule
}

func NewRuleScorer(rules []config.Rule) RuleScorer {
	if len(rules) == 0 {
		rules = config.DefaultRules()
	}
	return RuleScorer{Rules: rules}
}

func (s RuleScorer) Categorize(name, description, industry string) Match {
	text := strings.ToLower(name + " " + description + " " + industry)
	ind := strings.ToLower(industry)

	var best Match
	for _, r := range s.Rules {
		score := 0
		for _, kw := range r.Keywords {
			kw = strings.ToLower(kw)
			if kw != "" && strings.Contains(text, kw) {
				score += keywordPoints
			}
		}
		if ind != "" {
			for _, tag := range r.Industries {
				tag = strings.ToLower(tag)
				if tag != "" && strings.Contains(ind, tag) {
					score += r.Boost
					break
				}
			}
		}
		if score > best.Score {
			best = Match{Service: r.Service, Score: score}
		}
	}

	if best.Score <= 0 {
		return Match{}
	}
	best.Score = domain.ClampScore(best.Score)
	return best
}

// Queries returns the search queries configured for service.
func (s RuleScorer) Queries(service string) []string {
	for _, r := range s.Rules {
		if r.Service == service {
			return r.Queries
		}
	}
	return nil
}
