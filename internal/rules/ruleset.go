// Package rules loads event classification rules and applies them to log lines.
package rules

import "regexp"

// Rule classifies lines matching Pattern as events of Kind.
// Groups names the pattern's capture groups by position.
type Rule struct {
	Kind    string
	Pattern *regexp.Regexp
	Groups  []string
}

// RuleSet is an ordered collection of rules. Earlier rules take precedence.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet builds a RuleSet from already compiled rules, keeping their order.
func NewRuleSet(rules ...Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

// Len returns the number of rules
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Kinds returns the event kinds in rule order
func (rs *RuleSet) Kinds() []string {
	if rs == nil {
		return nil
	}
	kinds := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		kinds[i] = r.Kind
	}
	return kinds
}

// Match is the outcome of a successful classification
type Match struct {
	Kind   string
	Fields map[string]string
}

// Classify searches line with each rule in order and returns the first match.
// Capture groups that did not take part in the match are left out of Fields.
func (rs *RuleSet) Classify(line string) (Match, bool) {
	if rs == nil {
		return Match{}, false
	}

	for _, r := range rs.rules {
		loc := r.Pattern.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}

		fields := make(map[string]string, len(r.Groups))
		for i, name := range r.Groups {
			start, end := 2*(i+1), 2*(i+1)+1
			if end >= len(loc) || loc[start] < 0 {
				continue
			}
			fields[name] = line[loc[start]:loc[end]]
		}
		return Match{Kind: r.Kind, Fields: fields}, true
	}

	return Match{}, false
}
