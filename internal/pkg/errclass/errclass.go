// Package errclass classifies error-shaped output from managed services.
//
// The classifier is conservative: anything not matching the table defaults
// to Fatal, unexpected conditions are surfaced instead of silently skipped.
package errclass

import (
	"regexp"
)

type Class int

const (
	// Fatal aborts the pipeline, no remediation is applicable.
	Fatal Class = iota
	// Transient is remediated a bounded number of times before becoming Fatal.
	Transient
	// Benign is a known-harmless "already applied" class signal, logged and ignored.
	Benign
)

func (c Class) String() string {
	switch c {
	case Benign:
		return "benign"
	case Transient:
		return "transient"
	default:
		return "fatal"
	}
}

type matcher struct {
	pattern *regexp.Regexp
	class   Class
}

type Classifier struct {
	matchers []matcher
}

type Rule struct {
	Pattern string
	Class   Class
}

// NewClassifier compiles the rule table, the first matching rule wins.
func NewClassifier(rules []Rule) (*Classifier, error) {
	c := &Classifier{}
	for _, r := range rules {
		pattern, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, err
		}
		c.matchers = append(c.matchers, matcher{pattern: pattern, class: r.Class})
	}
	return c, nil
}

// DefaultRules covers the idempotent signals of the managed services:
// repeating an already applied operation must not abort the pipeline.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: `(?i)is already deployed`, Class: Benign},
		{Pattern: `(?i)already (stopped|disabled|enabled|exists|applied)`, Class: Benign},
		{Pattern: `(?i)is not running`, Class: Benign},
		{Pattern: `(?i)no such (application|deployment) .* to undeploy`, Class: Benign},
		{Pattern: `(?i)nothing to (remove|undeploy|stop)`, Class: Benign},
		{Pattern: `(?i)(connection refused|connection reset|i/o timeout|temporarily unavailable)`, Class: Transient},
		{Pattern: `(?i)(503 service unavailable|too many requests)`, Class: Transient},
	}
}

// Classify returns the class of the output, Fatal if no rule matches.
func (c *Classifier) Classify(output string) Class {
	for _, m := range c.matchers {
		if m.pattern.MatchString(output) {
			return m.class
		}
	}
	return Fatal
}

// ClassifyErr classifies an error message, nil is not an error.
func (c *Classifier) ClassifyErr(err error) Class {
	if err == nil {
		return Benign
	}
	return c.Classify(err.Error())
}
