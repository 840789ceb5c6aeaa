package fallback

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// ErrInvalidTable reports a rule table that could not guarantee a reply.
var ErrInvalidTable = errors.New("invalid fallback rule table")

// Rule pairs a keyword set with its canned response.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Response string   `yaml:"response"`
}

// Matches reports whether any keyword is a substring of the already lower-cased text.
func (r Rule) Matches(normalized string) bool {
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// Decision is the outcome of classifying one utterance.
type Decision struct {
	Rule     string
	Response string
	Matched  bool
}

// Table is an ordered rule list plus a default response. It is never mutated after Load.
type Table struct {
	Rules   []Rule `yaml:"rules"`
	Default string `yaml:"default"`
}

// Default returns the table embedded in the binary.
func Default() *Table {
	table, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded fallback rules: %v", err))
	}
	return table
}

// Load reads a YAML rule table from path, or the embedded table when path is empty.
func Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback rules %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML rule table.
func Parse(raw []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("decode fallback rules: %w", err)
	}
	if err := table.normalize(); err != nil {
		return nil, err
	}
	return &table, nil
}

// normalize lower-cases keywords once so Classify only folds the input.
func (t *Table) normalize() error {
	t.Default = strings.TrimSpace(t.Default)
	if t.Default == "" {
		return fmt.Errorf("%w: default response is empty", ErrInvalidTable)
	}

	for i := range t.Rules {
		rule := &t.Rules[i]
		rule.Response = strings.TrimSpace(rule.Response)
		if rule.Response == "" {
			return fmt.Errorf("%w: rule %d (%s) has no response", ErrInvalidTable, i, rule.Name)
		}

		keywords := rule.Keywords[:0]
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			return fmt.Errorf("%w: rule %d (%s) has no keywords", ErrInvalidTable, i, rule.Name)
		}
		rule.Keywords = keywords
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule-%d", i)
		}
	}
	return nil
}

// Classify picks the canned response for text. It depends only on text and the table.
func (t *Table) Classify(text string) Decision {
	normalized := strings.ToLower(text)
	if rule, ok := firstMatch(t.Rules, func(r Rule) bool { return r.Matches(normalized) }); ok {
		return Decision{Rule: rule.Name, Response: rule.Response, Matched: true}
	}
	return Decision{Rule: "default", Response: t.Default}
}

// Reply is Classify without the bookkeeping.
func (t *Table) Reply(text string) string {
	return t.Classify(text).Response
}

func firstMatch[T any](items []T, pred func(T) bool) (T, bool) {
	for _, item := range items {
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}
