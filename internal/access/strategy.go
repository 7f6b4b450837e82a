package access

import (
	"regexp"
	"strings"

	"go-query-gateway/internal/config"
)

// Strategy decides whether a single table reference may be queried.
type Strategy interface {
	IsAllowed(ref TableReference) bool
}

// ExplicitStrategy allows an exact list of fully-qualified tables.
type ExplicitStrategy struct {
	tables map[string]bool
}

func NewExplicitStrategy(tables []string) *ExplicitStrategy {
	s := &ExplicitStrategy{tables: make(map[string]bool, len(tables))}
	for _, t := range tables {
		s.tables[strings.ToLower(t)] = true
	}
	return s
}

func (s *ExplicitStrategy) IsAllowed(ref TableReference) bool {
	return s.tables[strings.ToLower(ref.FullName)]
}

// DatasetStrategy allows every table of a listed dataset except blacklisted ones.
type DatasetStrategy struct {
	blacklists map[string]map[string]bool
}

func NewDatasetStrategy(datasets map[string]config.DatasetRule) *DatasetStrategy {
	s := &DatasetStrategy{blacklists: make(map[string]map[string]bool, len(datasets))}
	for id, rule := range datasets {
		blocked := make(map[string]bool, len(rule.BlacklistedTables))
		for _, t := range rule.BlacklistedTables {
			blocked[strings.ToLower(t)] = true
		}
		s.blacklists[strings.ToLower(id)] = blocked
	}
	return s
}

// IsAllowed treats dataset presence as access. AllowAllTables is descriptive
// only and does not narrow the grant.
func (s *DatasetStrategy) IsAllowed(ref TableReference) bool {
	blocked, ok := s.blacklists[strings.ToLower(ref.DatasetID())]
	if !ok {
		return false
	}
	return !blocked[strings.ToLower(ref.Table)]
}

// PatternStrategy allows tables whose full name matches a shell-style
// wildcard. '*' matches any run of characters including dots, '?' matches
// exactly one character and '[seq]' or '[!seq]' matches one character in or
// out of the set.
type PatternStrategy struct {
	patterns []*regexp.Regexp
}

func NewPatternStrategy(patterns []string) *PatternStrategy {
	s := &PatternStrategy{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		s.patterns = append(s.patterns, compileGlob(strings.ToLower(p)))
	}
	return s
}

func (s *PatternStrategy) IsAllowed(ref TableReference) bool {
	name := strings.ToLower(ref.FullName)
	for _, re := range s.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// compileGlob translates a wildcard pattern into an anchored regexp. A '['
// without a closing ']' is literal. A pattern whose class does not compile,
// such as a reversed range, matches only its own text.
func compileGlob(pattern string) *regexp.Regexp {
	p := []rune(pattern)
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			end := classEnd(p, i)
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			writeClass(&b, p[i+1:end])
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(p[i])))
		}
	}
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return regexp.MustCompile(`(?s)^` + regexp.QuoteMeta(pattern) + `$`)
	}
	return re
}

// classEnd returns the index of the ']' closing the class opened at start.
// A leading '!' negates and a ']' right after it is a member.
func classEnd(p []rune, start int) int {
	j := start + 1
	if j < len(p) && p[j] == '!' {
		j++
	}
	if j < len(p) && p[j] == ']' {
		j++
	}
	for ; j < len(p); j++ {
		if p[j] == ']' {
			return j
		}
	}
	return -1
}

func writeClass(b *strings.Builder, members []rune) {
	b.WriteByte('[')
	if len(members) > 0 && members[0] == '!' {
		b.WriteByte('^')
		members = members[1:]
	}
	for _, r := range members {
		switch r {
		case '\\', '[', ']', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte(']')
}

// CompositeStrategy allows a table when any child strategy does.
type CompositeStrategy struct {
	strategies []Strategy
}

func NewCompositeStrategy(strategies ...Strategy) *CompositeStrategy {
	return &CompositeStrategy{strategies: strategies}
}

func (s *CompositeStrategy) IsAllowed(ref TableReference) bool {
	for _, strategy := range s.strategies {
		if strategy.IsAllowed(ref) {
			return true
		}
	}
	return false
}
