package core

import "strings"

// StringOperator is the comparison applied by a group matcher.
type StringOperator int

const (
	OpEquals StringOperator = iota
	OpStartsWith
	OpEndsWith
	OpContains
	OpAnything
)

func (op StringOperator) Evaluate(value, compareTo string) bool {
	switch op {
	case OpEquals:
		return value == compareTo
	case OpStartsWith:
		return strings.HasPrefix(value, compareTo)
	case OpEndsWith:
		return strings.HasSuffix(value, compareTo)
	case OpContains:
		return strings.Contains(value, compareTo)
	case OpAnything:
		return true
	}
	return false
}

// Matcher is a predicate over keys used for listener registration and bulk
// store queries.
type Matcher interface {
	IsMatch(key Key) bool
}

// GroupMatcher matches keys by their group component. An EQUALS matcher
// additionally lets the store do direct index lookup instead of iterating
// group names.
type GroupMatcher struct {
	Operator  StringOperator
	CompareTo string
}

func (m GroupMatcher) IsMatch(key Key) bool {
	return m.Operator.Evaluate(key.Group, m.CompareTo)
}

func GroupEquals(group string) GroupMatcher {
	return GroupMatcher{Operator: OpEquals, CompareTo: group}
}

func GroupStartsWith(prefix string) GroupMatcher {
	return GroupMatcher{Operator: OpStartsWith, CompareTo: prefix}
}

func GroupEndsWith(suffix string) GroupMatcher {
	return GroupMatcher{Operator: OpEndsWith, CompareTo: suffix}
}

func GroupContains(substr string) GroupMatcher {
	return GroupMatcher{Operator: OpContains, CompareTo: substr}
}

func AnyGroup() GroupMatcher {
	return GroupMatcher{Operator: OpAnything}
}

// KeyEquals matches exactly one key.
type KeyEquals struct {
	Compare Key
}

func (m KeyEquals) IsMatch(key Key) bool {
	return key == m.Compare
}

// NameEquals matches keys by name regardless of group.
type NameEquals struct {
	Name string
}

func (m NameEquals) IsMatch(key Key) bool {
	return key.Name == m.Name
}

// EverythingMatcher matches all keys.
type EverythingMatcher struct{}

func (EverythingMatcher) IsMatch(Key) bool { return true }

type andMatcher struct{ matchers []Matcher }

func (m andMatcher) IsMatch(key Key) bool {
	for _, sub := range m.matchers {
		if !sub.IsMatch(key) {
			return false
		}
	}
	return true
}

type orMatcher struct{ matchers []Matcher }

func (m orMatcher) IsMatch(key Key) bool {
	for _, sub := range m.matchers {
		if sub.IsMatch(key) {
			return true
		}
	}
	return false
}

type notMatcher struct{ matcher Matcher }

func (m notMatcher) IsMatch(key Key) bool {
	return !m.matcher.IsMatch(key)
}

// MatchAnd combines matchers conjunctively. With no operands it matches
// everything.
func MatchAnd(matchers ...Matcher) Matcher {
	return andMatcher{matchers: matchers}
}

// MatchOr combines matchers disjunctively.
func MatchOr(matchers ...Matcher) Matcher {
	return orMatcher{matchers: matchers}
}

// MatchNot negates a matcher.
func MatchNot(matcher Matcher) Matcher {
	return notMatcher{matcher: matcher}
}
