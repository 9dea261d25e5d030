package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupMatcherOperators(t *testing.T) {
	t.Parallel()

	key := Key{Group: "batch-etl", Name: "job1"}

	assert.True(t, GroupEquals("batch-etl").IsMatch(key))
	assert.False(t, GroupEquals("batch").IsMatch(key))
	assert.True(t, GroupStartsWith("batch").IsMatch(key))
	assert.True(t, GroupEndsWith("etl").IsMatch(key))
	assert.True(t, GroupContains("ch-e").IsMatch(key))
	assert.True(t, AnyGroup().IsMatch(key))
	assert.False(t, GroupStartsWith("etl").IsMatch(key))
}

func TestKeyAndNameMatchers(t *testing.T) {
	t.Parallel()

	key := Key{Group: "g", Name: "n"}
	assert.True(t, KeyEquals{Compare: key}.IsMatch(key))
	assert.False(t, KeyEquals{Compare: Key{Group: "g", Name: "other"}}.IsMatch(key))
	assert.True(t, NameEquals{Name: "n"}.IsMatch(key))
	assert.True(t, EverythingMatcher{}.IsMatch(key))
}

func TestMatcherCombinators(t *testing.T) {
	t.Parallel()

	key := Key{Group: "batch", Name: "report"}

	and := MatchAnd(GroupEquals("batch"), NameEquals{Name: "report"})
	assert.True(t, and.IsMatch(key))
	assert.False(t, MatchAnd(GroupEquals("batch"), NameEquals{Name: "x"}).IsMatch(key))

	or := MatchOr(GroupEquals("nope"), NameEquals{Name: "report"})
	assert.True(t, or.IsMatch(key))
	assert.False(t, MatchOr(GroupEquals("nope"), NameEquals{Name: "x"}).IsMatch(key))

	assert.False(t, MatchNot(and).IsMatch(key))

	// AND of nothing matches everything
	assert.True(t, MatchAnd().IsMatch(key))
}
