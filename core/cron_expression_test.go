package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseCron(t *testing.T, expr string) *CronExpression {
	t.Helper()
	x, err := ParseCronExpressionInLocation(expr, time.UTC)
	require.NoError(t, err)
	return x
}

func TestCronExpressionBasicFields(t *testing.T) {
	t.Parallel()

	x := mustParseCron(t, "0 30 9 ? * MON-FRI")

	// Friday 2024-03-01
	after := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	next := x.NextAfter(after)
	assert.Equal(t, time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC), next)

	// from Friday 09:30 the following fire skips the weekend
	next = x.NextAfter(next)
	assert.Equal(t, time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC), next)
}

func TestCronExpressionLastDayOffset(t *testing.T) {
	t.Parallel()

	x := mustParseCron(t, "0 15 10 L-2 * ? 2010")

	// October 2010 has 31 days, so L-2 is the 29th
	assert.True(t, x.IsSatisfiedBy(time.Date(2010, time.October, 29, 10, 15, 0, 0, time.UTC)))
	assert.False(t, x.IsSatisfiedBy(time.Date(2010, time.October, 28, 10, 15, 0, 0, time.UTC)))

	next := x.NextAfter(time.Date(2010, time.October, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2010, time.October, 29, 10, 15, 0, 0, time.UTC), next)

	// the year field caps the schedule
	assert.True(t, x.NextAfter(time.Date(2010, time.December, 31, 0, 0, 0, 0, time.UTC)).IsZero())
}

func TestCronExpressionLastWeekdayStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	x := mustParseCron(t, "0 0 0 LW * ? *")

	cursor := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	var fires []time.Time
	for i := 0; i < 25; i++ {
		cursor = x.NextAfter(cursor)
		require.False(t, cursor.IsZero())
		fires = append(fires, cursor)
	}
	for i := 1; i < len(fires); i++ {
		assert.True(t, fires[i].After(fires[i-1]), "fire %d not after fire %d", i, i-1)
	}

	// March 2024 ends on Sunday the 31st, so LW is Friday the 29th
	assert.Equal(t, time.Date(2024, time.March, 29, 0, 0, 0, 0, time.UTC), fires[2])
}

func TestCronExpressionNearestWeekday(t *testing.T) {
	t.Parallel()

	x := mustParseCron(t, "0 0 0 15W * ?")

	// 2023-07-15 is a Saturday; nearest weekday is Friday the 14th
	assert.True(t, x.IsSatisfiedBy(time.Date(2023, time.July, 14, 0, 0, 0, 0, time.UTC)))
	assert.False(t, x.IsSatisfiedBy(time.Date(2023, time.July, 15, 0, 0, 0, 0, time.UTC)))

	// 2023-10-15 is a Sunday; nearest weekday is Monday the 16th
	assert.True(t, x.IsSatisfiedBy(time.Date(2023, time.October, 16, 0, 0, 0, 0, time.UTC)))
}

func TestCronExpressionNthWeekday(t *testing.T) {
	t.Parallel()

	// third Friday of every month
	x := mustParseCron(t, "0 0 12 ? * 6#3")

	next := x.NextAfter(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.June, 21, 12, 0, 0, 0, time.UTC), next)
}

func TestCronExpressionLastDayOfWeek(t *testing.T) {
	t.Parallel()

	// last Thursday of the month
	x := mustParseCron(t, "0 0 8 ? * 5L")

	next := x.NextAfter(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.May, 30, 8, 0, 0, 0, time.UTC), next)
}

func TestCronExpressionStepsAndLists(t *testing.T) {
	t.Parallel()

	x := mustParseCron(t, "0 0/15 8,18 ? * *")

	start := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, start.Add(15*time.Minute), x.NextAfter(start))
	assert.Equal(t,
		time.Date(2024, time.January, 10, 18, 0, 0, 0, time.UTC),
		x.NextAfter(time.Date(2024, time.January, 10, 8, 45, 0, 0, time.UTC)))
}

func TestCronExpressionMonthAndDayNames(t *testing.T) {
	t.Parallel()

	x := mustParseCron(t, "0 0 0 1 JAN,JUL ?")

	next := x.NextAfter(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), next)
}

func TestCronExpressionParseErrors(t *testing.T) {
	t.Parallel()

	cases := []string{
		"* * * * *",          // too few fields
		"0 0 0 * * *",        // neither day field is '?'
		"0 0 0 ? * ?",        // both day fields are '?'
		"0 61 0 ? * *",       // minute out of range
		"0 0 0 ? * 6#6",      // ordinal beyond 5
		"0 0 0 32W * ?",      // 'W' day beyond 31
		"0 0 0 1,L * ?",      // 'L' combined with other values
		"x 0 0 ? * *",        // non-numeric
	}
	for _, expr := range cases {
		_, err := ParseCronExpressionInLocation(expr, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidCronExpression, "expression %q", expr)
	}
}

func TestCronExpressionNextInvalidTimeAfter(t *testing.T) {
	t.Parallel()

	// matches every second during minute 30
	x := mustParseCron(t, "* 30 * ? * *")

	inside := time.Date(2024, time.January, 1, 9, 30, 10, 0, time.UTC)
	invalid := x.NextInvalidTimeAfter(inside)
	assert.Equal(t, time.Date(2024, time.January, 1, 9, 31, 0, 0, time.UTC), invalid)

	outside := time.Date(2024, time.January, 1, 9, 45, 0, 0, time.UTC)
	assert.Equal(t, outside.Add(time.Second), x.NextInvalidTimeAfter(outside))
}

func TestCronTriggerSchedule(t *testing.T) {
	t.Parallel()

	trig, err := NewCronTriggerInLocation(NewTriggerKey("nightly"), NewJobKey("j"), "0 0 2 ? * *", time.UTC)
	require.NoError(t, err)
	require.NoError(t, trig.Validate())

	start := time.Date(2024, time.April, 10, 12, 0, 0, 0, time.UTC)
	trig.SetStartTime(start)

	first := trig.ComputeFirstFireTime(nil)
	assert.Equal(t, time.Date(2024, time.April, 11, 2, 0, 0, 0, time.UTC), first)

	trig.Triggered(nil)
	assert.Equal(t, first, trig.PreviousFireTime())
	assert.Equal(t, first.Add(24*time.Hour), trig.NextFireTime())
}

func TestCronTriggerInvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := NewCronTrigger(NewTriggerKey("bad"), NewJobKey("j"), "not a cron")
	assert.ErrorIs(t, err, ErrInvalidCronExpression)
}
