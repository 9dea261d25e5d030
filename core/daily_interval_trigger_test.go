package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDailyTrigger() *DailyTimeIntervalTrigger {
	start := time.Date(2011, time.January, 1, 8, 0, 0, 0, time.UTC)
	trig := NewDailyTimeIntervalTrigger(NewTriggerKey("window"), NewJobKey("j"), start, 72, IntervalMinute)
	trig.SetStartTimeOfDay(NewTimeOfDay(8, 0, 0))
	trig.SetEndTimeOfDay(NewTimeOfDay(11, 0, 0))
	return trig
}

func TestDailyIntervalTriggerWindowGrid(t *testing.T) {
	t.Parallel()

	trig := newTestDailyTrigger()
	require.NoError(t, trig.Validate())

	first := trig.ComputeFirstFireTime(nil)
	assert.Equal(t, time.Date(2011, time.January, 1, 8, 0, 0, 0, time.UTC), first)

	// Three fires per day: 08:00, 09:12, 10:24; 11:36 falls past the window.
	var fires []time.Time
	cursor := first.Add(-time.Millisecond)
	for i := 0; i < 48; i++ {
		cursor = trig.GetFireTimeAfter(cursor)
		require.False(t, cursor.IsZero())
		fires = append(fires, cursor)
	}

	assert.Equal(t, time.Date(2011, time.January, 1, 9, 12, 0, 0, time.UTC), fires[1])
	assert.Equal(t, time.Date(2011, time.January, 1, 10, 24, 0, 0, time.UTC), fires[2])
	assert.Equal(t, time.Date(2011, time.January, 2, 8, 0, 0, 0, time.UTC), fires[3])
	assert.Equal(t, time.Date(2011, time.January, 16, 10, 24, 0, 0, time.UTC), fires[47])
}

func TestDailyIntervalTriggerDayOfWeekRestriction(t *testing.T) {
	t.Parallel()

	// 2024-06-07 is a Friday
	start := time.Date(2024, time.June, 7, 9, 0, 0, 0, time.UTC)
	trig := NewDailyTimeIntervalTrigger(NewTriggerKey("weekdays"), NewJobKey("j"), start, 2, IntervalHour)
	trig.SetStartTimeOfDay(NewTimeOfDay(9, 0, 0))
	trig.SetEndTimeOfDay(NewTimeOfDay(17, 0, 0))
	trig.SetDaysOfWeek(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
	require.NoError(t, trig.Validate())

	// last Friday slot is 17:00; the next fire skips the weekend
	next := trig.GetFireTimeAfter(time.Date(2024, time.June, 7, 16, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.June, 7, 17, 0, 0, 0, time.UTC), next)

	next = trig.GetFireTimeAfter(next)
	assert.Equal(t, time.Date(2024, time.June, 10, 9, 0, 0, 0, time.UTC), next)
}

func TestDailyIntervalTriggerRepeatCountExhaustion(t *testing.T) {
	t.Parallel()

	trig := newTestDailyTrigger()
	trig.SetRepeatCount(2)
	trig.ComputeFirstFireTime(nil)

	trig.Triggered(nil) // fire 1
	assert.False(t, trig.NextFireTime().IsZero())
	trig.Triggered(nil) // fire 2
	assert.False(t, trig.NextFireTime().IsZero())
	trig.Triggered(nil) // fire 3, past the repeat count
	assert.True(t, trig.NextFireTime().IsZero())
}

func TestDailyIntervalTriggerValidate(t *testing.T) {
	t.Parallel()

	start := time.Now()

	trig := NewDailyTimeIntervalTrigger(NewTriggerKey("t"), NewJobKey("j"), start, 0, IntervalMinute)
	assert.ErrorIs(t, trig.Validate(), ErrInvalidTrigger)

	trig = NewDailyTimeIntervalTrigger(NewTriggerKey("t"), NewJobKey("j"), start, 25, IntervalHour)
	assert.ErrorIs(t, trig.Validate(), ErrInvalidTrigger)

	trig = NewDailyTimeIntervalTrigger(NewTriggerKey("t"), NewJobKey("j"), start, 1, IntervalMinute)
	trig.SetStartTimeOfDay(NewTimeOfDay(12, 0, 0))
	trig.SetEndTimeOfDay(NewTimeOfDay(9, 0, 0))
	assert.ErrorIs(t, trig.Validate(), ErrInvalidTrigger)

	trig = NewDailyTimeIntervalTrigger(NewTriggerKey("t"), NewJobKey("j"), start, 1, IntervalMinute)
	trig.SetDaysOfWeek() // no days enabled
	assert.ErrorIs(t, trig.Validate(), ErrInvalidTrigger)
}

func TestDailyIntervalTriggerMisfireDoNothing(t *testing.T) {
	t.Parallel()

	start := time.Now().Add(-48 * time.Hour)
	trig := NewDailyTimeIntervalTrigger(NewTriggerKey("t"), NewJobKey("j"), start, 1, IntervalHour)
	trig.SetMisfireInstruction(MisfireDailyDoNothing)
	trig.ComputeFirstFireTime(nil)

	trig.UpdateAfterMisfire(nil)
	assert.True(t, trig.NextFireTime().After(time.Now()))
}

func TestTimeOfDayOrdering(t *testing.T) {
	t.Parallel()

	a := NewTimeOfDay(8, 30, 0)
	b := NewTimeOfDay(8, 30, 1)
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
	assert.Equal(t, "08:30:00", a.String())

	assert.Error(t, NewTimeOfDay(24, 0, 0).Validate())
	assert.NoError(t, NewTimeOfDay(23, 59, 59).Validate())
}
