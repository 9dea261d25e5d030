package core

import (
	"fmt"
	"time"
)

// IntervalUnit is the unit of a daily time-interval trigger's repeat
// interval.
type IntervalUnit int

const (
	IntervalSecond IntervalUnit = iota
	IntervalMinute
	IntervalHour
)

func (u IntervalUnit) Duration() time.Duration {
	switch u {
	case IntervalMinute:
		return time.Minute
	case IntervalHour:
		return time.Hour
	default:
		return time.Second
	}
}

func (u IntervalUnit) String() string {
	switch u {
	case IntervalSecond:
		return "SECOND"
	case IntervalMinute:
		return "MINUTE"
	case IntervalHour:
		return "HOUR"
	}
	return "UNKNOWN"
}

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute, Second: second}
}

func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (t TimeOfDay) secondsOfDay() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.secondsOfDay() < other.secondsOfDay()
}

// On places the time-of-day on the given date, in the date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, t.Second, 0, date.Location())
}

func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return fmt.Errorf("%w: time of day %02d:%02d:%02d out of range", ErrInvalidTrigger, t.Hour, t.Minute, t.Second)
	}
	return nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// DailyTimeIntervalTrigger fires on an interval grid anchored at a start
// time-of-day, on an allowed set of weekdays, within a daily window. The
// grid resets at each day boundary.
type DailyTimeIntervalTrigger struct {
	baseTrigger
	interval       int
	unit           IntervalUnit
	repeatCount    int
	daysOfWeek     [7]bool
	startTimeOfDay TimeOfDay
	endTimeOfDay   TimeOfDay
	timesTriggered int
}

// NewDailyTimeIntervalTrigger builds a trigger firing every interval units
// inside the default full-day window on all seven weekdays.
func NewDailyTimeIntervalTrigger(key TriggerKey, jobKey JobKey, start time.Time, interval int, unit IntervalUnit) *DailyTimeIntervalTrigger {
	t := &DailyTimeIntervalTrigger{
		baseTrigger:    newBaseTriggerAt(key, jobKey, start),
		interval:       interval,
		unit:           unit,
		repeatCount:    RepeatIndefinitely,
		startTimeOfDay: TimeOfDay{},
		endTimeOfDay:   TimeOfDay{Hour: 23, Minute: 59, Second: 59},
	}
	for i := range t.daysOfWeek {
		t.daysOfWeek[i] = true
	}
	return t
}

func (t *DailyTimeIntervalTrigger) SetRepeatCount(count int)    { t.repeatCount = count }
func (t *DailyTimeIntervalTrigger) SetStartTimeOfDay(tod TimeOfDay) { t.startTimeOfDay = tod }
func (t *DailyTimeIntervalTrigger) SetEndTimeOfDay(tod TimeOfDay)   { t.endTimeOfDay = tod }

// SetDaysOfWeek restricts firing to the given weekdays.
func (t *DailyTimeIntervalTrigger) SetDaysOfWeek(days ...time.Weekday) {
	t.daysOfWeek = [7]bool{}
	for _, d := range days {
		t.daysOfWeek[d] = true
	}
}

func (t *DailyTimeIntervalTrigger) StartTimeOfDay() TimeOfDay { return t.startTimeOfDay }
func (t *DailyTimeIntervalTrigger) EndTimeOfDay() TimeOfDay   { return t.endTimeOfDay }
func (t *DailyTimeIntervalTrigger) RepeatCount() int          { return t.repeatCount }
func (t *DailyTimeIntervalTrigger) TimesTriggered() int       { return t.timesTriggered }

func (t *DailyTimeIntervalTrigger) intervalDuration() time.Duration {
	return time.Duration(t.interval) * t.unit.Duration()
}

func (t *DailyTimeIntervalTrigger) Validate() error {
	if err := t.validateBase(); err != nil {
		return err
	}
	if t.interval <= 0 {
		return fmt.Errorf("%w: %q: repeat interval must be positive", ErrInvalidTrigger, t.key)
	}
	switch t.unit {
	case IntervalSecond, IntervalMinute, IntervalHour:
	default:
		return fmt.Errorf("%w: %q: unsupported interval unit", ErrInvalidTrigger, t.key)
	}
	if t.intervalDuration() > 24*time.Hour {
		return fmt.Errorf("%w: %q: repeat interval exceeds one day", ErrInvalidTrigger, t.key)
	}
	if err := t.startTimeOfDay.Validate(); err != nil {
		return err
	}
	if err := t.endTimeOfDay.Validate(); err != nil {
		return err
	}
	if !t.startTimeOfDay.Before(t.endTimeOfDay) {
		return fmt.Errorf("%w: %q: start time of day %s not before end time of day %s",
			ErrInvalidTrigger, t.key, t.startTimeOfDay, t.endTimeOfDay)
	}
	anyDay := false
	for _, ok := range t.daysOfWeek {
		anyDay = anyDay || ok
	}
	if !anyDay {
		return fmt.Errorf("%w: %q: no days of week enabled", ErrInvalidTrigger, t.key)
	}
	return nil
}

// maxDayScan bounds the forward day walk; with at least one allowed
// weekday a slot is always found within a week, so this only guards
// against end-time exhaustion.
const maxDayScan = 8

func (t *DailyTimeIntervalTrigger) GetFireTimeAfter(after time.Time) time.Time {
	if after.Before(t.startTime) {
		after = t.startTime.Add(-time.Millisecond)
	}

	interval := t.intervalDuration()
	day := after
	for i := 0; i < maxDayScan; i++ {
		if t.daysOfWeek[day.Weekday()] {
			startOfWindow := t.startTimeOfDay.On(day)
			endOfWindow := t.endTimeOfDay.On(day)

			candidate := startOfWindow
			if !after.Before(startOfWindow) {
				k := after.Sub(startOfWindow)/interval + 1
				candidate = startOfWindow.Add(k * interval)
			}
			if candidate.After(after) && !candidate.After(endOfWindow) {
				return t.boundByEnd(candidate)
			}
		}
		day = startOfNextDay(day)
	}
	return time.Time{}
}

func (t *DailyTimeIntervalTrigger) boundByEnd(candidate time.Time) time.Time {
	if !t.endTime.IsZero() && candidate.After(t.endTime) {
		return time.Time{}
	}
	return candidate
}

func (t *DailyTimeIntervalTrigger) ComputeFirstFireTime(cal Calendar) time.Time {
	first := t.GetFireTimeAfter(t.startTime.Add(-time.Millisecond))
	first = t.advanceIncluded(cal, first, t.GetFireTimeAfter)
	t.nextFireTime = first
	return first
}

func (t *DailyTimeIntervalTrigger) Triggered(cal Calendar) {
	t.timesTriggered++
	t.previousFireTime = t.nextFireTime
	if t.repeatCount != RepeatIndefinitely && t.timesTriggered > t.repeatCount {
		t.nextFireTime = time.Time{}
		return
	}
	next := t.GetFireTimeAfter(t.nextFireTime)
	t.nextFireTime = t.advanceIncluded(cal, next, t.GetFireTimeAfter)
}

func (t *DailyTimeIntervalTrigger) UpdateAfterMisfire(cal Calendar) {
	instruction := t.misfireInstruction
	if instruction == MisfireInstructionIgnoreMisfirePolicy {
		return
	}
	if instruction == MisfireInstructionSmartPolicy {
		instruction = MisfireDailyFireOnceNow
	}

	switch instruction {
	case MisfireDailyFireOnceNow:
		t.nextFireTime = t.advanceIncluded(cal, time.Now(), t.GetFireTimeAfter)
	case MisfireDailyDoNothing:
		next := t.GetFireTimeAfter(time.Now())
		t.nextFireTime = t.advanceIncluded(cal, next, t.GetFireTimeAfter)
	}
}

func (t *DailyTimeIntervalTrigger) UpdateWithNewCalendar(cal Calendar, misfireThreshold time.Duration) {
	t.updateCalendarRecompute(cal, misfireThreshold, t.GetFireTimeAfter)
}

func (t *DailyTimeIntervalTrigger) ExecutionCompleteInstruction(_ *JobExecutionContext, jobErr error) CompletedExecutionInstruction {
	return defaultExecutionCompleteInstruction(t, jobErr)
}

func (t *DailyTimeIntervalTrigger) Clone() OperableTrigger {
	out := *t
	out.baseTrigger = t.baseTrigger.cloneBase()
	return &out
}
