package core

import (
	"fmt"
	"time"
)

// WeeklyCalendar excludes a set of days of the week. By default Saturday
// and Sunday are excluded.
type WeeklyCalendar struct {
	BaseCalendar
	excluded [7]bool
}

func NewWeeklyCalendar() *WeeklyCalendar {
	c := &WeeklyCalendar{}
	c.excluded[time.Saturday] = true
	c.excluded[time.Sunday] = true
	return c
}

// SetDayExcluded marks a weekday as excluded or included.
func (c *WeeklyCalendar) SetDayExcluded(day time.Weekday, excluded bool) {
	c.excluded[day] = excluded
}

func (c *WeeklyCalendar) IsDayExcluded(day time.Weekday) bool {
	return c.excluded[day]
}

func (c *WeeklyCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.baseIncludes(t) {
		return false
	}
	return !c.excluded[t.Weekday()]
}

func (c *WeeklyCalendar) NextIncludedTime(t time.Time) time.Time {
	return scanNextIncluded(c, t, 24*time.Hour, startOfNextDay)
}

func (c *WeeklyCalendar) Clone() Calendar {
	out := *c
	out.BaseCalendar = c.BaseCalendar.cloneBase()
	return &out
}

// AnnualCalendar excludes a set of (month, day) dates every year.
type AnnualCalendar struct {
	BaseCalendar
	excluded map[monthDay]struct{}
}

type monthDay struct {
	Month time.Month
	Day   int
}

func NewAnnualCalendar() *AnnualCalendar {
	return &AnnualCalendar{excluded: make(map[monthDay]struct{})}
}

func (c *AnnualCalendar) SetDayExcluded(month time.Month, day int, excluded bool) {
	if excluded {
		c.excluded[monthDay{month, day}] = struct{}{}
	} else {
		delete(c.excluded, monthDay{month, day})
	}
}

func (c *AnnualCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.baseIncludes(t) {
		return false
	}
	_, ok := c.excluded[monthDay{t.Month(), t.Day()}]
	return !ok
}

func (c *AnnualCalendar) NextIncludedTime(t time.Time) time.Time {
	return scanNextIncluded(c, t, 24*time.Hour, startOfNextDay)
}

func (c *AnnualCalendar) Clone() Calendar {
	out := *c
	out.BaseCalendar = c.BaseCalendar.cloneBase()
	out.excluded = make(map[monthDay]struct{}, len(c.excluded))
	for k := range c.excluded {
		out.excluded[k] = struct{}{}
	}
	return &out
}

// HolidayCalendar excludes whole specific dates (year-month-day).
type HolidayCalendar struct {
	BaseCalendar
	excluded map[string]struct{}
}

func NewHolidayCalendar() *HolidayCalendar {
	return &HolidayCalendar{excluded: make(map[string]struct{})}
}

func dateKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

func (c *HolidayCalendar) AddExcludedDate(t time.Time) {
	c.excluded[dateKey(t)] = struct{}{}
}

func (c *HolidayCalendar) RemoveExcludedDate(t time.Time) {
	delete(c.excluded, dateKey(t))
}

func (c *HolidayCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.baseIncludes(t) {
		return false
	}
	_, ok := c.excluded[dateKey(t)]
	return !ok
}

func (c *HolidayCalendar) NextIncludedTime(t time.Time) time.Time {
	return scanNextIncluded(c, t, 24*time.Hour, startOfNextDay)
}

func (c *HolidayCalendar) Clone() Calendar {
	out := *c
	out.BaseCalendar = c.BaseCalendar.cloneBase()
	out.excluded = make(map[string]struct{}, len(c.excluded))
	for k := range c.excluded {
		out.excluded[k] = struct{}{}
	}
	return &out
}

// DailyCalendar excludes a time-of-day window on every day. With Invert
// set, the window is the only included part of the day instead.
type DailyCalendar struct {
	BaseCalendar
	RangeStart TimeOfDay
	RangeEnd   TimeOfDay
	Invert     bool
}

// NewDailyCalendar excludes [start, end) each day.
func NewDailyCalendar(start, end TimeOfDay) *DailyCalendar {
	return &DailyCalendar{RangeStart: start, RangeEnd: end}
}

func (c *DailyCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.baseIncludes(t) {
		return false
	}
	tod := TimeOfDayFrom(t)
	inRange := !tod.Before(c.RangeStart) && tod.Before(c.RangeEnd)
	if c.Invert {
		return inRange
	}
	return !inRange
}

func (c *DailyCalendar) NextIncludedTime(t time.Time) time.Time {
	return scanNextIncluded(c, t, time.Second, func(cur time.Time) time.Time {
		tod := TimeOfDayFrom(cur)
		if !c.Invert && !tod.Before(c.RangeStart) && tod.Before(c.RangeEnd) {
			// Inside the excluded window: jump to its end.
			return c.RangeEnd.On(cur)
		}
		if c.Invert {
			// Outside the only included window: jump to its next start.
			next := c.RangeStart.On(cur)
			if !next.After(cur) {
				next = c.RangeStart.On(startOfNextDay(cur))
			}
			return next
		}
		return cur.Add(time.Second)
	})
}

func (c *DailyCalendar) Clone() Calendar {
	out := *c
	out.BaseCalendar = c.BaseCalendar.cloneBase()
	return &out
}

// CronCalendar excludes every instant matched by a cron expression.
type CronCalendar struct {
	BaseCalendar
	expression *CronExpression
}

func NewCronCalendar(expression string) (*CronCalendar, error) {
	expr, err := ParseCronExpression(expression)
	if err != nil {
		return nil, err
	}
	return &CronCalendar{expression: expr}, nil
}

func (c *CronCalendar) Expression() string {
	return c.expression.String()
}

func (c *CronCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.baseIncludes(t) {
		return false
	}
	return !c.expression.IsSatisfiedBy(t)
}

func (c *CronCalendar) NextIncludedTime(t time.Time) time.Time {
	next := t.Add(time.Second)
	for !next.IsZero() && !c.IsTimeIncluded(next) {
		if c.expression.IsSatisfiedBy(next) {
			next = c.expression.NextInvalidTimeAfter(next)
		} else if c.BaseCal != nil {
			next = c.BaseCal.NextIncludedTime(next)
		}
		if next.Sub(t) > calendarHorizon {
			return time.Time{}
		}
	}
	return next
}

func (c *CronCalendar) Clone() Calendar {
	out := *c
	out.BaseCalendar = c.BaseCalendar.cloneBase()
	out.expression = c.expression.Clone()
	return &out
}

// scanNextIncluded starts just after t and applies step while the calendar
// excludes the candidate, bounded by the calendar horizon.
func scanNextIncluded(c Calendar, t time.Time, _ time.Duration, step func(time.Time) time.Time) time.Time {
	next := t.Add(time.Second)
	for !c.IsTimeIncluded(next) {
		next = step(next)
		if next.Sub(t) > calendarHorizon {
			return time.Time{}
		}
	}
	return next
}

func startOfNextDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, t.Location())
}
