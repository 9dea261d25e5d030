package core

import "time"

// Calendar is an inclusion/exclusion predicate composed with a trigger's
// own schedule. Calendars chain: a time is included only when this
// calendar and its base (if any) both include it.
type Calendar interface {
	// IsTimeIncluded reports whether the instant may be used as a fire
	// time.
	IsTimeIncluded(t time.Time) bool

	// NextIncludedTime returns the first included instant after t; zero if
	// none is found within the calendar's search horizon.
	NextIncludedTime(t time.Time) time.Time

	Base() Calendar
	Description() string
	Clone() Calendar
}

// BaseCalendar provides base-chaining and description for concrete
// calendars that embed it.
type BaseCalendar struct {
	BaseCal Calendar
	Desc    string
}

func (c *BaseCalendar) Base() Calendar {
	return c.BaseCal
}

func (c *BaseCalendar) Description() string {
	return c.Desc
}

// baseIncludes applies the base calendar's predicate; a nil base includes
// everything.
func (c *BaseCalendar) baseIncludes(t time.Time) bool {
	return c.BaseCal == nil || c.BaseCal.IsTimeIncluded(t)
}

func (c *BaseCalendar) cloneBase() BaseCalendar {
	out := *c
	if c.BaseCal != nil {
		out.BaseCal = c.BaseCal.Clone()
	}
	return out
}

// calendarHorizon bounds NextIncludedTime searches; beyond it the search
// reports no included time.
const calendarHorizon = 5 * 366 * 24 * time.Hour
