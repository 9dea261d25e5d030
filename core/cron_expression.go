package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpression implements the seven-field cron syntax:
//
//	seconds minutes hours day-of-month month day-of-week [year]
//
// with support for ranges (a-b), steps (a/n, a-b/n, */n), lists (a,b,c),
// month and weekday names, L (last day / last weekday-of-week), LW (last
// weekday of month), nW (nearest weekday to day n), n#k (k-th weekday n of
// the month) and an optional year field. Day-of-week runs 1-7 with 1 =
// Sunday. One of day-of-month and day-of-week must be '?'.
type CronExpression struct {
	expr string
	loc  *time.Location

	seconds []int
	minutes []int
	hours   []int
	months  []int
	years   []int // nil means every year

	daysOfMonth  []int
	domNoSpec    bool // '?'
	lastDOM      bool // 'L' (optionally 'L-n')
	lastDOMOff   int
	lastWeekday  bool // 'LW'
	nearWeekday  bool // 'nW'
	nearWeekdayN int

	daysOfWeek []int // 1..7, 1 = Sunday
	dowNoSpec  bool  // '?'
	lastDOW    bool  // 'nL': last weekday n of the month
	lastDOWVal int
	nthDOW     int // k in 'n#k'; 0 when unused
	nthDOWVal  int
}

// searchHorizonYears bounds how far into the future fire-time computation
// will look before giving up.
const searchHorizonYears = 100

var monthNames = map[string]int{
	"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
	"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
}

var dayNames = map[string]int{
	"SUN": 1, "MON": 2, "TUE": 3, "WED": 4, "THU": 5, "FRI": 6, "SAT": 7,
}

// ParseCronExpression parses expr in the local time zone.
func ParseCronExpression(expr string) (*CronExpression, error) {
	return ParseCronExpressionInLocation(expr, time.Local)
}

// ParseCronExpressionInLocation parses expr, evaluating all fields in loc.
func ParseCronExpressionInLocation(expr string, loc *time.Location) (*CronExpression, error) {
	if loc == nil {
		loc = time.Local
	}
	fields := strings.Fields(expr)
	if len(fields) < 6 || len(fields) > 7 {
		return nil, fmt.Errorf("%w: %q: expected 6 or 7 fields, got %d",
			ErrInvalidCronExpression, expr, len(fields))
	}

	x := &CronExpression{expr: expr, loc: loc}
	var err error

	if x.seconds, err = parseNumericField(fields[0], 0, 59, nil); err != nil {
		return nil, fieldErr(expr, "seconds", err)
	}
	if x.minutes, err = parseNumericField(fields[1], 0, 59, nil); err != nil {
		return nil, fieldErr(expr, "minutes", err)
	}
	if x.hours, err = parseNumericField(fields[2], 0, 23, nil); err != nil {
		return nil, fieldErr(expr, "hours", err)
	}
	if err = x.parseDayOfMonth(fields[3]); err != nil {
		return nil, fieldErr(expr, "day-of-month", err)
	}
	if x.months, err = parseNumericField(fields[4], 1, 12, monthNames); err != nil {
		return nil, fieldErr(expr, "month", err)
	}
	if err = x.parseDayOfWeek(fields[5]); err != nil {
		return nil, fieldErr(expr, "day-of-week", err)
	}
	if len(fields) == 7 && fields[6] != "*" {
		if x.years, err = parseNumericField(fields[6], 1970, 2199, nil); err != nil {
			return nil, fieldErr(expr, "year", err)
		}
	}

	if x.domNoSpec == x.dowNoSpec {
		return nil, fmt.Errorf("%w: %q: exactly one of day-of-month and day-of-week must be '?'",
			ErrInvalidCronExpression, expr)
	}
	return x, nil
}

func fieldErr(expr, field string, err error) error {
	return fmt.Errorf("%w: %q: %s field: %v", ErrInvalidCronExpression, expr, field, err)
}

func (x *CronExpression) String() string {
	return x.expr
}

func (x *CronExpression) Location() *time.Location {
	return x.loc
}

func (x *CronExpression) Clone() *CronExpression {
	out := *x
	return &out
}

// parseNumericField parses a plain list/range/step field into a sorted
// value set. names maps symbolic values (months, weekdays) when non-nil.
func parseNumericField(field string, min, max int, names map[string]int) ([]int, error) {
	if field == "?" {
		return nil, fmt.Errorf("'?' is not allowed here")
	}
	set := make(map[int]struct{})
	for _, part := range strings.Split(field, ",") {
		if err := parseElement(part, min, max, names, set); err != nil {
			return nil, err
		}
	}
	values := make([]int, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Ints(values)
	return values, nil
}

func parseElement(part string, min, max int, names map[string]int, set map[int]struct{}) error {
	if part == "" {
		return fmt.Errorf("empty element")
	}

	step := 1
	if i := strings.IndexByte(part, '/'); i >= 0 {
		var err error
		if step, err = strconv.Atoi(part[i+1:]); err != nil || step <= 0 {
			return fmt.Errorf("bad step %q", part[i+1:])
		}
		part = part[:i]
	}

	lo, hi := min, max
	switch {
	case part == "*":
		// full range
	case strings.Contains(part, "-"):
		bounds := strings.SplitN(part, "-", 2)
		var err error
		if lo, err = parseValue(bounds[0], names); err != nil {
			return err
		}
		if hi, err = parseValue(bounds[1], names); err != nil {
			return err
		}
		if lo < min || hi > max {
			return fmt.Errorf("range %q out of bounds [%d,%d]", part, min, max)
		}
	default:
		v, err := parseValue(part, names)
		if err != nil {
			return err
		}
		if v < min || v > max {
			return fmt.Errorf("value %d out of bounds [%d,%d]", v, min, max)
		}
		lo = v
		if step == 1 {
			hi = v
		} else {
			hi = max // "a/n" means from a to max
		}
	}

	if lo <= hi {
		for v := lo; v <= hi; v += step {
			set[v] = struct{}{}
		}
		return nil
	}
	// Wrapping range, e.g. FRI-MON or 22-2.
	span := (max - min + 1) + hi - lo
	for off := 0; off <= span; off += step {
		v := lo + off
		if v > max {
			v = min + (v - max - 1)
		}
		set[v] = struct{}{}
	}
	return nil
}

func parseValue(s string, names map[string]int) (int, error) {
	if names != nil {
		if v, ok := names[strings.ToUpper(s)]; ok {
			return v, nil
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad value %q", s)
	}
	return v, nil
}

func (x *CronExpression) parseDayOfMonth(field string) error {
	switch {
	case field == "?":
		x.domNoSpec = true
		return nil
	case field == "L":
		x.lastDOM = true
		return nil
	case strings.HasPrefix(field, "L-"):
		off, err := strconv.Atoi(field[2:])
		if err != nil || off < 0 || off > 30 {
			return fmt.Errorf("bad last-day offset %q", field)
		}
		x.lastDOM = true
		x.lastDOMOff = off
		return nil
	case field == "LW":
		x.lastWeekday = true
		return nil
	case strings.HasSuffix(field, "W"):
		day, err := strconv.Atoi(strings.TrimSuffix(field, "W"))
		if err != nil || day < 1 {
			return fmt.Errorf("bad weekday element %q", field)
		}
		if day > 31 {
			return fmt.Errorf("'W' day %d beyond 31", day)
		}
		x.nearWeekday = true
		x.nearWeekdayN = day
		return nil
	}
	if strings.Contains(field, "L") || strings.Contains(field, "W") {
		return fmt.Errorf("'L' and 'W' cannot be combined with other day-of-month values")
	}
	var err error
	x.daysOfMonth, err = parseNumericField(field, 1, 31, nil)
	return err
}

func (x *CronExpression) parseDayOfWeek(field string) error {
	switch {
	case field == "?":
		x.dowNoSpec = true
		return nil
	case field == "L":
		// Bare L in day-of-week is shorthand for Saturday.
		x.daysOfWeek = []int{7}
		return nil
	case strings.HasSuffix(field, "L"):
		v, err := parseValue(strings.TrimSuffix(field, "L"), dayNames)
		if err != nil || v < 1 || v > 7 {
			return fmt.Errorf("bad last-day-of-week element %q", field)
		}
		x.lastDOW = true
		x.lastDOWVal = v
		return nil
	case strings.Contains(field, "#"):
		parts := strings.SplitN(field, "#", 2)
		v, err := parseValue(parts[0], dayNames)
		if err != nil || v < 1 || v > 7 {
			return fmt.Errorf("bad day-of-week in %q", field)
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > 5 {
			return fmt.Errorf("bad ordinal in %q (expected 1-5)", field)
		}
		x.nthDOWVal = v
		x.nthDOW = n
		return nil
	}
	if strings.Contains(field, "L") {
		return fmt.Errorf("'L' cannot be combined with other day-of-week values")
	}
	var err error
	x.daysOfWeek, err = parseNumericField(field, 1, 7, dayNames)
	return err
}

// quartzWeekday converts Go's weekday to the 1=Sunday .. 7=Saturday scheme.
func quartzWeekday(t time.Time) int {
	return int(t.Weekday()) + 1
}

func lastDayOfMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// nearestWeekdayTo resolves "nW": the weekday closest to day n within the
// same month.
func nearestWeekdayTo(year int, month time.Month, day int, loc *time.Location) int {
	last := lastDayOfMonth(year, month, loc)
	if day > last {
		day = last
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	switch d.Weekday() {
	case time.Saturday:
		if day == 1 {
			return 3 // Monday
		}
		return day - 1
	case time.Sunday:
		if day == last {
			return day - 2
		}
		return day + 1
	default:
		return day
	}
}

// lastWeekdayOfMonth resolves "LW".
func lastWeekdayOfMonth(year int, month time.Month, loc *time.Location) int {
	day := lastDayOfMonth(year, month, loc)
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	switch d.Weekday() {
	case time.Saturday:
		return day - 1
	case time.Sunday:
		return day - 2
	default:
		return day
	}
}

func containsInt(values []int, v int) bool {
	i := sort.SearchInts(values, v)
	return i < len(values) && values[i] == v
}

// nextInt returns the smallest set value >= from, or ok=false when the set
// is exhausted past from.
func nextInt(values []int, from int) (int, bool) {
	i := sort.SearchInts(values, from)
	if i < len(values) {
		return values[i], true
	}
	return 0, false
}

func (x *CronExpression) dayMatches(t time.Time) bool {
	year, month, day := t.Year(), t.Month(), t.Day()

	if !x.domNoSpec {
		switch {
		case x.lastDOM:
			return day == lastDayOfMonth(year, month, x.loc)-x.lastDOMOff
		case x.lastWeekday:
			return day == lastWeekdayOfMonth(year, month, x.loc)
		case x.nearWeekday:
			return day == nearestWeekdayTo(year, month, x.nearWeekdayN, x.loc)
		default:
			return containsInt(x.daysOfMonth, day)
		}
	}

	wd := quartzWeekday(t)
	switch {
	case x.lastDOW:
		return wd == x.lastDOWVal && day > lastDayOfMonth(year, month, x.loc)-7
	case x.nthDOW > 0:
		return wd == x.nthDOWVal && (day-1)/7+1 == x.nthDOW
	default:
		return containsInt(x.daysOfWeek, wd)
	}
}

// NextAfter returns the first instant strictly after t that satisfies the
// expression; zero when none exists within the search horizon.
func (x *CronExpression) NextAfter(t time.Time) time.Time {
	t = t.In(x.loc).Truncate(time.Second).Add(time.Second)
	horizon := t.Year() + searchHorizonYears

	for {
		year, month, day := t.Year(), t.Month(), t.Day()
		if year > horizon {
			return time.Time{}
		}
		if x.years != nil && !containsInt(x.years, year) {
			next, ok := nextInt(x.years, year+1)
			if !ok {
				return time.Time{}
			}
			t = time.Date(next, time.January, 1, 0, 0, 0, 0, x.loc)
			continue
		}
		if !containsInt(x.months, int(month)) {
			t = time.Date(year, month+1, 1, 0, 0, 0, 0, x.loc)
			continue
		}
		if !x.dayMatches(t) {
			t = time.Date(year, month, day+1, 0, 0, 0, 0, x.loc)
			continue
		}

		sec, ok := nextInt(x.seconds, t.Second())
		if !ok {
			t = time.Date(year, month, day, t.Hour(), t.Minute()+1, 0, 0, x.loc)
			continue
		}
		if sec != t.Second() {
			t = time.Date(year, month, day, t.Hour(), t.Minute(), sec, 0, x.loc)
		}

		min, ok := nextInt(x.minutes, t.Minute())
		if !ok {
			t = time.Date(year, month, day, t.Hour()+1, 0, 0, 0, x.loc)
			continue
		}
		if min != t.Minute() {
			t = time.Date(year, month, day, t.Hour(), min, x.seconds[0], 0, x.loc)
		}

		hour, ok := nextInt(x.hours, t.Hour())
		if !ok {
			t = time.Date(year, month, day+1, 0, 0, 0, 0, x.loc)
			continue
		}
		if hour != t.Hour() {
			t = time.Date(year, month, day, hour, x.minutes[0], x.seconds[0], 0, x.loc)
		}

		return t
	}
}

// IsSatisfiedBy reports whether t (truncated to the second) matches the
// expression.
func (x *CronExpression) IsSatisfiedBy(t time.Time) bool {
	probe := t.In(x.loc).Truncate(time.Second)
	return x.NextAfter(probe.Add(-time.Second)).Equal(probe)
}

// NextInvalidTimeAfter returns the first instant after t that does not
// match the expression. Used by cron calendars, whose exclusion is the
// expression itself.
func (x *CronExpression) NextInvalidTimeAfter(t time.Time) time.Time {
	last := t.In(x.loc).Truncate(time.Second)
	for {
		next := x.NextAfter(last)
		if next.IsZero() || next.Sub(last) > time.Second {
			return last.Add(time.Second)
		}
		last = next
	}
}
