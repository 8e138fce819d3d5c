package recurrence

import (
	"errors"
	"fmt"
	"time"

	"asset-maintenance-backend/internal/model"
)

// maxAdvanceSteps bounds the correction loop in NextDueDate. Degenerate
// inputs can produce candidates at or before the reference time; rather
// than chasing them forever the calculation fails hard.
const maxAdvanceSteps = 1000

// ErrAdvanceLimit is returned when a due date cannot be pushed past the
// reference time within maxAdvanceSteps iterations.
var ErrAdvanceLimit = errors.New("recurrence: advancement limit exceeded")

// Rule is one recurrence interpretation of a maintenance schedule.
// Exactly one concrete type applies per schedule, carrying only the
// fields that interpretation needs.
type Rule interface {
	isRule()
}

// Once fires a single time at the schedule's start date and is then
// deactivated by the advancement step, never recalculated.
type Once struct{}

// Daily recurs every Interval days.
type Daily struct {
	Interval int
}

// Weekly recurs every Interval weeks. When Weekday is set, the due date
// lands on that weekday: the next occurrence strictly after the
// reference, plus Interval-1 further weeks.
type Weekly struct {
	Interval int
	Weekday  *time.Weekday
}

// Monthly recurs every Interval months on DayOfMonth, clamped to the
// length of the target month. DayOfMonth 0 means "the start date's
// day".
type Monthly struct {
	Interval   int
	DayOfMonth int
}

// Yearly recurs every Interval years on MonthOfYear/DayOfMonth, with
// the same clamping as Monthly. Zero values fall back to the start
// date's month and day.
type Yearly struct {
	Interval    int
	DayOfMonth  int
	MonthOfYear time.Month
}

// UsageBased schedules are never calendar-advanced; their due dates are
// set exclusively by threshold evaluation on submitted readings.
type UsageBased struct {
	Threshold float64
	Unit      string
}

func (Once) isRule()       {}
func (Daily) isRule()      {}
func (Weekly) isRule()     {}
func (Monthly) isRule()    {}
func (Yearly) isRule()     {}
func (UsageBased) isRule() {}

// FromSchedule builds the tagged rule for a persisted schedule row,
// rejecting field combinations the recurrence type cannot carry.
func FromSchedule(s *model.MaintenanceSchedule) (Rule, error) {
	if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
		return nil, fmt.Errorf("recurrence: day_of_week %d out of range", *s.DayOfWeek)
	}
	if s.DayOfMonth != nil && (*s.DayOfMonth < 1 || *s.DayOfMonth > 31) {
		return nil, fmt.Errorf("recurrence: day_of_month %d out of range", *s.DayOfMonth)
	}
	if s.MonthOfYear != nil && (*s.MonthOfYear < 1 || *s.MonthOfYear > 12) {
		return nil, fmt.Errorf("recurrence: month_of_year %d out of range", *s.MonthOfYear)
	}

	switch s.RecurrenceType {
	case model.RecurrenceOnce:
		return Once{}, nil
	case model.RecurrenceDaily:
		return Daily{Interval: s.RecurrenceInterval}, nil
	case model.RecurrenceWeekly:
		var wd *time.Weekday
		if s.DayOfWeek != nil {
			w := time.Weekday(*s.DayOfWeek)
			wd = &w
		}
		return Weekly{Interval: s.RecurrenceInterval, Weekday: wd}, nil
	case model.RecurrenceMonthly:
		var day int
		if s.DayOfMonth != nil {
			day = *s.DayOfMonth
		}
		return Monthly{Interval: s.RecurrenceInterval, DayOfMonth: day}, nil
	case model.RecurrenceYearly:
		var day int
		if s.DayOfMonth != nil {
			day = *s.DayOfMonth
		}
		var month time.Month
		if s.MonthOfYear != nil {
			month = time.Month(*s.MonthOfYear)
		}
		return Yearly{Interval: s.RecurrenceInterval, DayOfMonth: day, MonthOfYear: month}, nil
	case model.RecurrenceUsageBased:
		var threshold float64
		if s.UsageThreshold != nil {
			threshold = *s.UsageThreshold
		}
		return UsageBased{Threshold: threshold, Unit: s.UsageUnit}, nil
	default:
		return nil, fmt.Errorf("recurrence: unknown recurrence type %q", s.RecurrenceType)
	}
}

// NextDueDate computes the next due timestamp for a rule anchored at
// start, relative to ref. A nil result with nil error means the rule is
// not calendar-driven (usage-based). The calculation is pure: callers
// supply the reference time explicitly.
func NextDueDate(r Rule, start, ref time.Time) (*time.Time, error) {
	// First occurrence not yet reached.
	if start.After(ref) {
		return &start, nil
	}

	switch r.(type) {
	case Once:
		// Fires exactly once at the start date; deactivation after the
		// fact is the advancement step's job.
		return &start, nil
	case UsageBased:
		return nil, nil
	}

	cur := ref
	for i := 0; i < maxAdvanceSteps; i++ {
		cand := step(r, start, cur)
		if cand.After(ref) {
			return &cand, nil
		}
		cur = cand
	}
	return nil, ErrAdvanceLimit
}

// step computes one candidate occurrence anchored at cur.
func step(r Rule, start, cur time.Time) time.Time {
	switch v := r.(type) {
	case Daily:
		return cur.AddDate(0, 0, orOne(v.Interval))
	case Weekly:
		n := orOne(v.Interval)
		if v.Weekday == nil {
			return cur.AddDate(0, 0, 7*n)
		}
		delta := (int(*v.Weekday) - int(cur.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7 // strictly after cur
		}
		return cur.AddDate(0, 0, delta+7*(n-1))
	case Monthly:
		day := v.DayOfMonth
		if day == 0 {
			day = start.Day()
		}
		first := time.Date(cur.Year(), cur.Month()+time.Month(orOne(v.Interval)), 1,
			cur.Hour(), cur.Minute(), cur.Second(), cur.Nanosecond(), cur.Location())
		return onDay(first, day)
	case Yearly:
		day := v.DayOfMonth
		if day == 0 {
			day = start.Day()
		}
		month := v.MonthOfYear
		if month == 0 {
			month = start.Month()
		}
		first := time.Date(cur.Year()+orOne(v.Interval), month, 1,
			cur.Hour(), cur.Minute(), cur.Second(), cur.Nanosecond(), cur.Location())
		return onDay(first, day)
	default:
		return cur
	}
}

// onDay places first (the first of its month) on the requested day,
// clamped to the month's length. Day 31 in February yields the last day
// of February, never an overflow into March.
func onDay(first time.Time, day int) time.Time {
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// orOne treats a zero or negative interval as 1.
func orOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// UsageDue decides whether a usage-based schedule became due with the
// given cumulative reading. An unset threshold or last-service reading
// makes the evaluation a no-op, as does a reading below the last
// service value (out-of-order samples never trigger).
func UsageDue(s *model.MaintenanceSchedule, newReading float64) bool {
	if s.UsageThreshold == nil || s.LastServiceUsageReading == nil {
		return false
	}
	return newReading-*s.LastServiceUsageReading >= *s.UsageThreshold
}
