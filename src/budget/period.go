package budget

import (
	"time"

	"spendwise-server/src/models"
)

// Truncate drops the time of day, keeping the calendar date in UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PeriodFor returns the budget window that contains date. Recurring budgets
// roll their original window forward by whole months. ok is false when no
// window contains date.
func PeriodFor(b models.Budget, date time.Time) (start, end time.Time, ok bool) {
	date = Truncate(date)
	start, end = Truncate(b.StartDate), Truncate(b.EndDate)
	if date.Before(start) || end.Before(start) {
		return start, end, false
	}
	if !date.After(end) {
		return start, end, true
	}
	if !b.IsRecurring {
		return start, end, false
	}

	months := (date.Year()-start.Year())*12 + int(date.Month()-start.Month())
	// Windows longer than a month overlap once shifted, so step back to the
	// earliest shift that still reaches date.
	for n := max(months-monthsSpanned(start, end)-1, 1); n <= months+1; n++ {
		s, e := shift(start, n, false), shift(end, n, isMonthEnd(end))
		if !date.Before(s) && !date.After(e) {
			return s, e, true
		}
		if s.After(date) {
			break
		}
	}
	return start, end, false
}

func monthsSpanned(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
}

func isMonthEnd(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}

// shift moves t forward n months, clamping the day to the target month's
// length so Jan 31 becomes Feb 28 rather than Mar 3. With toMonthEnd the
// result is always the last day of the target month.
func shift(t time.Time, n int, toMonthEnd bool) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last || toMonthEnd {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
