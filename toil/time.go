package toil

import "time"

// DateOnly truncates a timestamp to midnight UTC. Ledger dates are
// calendar dates; time-of-day never participates in expiry comparisons.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ExpiryDateFor computes the forfeiture date for an accrual: the accrual
// date shifted forward by the retention window. time.AddDate handles
// month-end normalisation (an accrual on 31 August expires 2/3 March).
func ExpiryDateFor(accrualDate time.Time, retentionMonths int) time.Time {
	return DateOnly(accrualDate).AddDate(0, retentionMonths, 0)
}

// HolidayCalendar answers whether a calendar date is a bank holiday.
// Implementations live in the store layer; NopCalendar suits tests and
// deployments that have not loaded a holiday table.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

type NopCalendar struct{}

func (NopCalendar) IsHoliday(time.Time) bool { return false }

// WorkingDays counts the weekdays between start and end inclusive,
// skipping Saturdays, Sundays, and calendar holidays. Returns 0 when
// end precedes start.
func WorkingDays(start, end time.Time, cal HolidayCalendar) int {
	if cal == nil {
		cal = NopCalendar{}
	}
	start = DateOnly(start)
	end = DateOnly(end)
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if cal.IsHoliday(d) {
			continue
		}
		count++
	}
	return count
}
