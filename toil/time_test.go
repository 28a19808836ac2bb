package toil_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/toil-engine/toil"
)

func TestDateOnly_StripsTimeOfDay(t *testing.T) {
	stamp := time.Date(2025, time.March, 10, 17, 45, 12, 999, time.UTC)
	assert.Equal(t, date(2025, time.March, 10), toil.DateOnly(stamp))
}

func TestDateOnly_NormalisesToUTC(t *testing.T) {
	// 23:30 in UTC+2 is 21:30 UTC, still the same calendar date.
	zone := time.FixedZone("EET", 2*60*60)
	stamp := time.Date(2025, time.March, 10, 23, 30, 0, 0, zone)
	assert.Equal(t, date(2025, time.March, 10), toil.DateOnly(stamp))
}

func TestExpiryDateFor_SixMonthsOut(t *testing.T) {
	assert.Equal(t, date(2025, time.September, 10),
		toil.ExpiryDateFor(date(2025, time.March, 10), 6))
}

func TestExpiryDateFor_MonthEndNormalises(t *testing.T) {
	// 31 August + 6 months is "31 February", which AddDate rolls
	// forward into March.
	got := toil.ExpiryDateFor(date(2025, time.August, 31), 6)
	assert.Equal(t, date(2026, time.March, 3), got)
}

func TestWorkingDays_FullWeek(t *testing.T) {
	// Monday 9 June through Friday 13 June 2025.
	assert.Equal(t, 5, toil.WorkingDays(date(2025, time.June, 9), date(2025, time.June, 13), nil))
}

func TestWorkingDays_SpanningWeekend(t *testing.T) {
	// Friday through Monday: the weekend does not count.
	assert.Equal(t, 2, toil.WorkingDays(date(2025, time.June, 6), date(2025, time.June, 9), nil))
}

func TestWorkingDays_WeekendOnly(t *testing.T) {
	assert.Equal(t, 0, toil.WorkingDays(date(2025, time.June, 7), date(2025, time.June, 8), nil))
}

func TestWorkingDays_EndBeforeStart(t *testing.T) {
	assert.Equal(t, 0, toil.WorkingDays(date(2025, time.June, 13), date(2025, time.June, 9), nil))
}

func TestWorkingDays_SkipsHolidays(t *testing.T) {
	// Spring bank holiday Monday 26 May 2025.
	cal := markedHoliday{day: date(2025, time.May, 26)}
	assert.Equal(t, 4, toil.WorkingDays(date(2025, time.May, 26), date(2025, time.May, 30), cal))
}
