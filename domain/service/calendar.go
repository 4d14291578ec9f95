package service

import (
	"time"

	"github.com/isectech/ops-simulator/domain/entity"
)

// BuildCalendar constructs the day-grain calendar dimension for the simulation
// window: one row per day with weekday, weekend flag, and US holiday markers
// for every year the window touches.
func BuildCalendar(start time.Time, days int) []entity.CalendarDay {
	holidays := usHolidays(start.Year())
	if end := start.AddDate(0, 0, days-1); end.Year() != start.Year() {
		for k, v := range usHolidays(end.Year()) {
			holidays[k] = v
		}
	}

	out := make([]entity.CalendarDay, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		dow := d.Weekday()
		key := d.Format("2006-01-02")
		name, isHoliday := holidays[key]
		out = append(out, entity.CalendarDay{
			Date:        d,
			DayOfWeek:   int(dow),
			IsWeekend:   dow == time.Saturday || dow == time.Sunday,
			IsHoliday:   isHoliday,
			HolidayName: name,
		})
	}
	return out
}

// usHolidays returns the observed holidays for one year, keyed by date string:
// Independence Day, Labor Day (first Monday of September), Thanksgiving
// (fourth Thursday of November), and Christmas Day.
func usHolidays(year int) map[string]string {
	loc := time.UTC

	laborDay := nthWeekday(year, time.September, time.Monday, 1, loc)
	thanksgiving := nthWeekday(year, time.November, time.Thursday, 4, loc)

	return map[string]string{
		time.Date(year, time.July, 4, 0, 0, 0, 0, loc).Format("2006-01-02"):     "Independence Day",
		laborDay.Format("2006-01-02"):                                           "Labor Day",
		thanksgiving.Format("2006-01-02"):                                       "Thanksgiving",
		time.Date(year, time.December, 25, 0, 0, 0, 0, loc).Format("2006-01-02"): "Christmas Day",
	}
}

// nthWeekday returns the nth occurrence of a weekday in a month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int, loc *time.Location) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+(n-1)*7)
}
