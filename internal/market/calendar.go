// Package market carries Vietnam market reference data: the trading
// calendar (weekends, fixed holidays, lunar new year) and the sector
// mapping for listed tickers.
package market

import "time"

// HoSE trades two sessions: 09:00-11:30 and 13:00-15:00, ICT.
var Location = mustLoadLocation()

func mustLoadLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		// ICT has no DST, a fixed offset is equivalent.
		return time.FixedZone("ICT", 7*3600)
	}
	return loc
}

type monthDay struct {
	Month time.Month
	Day   int
}

// Fixed-date public holidays (solar calendar).
var fixedHolidays = map[monthDay]bool{
	{time.January, 1}:   true, // Tết Dương lịch
	{time.April, 30}:    true, // Giải phóng miền Nam
	{time.May, 1}:       true, // Quốc tế Lao động
	{time.September, 2}: true, // Quốc khánh
}

// Tết Nguyên Đán closures. The lunar calendar shifts every year, so the
// table needs a new row each year.
var lunarNewYear = map[int][]monthDay{
	2024: {{2, 8}, {2, 9}, {2, 10}, {2, 11}, {2, 12}, {2, 13}, {2, 14}},
	2025: {{1, 27}, {1, 28}, {1, 29}, {1, 30}, {1, 31}, {2, 1}, {2, 2}, {2, 3}, {2, 4}},
	2026: {{2, 15}, {2, 16}, {2, 17}, {2, 18}, {2, 19}, {2, 20}, {2, 21}},
	2027: {{2, 5}, {2, 6}, {2, 7}, {2, 8}, {2, 9}, {2, 10}, {2, 11}},
}

// Giỗ Tổ Hùng Vương (10/3 lunar).
var hungVuong = map[int]monthDay{
	2024: {4, 18},
	2025: {4, 7},
	2026: {4, 26},
	2027: {4, 16},
}

// IsWeekend reports whether t falls on Saturday or Sunday in ICT.
func IsWeekend(t time.Time) bool {
	wd := t.In(Location).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHoliday reports whether t is a Vietnamese public holiday.
func IsHoliday(t time.Time) bool {
	t = t.In(Location)
	md := monthDay{t.Month(), t.Day()}
	if fixedHolidays[md] {
		return true
	}
	for _, d := range lunarNewYear[t.Year()] {
		if d == md {
			return true
		}
	}
	if d, ok := hungVuong[t.Year()]; ok && d == md {
		return true
	}
	return false
}

// IsTradingDay reports whether the exchanges are open on t's date.
func IsTradingDay(t time.Time) bool {
	return !IsWeekend(t) && !IsHoliday(t)
}

// IsTradingHours reports whether t falls inside a trading session
// (morning 09:00-11:30, afternoon 13:00-15:00) on a trading day.
func IsTradingHours(t time.Time) bool {
	if !IsTradingDay(t) {
		return false
	}
	t = t.In(Location)
	mins := t.Hour()*60 + t.Minute()
	morning := mins >= 9*60 && mins <= 11*60+30
	afternoon := mins >= 13*60 && mins <= 15*60
	return morning || afternoon
}

// NextTradingDay returns the first trading day strictly after t.
func NextTradingDay(t time.Time) time.Time {
	d := t.In(Location).AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
