/*
Copyright © 2018 the pismrun authors.
This file is part of pismrun.

pismrun is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

pismrun is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with pismrun.  If not, see <http://www.gnu.org/licenses/>.
*/

package ncedit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// daysPerYear is the length of the udunits year.
const daysPerYear = 365.242198781

var cumDays = [...]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

// date is a calendar date and time of day.
type date struct {
	year, month, day int
	seconds          float64
}

// parseDate parses dates such as "1997-1-31", "1989-01-01 00:00:00" and
// "2000-1-1T12:00:00".
func parseDate(s string) (date, error) {
	s = strings.TrimSpace(s)
	var d date
	datePart, clock := s, ""
	if i := strings.IndexAny(s, " T"); i >= 0 {
		datePart, clock = s[:i], strings.TrimSpace(s[i+1:])
	}
	neg := strings.HasPrefix(datePart, "-")
	fields := strings.Split(strings.TrimPrefix(datePart, "-"), "-")
	if len(fields) < 1 || len(fields) > 3 {
		return d, fmt.Errorf("invalid date %q", s)
	}
	ymd := []int{0, 1, 1}
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return d, fmt.Errorf("invalid date %q", s)
		}
		ymd[i] = v
	}
	d.year, d.month, d.day = ymd[0], ymd[1], ymd[2]
	if neg {
		d.year = -d.year
	}
	if d.month < 1 || d.month > 12 || d.day < 1 || d.day > 31 {
		return d, fmt.Errorf("invalid date %q", s)
	}
	if clock != "" {
		hms := strings.Split(strings.TrimSuffix(clock, "Z"), ":")
		scale := 3600.0
		for _, f := range hms {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return d, fmt.Errorf("invalid time of day in %q", s)
			}
			d.seconds += v * scale
			scale /= 60
		}
	}
	return d, nil
}

// calendarDays returns the number of days from year zero to d in the
// named CF calendar.
func calendarDays(d date, calendar string) (float64, error) {
	frac := d.seconds / 86400
	switch strings.ToLower(calendar) {
	case "", "standard", "gregorian", "proleptic_gregorian":
		t := time.Date(d.year, time.Month(d.month), d.day, 0, 0, 0, 0, time.UTC)
		return float64(t.Unix())/86400 + frac, nil
	case "365_day", "noleap":
		return float64(d.year*365+cumDays[d.month-1]+d.day-1) + frac, nil
	case "366_day", "all_leap":
		leap := cumDays[d.month-1]
		if d.month > 2 {
			leap++
		}
		return float64(d.year*366+leap+d.day-1) + frac, nil
	case "360_day":
		if d.day > 30 {
			return 0, fmt.Errorf("day %d does not exist in the 360_day calendar", d.day)
		}
		return float64(d.year*360+(d.month-1)*30+d.day-1) + frac, nil
	}
	return 0, fmt.Errorf("unsupported calendar %q", calendar)
}

// timeAxis converts between dates and the values of a CF time
// coordinate.
type timeAxis struct {
	calendar string
	// unit is the length of one time unit in days.
	unit float64
	ref  float64
}

// newTimeAxis parses units such as "seconds since 1989-1-1".
func newTimeAxis(units, calendar string) (*timeAxis, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("ncedit: time units %q are not of the form \"<unit> since <date>\"", units)
	}
	a := &timeAxis{calendar: calendar}
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "seconds", "second", "secs", "sec", "s":
		a.unit = 1.0 / 86400
	case "minutes", "minute", "mins", "min":
		a.unit = 1.0 / 1440
	case "hours", "hour", "hrs", "hr", "h":
		a.unit = 1.0 / 24
	case "days", "day", "d":
		a.unit = 1
	case "years", "year", "yr", "a":
		a.unit = daysPerYear
	default:
		return nil, fmt.Errorf("ncedit: unsupported time unit in %q", units)
	}
	ref, err := parseDate(parts[1])
	if err != nil {
		return nil, fmt.Errorf("ncedit: time units %q: %v", units, err)
	}
	if a.ref, err = calendarDays(ref, calendar); err != nil {
		return nil, fmt.Errorf("ncedit: %v", err)
	}
	return a, nil
}

// value returns the time coordinate of the date s.
func (a *timeAxis) value(s string) (float64, error) {
	d, err := parseDate(s)
	if err != nil {
		return 0, fmt.Errorf("ncedit: %v", err)
	}
	days, err := calendarDays(d, a.calendar)
	if err != nil {
		return 0, fmt.Errorf("ncedit: %v", err)
	}
	return (days - a.ref) / a.unit, nil
}
