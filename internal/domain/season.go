package domain

import (
	"fmt"
	"time"
)

// Season is a named date range recurring every year. The window runs from the start
// month/day (shifted by StartYearOffset years) up to, but excluding, the end month/day.
type Season struct {
	Name            string
	StartMonth      time.Month
	StartDay        int
	EndMonth        time.Month
	EndDay          int
	StartYearOffset int // 0, or -1 when the season begins in the prior calendar year
}

var (
	// Summer covers March through May.
	Summer = Season{Name: "Summer", StartMonth: time.March, StartDay: 1, EndMonth: time.June, EndDay: 1}

	// Winter covers December of the prior year through February.
	Winter = Season{Name: "Winter", StartMonth: time.December, StartDay: 1, EndMonth: time.March, EndDay: 1, StartYearOffset: -1}

	// Greening is the reflectance mosaic window, March 1 up to but excluding May 31.
	// It is not composited for LST.
	Greening = Season{Name: "Greening", StartMonth: time.March, StartDay: 1, EndMonth: time.May, EndDay: 31}
)

// Seasons returns the seasons composited for every analysis year.
func Seasons() []Season {
	return []Season{Summer, Winter}
}

// SeasonByName looks up one of the standard seasons.
func SeasonByName(name string) (Season, error) {
	for _, s := range Seasons() {
		if s.Name == name {
			return s, nil
		}
	}
	return Season{}, fmt.Errorf("unknown season %q", name)
}

// Window returns the half-open UTC interval [start, end) of the season for year.
func (s Season) Window(year int) (start, end time.Time) {
	start = time.Date(year+s.StartYearOffset, s.StartMonth, s.StartDay, 0, 0, 0, 0, time.UTC)
	end = time.Date(year, s.EndMonth, s.EndDay, 0, 0, 0, 0, time.UTC)
	return start, end
}

// Years returns the calendar years touched by the season window for year.
func (s Season) Years(year int) YearRange {
	return YearRange{From: year + s.StartYearOffset, To: year}
}

// YearRange is an inclusive span of calendar years.
type YearRange struct {
	From int
	To   int
}

// Contains reports whether t falls in one of the range's calendar years.
func (r YearRange) Contains(t time.Time) bool {
	y := t.UTC().Year()
	return y >= r.From && y <= r.To
}
