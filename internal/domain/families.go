package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FamilyRule maps an inclusive year span to the sensors mosaicked for vegetation indices.
// A zero FromYear or ToYear leaves that side open.
type FamilyRule struct {
	FromYear int
	ToYear   int
	Sensors  []Sensor
}

func (r FamilyRule) covers(year int) bool {
	return (r.FromYear == 0 || year >= r.FromYear) && (r.ToYear == 0 || year <= r.ToYear)
}

// FamilyTable selects sensors by year. The first matching rule wins.
type FamilyTable []FamilyRule

// DefaultFamilyTable uses Landsat 5 before Landsat 8 was operational, Landsat 8 alone
// through 2021, and merges Landsat 8 and 9 from 2022 on.
func DefaultFamilyTable() FamilyTable {
	return FamilyTable{
		{ToYear: 2012, Sensors: []Sensor{Landsat5()}},
		{FromYear: 2013, ToYear: 2021, Sensors: []Sensor{Landsat8()}},
		{FromYear: 2022, Sensors: []Sensor{Landsat8(), Landsat9()}},
	}
}

// Lookup returns the sensors used for year.
func (t FamilyTable) Lookup(year int) ([]Sensor, error) {
	for _, rule := range t {
		if rule.covers(year) {
			return rule.Sensors, nil
		}
	}
	return nil, fmt.Errorf("no sensor family configured for year %d", year)
}

// SensorIDs joins the catalogue IDs of sensors for logging and reports.
func SensorIDs(sensors []Sensor) []string {
	ids := make([]string, len(sensors))
	for i, s := range sensors {
		ids[i] = s.ID
	}
	return ids
}

// ParseYears parses a comma-separated list of years, e.g. "2004,2014,2024".
func ParseYears(s string) ([]int, error) {
	var years []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse year %q: %w", part, err)
		}
		years = append(years, y)
	}
	return years, nil
}
