package domain

import "time"

// Spot is a normalized activity report.
type Spot struct {
	Label     string    `json:"label"`
	Frequency float64   `json:"frequency"` // Hz
	SpotTime  time.Time `json:"spot_time"` // always UTC
	Spotter   string    `json:"spotter,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Location  string    `json:"location,omitempty"`
	SourceID  string    `json:"source,omitempty"`
}

// Age reports how long ago the spot was observed relative to now.
func (s Spot) Age(now time.Time) time.Duration {
	return now.Sub(s.SpotTime)
}

// FresherThan reports whether s was observed strictly after other.
func (s Spot) FresherThan(other Spot) bool {
	return s.SpotTime.After(other.SpotTime)
}
