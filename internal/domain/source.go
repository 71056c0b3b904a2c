package domain

import (
	"fmt"
	"time"
)

// Frequency is the polling cadence class assigned to a followed channel.
type Frequency string

const (
	FrequencyOften     Frequency = "often"
	FrequencySometimes Frequency = "sometimes"
	FrequencyRarely    Frequency = "rarely"
)

// Frequencies lists all cadence classes; the trigger runs one loop per entry.
func Frequencies() []Frequency {
	return []Frequency{FrequencyOften, FrequencySometimes, FrequencyRarely}
}

// ParseFrequency validates a user-supplied frequency string.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyOften, FrequencySometimes, FrequencyRarely:
		return Frequency(s), nil
	}
	return "", fmt.Errorf("frequency must be one of 'often', 'sometimes', 'rarely', got %q", s)
}

// Source is a followed channel tracked for periodic polling.
// LastChecked is nil from creation until the first follow job completes;
// the trigger only selects sources where it is set.
type Source struct {
	Name        string     `db:"name"`
	Platform    string     `db:"platform"`
	FeedURL     string     `db:"feed_url"`
	Frequency   Frequency  `db:"check_frequency"`
	LastChecked *time.Time `db:"last_checked"`
}

// ArchivedVideo is the event emitted after a download lands in its final
// location.
type ArchivedVideo struct {
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	Published time.Time `json:"published"`
	Attempt   int       `json:"attempt"`
}
