package morse

import "time"

// Slider bounds for the words-per-minute setting.
const (
	MinWPM = 5
	MaxWPM = 40
)

// Timings holds the absolute duration of every morse unit at a given
// speed. All other durations derive from the dit: dah is 3 units, the
// gap between characters 3 units, the gap between words 7 units.
type Timings struct {
	Dit       time.Duration
	Dah       time.Duration
	IntraChar time.Duration
	InterChar time.Duration
	InterWord time.Duration
}

// TimingsFor converts a words-per-minute rate into unit durations using
// the standard PARIS formula: unit = 1200/wpm milliseconds.
func TimingsFor(wpm int) Timings {
	unit := time.Duration(1200.0 / float64(wpm) * float64(time.Millisecond))
	return Timings{
		Dit:       unit,
		Dah:       3 * unit,
		IntraChar: unit,
		InterChar: 3 * unit,
		InterWord: 7 * unit,
	}
}

// Duration returns how long a given element sounds at these timings.
func (t Timings) Duration(e Element) time.Duration {
	if e == Dah {
		return t.Dah
	}
	return t.Dit
}

// ClampWPM bounds a requested rate to the supported slider range.
func ClampWPM(wpm int) int {
	if wpm < MinWPM {
		return MinWPM
	}
	if wpm > MaxWPM {
		return MaxWPM
	}
	return wpm
}
