package keyer

import (
	"math/rand"
	"strings"
	"time"

	"github.com/on4pvc/morse-trainer/morse"
)

// AdvanceDelay is how long the drill lingers on a result before the
// caller should play the next target.
const AdvanceDelay = 1500 * time.Millisecond

// Outcome is the result of checking the decoded text against the
// current target.
type Outcome int

const (
	// Pending means the operator has not keyed enough letters yet.
	Pending Outcome = iota
	// Correct means the decoded text matched exactly: +10 points.
	Correct
	// Wrong means the lengths matched but the text did not.
	Wrong
)

// Drill is the local practice session: it generates targets and scores
// the operator's copy. Purely local, nothing here reaches the network.
type Drill struct {
	rng     *rand.Rand
	target  string
	decoded string

	Score        int
	CorrectCount int
	Errors       int
}

var practiceWords = []string{"CQ", "DE", "QTH", "QSL", "RST", "73", "GM"}

var callsignPrefixes = []string{"K", "W", "N", "F", "G", "ON"}

// NewDrill seeds a drill from the clock.
func NewDrill() *Drill {
	return &Drill{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Next generates a fresh target and clears the decoded copy.
func (d *Drill) Next() string {
	switch d.rng.Intn(4) {
	case 0:
		d.target = string(rune('A' + d.rng.Intn(26)))
	case 1:
		d.target = string(rune('0' + d.rng.Intn(10)))
	case 2:
		d.target = practiceWords[d.rng.Intn(len(practiceWords))]
	default:
		pfx := callsignPrefixes[d.rng.Intn(len(callsignPrefixes))]
		d.target = pfx + string(rune('0'+d.rng.Intn(10))) +
			string(rune('A'+d.rng.Intn(26))) + string(rune('A'+d.rng.Intn(26)))
	}
	d.decoded = ""
	return d.target
}

// Target returns the current target text.
func (d *Drill) Target() string { return d.target }

// Decoded returns what the operator has copied so far.
func (d *Drill) Decoded() string { return d.decoded }

// TargetSymbols renders the target as displayed morse, for the reveal
// line under the practice prompt.
func (d *Drill) TargetSymbols() string {
	parts := make([]string, 0, len(d.target))
	for _, r := range d.target {
		if s, ok := morse.Encode(r); ok {
			parts = append(parts, morse.Display(s))
		}
	}
	return strings.Join(parts, " ")
}

// AddLetter appends one decoded letter and checks the copy as soon as it
// reaches the target's length: an exact match scores, any mismatch
// counts an error. Either way the drill advances.
func (d *Drill) AddLetter(r rune) Outcome {
	d.decoded += string(r)
	if len(d.decoded) < len(d.target) {
		return Pending
	}
	if d.decoded == d.target {
		d.CorrectCount++
		d.Score += 10
		return Correct
	}
	d.Errors++
	return Wrong
}

// Accuracy reports the percentage of correct answers, 100 before any
// answer has been checked.
func (d *Drill) Accuracy() int {
	total := d.CorrectCount + d.Errors
	if total == 0 {
		return 100
	}
	return d.CorrectCount * 100 / total
}

// Reset clears the in-flight target and decoded text, keeping scores.
func (d *Drill) Reset() {
	d.target = ""
	d.decoded = ""
}
