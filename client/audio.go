package main

import (
	"time"

	"github.com/gen2brain/beeep"

	"github.com/on4pvc/morse-trainer/morse"
)

// Peer transmissions play at a pitch offset and reduced volume so local
// and remote keying are distinguishable by ear.
const (
	peerPitchOffset  = 100.0
	peerVolumeFactor = 0.5
)

// Sounder is the audio collaborator: play one tone at a frequency and
// volume for a duration.
type Sounder interface {
	PlayTone(freqHz float64, volume float64, d time.Duration)
}

// beepSounder backs the Sounder with the system beep. beeep has no
// volume control, so the volume fraction is accepted and ignored.
type beepSounder struct{}

func (beepSounder) PlayTone(freqHz float64, _ float64, d time.Duration) {
	beeep.Beep(freqHz, int(d.Milliseconds()))
}

// silentSounder is used when audio is disabled or unavailable.
type silentSounder struct{}

func (silentSounder) PlayTone(float64, float64, time.Duration) {}

// keyerSounder adapts a Sounder to the keyer's contract. PlayElement
// must block for the element's duration to keep the keying cadence even
// when the backend returns early.
type keyerSounder struct {
	out  Sounder
	freq func() float64
	vol  func() float64
}

func (s *keyerSounder) PlayElement(_ morse.Element, d time.Duration) {
	start := time.Now()
	s.out.PlayTone(s.freq(), s.vol(), d)
	if rest := d - time.Since(start); rest > 0 {
		time.Sleep(rest)
	}
}

// ToneOn approximates a held straight-key tone with a short blip; a
// terminal beep cannot be sustained for an open-ended press.
func (s *keyerSounder) ToneOn() {
	go s.out.PlayTone(s.freq(), s.vol(), 60*time.Millisecond)
}

func (s *keyerSounder) ToneOff() {}
