package keyer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/on4pvc/morse-trainer/morse"
)

// gatedSounder hands each element to the test and blocks until released,
// so the test controls exactly when the keying loop advances.
type gatedSounder struct {
	played  chan morse.Element
	release chan struct{}
}

func newGatedSounder() *gatedSounder {
	return &gatedSounder{
		played:  make(chan morse.Element),
		release: make(chan struct{}),
	}
}

func (s *gatedSounder) PlayElement(e morse.Element, _ time.Duration) {
	s.played <- e
	<-s.release
}

func (s *gatedSounder) ToneOn()  {}
func (s *gatedSounder) ToneOff() {}

func (s *gatedSounder) next(t *testing.T) morse.Element {
	t.Helper()
	select {
	case e := <-s.played:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an element")
		return 0
	}
}

func (s *gatedSounder) allow() {
	s.release <- struct{}{}
}

type recordSounder struct {
	mu      sync.Mutex
	toneOn  int
	toneOff int
}

func (s *recordSounder) PlayElement(morse.Element, time.Duration) {}

func (s *recordSounder) ToneOn() {
	s.mu.Lock()
	s.toneOn++
	s.mu.Unlock()
}

func (s *recordSounder) ToneOff() {
	s.mu.Lock()
	s.toneOff++
	s.mu.Unlock()
}

func fixedTimings() morse.Timings { return morse.TimingsFor(20) }

func testOptions(mode Mode, snd Sounder, idle chan struct{}) Options {
	return Options{
		Mode:    mode,
		Timings: fixedTimings,
		Sounder: snd,
		OnIdle: func() {
			idle <- struct{}{}
		},
		Sleep: func(time.Duration) {},
	}
}

func waitIdle(t *testing.T, idle chan struct{}) {
	t.Helper()
	select {
	case <-idle:
	case <-time.After(time.Second):
		t.Fatal("keyer never went idle")
	}
}

func TestIambicA_SqueezeAlternatesAndStops(t *testing.T) {
	snd := newGatedSounder()
	idle := make(chan struct{}, 1)
	k := New(testOptions(ModeIambicA, snd, idle))

	k.KeyDown(PaddleDit)
	first := snd.next(t)
	require.Equal(t, morse.Dit, first)
	k.KeyDown(PaddleDah)
	snd.allow()

	// Squeeze now registered: strict alternation from the last element.
	var got []morse.Element
	got = append(got, first)
	for i := 0; i < 3; i++ {
		e := snd.next(t)
		got = append(got, e)
		if i == 2 {
			// Release both mid-element: mode A stops immediately.
			k.KeyUp(PaddleDit)
			k.KeyUp(PaddleDah)
		}
		snd.allow()
	}

	waitIdle(t, idle)
	assert.Equal(t, []morse.Element{morse.Dit, morse.Dah, morse.Dit, morse.Dah}, got)
}

func TestIambicB_ReleaseMidElementSendsOneMore(t *testing.T) {
	snd := newGatedSounder()
	idle := make(chan struct{}, 1)
	k := New(testOptions(ModeIambicB, snd, idle))

	k.KeyDown(PaddleDit)
	got := []morse.Element{snd.next(t)}
	k.KeyDown(PaddleDah)
	snd.allow()

	for i := 0; i < 3; i++ {
		e := snd.next(t)
		got = append(got, e)
		if i == 2 {
			k.KeyUp(PaddleDit)
			k.KeyUp(PaddleDah)
		}
		snd.allow()
	}

	// Mode B owes exactly one alternated element after the squeeze ends.
	got = append(got, snd.next(t))
	snd.allow()

	waitIdle(t, idle)
	assert.Equal(t, []morse.Element{morse.Dit, morse.Dah, morse.Dit, morse.Dah, morse.Dit}, got)
}

func TestSinglePaddleRepeats(t *testing.T) {
	snd := newGatedSounder()
	idle := make(chan struct{}, 1)
	k := New(testOptions(ModeIambicA, snd, idle))

	k.KeyDown(PaddleDah)
	var got []morse.Element
	for i := 0; i < 3; i++ {
		e := snd.next(t)
		got = append(got, e)
		if i == 2 {
			k.KeyUp(PaddleDah)
		}
		snd.allow()
	}

	waitIdle(t, idle)
	assert.Equal(t, []morse.Element{morse.Dah, morse.Dah, morse.Dah}, got)
}

func TestTap_QueuesInOrder(t *testing.T) {
	snd := newGatedSounder()
	idle := make(chan struct{}, 1)
	var emitted []morse.Element
	opts := testOptions(ModeIambicA, snd, idle)
	opts.OnElement = func(e morse.Element) { emitted = append(emitted, e) }
	k := New(opts)

	k.Tap(PaddleDit)
	require.Equal(t, morse.Dit, snd.next(t))
	k.Tap(PaddleDah)
	k.Tap(PaddleDit)
	snd.allow()
	assert.Equal(t, morse.Dah, snd.next(t))
	snd.allow()
	assert.Equal(t, morse.Dit, snd.next(t))
	snd.allow()

	waitIdle(t, idle)
	assert.Equal(t, []morse.Element{morse.Dit, morse.Dah, morse.Dit}, emitted)
}

func TestTap_InvertedPaddles(t *testing.T) {
	snd := newGatedSounder()
	idle := make(chan struct{}, 1)
	opts := testOptions(ModeIambicA, snd, idle)
	opts.InvertPaddles = true
	k := New(opts)

	k.Tap(PaddleDit)
	assert.Equal(t, morse.Dah, snd.next(t))
	snd.allow()
	waitIdle(t, idle)
}

func TestStop_DiscardsWithoutIdle(t *testing.T) {
	snd := newGatedSounder()
	idle := make(chan struct{}, 1)
	k := New(testOptions(ModeIambicA, snd, idle))

	k.KeyDown(PaddleDit)
	snd.next(t)
	k.Stop()
	snd.allow()

	select {
	case <-idle:
		t.Fatal("Stop must not arm the letter timer")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStraightKey_Threshold(t *testing.T) {
	// At 20 wpm: dit 60ms, dah 180ms, threshold 120ms.
	tests := []struct {
		name string
		held time.Duration
		want morse.Element
	}{
		{"short press", 50 * time.Millisecond, morse.Dit},
		{"just under threshold", 119 * time.Millisecond, morse.Dit},
		{"at threshold", 120 * time.Millisecond, morse.Dah},
		{"long press", 500 * time.Millisecond, morse.Dah},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snd := &recordSounder{}
			idle := make(chan struct{}, 1)
			now := time.Unix(0, 0)

			var got []morse.Element
			k := New(Options{
				Mode:      ModeStraight,
				Timings:   fixedTimings,
				Sounder:   snd,
				OnElement: func(e morse.Element) { got = append(got, e) },
				OnIdle:    func() { idle <- struct{}{} },
				Now:       func() time.Time { return now },
			})

			k.StraightDown()
			now = now.Add(tt.held)
			k.StraightUp()

			waitIdle(t, idle)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
			assert.Equal(t, 1, snd.toneOn)
			assert.Equal(t, 1, snd.toneOff)
		})
	}
}

func TestStraightKey_IgnoresPaddleEdges(t *testing.T) {
	snd := &recordSounder{}
	k := New(Options{
		Mode:    ModeStraight,
		Timings: fixedTimings,
		Sounder: snd,
		OnElement: func(morse.Element) {
			t.Fatal("paddle edges must be ignored in straight mode")
		},
	})

	k.KeyDown(PaddleDit)
	k.KeyUp(PaddleDit)
	// Release without a press is also a no-op.
	k.StraightUp()
	assert.Equal(t, 0, snd.toneOff)
}
