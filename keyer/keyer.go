// Package keyer turns physical key edges into morse elements and
// accumulates elements into letters and messages. It is UI-agnostic: the
// frontend supplies a sounder for tones and callbacks for emitted
// elements, and drives the machine with key-down/key-up edges.
package keyer

import (
	"sync"
	"time"

	"github.com/on4pvc/morse-trainer/morse"
)

// Mode selects how key edges are interpreted.
type Mode int

const (
	// ModeIambicA alternates while both paddles are squeezed and stops
	// as soon as they are released.
	ModeIambicA Mode = iota
	// ModeIambicB additionally sends one trailing alternated element
	// when a squeeze is released mid-element.
	ModeIambicB
	// ModeStraight classifies a single lever by hold duration alone.
	ModeStraight
)

// Paddle identifies one of the two iambic levers.
type Paddle int

const (
	PaddleDit Paddle = iota
	PaddleDah
)

// Sounder produces the sidetone. PlayElement blocks for the element's
// duration; ToneOn/ToneOff bracket a straight-key press.
type Sounder interface {
	PlayElement(e morse.Element, d time.Duration)
	ToneOn()
	ToneOff()
}

// Options wires a Keyer to its collaborators. Timings is re-read before
// every element because the operator may change speed mid-letter.
type Options struct {
	Mode          Mode
	InvertPaddles bool
	Timings       func() morse.Timings
	Sounder       Sounder

	// OnElement receives each keyed element after its tone finishes.
	OnElement func(e morse.Element)
	// OnKeyDown fires on every key-down edge, before any tone. The
	// composition buffer uses it to cancel its gap timers.
	OnKeyDown func()
	// OnIdle fires when keying stops with no paddle held, so the
	// buffer can arm the inter-letter timer.
	OnIdle func()

	// Sleep and Now default to the real clock; tests substitute them.
	Sleep func(d time.Duration)
	Now   func() time.Time
}

// Keyer is the input state machine. It is owned by a single local
// session; all methods are safe for concurrent use because the keying
// loop runs on its own goroutine.
type Keyer struct {
	mu   sync.Mutex
	opts Options

	ditHeld bool
	dahHeld bool
	last    morse.Element
	queue   []morse.Element
	busy    bool
	stop    bool

	straightDown  bool
	straightStart time.Time
}

// New builds a Keyer from the given options.
func New(opts Options) *Keyer {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Keyer{opts: opts}
}

// SetMode switches the keying mode, clearing all held and queued state.
func (k *Keyer) SetMode(m Mode) {
	k.mu.Lock()
	k.opts.Mode = m
	k.clearLocked()
	k.mu.Unlock()
}

// Mode reports the current keying mode.
func (k *Keyer) Mode() Mode {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.opts.Mode
}

// SetInvertPaddles swaps which lever produces dit and dah. Squeeze
// alternation is unaffected.
func (k *Keyer) SetInvertPaddles(invert bool) {
	k.mu.Lock()
	k.opts.InvertPaddles = invert
	k.mu.Unlock()
}

// Stop forcibly clears all held and queued state and halts the keying
// loop without arming any timer. Used on window-focus loss and channel
// switches; incomplete elements are discarded, not flushed.
func (k *Keyer) Stop() {
	k.mu.Lock()
	k.clearLocked()
	wasStraight := k.straightDown
	k.straightDown = false
	k.mu.Unlock()
	if wasStraight {
		k.opts.Sounder.ToneOff()
	}
}

func (k *Keyer) clearLocked() {
	k.ditHeld = false
	k.dahHeld = false
	k.queue = nil
	if k.busy {
		k.stop = true
	}
}

// KeyDown records a paddle press and starts the keying loop if it is
// not already running. Ignored in straight mode.
func (k *Keyer) KeyDown(p Paddle) {
	k.mu.Lock()
	if k.opts.Mode == ModeStraight {
		k.mu.Unlock()
		return
	}
	if p == PaddleDit {
		k.ditHeld = true
	} else {
		k.dahHeld = true
	}
	start := !k.busy
	if start {
		k.busy = true
	}
	k.mu.Unlock()

	if k.opts.OnKeyDown != nil {
		k.opts.OnKeyDown()
	}
	if start {
		go k.run()
	}
}

// KeyUp records a paddle release. In iambic-B, releasing during a
// squeeze while an element is in flight queues exactly one alternated
// element to follow it.
func (k *Keyer) KeyUp(p Paddle) {
	k.mu.Lock()
	wasSqueeze := k.ditHeld && k.dahHeld
	if p == PaddleDit {
		k.ditHeld = false
	} else {
		k.dahHeld = false
	}
	if k.opts.Mode == ModeIambicB && wasSqueeze && k.busy {
		k.queue = append(k.queue, k.last.Opposite())
	}
	k.mu.Unlock()
}

// Tap queues a single element for the given paddle. Frontends without
// key-up edges (terminals) use this instead of KeyDown/KeyUp pairs; it
// works in any mode since the queue has first priority.
func (k *Keyer) Tap(p Paddle) {
	k.mu.Lock()
	k.queue = append(k.queue, k.elementForLocked(p))
	start := !k.busy
	if start {
		k.busy = true
	}
	k.mu.Unlock()

	if k.opts.OnKeyDown != nil {
		k.opts.OnKeyDown()
	}
	if start {
		go k.run()
	}
}

func (k *Keyer) elementForLocked(p Paddle) morse.Element {
	dit := p == PaddleDit
	if k.opts.InvertPaddles {
		dit = !dit
	}
	if dit {
		return morse.Dit
	}
	return morse.Dah
}

// run is the keying loop. At most one instance runs at a time, guarded
// by the busy flag. Element priority: queued, then squeeze alternation,
// then whichever single paddle is held.
func (k *Keyer) run() {
	for {
		k.mu.Lock()
		if k.stop {
			k.stop = false
			k.busy = false
			k.mu.Unlock()
			return
		}

		var el morse.Element
		switch {
		case len(k.queue) > 0:
			el = k.queue[0]
			k.queue = k.queue[1:]
		case k.ditHeld && k.dahHeld:
			el = k.last.Opposite()
		case k.ditHeld:
			el = k.elementForLocked(PaddleDit)
		case k.dahHeld:
			el = k.elementForLocked(PaddleDah)
		default:
			k.busy = false
			k.mu.Unlock()
			if k.opts.OnIdle != nil {
				k.opts.OnIdle()
			}
			return
		}
		k.last = el
		k.mu.Unlock()

		t := k.opts.Timings()
		k.opts.Sounder.PlayElement(el, t.Duration(el))
		if k.opts.OnElement != nil {
			k.opts.OnElement(el)
		}
		k.opts.Sleep(t.IntraChar)
	}
}

// StraightDown starts a straight-key press: tone on, timing begins.
// Ignored outside straight mode or while already pressed.
func (k *Keyer) StraightDown() {
	k.mu.Lock()
	if k.opts.Mode != ModeStraight || k.straightDown {
		k.mu.Unlock()
		return
	}
	k.straightDown = true
	k.straightStart = k.opts.Now()
	k.mu.Unlock()

	if k.opts.OnKeyDown != nil {
		k.opts.OnKeyDown()
	}
	k.opts.Sounder.ToneOn()
}

// StraightUp ends a straight-key press. The hold duration is
// thresholded at (dit+dah)/2: shorter emits a dit, longer a dah.
func (k *Keyer) StraightUp() {
	k.mu.Lock()
	if !k.straightDown {
		k.mu.Unlock()
		return
	}
	k.straightDown = false
	held := k.opts.Now().Sub(k.straightStart)
	k.mu.Unlock()

	k.opts.Sounder.ToneOff()

	t := k.opts.Timings()
	el := morse.Dit
	if held >= (t.Dit+t.Dah)/2 {
		el = morse.Dah
	}

	k.mu.Lock()
	k.last = el
	k.mu.Unlock()

	if k.opts.OnElement != nil {
		k.opts.OnElement(el)
	}
	if k.opts.OnIdle != nil {
		k.opts.OnIdle()
	}
}
