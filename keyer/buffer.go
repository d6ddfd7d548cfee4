package keyer

import (
	"strings"
	"sync"
	"time"

	"github.com/on4pvc/morse-trainer/morse"
)

// Callbacks receive the buffer's output. Nil callbacks are skipped. All
// callbacks run without the buffer lock held.
type Callbacks struct {
	// OnTyping fires on every change to the in-progress symbol or text,
	// feeding the local display and the morse:typing preview.
	OnTyping func(currentMorse, currentText string)
	// OnLetter fires when the letter-gap timer decodes one character.
	OnLetter func(letter rune, symbol morse.Symbol)
	// OnMessage fires when a non-empty message is finalized.
	OnMessage func(text, morseDisplay string)
	// OnStopTyping fires on every finalization, committed or discarded.
	OnStopTyping func()
}

// Buffer accumulates elements into letters and letters into a message,
// driven by idle timers: a letter gap decodes the pending symbol, a word
// gap inserts a space, and (for chat buffers) a longer configurable
// pause finalizes the whole message. One buffer is active per session.
type Buffer struct {
	mu sync.Mutex

	chat         bool
	timings      func() morse.Timings
	messageDelay func() time.Duration
	cb           Callbacks

	current string
	text    string
	seq     []morse.Symbol

	letterTimer  *time.Timer
	wordTimer    *time.Timer
	messageTimer *time.Timer
}

// NewBuffer builds a buffer. Chat buffers run the message-idle timer and
// word spacing; practice buffers only decode letters. messageDelay may
// be nil for practice buffers.
func NewBuffer(chat bool, timings func() morse.Timings, messageDelay func() time.Duration, cb Callbacks) *Buffer {
	return &Buffer{chat: chat, timings: timings, messageDelay: messageDelay, cb: cb}
}

// AddElement appends one element to the in-progress symbol. The caller
// (the keyer) has already cancelled the gap timers on key-down; only the
// message-idle timer is restarted here.
func (b *Buffer) AddElement(e morse.Element) {
	b.mu.Lock()
	b.current += string(e)
	cur, text := b.current, b.text
	b.mu.Unlock()

	if b.cb.OnTyping != nil {
		b.cb.OnTyping(cur, text)
	}
	if b.chat {
		b.restartMessageTimer()
	}
}

// CancelGapTimers stops the letter and word timers. Called on every
// key-down edge so a gap timer never fires mid-keying.
func (b *Buffer) CancelGapTimers() {
	b.mu.Lock()
	stopTimerLocked(&b.letterTimer)
	stopTimerLocked(&b.wordTimer)
	b.mu.Unlock()
}

// ArmLetterTimer schedules letter finalization one inter-character gap
// from now. Called when the keyer goes idle.
func (b *Buffer) ArmLetterTimer() {
	t := b.timings()
	b.mu.Lock()
	stopTimerLocked(&b.letterTimer)
	b.letterTimer = time.AfterFunc(t.InterChar, b.finalizeLetter)
	b.mu.Unlock()
}

// finalizeLetter decodes the pending symbol into one character. Unknown
// sequences decode to the placeholder, never an error. Completing a
// letter is what arms the word-gap timer: sustained silence after a
// partial symbol must not insert a space.
func (b *Buffer) finalizeLetter() {
	b.mu.Lock()
	if b.current == "" {
		b.mu.Unlock()
		return
	}
	sym := b.current
	b.current = ""
	r := morse.Decode(sym)
	b.text += string(r)
	b.seq = append(b.seq, sym)
	text := b.text
	b.mu.Unlock()

	if b.cb.OnLetter != nil {
		b.cb.OnLetter(r, sym)
	}
	if b.cb.OnTyping != nil {
		b.cb.OnTyping("", text)
	}
	if b.chat {
		b.armWordTimer()
		b.restartMessageTimer()
	}
}

func (b *Buffer) armWordTimer() {
	t := b.timings()
	b.mu.Lock()
	stopTimerLocked(&b.wordTimer)
	b.wordTimer = time.AfterFunc(t.InterWord, b.wordSpace)
	b.mu.Unlock()
}

func (b *Buffer) wordSpace() {
	b.mu.Lock()
	if b.text == "" || strings.HasSuffix(b.text, " ") {
		b.mu.Unlock()
		return
	}
	b.text += " "
	b.seq = append(b.seq, morse.WordBreak)
	cur, text := b.current, b.text
	b.mu.Unlock()

	if b.cb.OnTyping != nil {
		b.cb.OnTyping(cur, text)
	}
	b.restartMessageTimer()
}

func (b *Buffer) restartMessageTimer() {
	if b.messageDelay == nil {
		return
	}
	d := b.messageDelay()
	b.mu.Lock()
	stopTimerLocked(&b.messageTimer)
	b.messageTimer = time.AfterFunc(d, b.messageIdle)
	b.mu.Unlock()
}

func (b *Buffer) messageIdle() {
	b.mu.Lock()
	empty := b.text == ""
	b.mu.Unlock()
	if !empty {
		b.Finalize()
	}
}

// Finalize commits the buffer: trims whitespace, emits the message if
// anything remains, and resets. A whitespace-only buffer is discarded
// with no message emitted. An incomplete in-progress symbol is
// discarded, not flushed. Triggered by the message-idle timer, a channel
// switch, or a manual send.
func (b *Buffer) Finalize() {
	b.mu.Lock()
	b.stopTimersLocked()
	text := strings.TrimSpace(b.text)
	display := morse.DisplaySequence(b.seq)
	b.current = ""
	b.text = ""
	b.seq = nil
	b.mu.Unlock()

	if text != "" && b.cb.OnMessage != nil {
		b.cb.OnMessage(text, display)
	}
	if b.cb.OnStopTyping != nil {
		b.cb.OnStopTyping()
	}
}

// Flush commits the buffer synchronously and returns the result instead
// of invoking callbacks. Used on channel switches and manual sends,
// where the caller must emit the message before its next frame.
func (b *Buffer) Flush() (text, morseDisplay string, ok bool) {
	b.mu.Lock()
	b.stopTimersLocked()
	text = strings.TrimSpace(b.text)
	morseDisplay = morse.DisplaySequence(b.seq)
	b.current = ""
	b.text = ""
	b.seq = nil
	b.mu.Unlock()
	return text, morseDisplay, text != ""
}

// Reset discards all state and timers without emitting anything.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.stopTimersLocked()
	b.current = ""
	b.text = ""
	b.seq = nil
	b.mu.Unlock()
}

// CurrentMorse returns the in-progress symbol.
func (b *Buffer) CurrentMorse() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Text returns the committed text so far.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *Buffer) stopTimersLocked() {
	stopTimerLocked(&b.letterTimer)
	stopTimerLocked(&b.wordTimer)
	stopTimerLocked(&b.messageTimer)
}

// Timers are replaced, never stacked: the previous timer is always
// stopped before a new one is armed.
func stopTimerLocked(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
