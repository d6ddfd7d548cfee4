// Package morse provides the character/symbol code table and the timing
// model shared by the keyer, the client and the server.
package morse

import "strings"

// Element is one keyed unit, '.' for a dit or '-' for a dah. These are
// also the wire characters carried in morse:element events.
type Element byte

const (
	Dit Element = '.'
	Dah Element = '-'
)

// Opposite returns the alternate element, used by squeeze keying.
func (e Element) Opposite() Element {
	if e == Dit {
		return Dah
	}
	return Dit
}

// Symbol is the dot/dash sequence representing one character.
type Symbol = string

// Unknown is rendered for any symbol outside the code table. Decoding
// never fails; an unreadable letter still shows up as something.
const Unknown rune = '?'

var code = map[rune]Symbol{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..", '0': "-----", '1': ".----", '2': "..---", '3': "...--",
	'4': "....-", '5': ".....", '6': "-....", '7': "--...", '8': "---..",
	'9': "----.", '/': "-..-.", '?': "..--..", '.': ".-.-.-", ',': "--..--",
}

var reverse = func() map[Symbol]rune {
	m := make(map[Symbol]rune, len(code))
	for r, s := range code {
		m[s] = r
	}
	return m
}()

// Encode maps a character to its symbol. Lowercase letters are folded to
// uppercase. The second return is false for unsupported characters,
// which playback simply skips.
func Encode(r rune) (Symbol, bool) {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	s, ok := code[r]
	return s, ok
}

// Decode maps a symbol back to its character, or Unknown if the sequence
// is not in the table.
func Decode(s Symbol) rune {
	if r, ok := reverse[s]; ok {
		return r
	}
	return Unknown
}

// Supported reports every character in the code table.
func Supported() []rune {
	out := make([]rune, 0, len(code))
	for r := range code {
		out = append(out, r)
	}
	return out
}

// Display renders a symbol with typographic marks for the UI and for the
// morse field of committed messages.
func Display(s Symbol) string {
	s = strings.ReplaceAll(s, ".", "•")
	return strings.ReplaceAll(s, "-", "—")
}

// WordBreak separates words inside a displayed symbol sequence.
const WordBreak = "/"

// DisplaySequence joins a sequence of symbols and word-break markers
// into the display string stored alongside a message's text.
func DisplaySequence(seq []Symbol) string {
	parts := make([]string, len(seq))
	for i, s := range seq {
		if s == WordBreak {
			parts[i] = WordBreak
		} else {
			parts[i] = Display(s)
		}
	}
	return strings.Join(parts, " ")
}
