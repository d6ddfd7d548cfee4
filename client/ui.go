package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/on4pvc/morse-trainer/keyer"
	"github.com/on4pvc/morse-trainer/model"
	"github.com/on4pvc/morse-trainer/morse"
)

// Internal messages pushed by keyer and buffer callbacks, which run on
// their own goroutines, into the program's event channel.
type elementMsg struct {
	element  morse.Element
	duration time.Duration
}

type typingMsg struct {
	morse string
	text  string
}

type letterMsg struct {
	letter rune
	symbol morse.Symbol
}

type composedMsg struct {
	text    string
	display string
}

type stopTypingMsg struct{}

type practiceLetterMsg struct {
	letter rune
}

type advanceMsg struct{}

type inputMode int

const (
	inputNone inputMode = iota
	inputCallsign
	inputChannelName
)

// session is the state shared with keyer/buffer callbacks running off
// the Update loop.
type session struct {
	mu          sync.Mutex
	channelType model.ChannelType
	chatBuf     *keyer.Buffer
	practiceBuf *keyer.Buffer
}

func (s *session) setType(t model.ChannelType) {
	s.mu.Lock()
	s.channelType = t
	s.mu.Unlock()
}

// active picks the buffer for the current channel type; the lobby has
// none, which is what disables transmission there.
func (s *session) active() *keyer.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.channelType {
	case model.ChannelChat:
		return s.chatBuf
	case model.ChannelPractice:
		return s.practiceBuf
	default:
		return nil
	}
}

type typingState struct {
	callsign string
	morse    string
	text     string
}

type modelState struct {
	net      *Network
	host     string
	settings *SettingsStore
	sounder  Sounder
	key      *keyer.Keyer
	sess     *session
	drill    *keyer.Drill
	events   chan tea.Msg

	userID         string
	callsign       string
	channels       []model.ChannelInfo
	currentChannel string
	selected       int

	messages     []string
	composing    typingState
	othersTyping map[string]typingState

	viewport  viewport.Model
	textInput textinput.Model
	input     inputMode
	status    string
	connected bool
	ready     bool
	err       error
}

func initialModel(net *Network, host string, settings *SettingsStore, sounder Sounder) *modelState {
	ti := textinput.New()
	ti.CharLimit = 15
	ti.Width = 20

	m := &modelState{
		net:            net,
		host:           host,
		settings:       settings,
		sounder:        sounder,
		sess:           &session{channelType: model.ChannelLobby},
		drill:          keyer.NewDrill(),
		events:         make(chan tea.Msg, 64),
		currentChannel: "lobby",
		othersTyping:   make(map[string]typingState),
		textInput:      ti,
		status:         "Connecting...",
	}

	m.sess.chatBuf = keyer.NewBuffer(true, settings.Timings, settings.MessageDelay, keyer.Callbacks{
		OnTyping: func(cur, text string) {
			m.events <- typingMsg{morse: cur, text: text}
		},
		OnLetter: func(r rune, sym morse.Symbol) {
			m.events <- letterMsg{letter: r, symbol: sym}
		},
		OnMessage: func(text, display string) {
			m.events <- composedMsg{text: text, display: display}
		},
		OnStopTyping: func() {
			m.events <- stopTypingMsg{}
		},
	})
	m.sess.practiceBuf = keyer.NewBuffer(false, settings.Timings, nil, keyer.Callbacks{
		OnLetter: func(r rune, _ morse.Symbol) {
			m.events <- practiceLetterMsg{letter: r}
		},
	})

	ks := &keyerSounder{
		out:  sounder,
		freq: func() float64 { return float64(settings.Get().ToneHz) },
		vol:  func() float64 { return float64(settings.Get().Volume) / 100 },
	}
	m.key = keyer.New(keyer.Options{
		Mode:          settings.KeyerMode(),
		InvertPaddles: settings.Get().InvertPaddles,
		Timings:       settings.Timings,
		Sounder:       ks,
		OnElement: func(e morse.Element) {
			if b := m.sess.active(); b != nil {
				b.AddElement(e)
			}
			m.events <- elementMsg{element: e, duration: settings.Timings().Duration(e)}
		},
		OnKeyDown: func() {
			if b := m.sess.active(); b != nil {
				b.CancelGapTimers()
			}
		},
		OnIdle: func() {
			if b := m.sess.active(); b != nil {
				b.ArmLetterTimer()
			}
		},
	})

	return m
}

func (m *modelState) Init() tea.Cmd {
	return tea.Batch(m.waitEvent, m.net.ConnectCmd(m.host))
}

// waitEvent pumps internal keyer/buffer messages into Update.
func (m *modelState) waitEvent() tea.Msg {
	return <-m.events
}

// listen pumps server events into Update.
func (m *modelState) listen() tea.Msg {
	return m.net.WaitForMessage()
}

func (m *modelState) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		footerHeight := 4
		headerHeight := 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width-sidebarWidth-2, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - sidebarWidth - 2
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.refreshViewport()
		return m, nil

	case connectionMsg:
		m.connected = true
		m.status = "Connected"
		return m, m.listen

	case disconnectedMsg:
		m.connected = false
		m.status = "Disconnected, reconnecting..."
		m.key.Stop()
		return m, m.net.ReconnectCmd()

	case model.Event:
		cmd := m.handleServerEvent(msg)
		return m, tea.Batch(m.listen, cmd)

	case elementMsg:
		if m.channelTypeOf(m.currentChannel) == model.ChannelChat && m.connected {
			m.net.Send(model.EventMorseElement, model.ElementPayload{
				Element:  string(msg.element),
				Duration: float64(msg.duration.Milliseconds()),
			})
		}
		return m, m.waitEvent

	case typingMsg:
		m.composing.morse = msg.morse
		m.composing.text = msg.text
		if m.connected {
			m.net.Send(model.EventMorseTyping, model.TypingPayload{
				CurrentMorse: msg.morse,
				CurrentText:  msg.text,
			})
		}
		m.refreshViewport()
		return m, m.waitEvent

	case letterMsg:
		if m.connected {
			m.net.Send(model.EventMorseLetter, model.LetterPayload{
				Letter: string(msg.letter),
				Morse:  msg.symbol,
			})
		}
		return m, m.waitEvent

	case composedMsg:
		m.commitOwnMessage(msg.text, msg.display)
		return m, m.waitEvent

	case stopTypingMsg:
		m.composing = typingState{}
		if m.connected {
			m.net.Send(model.EventMorseStopTyping, nil)
		}
		m.refreshViewport()
		return m, m.waitEvent

	case practiceLetterMsg:
		cmd := m.waitEvent
		// Letters keyed after the copy is already checked are ignored
		// until the next target.
		if m.drill.Target() != "" && len(m.drill.Decoded()) < len(m.drill.Target()) {
			if outcome := m.drill.AddLetter(msg.letter); outcome != keyer.Pending {
				cmd = tea.Batch(m.waitEvent, tea.Tick(keyer.AdvanceDelay, func(time.Time) tea.Msg {
					return advanceMsg{}
				}))
			}
		}
		return m, cmd

	case advanceMsg:
		if m.channelTypeOf(m.currentChannel) == model.ChannelPractice {
			m.sess.practiceBuf.Reset()
			m.drill.Next()
			return m, m.playTarget()
		}
		return m, nil

	case errMsg:
		m.err = msg
		return m, tea.Quit
	}

	return m, nil
}

func (m *modelState) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input != inputNone {
		switch msg.Type {
		case tea.KeyEsc:
			m.input = inputNone
			m.textInput.Blur()
			return m, nil
		case tea.KeyEnter:
			value := strings.TrimSpace(m.textInput.Value())
			mode := m.input
			m.input = inputNone
			m.textInput.Blur()
			m.textInput.SetValue("")
			if value == "" {
				return m, nil
			}
			switch mode {
			case inputCallsign:
				m.net.Send(model.EventUserUpdate, model.UpdateCallsignPayload{Callsign: value})
				m.settings.Update(func(s *Settings) { s.Callsign = strings.ToUpper(value) })
			case inputChannelName:
				m.net.Send(model.EventChannelCreate, model.CreateChannelPayload{Name: value})
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.key.Stop()
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down", "j":
		if m.selected < len(m.channels)-1 {
			m.selected++
		}
		return m, nil
	case "enter":
		if m.selected < len(m.channels) {
			return m, m.switchChannel(m.channels[m.selected].ID)
		}
		return m, nil

	case "f":
		if m.canTransmit() {
			m.key.Tap(keyer.PaddleDit)
		}
		return m, nil
	case "g":
		if m.canTransmit() {
			m.key.Tap(keyer.PaddleDah)
		}
		return m, nil

	case "x":
		if m.channelTypeOf(m.currentChannel) == model.ChannelChat {
			m.sendNow()
		}
		return m, nil

	case "c":
		m.input = inputCallsign
		m.textInput.Placeholder = "New callsign"
		m.textInput.CharLimit = 10
		m.textInput.SetValue("")
		m.textInput.Focus()
		return m, textinput.Blink
	case "n":
		m.input = inputChannelName
		m.textInput.Placeholder = "Channel name"
		m.textInput.CharLimit = 15
		m.textInput.SetValue("")
		m.textInput.Focus()
		return m, textinput.Blink
	case "d":
		if m.selected < len(m.channels) && m.channels[m.selected].IsPrivate {
			m.net.Send(model.EventChannelDelete, model.DeleteChannelPayload{
				ChannelID: m.channels[m.selected].ID,
			})
		}
		return m, nil

	case "m":
		m.cycleKeyMode()
		return m, nil
	case "i":
		m.settings.Update(func(s *Settings) { s.InvertPaddles = !s.InvertPaddles })
		m.key.SetInvertPaddles(m.settings.Get().InvertPaddles)
		return m, nil
	case "+", "=":
		m.settings.Update(func(s *Settings) { s.WPM = morse.ClampWPM(s.WPM + 1) })
		return m, nil
	case "-":
		m.settings.Update(func(s *Settings) { s.WPM = morse.ClampWPM(s.WPM - 1) })
		return m, nil
	case "s":
		m.settings.Update(func(s *Settings) { s.ShowMorse = !s.ShowMorse })
		m.refreshViewport()
		return m, nil
	case "a":
		m.settings.Update(func(s *Settings) { s.PlayOthersAudio = !s.PlayOthersAudio })
		return m, nil

	case "p":
		if m.channelTypeOf(m.currentChannel) == model.ChannelPractice {
			m.sess.practiceBuf.Reset()
			m.drill.Next()
			return m, m.playTarget()
		}
		return m, nil
	case "r":
		if m.channelTypeOf(m.currentChannel) == model.ChannelPractice && m.drill.Target() != "" {
			return m, m.playTarget()
		}
		return m, nil
	}

	return m, nil
}

func (m *modelState) handleServerEvent(ev model.Event) tea.Cmd {
	switch ev.Type {
	case model.EventUserInit:
		var p model.InitPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return nil
		}
		m.userID = p.UserID
		m.callsign = p.Callsign
		m.channels = p.Channels
		m.currentChannel = "lobby"
		m.sess.setType(model.ChannelLobby)
		// Re-apply the saved callsign; the server forgets us between
		// connects.
		if saved := m.settings.Get().Callsign; saved != "" && saved != p.Callsign {
			m.callsign = saved
			m.net.Send(model.EventUserUpdate, model.UpdateCallsignPayload{Callsign: saved})
		}

	case model.EventChannelsUpdate:
		var p []model.ChannelInfo
		if json.Unmarshal(ev.Payload, &p) != nil {
			return nil
		}
		m.channels = p

	case model.EventChannelHistory:
		var p model.HistoryPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return nil
		}
		m.messages = nil
		for _, msg := range p.Messages {
			m.messages = append(m.messages, m.formatMessage(msg))
		}
		m.refreshViewport()

	case model.EventChannelDeleted:
		var p model.DeleteChannelPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return nil
		}
		if m.currentChannel == p.ChannelID {
			return m.switchChannel("lobby")
		}

	case model.EventUserJoined:
		var p model.PresencePayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			m.status = p.Callsign + " joined"
		}

	case model.EventUserLeft:
		var p model.PresencePayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			delete(m.othersTyping, p.UserID)
			m.refreshViewport()
		}

	case model.EventCallsignChanged:
		var p model.CallsignChangedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			m.status = p.OldCallsign + " → " + p.NewCallsign
		}

	case model.EventMorseTyping:
		var p model.TypingPayload
		if json.Unmarshal(ev.Payload, &p) == nil && p.UserID != m.userID {
			m.othersTyping[p.UserID] = typingState{
				callsign: p.Callsign,
				morse:    p.CurrentMorse,
				text:     p.CurrentText,
			}
			m.refreshViewport()
		}

	case model.EventMorseLetter:
		var p model.LetterPayload
		if json.Unmarshal(ev.Payload, &p) == nil && p.UserID != m.userID {
			st := m.othersTyping[p.UserID]
			st.callsign = p.Callsign
			st.text += p.Letter
			st.morse = ""
			m.othersTyping[p.UserID] = st
			m.refreshViewport()
		}

	case model.EventMorseElement:
		var p model.ElementPayload
		if json.Unmarshal(ev.Payload, &p) == nil && p.UserID != m.userID {
			if m.settings.Get().PlayOthersAudio {
				s := m.settings.Get()
				go m.sounder.PlayTone(
					float64(s.ToneHz)+peerPitchOffset,
					float64(s.Volume)/100*peerVolumeFactor,
					time.Duration(p.Duration)*time.Millisecond,
				)
			}
		}

	case model.EventMorseMessage:
		var p model.Message
		if json.Unmarshal(ev.Payload, &p) == nil && p.UserID != m.userID {
			m.messages = append(m.messages, m.formatMessage(p))
			delete(m.othersTyping, p.UserID)
			m.refreshViewport()
		}

	case model.EventMorseStopTyping:
		var p model.PresencePayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			delete(m.othersTyping, p.UserID)
			m.refreshViewport()
		}

	case model.EventChannelCreated:
		var p model.CreatedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			m.status = "Created " + p.Name
		}

	case model.EventError:
		var p model.ErrorPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			m.status = "Error: " + p.Message
		}
	}
	return nil
}

// switchChannel finalizes any in-progress message, resets all local
// keying state, and asks the server for the move.
func (m *modelState) switchChannel(channelID string) tea.Cmd {
	m.sendNow()
	m.key.Stop()
	m.sess.chatBuf.Reset()
	m.sess.practiceBuf.Reset()
	m.drill.Reset()
	m.composing = typingState{}
	m.othersTyping = make(map[string]typingState)
	m.messages = nil

	m.currentChannel = channelID
	m.sess.setType(m.channelTypeOf(channelID))
	if m.connected {
		m.net.Send(model.EventChannelJoin, model.JoinPayload{ChannelID: channelID})
	}
	m.refreshViewport()

	if m.sess.active() == m.sess.practiceBuf {
		m.drill.Next()
		return m.playTarget()
	}
	return nil
}

// sendNow flushes the chat buffer: a whitespace-only composition is
// discarded without touching the network.
func (m *modelState) sendNow() {
	text, display, ok := m.sess.chatBuf.Flush()
	hadComposition := m.composing.text != "" || m.composing.morse != ""
	m.composing = typingState{}
	if ok {
		m.commitOwnMessage(text, display)
	}
	if m.connected && (ok || hadComposition) {
		m.net.Send(model.EventMorseStopTyping, nil)
	}
}

func (m *modelState) commitOwnMessage(text, display string) {
	if m.connected {
		m.net.Send(model.EventMorseMessage, model.MessagePayload{Text: text, Morse: display})
	}
	m.messages = append(m.messages, m.formatMessage(model.Message{
		Callsign:  m.callsign,
		Text:      text,
		Morse:     display,
		Timestamp: time.Now(),
	}))
	m.refreshViewport()
}

func (m *modelState) cycleKeyMode() {
	m.settings.Update(func(s *Settings) {
		switch s.KeyMode {
		case "iambicA":
			s.KeyMode = "iambicB"
		case "iambicB":
			s.KeyMode = "straight"
		default:
			s.KeyMode = "iambicA"
		}
	})
	m.key.SetMode(m.settings.KeyerMode())
}

// playTarget sounds out the drill target at current speed.
func (m *modelState) playTarget() tea.Cmd {
	target := m.drill.Target()
	return func() tea.Msg {
		s := m.settings.Get()
		for i, r := range target {
			t := m.settings.Timings()
			if r == ' ' {
				time.Sleep(t.InterWord)
				continue
			}
			sym, ok := morse.Encode(r)
			if !ok {
				continue
			}
			for j := 0; j < len(sym); j++ {
				d := t.Duration(morse.Element(sym[j]))
				m.sounder.PlayTone(float64(s.ToneHz), float64(s.Volume)/100, d)
				time.Sleep(d)
				if j < len(sym)-1 {
					time.Sleep(t.IntraChar)
				}
			}
			if i < len(target)-1 {
				time.Sleep(t.InterChar)
			}
		}
		return nil
	}
}

func (m *modelState) canTransmit() bool {
	return m.channelTypeOf(m.currentChannel) != model.ChannelLobby
}

func (m *modelState) channelTypeOf(id string) model.ChannelType {
	for _, ch := range m.channels {
		if ch.ID == id {
			return ch.Type
		}
	}
	return model.ChannelLobby
}

func (m *modelState) formatMessage(msg model.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s",
		timeStyle.Render(msg.Timestamp.Local().Format("15:04")),
		callsignStyle.Render(fmt.Sprintf("%-10s", msg.Callsign)),
		msg.Text)
	if m.settings.Get().ShowMorse && msg.Morse != "" {
		b.WriteString("\n")
		b.WriteString(morseStyle.Render("      " + msg.Morse))
	}
	return b.String()
}

func (m *modelState) refreshViewport() {
	if !m.ready {
		return
	}
	lines := make([]string, 0, len(m.messages)+len(m.othersTyping)+2)
	lines = append(lines, m.messages...)
	if m.composing.text != "" || m.composing.morse != "" {
		lines = append(lines, composingStyle.Render(fmt.Sprintf("%s: %s %s▊",
			m.callsign, m.composing.text, morse.Display(m.composing.morse))))
	}
	for _, st := range m.othersTyping {
		lines = append(lines, composingStyle.Render(fmt.Sprintf("%s: %s %s…",
			st.callsign, st.text, morse.Display(st.morse))))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}
