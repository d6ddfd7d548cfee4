package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/on4pvc/morse-trainer/model"
	"github.com/on4pvc/morse-trainer/morse"
)

const sidebarWidth = 24

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#505050"))

	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	callsignStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFFF"))
	morseStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#87D787"))

	composingStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#AFAFAF"))

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#005F87"))
	currentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))

	correctStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FFF5F"))
	wrongStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F"))
)

func (m *modelState) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := headerStyle.Render(" ⚡ Morse Trainer ") +
		dimStyle.Render(fmt.Sprintf(" %s  %s", m.callsign, m.status))

	sidebar := m.renderSidebar()
	var main string
	if m.channelTypeOf(m.currentChannel) == model.ChannelPractice {
		main = m.renderPractice()
	} else {
		main = m.viewport.View()
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebar,
		borderStyle.Render("│")+" ",
		main,
	)

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		header,
		borderStyle.Render(strings.Repeat("─", sidebarWidth+m.viewport.Width+2)),
		body,
		borderStyle.Render(strings.Repeat("─", sidebarWidth+m.viewport.Width+2)),
		m.renderFooter(),
	)
}

func (m *modelState) renderSidebar() string {
	var b strings.Builder
	b.WriteString(dimStyle.Render("CHANNELS") + "\n")
	for i, ch := range m.channels {
		line := fmt.Sprintf("%s %s (%d)", ch.Icon, ch.Name, ch.UserCount)
		switch {
		case i == m.selected:
			line = selectedStyle.Render(line)
		case ch.ID == m.currentChannel:
			line = currentStyle.Render(line)
		}
		b.WriteString(line + "\n")
		if ch.ID == m.currentChannel {
			for _, u := range ch.Users {
				name := u.Callsign
				if u.ID == m.userID {
					name += " ←"
				}
				b.WriteString(dimStyle.Render("   "+name) + "\n")
			}
		}
	}
	return lipgloss.NewStyle().Width(sidebarWidth).Height(m.viewport.Height).Render(b.String())
}

func (m *modelState) renderPractice() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("🎯 Practice") + "\n\n")
	target := m.drill.Target()
	if target == "" {
		b.WriteString(dimStyle.Render("Press p to start a drill.") + "\n")
	} else {
		b.WriteString(fmt.Sprintf("Target:  %s   %s\n",
			currentStyle.Render(target),
			morseStyle.Render(m.drill.TargetSymbols())))
		decoded := m.drill.Decoded()
		switch {
		case decoded == target:
			b.WriteString("Copied:  " + correctStyle.Render(decoded+"  ✓") + "\n")
		case len(decoded) >= len(target):
			b.WriteString("Copied:  " + wrongStyle.Render(decoded+"  ✗") + "\n")
		default:
			b.WriteString(fmt.Sprintf("Copied:  %s%s\n", decoded,
				morse.Display(m.sess.practiceBuf.CurrentMorse())))
		}
	}
	b.WriteString(fmt.Sprintf("\nScore: %d   Accuracy: %d%%\n", m.drill.Score, m.drill.Accuracy()))
	b.WriteString(dimStyle.Render("\np: next target   r: replay   f/g: key"))
	return lipgloss.NewStyle().Width(m.viewport.Width).Height(m.viewport.Height).Render(b.String())
}

func (m *modelState) renderFooter() string {
	if m.input != inputNone {
		return m.textInput.View() + "\n" + dimStyle.Render("enter: confirm   esc: cancel")
	}
	s := m.settings.Get()
	mode := s.KeyMode
	if s.InvertPaddles && mode != "straight" {
		mode += " (inv)"
	}
	settingsLine := dimStyle.Render(fmt.Sprintf("%s  %d wpm  %d Hz  delay %ds",
		mode, s.WPM, s.ToneHz, s.MessageDelaySec))
	var keys string
	switch m.channelTypeOf(m.currentChannel) {
	case model.ChannelChat:
		keys = "f/g: key   x: send   ↑/↓+enter: channels   c: callsign   n: new   m: mode   +/-: wpm   q: quit"
	case model.ChannelPractice:
		keys = "f/g: key   p: next   r: replay   ↑/↓+enter: channels   m: mode   +/-: wpm   q: quit"
	default:
		keys = "↑/↓+enter: join a channel to start keying   c: callsign   n: new channel   q: quit"
	}
	return settingsLine + "\n" + dimStyle.Render(keys)
}
