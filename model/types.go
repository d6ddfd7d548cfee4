package model

import (
	"encoding/json"
	"time"
)

// ChannelType determines what a channel allows: lobby channels are
// presence-only, practice channels are local drills, chat channels carry
// live morse traffic.
type ChannelType string

const (
	ChannelLobby    ChannelType = "lobby"
	ChannelPractice ChannelType = "practice"
	ChannelChat     ChannelType = "chat"
)

// UserRef identifies a connected user inside channel listings.
type UserRef struct {
	ID       string `json:"id"`
	Callsign string `json:"callsign"`
}

// Message is one committed chat message. Immutable once appended to a
// channel's history.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Callsign  string    `json:"callsign"`
	Text      string    `json:"text"`
	Morse     string    `json:"morse"`
	Timestamp time.Time `json:"timestamp"`
}

// ChannelInfo is the directory entry broadcast to every client whenever
// membership changes anywhere.
type ChannelInfo struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Icon      string      `json:"icon"`
	Type      ChannelType `json:"type"`
	UserCount int         `json:"userCount"`
	Users     []UserRef   `json:"users"`
	IsPrivate bool        `json:"isPrivate,omitempty"`
}

// EventType represents the type of websocket event.
type EventType string

const (
	EventUserInit        EventType = "user:init"
	EventUserUpdate      EventType = "user:updateCallsign"
	EventUserJoined      EventType = "user:joined"
	EventUserLeft        EventType = "user:left"
	EventCallsignChanged EventType = "user:callsignChanged"

	EventChannelsUpdate EventType = "channels:update"
	EventChannelJoin    EventType = "channel:join"
	EventChannelHistory EventType = "channel:history"
	EventChannelCreate  EventType = "channel:create"
	EventChannelCreated EventType = "channel:created"
	EventChannelDelete  EventType = "channel:delete"
	EventChannelDeleted EventType = "channel:deleted"

	EventMorseTyping     EventType = "morse:typing"
	EventMorseElement    EventType = "morse:element"
	EventMorseLetter     EventType = "morse:letter"
	EventMorseMessage    EventType = "morse:message"
	EventMorseStopTyping EventType = "morse:stopTyping"

	EventError EventType = "error"
)

// Event is the wrapper for websocket messages. The payload stays raw
// until the handler knows which struct to decode it into.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent wraps a payload struct into an Event ready to marshal.
func NewEvent(t EventType, payload any) (Event, error) {
	if payload == nil {
		return Event{Type: t}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Payload: raw}, nil
}

// InitPayload is sent once to a freshly connected client.
type InitPayload struct {
	UserID   string        `json:"userId"`
	Callsign string        `json:"callsign"`
	Channels []ChannelInfo `json:"channels"`
}

// HistoryPayload is the private snapshot a client receives after joining
// a channel.
type HistoryPayload struct {
	ChannelID string    `json:"channelId"`
	Messages  []Message `json:"messages"`
	Users     []UserRef `json:"users"`
}

// PresencePayload announces a join or leave to a channel's members.
type PresencePayload struct {
	UserID    string `json:"userId"`
	Callsign  string `json:"callsign"`
	ChannelID string `json:"channelId"`
}

// CallsignChangedPayload notifies channel members of a rename.
type CallsignChangedPayload struct {
	UserID      string `json:"userId"`
	OldCallsign string `json:"oldCallsign"`
	NewCallsign string `json:"newCallsign"`
}

// JoinPayload asks the server to move the sender to another channel.
type JoinPayload struct {
	ChannelID string `json:"channelId"`
}

// CreateChannelPayload proposes a private channel name.
type CreateChannelPayload struct {
	Name string `json:"name"`
}

// CreatedPayload confirms a private channel to its creator.
type CreatedPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeleteChannelPayload asks for / announces a private channel removal.
type DeleteChannelPayload struct {
	ChannelID string `json:"channelId"`
}

// UpdateCallsignPayload carries the requested new callsign.
type UpdateCallsignPayload struct {
	Callsign string `json:"callsign"`
}

// TypingPayload is the live composition preview. Sender identity fields
// are filled in by the server before relaying.
type TypingPayload struct {
	UserID       string `json:"userId,omitempty"`
	Callsign     string `json:"callsign,omitempty"`
	CurrentMorse string `json:"currentMorse"`
	CurrentText  string `json:"currentText"`
}

// ElementPayload carries one dit or dah with its duration so peers can
// replay the exact tone.
type ElementPayload struct {
	UserID   string  `json:"userId,omitempty"`
	Callsign string  `json:"callsign,omitempty"`
	Element  string  `json:"element"`
	Duration float64 `json:"duration"` // milliseconds
}

// LetterPayload carries one decoded letter and its symbol.
type LetterPayload struct {
	UserID   string `json:"userId,omitempty"`
	Callsign string `json:"callsign,omitempty"`
	Letter   string `json:"letter"`
	Morse    string `json:"morse"`
}

// MessagePayload is a finalized message on its way to the server. The
// server stamps id, sender and timestamp before storing/broadcasting.
type MessagePayload struct {
	Text  string `json:"text"`
	Morse string `json:"morse"`
}

// ErrorPayload carries a human-readable rejection.
type ErrorPayload struct {
	Message string `json:"message"`
}
