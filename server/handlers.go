package main

import (
	"encoding/json"
	"log/slog"

	"github.com/on4pvc/morse-trainer/model"
)

// handleConnect registers a fresh connection: generated callsign,
// auto-join to the lobby, a private user:init, and a directory push to
// everyone.
func (h *Hub) handleConnect(c *Client) {
	callsign := h.registry.AddUser(c.id)
	slog.Info("user connected", "clientId", c.id, "callsign", callsign)

	h.send(c.id, model.EventUserInit, model.InitPayload{
		UserID:   c.id,
		Callsign: callsign,
		Channels: h.registry.Directory(),
	})
	h.broadcastDirectory()
}

// handleDisconnect treats any connection drop, graceful or not, as an
// explicit leave. One connection's failure never affects the others.
func (h *Hub) handleDisconnect(c *Client) {
	channelID, callsign, ok := h.registry.RemoveUser(c.id)
	h.remove(c.id)
	if !ok {
		return
	}
	slog.Info("user disconnected", "clientId", c.id, "callsign", callsign)

	h.channel(channelID, model.EventUserLeft, model.PresencePayload{
		UserID:    c.id,
		Callsign:  callsign,
		ChannelID: channelID,
	}, c.id)
	h.broadcastDirectory()
}

// handleEvent dispatches one decoded client event. Handlers run
// sequentially per connection (the read pump is single-threaded), and
// all shared state lives behind the registry's lock.
func (c *Client) handleEvent(ev model.Event) {
	switch ev.Type {
	case model.EventUserUpdate:
		c.handleUpdateCallsign(ev.Payload)
	case model.EventChannelJoin:
		c.handleJoin(ev.Payload)
	case model.EventChannelCreate:
		c.handleCreate(ev.Payload)
	case model.EventChannelDelete:
		c.handleDelete(ev.Payload)
	case model.EventMorseTyping:
		c.handleTyping(ev.Payload)
	case model.EventMorseElement:
		c.handleElement(ev.Payload)
	case model.EventMorseLetter:
		c.handleLetter(ev.Payload)
	case model.EventMorseMessage:
		c.handleMessage(ev.Payload)
	case model.EventMorseStopTyping:
		c.handleStopTyping()
	default:
		slog.Debug("ignoring event", "clientId", c.id, "type", ev.Type)
	}
}

func (c *Client) handleUpdateCallsign(raw json.RawMessage) {
	var p model.UpdateCallsignPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	old, updated, channelID, err := c.hub.registry.Rename(c.id, p.Callsign)
	if err != nil {
		c.hub.sendError(c.id, err)
		return
	}
	slog.Info("callsign changed", "clientId", c.id, "old", old, "new", updated)

	c.hub.channel(channelID, model.EventCallsignChanged, model.CallsignChangedPayload{
		UserID:      c.id,
		OldCallsign: old,
		NewCallsign: updated,
	}, c.id)
	c.hub.broadcastDirectory()
}

// handleJoin performs the full leave/join sequence: user:left to the old
// channel, user:joined to the new one, a private history snapshot to the
// joiner, then a directory broadcast. An unknown channel id yields an
// error reply and no state change.
func (c *Client) handleJoin(raw json.RawMessage) {
	var p model.JoinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	res, err := c.hub.registry.Join(c.id, p.ChannelID)
	if err != nil {
		c.hub.sendError(c.id, err)
		return
	}
	slog.Info("channel joined", "clientId", c.id, "callsign", res.Callsign, "channel", res.ChannelID)

	c.hub.channel(res.OldChannelID, model.EventUserLeft, model.PresencePayload{
		UserID:    c.id,
		Callsign:  res.Callsign,
		ChannelID: res.OldChannelID,
	}, c.id)
	c.hub.channel(res.ChannelID, model.EventUserJoined, model.PresencePayload{
		UserID:    c.id,
		Callsign:  res.Callsign,
		ChannelID: res.ChannelID,
	}, c.id)
	c.hub.send(c.id, model.EventChannelHistory, model.HistoryPayload{
		ChannelID: res.ChannelID,
		Messages:  res.History,
		Users:     res.Members,
	})
	c.hub.broadcastDirectory()
}

func (c *Client) handleCreate(raw json.RawMessage) {
	var p model.CreateChannelPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	created, err := c.hub.registry.CreatePrivate(c.id, p.Name)
	if err != nil {
		c.hub.sendError(c.id, err)
		return
	}
	slog.Info("private channel created", "clientId", c.id, "channel", created.ID, "name", created.Name)

	c.hub.broadcastDirectory()
	c.hub.send(c.id, model.EventChannelCreated, created)
}

// handleDelete removes a private channel, moving its members to the
// lobby. Every client gets a deletion notice so anyone viewing the
// channel switches away, then the updated directory.
func (c *Client) handleDelete(raw json.RawMessage) {
	var p model.DeleteChannelPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	moved, ok := c.hub.registry.DeletePrivate(p.ChannelID)
	if !ok {
		return
	}
	slog.Info("private channel deleted", "clientId", c.id, "channel", p.ChannelID, "moved", len(moved))

	ev, err := model.NewEvent(model.EventChannelDeleted, model.DeleteChannelPayload{ChannelID: p.ChannelID})
	if err == nil {
		c.hub.broadcastAll(ev)
	}
	c.hub.broadcastDirectory()
}

// canRelay gates the live morse fan-out: only chat channels carry
// transmissions. Lobby and practice suppress everything but presence.
func (c *Client) canRelay() (string, string, bool) {
	channelID, typ, ok := c.hub.registry.ChannelOf(c.id)
	if !ok || typ != model.ChannelChat {
		return "", "", false
	}
	callsign, _ := c.hub.registry.Callsign(c.id)
	return channelID, callsign, true
}

func (c *Client) handleTyping(raw json.RawMessage) {
	channelID, callsign, ok := c.canRelay()
	if !ok {
		return
	}
	var p model.TypingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	p.UserID = c.id
	p.Callsign = callsign
	c.hub.channel(channelID, model.EventMorseTyping, p, c.id)
}

func (c *Client) handleElement(raw json.RawMessage) {
	channelID, callsign, ok := c.canRelay()
	if !ok {
		return
	}
	var p model.ElementPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	p.UserID = c.id
	p.Callsign = callsign
	c.hub.channel(channelID, model.EventMorseElement, p, c.id)
}

func (c *Client) handleLetter(raw json.RawMessage) {
	channelID, callsign, ok := c.canRelay()
	if !ok {
		return
	}
	var p model.LetterPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	p.UserID = c.id
	p.Callsign = callsign
	c.hub.channel(channelID, model.EventMorseLetter, p, c.id)
}

// handleMessage persists a finalized message and broadcasts it to the
// whole channel, sender included, since it is also written to history.
func (c *Client) handleMessage(raw json.RawMessage) {
	var p model.MessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	msg, channelID, err := c.hub.registry.AppendMessage(c.id, p.Text, p.Morse)
	if err != nil {
		return
	}
	slog.Info("message", "channel", channelID, "callsign", msg.Callsign, "text", msg.Text)

	c.hub.channel(channelID, model.EventMorseMessage, msg, "")
}

func (c *Client) handleStopTyping() {
	channelID, callsign, ok := c.canRelay()
	if !ok {
		return
	}
	c.hub.channel(channelID, model.EventMorseStopTyping, model.PresencePayload{
		UserID:    c.id,
		Callsign:  callsign,
		ChannelID: channelID,
	}, c.id)
}

// send wraps a payload and delivers it to one client.
func (h *Hub) send(id string, t model.EventType, payload any) {
	ev, err := model.NewEvent(t, payload)
	if err != nil {
		slog.Warn("marshal error", "event", t, "error", err)
		return
	}
	h.sendTo(id, ev)
}

// channel wraps a payload and fans it out to a channel's members,
// skipping except when non-empty.
func (h *Hub) channel(channelID string, t model.EventType, payload any, except string) {
	ev, err := model.NewEvent(t, payload)
	if err != nil {
		slog.Warn("marshal error", "event", t, "error", err)
		return
	}
	h.broadcastChannel(channelID, ev, except)
}

// sendError delivers a human-readable rejection to the caller only.
func (h *Hub) sendError(id string, err error) {
	h.send(id, model.EventError, model.ErrorPayload{Message: err.Error()})
}
