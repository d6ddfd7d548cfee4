package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/on4pvc/morse-trainer/model"
)

// Handlers run synchronously on the caller's goroutine and deliver into
// each client's buffered send channel, so tests can drive them without
// any websocket plumbing.
func newTestHub() *Hub {
	return NewHub(newTestRegistry())
}

func connect(h *Hub, id string) *Client {
	c := &Client{hub: h, id: id, send: make(chan []byte, 64)}
	h.add(c)
	h.handleConnect(c)
	return c
}

// drain decodes every frame queued for a client and empties its buffer.
func drain(t *testing.T, c *Client) []model.Event {
	t.Helper()
	var out []model.Event
	for {
		select {
		case data := <-c.send:
			var ev model.Event
			require.NoError(t, json.Unmarshal(data, &ev))
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventTypes(evs []model.Event) []model.EventType {
	types := make([]model.EventType, len(evs))
	for i, ev := range evs {
		types[i] = ev.Type
	}
	return types
}

func decode[T any](t *testing.T, ev model.Event) T {
	t.Helper()
	var p T
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	return p
}

func findEvent(evs []model.Event, typ model.EventType) (model.Event, bool) {
	for _, ev := range evs {
		if ev.Type == typ {
			return ev, true
		}
	}
	return model.Event{}, false
}

func joinChannel(t *testing.T, c *Client, channelID string) {
	t.Helper()
	raw, err := json.Marshal(model.JoinPayload{ChannelID: channelID})
	require.NoError(t, err)
	c.handleJoin(raw)
}

func TestConnectSendsInitThenDirectory(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")

	evs := drain(t, a)
	require.NotEmpty(t, evs)
	assert.Equal(t,
		[]model.EventType{model.EventUserInit, model.EventChannelsUpdate},
		eventTypes(evs))

	init := decode[model.InitPayload](t, evs[0])
	assert.Equal(t, "a", init.UserID)
	assert.NotEmpty(t, init.Callsign)
	assert.Len(t, init.Channels, 8)

	// A second connection updates the first one's directory.
	connect(h, "b")
	evs = drain(t, a)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventChannelsUpdate, evs[0].Type)
}

func TestJoinFanOutOrdering(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	b := connect(h, "b")
	joinChannel(t, b, "channel1")
	drain(t, a)
	drain(t, b)

	joinChannel(t, a, "channel1")

	// The joiner gets its private history snapshot before the directory.
	assert.Equal(t,
		[]model.EventType{model.EventChannelHistory, model.EventChannelsUpdate},
		eventTypes(drain(t, a)))

	// A channel member sees the presence event before the directory.
	evs := drain(t, b)
	assert.Equal(t,
		[]model.EventType{model.EventUserJoined, model.EventChannelsUpdate},
		eventTypes(evs))
	joined := decode[model.PresencePayload](t, evs[0])
	assert.Equal(t, "a", joined.UserID)
	assert.Equal(t, "channel1", joined.ChannelID)
}

func TestJoinNotifiesOldChannel(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	b := connect(h, "b")
	joinChannel(t, a, "channel1")
	joinChannel(t, b, "channel1")
	drain(t, a)
	drain(t, b)

	joinChannel(t, b, "channel2")

	evs := drain(t, a)
	left, ok := findEvent(evs, model.EventUserLeft)
	require.True(t, ok)
	p := decode[model.PresencePayload](t, left)
	assert.Equal(t, "b", p.UserID)
	assert.Equal(t, "channel1", p.ChannelID)
}

func TestJoinUnknownChannelRepliesError(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	drain(t, a)

	joinChannel(t, a, "channel99")

	evs := drain(t, a)
	require.Len(t, evs, 1)
	require.Equal(t, model.EventError, evs[0].Type)
	p := decode[model.ErrorPayload](t, evs[0])
	assert.Equal(t, ErrChannelNotFound.Error(), p.Message)
}

func TestMorseRelayStampsSenderAndSkipsSender(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	b := connect(h, "b")
	joinChannel(t, a, "channel1")
	joinChannel(t, b, "channel1")
	drain(t, a)
	drain(t, b)

	raw, _ := json.Marshal(model.ElementPayload{Element: ".", Duration: 60})
	a.handleElement(raw)

	assert.Empty(t, drain(t, a), "relays must not echo to the sender")

	evs := drain(t, b)
	require.Len(t, evs, 1)
	p := decode[model.ElementPayload](t, evs[0])
	assert.Equal(t, "a", p.UserID)
	callsign, _ := h.registry.Callsign("a")
	assert.Equal(t, callsign, p.Callsign)
	assert.Equal(t, ".", p.Element)
	assert.Equal(t, 60.0, p.Duration)
}

func TestMorseRelaySuppressedOutsideChatChannels(t *testing.T) {
	for _, channelID := range []string{"lobby", "practice"} {
		t.Run(channelID, func(t *testing.T) {
			h := newTestHub()
			a := connect(h, "a")
			b := connect(h, "b")
			joinChannel(t, a, channelID)
			joinChannel(t, b, channelID)
			drain(t, a)
			drain(t, b)

			raw, _ := json.Marshal(model.ElementPayload{Element: "-", Duration: 180})
			a.handleElement(raw)
			raw, _ = json.Marshal(model.TypingPayload{CurrentMorse: "-"})
			a.handleTyping(raw)
			a.handleStopTyping()

			assert.Empty(t, drain(t, b))
		})
	}
}

func TestMessageBroadcastsToWholeChannel(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	b := connect(h, "b")
	c := connect(h, "c")
	joinChannel(t, a, "channel1")
	joinChannel(t, b, "channel1")
	joinChannel(t, c, "channel2")
	drain(t, a)
	drain(t, b)
	drain(t, c)

	raw, _ := json.Marshal(model.MessagePayload{Text: "SOS", Morse: "••• ——— •••"})
	a.handleMessage(raw)

	// Sender included: the stored message is the authoritative copy.
	for _, cl := range []*Client{a, b} {
		evs := drain(t, cl)
		require.Len(t, evs, 1, "client %s", cl.id)
		require.Equal(t, model.EventMorseMessage, evs[0].Type)
		msg := decode[model.Message](t, evs[0])
		assert.Equal(t, "SOS", msg.Text)
		assert.Equal(t, "••• ——— •••", msg.Morse)
		assert.Equal(t, "a", msg.UserID)
		assert.NotEmpty(t, msg.ID)
	}
	assert.Empty(t, drain(t, c), "no cross-channel delivery")

	history := h.registry.History("channel1")
	require.Len(t, history, 1)
	assert.Equal(t, "SOS", history[0].Text)
}

func TestSOSArrivesAsElementLetterPairsThenOneMessage(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	b := connect(h, "b")
	joinChannel(t, a, "channel1")
	joinChannel(t, b, "channel1")
	drain(t, a)
	drain(t, b)

	letters := []struct {
		letter string
		morse  string
	}{
		{"S", "..."},
		{"O", "---"},
		{"S", "..."},
	}
	for _, l := range letters {
		for i := 0; i < len(l.morse); i++ {
			raw, _ := json.Marshal(model.ElementPayload{Element: string(l.morse[i]), Duration: 60})
			a.handleElement(raw)
		}
		raw, _ := json.Marshal(model.LetterPayload{Letter: l.letter, Morse: l.morse})
		a.handleLetter(raw)
	}
	raw, _ := json.Marshal(model.MessagePayload{Text: "SOS", Morse: "••• ——— •••"})
	a.handleMessage(raw)

	evs := drain(t, b)
	want := []model.EventType{
		model.EventMorseElement, model.EventMorseElement, model.EventMorseElement, model.EventMorseLetter,
		model.EventMorseElement, model.EventMorseElement, model.EventMorseElement, model.EventMorseLetter,
		model.EventMorseElement, model.EventMorseElement, model.EventMorseElement, model.EventMorseLetter,
		model.EventMorseMessage,
	}
	require.Equal(t, want, eventTypes(evs))

	first := decode[model.LetterPayload](t, evs[3])
	assert.Equal(t, "S", first.Letter)
	second := decode[model.LetterPayload](t, evs[7])
	assert.Equal(t, "O", second.Letter)
	final := decode[model.Message](t, evs[12])
	assert.Equal(t, "SOS", final.Text)
}

func TestUpdateCallsignNotifiesChannel(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	b := connect(h, "b")
	drain(t, a)
	drain(t, b)

	raw, _ := json.Marshal(model.UpdateCallsignPayload{Callsign: "on4pvc"})
	a.handleUpdateCallsign(raw)

	evs := drain(t, b)
	changed, ok := findEvent(evs, model.EventCallsignChanged)
	require.True(t, ok)
	p := decode[model.CallsignChangedPayload](t, changed)
	assert.Equal(t, "a", p.UserID)
	assert.Equal(t, "ON4PVC", p.NewCallsign)

	callsign, _ := h.registry.Callsign("a")
	assert.Equal(t, "ON4PVC", callsign)
}

func TestCreateAndDeletePrivateChannel(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	b := connect(h, "b")
	drain(t, a)
	drain(t, b)

	raw, _ := json.Marshal(model.CreateChannelPayload{Name: "Ragchew"})
	a.handleCreate(raw)

	evs := drain(t, a)
	created, ok := findEvent(evs, model.EventChannelCreated)
	require.True(t, ok)
	cp := decode[model.CreatedPayload](t, created)
	assert.Equal(t, "Ragchew", cp.Name)

	// Everyone sees the new channel in the directory.
	evs = drain(t, b)
	dirEv, ok := findEvent(evs, model.EventChannelsUpdate)
	require.True(t, ok)
	dir := decode[[]model.ChannelInfo](t, dirEv)
	assert.Contains(t, channelIDs(dir), cp.ID)

	joinChannel(t, b, cp.ID)
	drain(t, a)
	drain(t, b)

	raw, _ = json.Marshal(model.DeleteChannelPayload{ChannelID: cp.ID})
	a.handleDelete(raw)

	// Deletion reaches every client, members or not.
	for _, cl := range []*Client{a, b} {
		evs := drain(t, cl)
		deleted, ok := findEvent(evs, model.EventChannelDeleted)
		require.True(t, ok, "client %s", cl.id)
		dp := decode[model.DeleteChannelPayload](t, deleted)
		assert.Equal(t, cp.ID, dp.ChannelID)
	}

	channelID, _, found := h.registry.ChannelOf("b")
	require.True(t, found)
	assert.Equal(t, "lobby", channelID)
}

func TestDisconnectNotifiesChannelPeers(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	b := connect(h, "b")
	joinChannel(t, a, "channel1")
	joinChannel(t, b, "channel1")
	drain(t, a)
	drain(t, b)

	h.handleDisconnect(b)

	evs := drain(t, a)
	left, ok := findEvent(evs, model.EventUserLeft)
	require.True(t, ok)
	p := decode[model.PresencePayload](t, left)
	assert.Equal(t, "b", p.UserID)

	_, _, found := h.registry.ChannelOf("b")
	assert.False(t, found)
	assert.Nil(t, h.get("b"))
}
