package main

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/on4pvc/morse-trainer/model"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrNameTaken       = errors.New("a channel with this name already exists")
	ErrEmptyName       = errors.New("name must not be empty")
	ErrUserNotFound    = errors.New("unknown user")
	ErrNotChatChannel  = errors.New("transmission is disabled in this channel")
)

const (
	maxCallsignLen    = 10
	maxChannelNameLen = 15
	privateIDPrefix   = "private_"
)

type channel struct {
	id        string
	name      string
	icon      string
	typ       model.ChannelType
	isPrivate bool
	createdBy string
	members   map[string]struct{}
	messages  []model.Message
}

type user struct {
	id        string
	callsign  string
	channelID string
}

// baseChannels exist for the whole process lifetime and can never be
// deleted. Private channels come and go around them.
var baseChannels = []struct {
	id   string
	name string
	icon string
	typ  model.ChannelType
}{
	{"lobby", "Lobby", "🏠", model.ChannelLobby},
	{"practice", "Practice", "🎯", model.ChannelPractice},
	{"channel1", "Channel 1", "📡", model.ChannelChat},
	{"channel2", "Channel 2", "📡", model.ChannelChat},
	{"channel3", "Channel 3", "📡", model.ChannelChat},
	{"channel4", "Channel 4", "📡", model.ChannelChat},
	{"channel5", "Channel 5", "📡", model.ChannelChat},
	{"channel6", "Channel 6", "📡", model.ChannelChat},
}

// Registry is the authoritative channel/presence state: fixed and
// private channels, membership, per-channel bounded history, and the
// connected users. One instance is created at startup and passed into
// every connection handler; a single mutex serializes all mutation
// because join and delete touch two channels plus the directory at once.
type Registry struct {
	mu           sync.RWMutex
	fixed        map[string]*channel
	private      map[string]*channel
	users        map[string]*user
	historyLimit int
	prefix       string
	rng          *rand.Rand
}

// NewRegistry builds a registry with the fixed channel set. historyLimit
// caps each channel's message history; prefix seeds generated callsigns.
func NewRegistry(historyLimit int, prefix string) *Registry {
	r := &Registry{
		fixed:        make(map[string]*channel, len(baseChannels)),
		private:      make(map[string]*channel),
		users:        make(map[string]*user),
		historyLimit: historyLimit,
		prefix:       prefix,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, b := range baseChannels {
		r.fixed[b.id] = &channel{
			id:      b.id,
			name:    b.name,
			icon:    b.icon,
			typ:     b.typ,
			members: make(map[string]struct{}),
		}
	}
	return r
}

func (r *Registry) lookupLocked(channelID string) *channel {
	if ch, ok := r.fixed[channelID]; ok {
		return ch
	}
	return r.private[channelID]
}

// AddUser registers a fresh connection with a generated callsign and
// joins it to the lobby.
func (r *Registry) AddUser(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	callsign := fmt.Sprintf("%s%03d", r.prefix, 100+r.rng.Intn(900))
	r.users[id] = &user{id: id, callsign: callsign, channelID: "lobby"}
	r.fixed["lobby"].members[id] = struct{}{}
	return callsign
}

// Callsign reports a user's current callsign.
func (r *Registry) Callsign(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return "", false
	}
	return u.callsign, true
}

// ChannelOf reports which channel a user currently occupies and its
// type. A connection belongs to exactly one channel at a time.
func (r *Registry) ChannelOf(id string) (string, model.ChannelType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return "", "", false
	}
	ch := r.lookupLocked(u.channelID)
	if ch == nil {
		return u.channelID, "", true
	}
	return u.channelID, ch.typ, true
}

// Rename trims, uppercases, and truncates the requested callsign.
// Returns the old and new names and the channel whose members should be
// notified.
func (r *Registry) Rename(id, requested string) (old, updated, channelID string, err error) {
	requested = strings.ToUpper(strings.TrimSpace(requested))
	if requested == "" {
		return "", "", "", ErrEmptyName
	}
	if len(requested) > maxCallsignLen {
		requested = requested[:maxCallsignLen]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return "", "", "", ErrUserNotFound
	}
	old = u.callsign
	u.callsign = requested
	return old, requested, u.channelID, nil
}

// JoinResult carries everything the handler needs to emit after a
// successful join, in the required order: the left channel, the private
// history snapshot, and the new channel's member list.
type JoinResult struct {
	UserID       string
	Callsign     string
	OldChannelID string
	ChannelID    string
	History      []model.Message
	Members      []model.UserRef
}

// Join moves a user to another channel: leave first, join second, so
// membership counts are consistent before the next broadcast. Joining an
// unknown channel changes nothing and errors; re-joining the current
// channel still runs the full leave/join sequence.
func (r *Registry) Join(id, channelID string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return JoinResult{}, ErrUserNotFound
	}
	target := r.lookupLocked(channelID)
	if target == nil {
		return JoinResult{}, ErrChannelNotFound
	}

	old := u.channelID
	if oldCh := r.lookupLocked(old); oldCh != nil {
		delete(oldCh.members, id)
	}
	target.members[id] = struct{}{}
	u.channelID = channelID

	history := make([]model.Message, len(target.messages))
	copy(history, target.messages)

	return JoinResult{
		UserID:       id,
		Callsign:     u.callsign,
		OldChannelID: old,
		ChannelID:    channelID,
		History:      history,
		Members:      r.membersLocked(target),
	}, nil
}

// CreatePrivate allocates a new private chat channel with zero members.
// Display-name uniqueness is case-insensitive across private channels.
func (r *Registry) CreatePrivate(creatorID, name string) (model.CreatedPayload, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.CreatedPayload{}, ErrEmptyName
	}
	if len(name) > maxChannelNameLen {
		name = name[:maxChannelNameLen]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.private {
		if strings.EqualFold(ch.name, name) {
			return model.CreatedPayload{}, ErrNameTaken
		}
	}

	id := privateIDPrefix + uuid.NewString()[:8]
	r.private[id] = &channel{
		id:        id,
		name:      name,
		icon:      "🔒",
		typ:       model.ChannelChat,
		isPrivate: true,
		createdBy: creatorID,
		members:   make(map[string]struct{}),
	}
	return model.CreatedPayload{ID: id, Name: name}, nil
}

// DeletePrivate removes a private channel, migrating every member to the
// lobby. It is a no-op for unknown or fixed channel ids. Returns the ids
// of the moved members.
func (r *Registry) DeletePrivate(channelID string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.private[channelID]
	if !ok {
		return nil, false
	}

	lobby := r.fixed["lobby"]
	moved := make([]string, 0, len(ch.members))
	for id := range ch.members {
		if u, ok := r.users[id]; ok {
			u.channelID = "lobby"
		}
		lobby.members[id] = struct{}{}
		moved = append(moved, id)
	}
	delete(r.private, channelID)
	sort.Strings(moved)
	return moved, true
}

// RemoveUser drops a disconnected user from its channel and from the
// registry. A network drop is treated exactly like an explicit leave.
func (r *Registry) RemoveUser(id string) (channelID, callsign string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, found := r.users[id]
	if !found {
		return "", "", false
	}
	if ch := r.lookupLocked(u.channelID); ch != nil {
		delete(ch.members, id)
	}
	delete(r.users, id)
	return u.channelID, u.callsign, true
}

// AppendMessage stamps and stores a finalized message in the sender's
// channel, evicting the oldest entry beyond the history limit in the
// same critical section as the append. Only chat channels carry
// messages.
func (r *Registry) AppendMessage(userID, text, morseDisplay string) (model.Message, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return model.Message{}, "", ErrUserNotFound
	}
	ch := r.lookupLocked(u.channelID)
	if ch == nil {
		return model.Message{}, "", ErrChannelNotFound
	}
	if ch.typ != model.ChannelChat {
		return model.Message{}, "", ErrNotChatChannel
	}

	msg := model.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		Callsign:  u.callsign,
		Text:      text,
		Morse:     morseDisplay,
		Timestamp: time.Now().UTC(),
	}
	ch.messages = append(ch.messages, msg)
	if len(ch.messages) > r.historyLimit {
		ch.messages = ch.messages[len(ch.messages)-r.historyLimit:]
	}
	return msg, u.channelID, nil
}

// Members lists the connection ids currently in a channel.
func (r *Registry) Members(channelID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch := r.lookupLocked(channelID)
	if ch == nil {
		return nil
	}
	ids := make([]string, 0, len(ch.members))
	for id := range ch.members {
		ids = append(ids, id)
	}
	return ids
}

// History returns a copy of a channel's message history.
func (r *Registry) History(channelID string) []model.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch := r.lookupLocked(channelID)
	if ch == nil {
		return nil
	}
	out := make([]model.Message, len(ch.messages))
	copy(out, ch.messages)
	return out
}

// Directory builds the full channel listing broadcast to all clients:
// fixed channels in their defined order, then private channels sorted by
// name.
func (r *Registry) Directory() []model.ChannelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ChannelInfo, 0, len(baseChannels)+len(r.private))
	for _, b := range baseChannels {
		out = append(out, r.infoLocked(r.fixed[b.id]))
	}

	privates := make([]*channel, 0, len(r.private))
	for _, ch := range r.private {
		privates = append(privates, ch)
	}
	sort.Slice(privates, func(i, j int) bool { return privates[i].name < privates[j].name })
	for _, ch := range privates {
		out = append(out, r.infoLocked(ch))
	}
	return out
}

func (r *Registry) infoLocked(ch *channel) model.ChannelInfo {
	return model.ChannelInfo{
		ID:        ch.id,
		Name:      ch.name,
		Icon:      ch.icon,
		Type:      ch.typ,
		UserCount: len(ch.members),
		Users:     r.membersLocked(ch),
		IsPrivate: ch.isPrivate,
	}
}

func (r *Registry) membersLocked(ch *channel) []model.UserRef {
	refs := make([]model.UserRef, 0, len(ch.members))
	for id := range ch.members {
		if u, ok := r.users[id]; ok {
			refs = append(refs, model.UserRef{ID: id, Callsign: u.callsign})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}
