package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/on4pvc/morse-trainer/keyer"
	"github.com/on4pvc/morse-trainer/morse"
)

// Settings is everything the client remembers between runs. The server
// keeps nothing about a user; a saved callsign is re-applied after every
// connect.
type Settings struct {
	Theme           string `json:"theme"`
	KeyMode         string `json:"key_mode"` // iambicA, iambicB, straight
	InvertPaddles   bool   `json:"invert_paddles"`
	MessageDelaySec int    `json:"message_delay_sec"`
	ShowMorse       bool   `json:"show_morse"`
	PlayOthersAudio bool   `json:"play_others_audio"`
	Callsign        string `json:"callsign"`
	WPM             int    `json:"wpm"`
	ToneHz          int    `json:"tone_hz"`
	Volume          int    `json:"volume"` // percent
}

type SettingsStore struct {
	mu   sync.RWMutex
	path string
	s    Settings
}

func defaultSettings() Settings {
	return Settings{
		Theme:           "light",
		KeyMode:         "iambicA",
		MessageDelaySec: 4,
		ShowMorse:       true,
		PlayOthersAudio: true,
		WPM:             20,
		ToneHz:          600,
		Volume:          70,
	}
}

// NewSettingsStore places the settings file under the user config dir
// unless an explicit path is given.
func NewSettingsStore(path string) *SettingsStore {
	if path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(dir, "morse-trainer", "settings.json")
		} else {
			path = "settings.json"
		}
	}
	return &SettingsStore{path: path, s: defaultSettings()}
}

func (st *SettingsStore) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, err := os.Stat(st.path); os.IsNotExist(err) {
		return st.saveInternal()
	}
	data, err := os.ReadFile(st.path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &st.s); err != nil {
		return err
	}
	if st.s.WPM == 0 {
		st.s.WPM = 20
	}
	st.s.WPM = morse.ClampWPM(st.s.WPM)
	if st.s.MessageDelaySec <= 0 {
		st.s.MessageDelaySec = 4
	}
	return nil
}

func (st *SettingsStore) Save() error {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.saveInternal()
}

func (st *SettingsStore) saveInternal() error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st.s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(st.path, data, 0644)
}

// Get returns a copy of the current settings.
func (st *SettingsStore) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Update applies a mutation and persists it.
func (st *SettingsStore) Update(fn func(*Settings)) error {
	st.mu.Lock()
	fn(&st.s)
	st.s.WPM = morse.ClampWPM(st.s.WPM)
	err := st.saveInternal()
	st.mu.Unlock()
	return err
}

// Timings derives the current durations; re-read before every element
// because the operator can change speed at any time.
func (st *SettingsStore) Timings() morse.Timings {
	st.mu.RLock()
	wpm := st.s.WPM
	st.mu.RUnlock()
	return morse.TimingsFor(wpm)
}

// MessageDelay is the idle pause that finalizes a chat message.
func (st *SettingsStore) MessageDelay() time.Duration {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return time.Duration(st.s.MessageDelaySec) * time.Second
}

// KeyerMode maps the stored mode name onto the keyer's modes.
func (st *SettingsStore) KeyerMode() keyer.Mode {
	st.mu.RLock()
	defer st.mu.RUnlock()
	switch st.s.KeyMode {
	case "iambicB":
		return keyer.ModeIambicB
	case "straight":
		return keyer.ModeStraight
	default:
		return keyer.ModeIambicA
	}
}
