package main

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/on4pvc/morse-trainer/model"
)

const (
	reconnectAttempts = 10
	reconnectBase     = time.Second
	reconnectMax      = 30 * time.Second
)

type Network struct {
	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	host    string
}

func NewNetwork() *Network {
	return &Network{}
}

// Connect dials the server once. A missing port defaults to 8080.
func (n *Network) Connect(host string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}

	if !strings.Contains(host, ":") {
		host = host + ":8080"
	}
	n.host = host

	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	n.conn = c
	return nil
}

func (n *Network) Disconnect() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
}

// ConnectCmd dials once and reports the outcome to the program.
func (n *Network) ConnectCmd(host string) tea.Cmd {
	return func() tea.Msg {
		if err := n.Connect(host); err != nil {
			return disconnectedMsg{err: err}
		}
		return connectionMsg{}
	}
}

// ReconnectCmd retries the last host with doubling delay, giving up
// after a bounded number of attempts.
func (n *Network) ReconnectCmd() tea.Cmd {
	return func() tea.Msg {
		n.mu.Lock()
		host := n.host
		n.mu.Unlock()

		delay := reconnectBase
		var lastErr error
		for attempt := 0; attempt < reconnectAttempts; attempt++ {
			if lastErr = n.Connect(host); lastErr == nil {
				return connectionMsg{reconnected: true}
			}
			time.Sleep(delay)
			delay *= 2
			if delay > reconnectMax {
				delay = reconnectMax
			}
		}
		return errMsg(fmt.Errorf("gave up reconnecting after %d attempts: %w", reconnectAttempts, lastErr))
	}
}

// WaitForMessage is a tea.Cmd that waits for the next server event.
func (n *Network) WaitForMessage() tea.Msg {
	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()
	if conn == nil {
		return disconnectedMsg{}
	}

	var ev model.Event
	if err := conn.ReadJSON(&ev); err != nil {
		n.Disconnect()
		return disconnectedMsg{err: err}
	}
	return ev
}

// Send emits an event without waiting for any acknowledgment. Failures
// surface on the read side as a disconnect, so they are dropped here.
func (n *Network) Send(t model.EventType, payload any) {
	ev, err := model.NewEvent(t, payload)
	if err != nil {
		return
	}
	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()
	if conn == nil {
		return
	}

	// Timer callbacks and the Update loop both emit; gorilla connections
	// allow only one concurrent writer.
	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	conn.WriteJSON(ev)
}

type errMsg error

type connectionMsg struct {
	reconnected bool
}

type disconnectedMsg struct {
	err error
}
