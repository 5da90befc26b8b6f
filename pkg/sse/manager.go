package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/gin-gonic/gin"
)

// Event is one server-sent event pushed to a connected client.
type Event struct {
	Name string
	Data interface{}
}

// Manager fans events out to the SSE connections of each user.
type Manager struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewManager() *Manager {
	return &Manager{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

func (m *Manager) subscribe(userID string) (chan Event, func()) {
	ch := make(chan Event, 8)
	m.mu.Lock()
	if _, ok := m.subs[userID]; !ok {
		m.subs[userID] = make(map[chan Event]struct{})
	}
	m.subs[userID][ch] = struct{}{}
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		if subscribers, ok := m.subs[userID]; ok {
			delete(subscribers, ch)
			if len(subscribers) == 0 {
				delete(m.subs, userID)
			}
		}
		m.mu.Unlock()
		close(ch)
	}
}

// SendToUser delivers an event to every connection of a user. Slow clients are
// skipped rather than blocking the sender.
func (m *Manager) SendToUser(userID, event string, data interface{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.subs[userID] {
		select {
		case ch <- Event{Name: event, Data: data}:
		default:
		}
	}
}

// ServeHTTP streams events to one client until it disconnects.
func (m *Manager) ServeHTTP(c *gin.Context, userID string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ch, cancel := m.subscribe(userID)
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			payload, err := json.Marshal(event.Data)
			if err != nil {
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
