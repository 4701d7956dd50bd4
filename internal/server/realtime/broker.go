// Package realtime implements the websocket fanout layer: a room broker,
// per-connection read/write pumps, and Redis-backed presence. Rooms are
// ephemeral routing state; the database stays the source of truth.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Event is the wire envelope for everything sent over a websocket.
type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func userRoom(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func chatRoom(chatID string) string {
	return "chat:" + chatID
}

// Broker routes events to rooms of connected clients. It implements
// services.Publisher. A slow client never blocks a broadcast: when its send
// buffer is full the connection is dropped instead.
type Broker struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewBroker() *Broker {
	return &Broker{rooms: make(map[string]map[*Client]bool)}
}

func (b *Broker) join(room string, c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rooms[room] == nil {
		b.rooms[room] = make(map[*Client]bool)
	}
	b.rooms[room][c] = true
}

func (b *Broker) leave(room string, c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if members := b.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
}

func (b *Broker) broadcast(room, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	frame, err := json.Marshal(Event{Event: event, Payload: raw})
	if err != nil {
		return
	}

	b.mu.RLock()
	members := make([]*Client, 0, len(b.rooms[room]))
	for c := range b.rooms[room] {
		members = append(members, c)
	}
	b.mu.RUnlock()

	for _, c := range members {
		if !c.trySend(frame) {
			go c.Close()
		}
	}
}

// PublishToChat sends an event to every connection joined to the chat room.
func (b *Broker) PublishToChat(chatID string, event string, payload any) {
	b.broadcast(chatRoom(chatID), event, payload)
}

// PublishToUser sends an event to every connection of the user.
func (b *Broker) PublishToUser(userID int64, event string, payload any) {
	b.broadcast(userRoom(userID), event, payload)
}
