package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8 * 1024
	sendBufferSize = 256
)

// Inbound client events.
const (
	eventChatJoin  = "chat:join"
	eventChatLeave = "chat:leave"
)

type joinPayload struct {
	ChatID string `json:"chatId"`
}

// Memberships answers whether a user may join a chat room.
type Memberships interface {
	IsMember(ctx context.Context, chatID string, userID int64) (bool, error)
}

// Client is one authenticated websocket connection. Every client sits in its
// user room for its whole lifetime and joins chat rooms on demand.
type Client struct {
	conn        *websocket.Conn
	broker      *Broker
	memberships Memberships
	userID      int64

	mu        sync.Mutex
	chatRooms map[string]bool
	closed    bool
	closeOnce sync.Once

	send chan []byte

	onClose func()
}

func newClient(broker *Broker, memberships Memberships, userID int64, conn *websocket.Conn, onClose func()) *Client {
	return &Client{
		conn:        conn,
		broker:      broker,
		memberships: memberships,
		userID:      userID,
		chatRooms:   make(map[string]bool),
		send:        make(chan []byte, sendBufferSize),
		onClose:     onClose,
	}
}

func (c *Client) readPump() {
	defer c.Close()
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	switch ev.Event {
	case eventChatJoin:
		var p joinPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ChatID == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ok, err := c.memberships.IsMember(ctx, p.ChatID, c.userID)
		cancel()
		if err != nil || !ok {
			return
		}
		c.mu.Lock()
		c.chatRooms[p.ChatID] = true
		c.mu.Unlock()
		c.broker.join(chatRoom(p.ChatID), c)
	case eventChatLeave:
		var p joinPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ChatID == "" {
			return
		}
		c.mu.Lock()
		delete(c.chatRooms, p.ChatID)
		c.mu.Unlock()
		c.broker.leave(chatRoom(p.ChatID), c)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend enqueues a frame without blocking. It reports false when the
// client is closed or its buffer is full.
func (c *Client) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close tears the connection down exactly once: leaves all rooms, runs the
// disconnect hook, and closes the socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		rooms := make([]string, 0, len(c.chatRooms))
		for chatID := range c.chatRooms {
			rooms = append(rooms, chatID)
		}
		c.chatRooms = make(map[string]bool)
		c.mu.Unlock()

		for _, chatID := range rooms {
			c.broker.leave(chatRoom(chatID), c)
		}
		c.broker.leave(userRoom(c.userID), c)

		if c.onClose != nil {
			c.onClose()
		}
		close(c.send)
		_ = c.conn.Close()
	})
}
