// Package room fans session events out to every websocket client currently
// joined to a session's room. Membership lives only as long as the
// connections themselves; a restarted process starts with empty rooms.
package room

import (
	"log"
	"sync"
)

// Hub maps session codes to the set of connected clients in that room.
// Join, Leave, Broadcast and CloseRoom are safe for concurrent use; delivery
// to each client is fire-and-forget through its buffered send channel, so one
// dead or slow client never blocks the rest of the room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

// Join adds the client to the room and hands it the welcome payload (the
// full session snapshot a late joiner needs to catch up). A client is in at
// most one room; joining again moves it.
func (h *Hub) Join(code string, c *Client, welcome []byte) {
	h.mu.Lock()
	if c.code != "" && c.code != code {
		h.removeLocked(c)
	}
	if h.rooms[code] == nil {
		h.rooms[code] = make(map[*Client]bool)
	}
	h.rooms[code][c] = true
	c.code = code
	h.mu.Unlock()

	c.Send(welcome)
}

// Leave drops the client from its room. Clients that never joined are a
// no-op; called on every disconnect.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// Broadcast delivers payload to every current member of the room, including
// the originator. Clients whose send buffer is full are evicted and their
// connection closed; delivery to the others proceeds regardless.
func (h *Hub) Broadcast(code string, payload []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[code]))
	for c := range h.rooms[code] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.Send(payload) {
			log.Printf("room %s: evicting slow client %s", code, c.id)
			h.Leave(c)
			c.closeConn()
		}
	}
}

// CloseRoom tells every member the session is gone and drops the room. The
// connections stay open; clients may join another session afterwards.
func (h *Hub) CloseRoom(code string, farewell []byte) {
	h.mu.Lock()
	members := h.rooms[code]
	delete(h.rooms, code)
	for c := range members {
		c.code = ""
	}
	h.mu.Unlock()

	for c := range members {
		c.Send(farewell)
	}
}

// RoomSize reports the current number of members in a room.
func (h *Hub) RoomSize(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

func (h *Hub) removeLocked(c *Client) {
	if c.code == "" {
		return
	}
	if members, ok := h.rooms[c.code]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, c.code)
		}
	}
	c.code = ""
}
