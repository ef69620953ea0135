package http

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"trivia-room-service/internal/auth"
	"trivia-room-service/internal/domain"
)

// outbound is the envelope for every server-to-client message.
type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	AckID   string `json:"ackId,omitempty"`
}

// client is one authenticated websocket connection. All writes go through
// the send channel so a single writer goroutine owns the socket.
type client struct {
	identity auth.Identity
	conn     *websocket.Conn
	send     chan outbound
	once     sync.Once
	done     chan struct{}
}

func newClient(identity auth.Identity, conn *websocket.Conn) *client {
	return &client{
		identity: identity,
		conn:     conn,
		send:     make(chan outbound, 16),
		done:     make(chan struct{}),
	}
}

// deliver queues a message, dropping it if the client is gone or wedged.
func (c *client) deliver(msg outbound) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		log.Printf("dropping message %q for slow client %s", msg.Type, c.identity.UserID)
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub maps identities to live connections and rooms to their subscribers.
// It is a derived cache over the persisted player lists, never authoritative:
// broadcasts repair membership from the room snapshot before fanning out.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*client            // userID -> live connection, last writer wins
	rooms map[string]map[string]*client // roomCode -> userID -> connection
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*client),
		rooms: make(map[string]map[string]*client),
	}
}

// register binds the connection to its identity. A newer connection for the
// same identity evicts the previous one.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	prev := h.conns[c.identity.UserID]
	h.conns[c.identity.UserID] = c
	h.mu.Unlock()
	if prev != nil && prev != c {
		prev.close()
	}
}

// unregister detaches the connection unless a newer one already replaced it.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.conns[c.identity.UserID] == c {
		delete(h.conns, c.identity.UserID)
		for code, members := range h.rooms {
			if members[c.identity.UserID] == c {
				delete(members, c.identity.UserID)
				if len(members) == 0 {
					delete(h.rooms, code)
				}
			}
		}
	}
	h.mu.Unlock()
	c.close()
}

// subscribe attaches the identity's live connection to a room channel.
func (h *Hub) subscribe(code, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[userID]
	if !ok {
		return
	}
	members, ok := h.rooms[code]
	if !ok {
		members = make(map[string]*client)
		h.rooms[code] = members
	}
	members[userID] = c
}

func (h *Hub) unsubscribe(code, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[code]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(h.rooms, code)
		}
	}
}

// broadcast sends messages to every subscriber of a room. Listed players
// with a live connection that is not yet attached are re-subscribed first,
// which heals the channel after reconnects.
func (h *Hub) broadcast(code string, players []domain.Player, msgs ...outbound) {
	h.mu.Lock()
	members := h.rooms[code]
	for _, p := range players {
		if current, live := h.conns[p.ID]; live && members[p.ID] != current {
			if members == nil {
				members = make(map[string]*client)
				h.rooms[code] = members
			}
			members[p.ID] = current
		}
	}
	targets := make([]*client, 0, len(members))
	for _, c := range members {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		for _, msg := range msgs {
			c.deliver(msg)
		}
	}
}

// drop forgets a room channel entirely (after room deletion).
func (h *Hub) drop(code string) {
	h.mu.Lock()
	delete(h.rooms, code)
	h.mu.Unlock()
}
