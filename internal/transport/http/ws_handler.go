package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/auth"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/game"
)

// WSHandler is the realtime gateway: it authenticates connections once at
// upgrade time, translates inbound actions into room service calls and
// fans the resulting projections out through the hub.
type WSHandler struct {
	service  *app.RoomService
	verifier auth.Verifier
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService, verifier auth.Verifier, hub *Hub) *WSHandler {
	return &WSHandler{
		service:  service,
		verifier: verifier,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	AckID   string          `json:"ackId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type actionPayload struct {
	RoomID string `json:"roomId"`
	Answer string `json:"answer"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type ackPayload struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type playerPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type answerOutcomePayload struct {
	PlayerID      string `json:"playerId"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
	CorrectAnswer string `json:"correctAnswer"`
}

type scoresPayload struct {
	Scores []domain.Score `json:"scores"`
}

type loadingPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the connection after verifying the bearer credential.
// A bad credential is fatal to the connection attempt; everything after
// the upgrade reports errors to the initiator only.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verifier.Verify(r.Context(), bearerToken(r))
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, domain.ErrUnauthenticated) {
			status = http.StatusBadGateway
		}
		http.Error(w, "authentication failed", status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	c := newClient(identity, conn)
	h.hub.register(c)
	defer h.hub.unregister(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer conn.Close()
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws write error for %s: %v", identity.UserID, err)
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), c, inbound)
	}

	c.close()
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, c *client, msg inboundMessage) {
	var payload actionPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.reject(c, msg.AckID, domain.ErrInvalidInput)
			return
		}
	}

	var err error
	switch msg.Type {
	case "joinRoom":
		err = h.handleJoin(ctx, c, payload.RoomID)
	case "syncRoom":
		err = h.handleSync(ctx, c, payload.RoomID)
	case "startGame":
		err = h.handleStart(ctx, c, payload.RoomID)
	case "submitAnswer":
		err = h.handleSubmit(ctx, c, payload.RoomID, payload.Answer)
	case "leaveGame":
		err = h.handleLeave(ctx, c, payload.RoomID)
	case "endGame":
		err = h.handleEnd(ctx, c, payload.RoomID)
	default:
		err = domain.ErrInvalidInput
	}

	if err != nil {
		h.reject(c, msg.AckID, err)
		return
	}
	if msg.AckID != "" {
		c.deliver(outbound{Type: "ack", AckID: msg.AckID, Payload: ackPayload{OK: true}})
	}
}

func (h *WSHandler) handleJoin(ctx context.Context, c *client, roomID string) error {
	if roomID == "" {
		return domain.ErrInvalidInput
	}
	player := domain.Player{ID: c.identity.UserID, Name: c.identity.DisplayName}
	res, err := h.service.Join(ctx, roomID, player)
	if errors.Is(err, domain.ErrAlreadyJoined) {
		// Rejoin after a reconnect: reattach and resend the state.
		return h.handleSync(ctx, c, roomID)
	}
	if err != nil {
		return err
	}
	h.hub.subscribe(roomID, c.identity.UserID)
	h.broadcastResult(roomID, res)
	return nil
}

func (h *WSHandler) handleSync(ctx context.Context, c *client, roomID string) error {
	if roomID == "" {
		return domain.ErrInvalidInput
	}
	projection, err := h.service.Sync(ctx, roomID)
	if err != nil {
		return err
	}
	h.hub.subscribe(roomID, c.identity.UserID)
	c.deliver(outbound{Type: "gameState", Payload: projection})
	return nil
}

func (h *WSHandler) handleStart(ctx context.Context, c *client, roomID string) error {
	if roomID == "" {
		return domain.ErrInvalidInput
	}
	h.hub.subscribe(roomID, c.identity.UserID)
	h.hub.broadcast(roomID, nil, outbound{Type: "loading", Payload: loadingPayload{Message: "Generating the first question..."}})
	defer h.hub.broadcast(roomID, nil, outbound{Type: "loadingComplete"})

	res, err := h.service.Start(ctx, roomID, c.identity.UserID)
	if err != nil {
		return err
	}
	h.broadcastResult(roomID, res)
	return nil
}

func (h *WSHandler) handleSubmit(ctx context.Context, c *client, roomID, answer string) error {
	if roomID == "" {
		return domain.ErrInvalidInput
	}
	h.hub.broadcast(roomID, nil, outbound{Type: "loading", Payload: loadingPayload{Message: "Checking the answer..."}})
	defer h.hub.broadcast(roomID, nil, outbound{Type: "loadingComplete"})

	res, err := h.service.SubmitAnswer(ctx, roomID, c.identity.UserID, answer)
	if err != nil {
		return err
	}
	h.broadcastResult(roomID, res)
	return nil
}

func (h *WSHandler) handleLeave(ctx context.Context, c *client, roomID string) error {
	if roomID == "" {
		return domain.ErrInvalidInput
	}
	res, err := h.service.Leave(ctx, roomID, c.identity.UserID)
	if err != nil {
		return err
	}
	if res.Outcome.Delete {
		h.hub.broadcast(roomID, nil, eventMessages(res)...)
		h.hub.drop(roomID)
		return nil
	}
	h.broadcastResult(roomID, res)
	h.hub.unsubscribe(roomID, c.identity.UserID)
	return nil
}

func (h *WSHandler) handleEnd(ctx context.Context, c *client, roomID string) error {
	if roomID == "" {
		return domain.ErrInvalidInput
	}
	res, err := h.service.End(ctx, roomID, c.identity.UserID)
	if err != nil {
		return err
	}
	h.broadcastResult(roomID, res)
	return nil
}

// broadcastResult pushes the transition's events and the fresh projection
// to everyone in the room, self-healing subscriptions from the player list.
func (h *WSHandler) broadcastResult(roomID string, res app.Result) {
	h.hub.broadcast(roomID, res.Room.Players, eventMessages(res)...)
}

func eventMessages(res app.Result) []outbound {
	msgs := make([]outbound, 0, len(res.Outcome.Events)+1)
	for _, ev := range res.Outcome.Events {
		switch ev.Type {
		case game.EventPlayerJoined, game.EventPlayerLeft:
			msgs = append(msgs, outbound{Type: string(ev.Type), Payload: playerPayload{PlayerID: ev.PlayerID, Name: ev.Name}})
		case game.EventCorrectAnswer, game.EventIncorrectAnswer, game.EventNoAnswer:
			msgs = append(msgs, outbound{Type: string(ev.Type), Payload: answerOutcomePayload{
				PlayerID:      ev.PlayerID,
				Name:          ev.Name,
				Score:         ev.Score,
				CorrectAnswer: ev.CorrectAnswer,
			}})
		case game.EventScoreUpdate:
			msgs = append(msgs, outbound{Type: string(ev.Type), Payload: scoresPayload{Scores: res.Projection.Scores}})
		default:
			msgs = append(msgs, outbound{Type: string(ev.Type)})
		}
	}
	msgs = append(msgs, outbound{Type: "gameState", Payload: res.Projection})
	return msgs
}

// reject reports a failed action to the initiator only.
func (h *WSHandler) reject(c *client, ackID string, err error) {
	c.deliver(outbound{Type: "error", Payload: errorPayload{Message: err.Error()}})
	if ackID != "" {
		c.deliver(outbound{Type: "ack", AckID: ackID, Payload: ackPayload{OK: false, Error: err.Error()}})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
