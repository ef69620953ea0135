package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/auth"
	"trivia-room-service/internal/domain"
)

// RoomHandler is the plain request/response surface over the room entity:
// create, list and fetch. Same bearer credential as the realtime channel.
type RoomHandler struct {
	service  *app.RoomService
	verifier auth.Verifier
}

func NewRoomHandler(service *app.RoomService, verifier auth.Verifier) *RoomHandler {
	return &RoomHandler{service: service, verifier: verifier}
}

// Register mounts the room routes on the mux.
func (h *RoomHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /rooms", h.createRoom)
	mux.HandleFunc("GET /rooms", h.listRooms)
	mux.HandleFunc("GET /rooms/{code}", h.getRoom)
}

type createRoomRequest struct {
	Topic string `json:"topic"`
}

func (h *RoomHandler) createRoom(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verifier.Verify(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Topic == "" {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	res, err := h.service.CreateRoom(r.Context(), domain.Player{ID: identity.UserID, Name: identity.DisplayName}, req.Topic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res.Projection)
}

func (h *RoomHandler) listRooms(w http.ResponseWriter, r *http.Request) {
	if _, err := h.verifier.Verify(r.Context(), bearerToken(r)); err != nil {
		writeError(w, err)
		return
	}
	rooms, err := h.service.ListRooms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) getRoom(w http.ResponseWriter, r *http.Request) {
	if _, err := h.verifier.Verify(r.Context(), bearerToken(r)); err != nil {
		writeError(w, err)
		return
	}
	projection, err := h.service.Sync(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorPayload{Message: err.Error()})
}
