package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/config"
	"github.com/asafee03-dev/partyroom/internal/game/room"
	"github.com/asafee03-dev/partyroom/internal/gateway"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is a deployment concern
	},
}

// Server is the HTTP/WebSocket boundary. Room semantics live behind the
// gateway; this layer only translates frames.
type Server struct {
	cfg     *config.Config
	gateway *gateway.Gateway
	http    *http.Server
}

func New(cfg *config.Config, gw *gateway.Gateway) *Server {
	s := &Server{cfg: cfg, gateway: gw}

	router := httprouter.New()
	router.POST("/rooms", s.handleCreateRoom)
	router.GET("/rooms", s.handleListRooms)
	router.GET("/rooms/:code", s.handleGetRoom)
	router.GET("/ws/:code", s.handleWebSocket)
	router.GET("/healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on http://%s", s.http.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

type createRoomRequest struct {
	Kind     room.GameKind `json:"kind"`
	HostName string        `json:"host_name"`
}

type createRoomResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	code, playerID, err := s.gateway.CreateRoom(r.Context(), req.Kind, req.HostName)
	if err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createRoomResponse{Code: code, PlayerID: playerID})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	items, err := s.gateway.ListJoinable(r.Context())
	if err != nil {
		writeRejection(w, err)
		return
	}
	if items == nil {
		items = []gateway.RoomListItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	snap, err := s.gateway.GetRoom(r.Context(), ps.ByName("code"))
	if err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := ps.ByName("code")
	if _, err := s.gateway.GetRoom(r.Context(), code); err != nil {
		writeRejection(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}

	newWSClient(s, conn, code).run(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRejection(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindCapacity:
		status = http.StatusBadRequest
	case apperrors.KindConflict:
		status = http.StatusConflict
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindPersistence:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorMessage(err))
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ServerMessage{Type: MsgError, Message: err.Error()})
}
