package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/mithun9421/handcricket/internal/cricketsvc/logger"
	"github.com/mithun9421/handcricket/internal/cricketsvc/ws"
)

type Handler struct {
	upgrader websocket.Upgrader
	hub      *ws.Hub
	sink     *logger.Logger
}

func NewHandler(hub *ws.Hub, sink *logger.Logger) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hub:  hub,
		sink: sink,
	}
}

// apiResponse is the envelope for every query API reply.
type apiResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Count     *int        `json:"count,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, rsp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, apiResponse{Success: false, Error: message})
}

// HandleWebSocket upgrades the connection and hands it to the hub under a
// fresh ephemeral handle.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("failed to upgrade to WebSocket: %v", err)
		return
	}

	socketId := uuid.New().String()
	h.hub.Register(socketId, conn)
}

// Logs serves GET /logs, optionally filtered by gameId.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	recs, err := h.sink.ListSessions()
	if err != nil {
		log.Errorf("list sessions: %v", err)
		h.writeError(w, http.StatusInternalServerError, "failed to read game logs")
		return
	}

	if gameId := r.URL.Query().Get("gameId"); gameId != "" {
		filtered := recs[:0:0]
		for _, rec := range recs {
			if rec.Metadata.GameId == gameId {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}

	if recs == nil {
		recs = []logger.SessionRecord{}
	}
	count := len(recs)
	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: recs, Count: &count})
}

// Stats serves GET /stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	report, err := h.sink.Stats()
	if err != nil {
		log.Errorf("compute stats: %v", err)
		h.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	h.writeJSON(w, http.StatusOK, apiResponse{
		Success:   true,
		Data:      report,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GameLogs serves GET /game-logs?gameId=<id>. The parameter is required.
func (h *Handler) GameLogs(w http.ResponseWriter, r *http.Request) {
	gameId := r.URL.Query().Get("gameId")
	if gameId == "" {
		h.writeError(w, http.StatusBadRequest, "gameId is required")
		return
	}

	rec, err := h.sink.GetSession(gameId)
	if err != nil {
		if errors.Is(err, logger.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Game not found")
			return
		}
		log.Errorf("get session %s: %v", gameId, err)
		h.writeError(w, http.StatusInternalServerError, "failed to read game log")
		return
	}

	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: rec})
}

type configStatus struct {
	LogDirectory   string `json:"logDirectory"`
	TotalGames     int    `json:"totalGames"`
	ActiveSessions int    `json:"activeSessions"`
}

type configView struct {
	Config logger.Config `json:"config"`
	Status configStatus  `json:"status"`
}

// GetConfig serves GET /config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.sink.Config()
	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: configView{
		Config: cfg,
		Status: configStatus{
			LogDirectory:   cfg.LogDirectory,
			TotalGames:     h.sink.TotalGames(),
			ActiveSessions: h.sink.ActiveSessions(),
		},
	}})
}

// UpdateConfig serves POST /config, merging the body into the sink config
// and re-initializing it.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch logger.ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	merged := h.sink.Reconfigure(patch)
	h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: merged})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, apiResponse{
		Success:   true,
		Data:      "cricket service is running",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
