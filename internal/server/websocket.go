package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
	"github.com/ziadkadry99/textbook-qa/internal/qa"
)

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Type     string `json:"type"` // "ask"
	ID       string `json:"id"`   // echoed back to the client
	Question string `json:"question"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type   string     `json:"type"` // "answer" or "error"
	ID     string     `json:"id,omitempty"`
	Answer *qa.Answer `json:"answer,omitempty"`
	Error  string     `json:"error,omitempty"`
	Detail string     `json:"detail,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{CheckOrigin: s.checkOrigin}
}

// checkOrigin accepts same-host requests, requests without an Origin
// header and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	// Clear deadlines inherited from the HTTP server.
	conn.NetConn().SetDeadline(time.Time{})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendError(conn, "", apperr.InvalidInput("ws", "invalid message format"))
			continue
		}

		switch req.Type {
		case "ask", "":
			s.handleAskMessage(conn, r, req)
		default:
			s.sendError(conn, req.ID, apperr.InvalidInput("ws", "unknown message type: "+req.Type))
		}
	}
}

func (s *Server) handleAskMessage(conn *websocket.Conn, r *http.Request, req wsRequest) {
	answer, err := s.service.Ask(r.Context(), req.Question)
	if err != nil {
		s.sendError(conn, req.ID, err)
		return
	}
	s.send(conn, wsResponse{Type: "answer", ID: req.ID, Answer: answer})
}

func (s *Server) sendError(conn *websocket.Conn, id string, err error) {
	e := toErrorResponse(err)
	s.send(conn, wsResponse{Type: "error", ID: id, Error: e.Error, Detail: e.Detail})
}

func (s *Server) send(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
	}
}
