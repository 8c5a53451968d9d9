package main

import (
	"encoding/json"
	"log"
	"math"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/arun0009/mathapp/internal/calc"
)

type wsRequest struct {
	Op   string `json:"op"`
	Num1 string `json:"num1"`
	Num2 string `json:"num2"`
}

type wsResponse struct {
	Op      string   `json:"op,omitempty"`
	Status  int      `json:"status"`
	Result  *float64 `json:"result,omitempty"`
	Message string   `json:"message"`
}

// websocketHandler runs one calculation per text message, using the same
// executor and response bodies as the HTTP endpoints.
func (s *server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("WebSocket connected: %s", r.RemoteAddr)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(s.calculateMessage(message)); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
}

func (s *server) calculateMessage(message []byte) wsResponse {
	var req wsRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return wsResponse{Status: http.StatusBadRequest, Message: "Invalid message: " + err.Error()}
	}
	op, err := calc.ParseOp(req.Op)
	if err != nil {
		return wsResponse{Op: req.Op, Status: http.StatusNotFound, Message: msgNotFound}
	}
	res, err := s.executor.Execute(op, req.Num1, req.Num2)
	if err != nil {
		status, body := calcErrorResponse(err)
		return wsResponse{Op: req.Op, Status: status, Message: body}
	}
	resp := wsResponse{Op: req.Op, Status: http.StatusOK, Message: resultMessage(res)}
	// JSON has no encoding for an overflowed result; the message still carries it.
	if !math.IsInf(res.Value, 0) {
		resp.Result = &res.Value
	}
	return resp
}
