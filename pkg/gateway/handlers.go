package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harun/agentengine/pkg/agent"
)

const wsWriteTimeout = 10 * time.Second

// failureFrame is sent after the last event when the request failed without a terminal event
func failureFrame(correlationID string, err error) agent.Event {
	return agent.Event{
		Type:          agent.EventError,
		Data:          map[string]interface{}{"error": err.Error(), "fatal": true},
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// admit applies the per-client rate limit
func (s *Server) admit(w http.ResponseWriter, r *http.Request) (func(), bool) {
	release, reason := s.limiters.get(clientKey(r)).Acquire()
	if release == nil {
		writeJSONError(w, http.StatusTooManyRequests, reason)
		return nil, false
	}
	return release, true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var env agent.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes)).Decode(&env); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid envelope: %v", err))
		return
	}
	env, err := env.Normalize()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	release, ok := s.admit(w, r)
	if !ok {
		return
	}
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Correlation-ID", env.TraceID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := s.engine.Handle(r.Context(), env)
	logger := s.logger.With().Str("trace_id", env.TraceID).Str("session_id", env.SessionID).Logger()

	for ev := range stream.Events() {
		if err := writeSSE(w, ev); err != nil {
			logger.Warn().Err(err).Msg("Client went away, abandoning stream")
			_ = stream.Close()
			return
		}
		flusher.Flush()
	}

	if err := stream.Wait(); err != nil {
		if errors.Is(err, agent.ErrStreamAbandoned) {
			return
		}
		logger.Error().Err(err).Msg("Request failed")
		if werr := writeSSE(w, failureFrame(env.TraceID, err)); werr == nil {
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev agent.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	release, ok := s.admit(w, r)
	if !ok {
		return
	}
	defer release()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	s.websockets.Add(1)
	defer s.websockets.Done()
	defer conn.Close()

	var env agent.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read envelope")
		closeWS(conn, websocket.CloseUnsupportedData, "invalid envelope")
		return
	}
	env, err = env.Normalize()
	if err != nil {
		_ = writeWS(conn, failureFrame(env.TraceID, err))
		closeWS(conn, websocket.CloseUnsupportedData, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// a read error means the peer closed or vanished
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	stream := s.engine.Handle(ctx, env)
	logger := s.logger.With().Str("trace_id", env.TraceID).Str("session_id", env.SessionID).Logger()

	for ev := range stream.Events() {
		if err := writeWS(conn, ev); err != nil {
			logger.Warn().Err(err).Msg("Client went away, abandoning stream")
			_ = stream.Close()
			break
		}
	}

	if err := stream.Wait(); err != nil && !errors.Is(err, agent.ErrStreamAbandoned) {
		logger.Error().Err(err).Msg("Request failed")
		_ = writeWS(conn, failureFrame(env.TraceID, err))
	}

	closeWS(conn, websocket.CloseNormalClosure, "")
	_ = conn.SetReadDeadline(time.Now().Add(wsWriteTimeout))
	<-readerDone
}

func writeWS(conn *websocket.Conn, ev agent.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(ev)
}

func closeWS(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
