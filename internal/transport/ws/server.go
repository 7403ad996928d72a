// Package ws serves the observer websocket endpoint: a HELLO/WELCOME
// handshake, then a bidirectional stream of acts, display queries and
// tick status pushes.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fluxgrid.dev/internal/protocol"
	"fluxgrid.dev/internal/sim/world"
)

type Server struct {
	world     *world.World
	log       *log.Logger
	validator *protocol.Validator

	upgrader websocket.Upgrader
}

// NewServer wires a websocket front end to the world loop. validator
// holds the compiled inbound message schemas; a nil validator skips the
// schema check and leaves only the struct decode.
func NewServer(w *world.World, logger *log.Logger, validator *protocol.Validator) *Server {
	return &Server{
		world:     w,
		log:       logger,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		observerID, out := s.handshake(conn)
		if observerID == "" {
			return
		}
		s.log.Printf("observer %s connected from %s", observerID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.route(observerID, msg)
		}

		// The world loop may already be gone during shutdown; do not
		// strand the handler on the leave notification.
		select {
		case s.world.ObserverLeave() <- observerID:
		case <-s.world.Done():
		}
		s.log.Printf("observer %s disconnected", observerID)
	}
}

func (s *Server) route(observerID string, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	if s.validator != nil {
		if err := s.validator.Check(base.Type, msg); err != nil {
			s.log.Printf("observer %s: dropped malformed %s: %v", observerID, base.Type, err)
			return
		}
	}
	switch base.Type {
	case protocol.TypeAct:
		var act protocol.ActMsg
		if err := json.Unmarshal(msg, &act); err != nil {
			return
		}
		if act.ProtocolVersion != protocol.Version {
			return
		}
		s.world.Acts() <- world.ActEnvelope{ObserverID: observerID, Act: act}
	case protocol.TypeQueryConn:
		var q protocol.QueryConnMsg
		if err := json.Unmarshal(msg, &q); err != nil {
			return
		}
		s.world.Queries() <- world.QueryEnvelope{ObserverID: observerID, Conn: &q}
	case protocol.TypeQueryNetwork:
		var q protocol.QueryNetworkMsg
		if err := json.Unmarshal(msg, &q); err != nil {
			return
		}
		s.world.Queries() <- world.QueryEnvelope{ObserverID: observerID, Network: &q}
	case protocol.TypeMove:
		var m protocol.MoveMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return
		}
		s.world.Moved() <- world.FromArray(m.Pos)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (observerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
			time.Now().Add(time.Second))
		return "", nil
	}
	if s.validator != nil {
		if err := s.validator.Check(protocol.TypeHello, msg); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "malformed HELLO"),
				time.Now().Add(time.Second))
			return "", nil
		}
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"),
			time.Now().Add(time.Second))
		return "", nil
	}

	out = make(chan []byte, 256)
	resp := make(chan world.ObserverJoinResponse, 1)
	s.world.ObserverJoin() <- world.ObserverJoinRequest{
		Name: hello.ObserverName,
		Out:  out,
		Resp: resp,
	}
	jr := <-resp
	if err := writeJSON(conn, jr.Welcome); err != nil {
		return "", nil
	}
	return jr.Welcome.ObserverID, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
