package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
)

// connSink serializes outbound frames onto one websocket connection. The
// presenter pushes from dispatch goroutines while the read loop answers
// pings, so writes take a mutex.
type connSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
	ctx  context.Context
}

func newConnSink(ctx context.Context, conn *websocket.Conn) *connSink {
	return &connSink{conn: conn, ctx: ctx}
}

func (s *connSink) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// PushShowMessage implements present.Sink.
func (s *connSink) PushShowMessage(message, backgroundColor, textColor string) error {
	return s.writeJSON(showMessageFrame{
		Type:            "show_message",
		Message:         message,
		BackgroundColor: backgroundColor,
		TextColor:       textColor,
	})
}

func (s *connSink) pushSessionInit(sessionID string, debug bool) error {
	return s.writeJSON(sessionInitFrame{Type: "session_init", SessionID: sessionID, Debug: debug})
}

func (s *connSink) pushPong() error {
	return s.writeJSON(pongFrame{Type: "pong"})
}
