package continuation

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Message is the wire format of the duplex continuation service.
type Message struct {
	Type  string `json:"type"` // text, complete, error
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	MessageText     = "text"
	MessageComplete = "complete"
	MessageError    = "error"
)

// WebSocketSource talks to a continuation service over a persistent duplex channel.
type WebSocketSource struct {
	url string
}

func NewWebSocketSource(base string) (*WebSocketSource, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse continuation url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported continuation url scheme: %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return &WebSocketSource{url: u.String()}, nil
}

func (s *WebSocketSource) Name() string { return "websocket" }

func (s *WebSocketSource) Open(ctx context.Context, req Request) (Stream, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, http.Header{})
	if err != nil {
		if resp != nil {
			log.Printf("websocket-continuation: dial failed with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("websocket send request: %w", err)
	}
	return &websocketStream{conn: conn}, nil
}

type websocketStream struct {
	conn *websocket.Conn
	done bool
}

func (s *websocketStream) Recv() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return "", fmt.Errorf("websocket read: %w", err)
		}
		switch msg.Type {
		case MessageText:
			if msg.Text != "" {
				return msg.Text, nil
			}
		case MessageComplete:
			s.done = true
			return "", io.EOF
		case MessageError:
			return "", &ServiceError{Message: msg.Error}
		default:
			log.Printf("websocket-continuation: unknown message type: %s", strings.TrimSpace(msg.Type))
		}
	}
}

func (s *websocketStream) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
