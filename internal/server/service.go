package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/leonardotrapani/copresenter/internal/continuation"
)

// handleWebSocket serves one continuation per connection: the client sends a
// Request, the server streams text messages and ends with complete or error.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Server: ws upgrade: %v", err)
		return nil
	}
	defer conn.Close()

	id := uuid.NewString()
	var req continuation.Request
	if err := conn.ReadJSON(&req); err != nil {
		log.Printf("Server: ws %s: read request: %v", id, err)
		writeMessage(conn, continuation.Message{Type: continuation.MessageError, Error: "invalid request"})
		return nil
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// a client that goes away cancels the generation
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	err = s.stream(ctx, id, req, func(text string) error {
		return conn.WriteJSON(continuation.Message{Type: continuation.MessageText, Text: text})
	})
	if err != nil {
		writeMessage(conn, continuation.Message{Type: continuation.MessageError, Error: err.Error()})
		return nil
	}
	writeMessage(conn, continuation.Message{Type: continuation.MessageComplete})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// handleHandwave is the push-only variant: one `data: <json string>` event per
// fragment, then `event: complete` or `event: error`.
func (s *Server) handleHandwave(c echo.Context) error {
	req := continuation.Request{
		Transcription: c.QueryParam("transcription"),
		Style:         c.QueryParam("style"),
	}
	id := uuid.NewString()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	err := s.stream(c.Request().Context(), id, req, func(text string) error {
		data, err := json.Marshal(text)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		w.Flush()
		return nil
	})
	if err != nil {
		msg, _ := json.Marshal(err.Error())
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", msg)
	} else {
		fmt.Fprint(w, "event: complete\ndata: {}\n\n")
	}
	w.Flush()
	return nil
}

// stream runs one continuation against the current source and hands every
// fragment to emit.
func (s *Server) stream(ctx context.Context, id string, req continuation.Request, emit func(string) error) error {
	req.Transcription = strings.TrimSpace(req.Transcription)
	if req.Transcription == "" {
		return errors.New("transcription is required")
	}
	if strings.TrimSpace(req.Style) == "" {
		req.Style = continuation.DefaultStyle
	}

	source := s.currentSource()
	if source == nil {
		return errors.New("no continuation provider configured")
	}

	start := time.Now()
	stream, err := source.Open(ctx, req)
	if err != nil {
		log.Printf("Server: continuation %s: open %s: %v", id, source.Name(), err)
		return fmt.Errorf("open continuation: %w", err)
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	fragments := 0
	for {
		text, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Printf("Server: continuation %s complete, %d fragment(s) in %v", id, fragments, time.Since(start))
			return nil
		}
		if err != nil {
			log.Printf("Server: continuation %s failed: %v", id, err)
			return err
		}
		fragments++
		if err := emit(text); err != nil {
			log.Printf("Server: continuation %s: client gone: %v", id, err)
			return err
		}
	}
}

func writeMessage(conn *websocket.Conn, msg continuation.Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Server: ws write %s: %v", msg.Type, err)
	}
}
