package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/leonardotrapani/copresenter/internal/gesture"
	"github.com/leonardotrapani/copresenter/internal/transcript"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

// Page message types.
const (
	msgGesture         = "gesture"
	msgTranscript      = "transcript"
	msgTranscriptError = "transcript_error"
	msgTranscriptEnd   = "transcript_end"
	msgTranscription   = "transcription"
	msgStatus          = "status"
)

type ingestMessage struct {
	Type      string              `json:"type"`
	Primary   string              `json:"primary,omitempty"`
	Secondary string              `json:"secondary,omitempty"`
	Results   []transcript.Result `json:"results,omitempty"`
	Error     string              `json:"error,omitempty"`
}

type controlMessage struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

type statusMessage struct {
	Type   string `json:"type"`
	Status any    `json:"status"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans in gesture frames and speech recognition from browser pages and
// fans out transcription control and status snapshots. It is the "remote"
// transcript.Engine: Start and Stop tell the pages to switch recognition on
// and off.
type Hub struct {
	feed   *gesture.Feed
	events chan transcript.Event
	done   chan struct{}

	mu      sync.Mutex
	clients map[string]*client
	enabled bool
	status  []byte
	closed  bool
}

func NewHub(feed *gesture.Feed) *Hub {
	return &Hub{
		feed:    feed,
		events:  make(chan transcript.Event, 64),
		done:    make(chan struct{}),
		clients: make(map[string]*client),
	}
}

func (h *Hub) Name() string { return "remote" }

func (h *Hub) Events() <-chan transcript.Event { return h.events }

func (h *Hub) Start(_ context.Context) error {
	h.setEnabled(true)
	return nil
}

// Stop never emits an EndEvent; the pages just stop recognizing.
func (h *Hub) Stop() error {
	h.setEnabled(false)
	return nil
}

func (h *Hub) setEnabled(enabled bool) {
	msg, _ := json.Marshal(controlMessage{Type: msgTranscription, Enabled: enabled})
	h.mu.Lock()
	h.enabled = enabled
	n := len(h.clients)
	h.broadcastLocked(msg)
	h.mu.Unlock()
	if enabled && n == 0 {
		log.Printf("Ingest: transcription enabled but no page is connected")
	}
}

// BroadcastStatus pushes a status snapshot to every page and remembers it
// for pages that connect later.
func (h *Hub) BroadcastStatus(status any) {
	msg, err := json.Marshal(statusMessage{Type: msgStatus, Status: status})
	if err != nil {
		log.Printf("Ingest: encode status: %v", err)
		return
	}
	h.mu.Lock()
	h.status = msg
	h.broadcastLocked(msg)
	h.mu.Unlock()
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every page.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.done)
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
	h.mu.Unlock()
}

func (h *Hub) broadcastLocked(msg []byte) {
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("Ingest: client %s is not reading, dropping it", id)
			delete(h.clients, id)
			c.close()
		}
	}
}

// Serve runs one page connection until it closes.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c.id] = c
	hello, _ := json.Marshal(controlMessage{Type: msgTranscription, Enabled: h.enabled})
	c.send <- hello
	if h.status != nil {
		c.send <- h.status
	}
	h.mu.Unlock()
	log.Printf("Ingest: client %s connected from %s", c.id, conn.RemoteAddr())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(c)
	}()

	h.readLoop(c)

	h.mu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
		c.close()
	}
	h.mu.Unlock()
	<-writerDone
	conn.Close()
	log.Printf("Ingest: client %s disconnected", c.id)
}

func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("Ingest: write to %s: %v", c.id, err)
			// unblock the reader
			c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	// the page gets a moment to answer the close
	_ = c.conn.SetReadDeadline(time.Now().Add(writeWait))
}

func (h *Hub) readLoop(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Ingest: read from %s: %v", c.id, err)
			}
			return
		}
		var msg ingestMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ingest: bad message from %s: %v", c.id, err)
			continue
		}
		h.dispatch(c, msg)
	}
}

func (h *Hub) dispatch(c *client, msg ingestMessage) {
	switch msg.Type {
	case msgGesture:
		if h.feed != nil {
			h.feed.Push(gesture.Frame{Primary: msg.Primary, Secondary: msg.Secondary})
		}
	case msgTranscript:
		if len(msg.Results) > 0 {
			h.post(transcript.Event{Kind: transcript.ResultEvent, Results: msg.Results})
		}
	case msgTranscriptError:
		h.post(transcript.Event{Kind: transcript.ErrorEvent, Reason: msg.Error})
	case msgTranscriptEnd:
		h.post(transcript.Event{Kind: transcript.EndEvent})
	default:
		log.Printf("Ingest: unknown message type %q from %s", msg.Type, c.id)
	}
}

func (h *Hub) post(ev transcript.Event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}
