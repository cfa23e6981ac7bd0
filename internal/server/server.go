package server

import (
	"context"
	_ "embed"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/leonardotrapani/copresenter/internal/continuation"
)

const DefaultAddr = ":3000"

// presenterPage speaks the /ingest protocol from a browser: Web Speech
// results, MediaPipe gesture labels and keyboard fallbacks.
//
//go:embed page/index.html
var presenterPage []byte

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// pages are served from anywhere during a talk
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Synthesizer turns text into encoded audio for the TTS proxy.
type Synthesizer interface {
	Fetch(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Server exposes the page ingest socket, the continuation service and the
// TTS proxy on one echo router.
type Server struct {
	echo *echo.Echo
	addr string
	hub  *Hub
	tts  Synthesizer

	mu     sync.RWMutex
	source continuation.Source
}

// New builds the router. tts may be nil, in which case /api/tts answers 503.
func New(addr string, hub *Hub, source continuation.Source, tts Synthesizer) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:   e,
		addr:   addr,
		hub:    hub,
		tts:    tts,
		source: source,
	}

	e.GET("/", func(c echo.Context) error { return c.HTMLBlob(http.StatusOK, presenterPage) })
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/ingest", s.handleIngest)
	e.GET("/ws", s.handleWebSocket)
	e.GET("/api/handwave", s.handleHandwave)
	e.GET("/api/tts", s.handleTTS)
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Addr() string {
	return s.addr
}

// SetSource swaps the continuation source behind /ws and /api/handwave.
func (s *Server) SetSource(source continuation.Source) {
	s.mu.Lock()
	s.source = source
	s.mu.Unlock()
}

func (s *Server) currentSource() continuation.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("Server: listening on %s", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleIngest(c echo.Context) error {
	if s.hub == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "ingest disabled")
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Server: ingest upgrade: %v", err)
		return nil
	}
	s.hub.Serve(conn)
	return nil
}
