package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/leonardotrapani/copresenter/internal/recording"
)

const DefaultDeepgramURL = "wss://api.deepgram.com/v1/listen"

// AudioSource produces raw linear16 audio frames.
type AudioSource interface {
	Start(ctx context.Context) (<-chan recording.AudioFrame, <-chan error, error)
	Stop()
}

type DeepgramConfig struct {
	URL        string
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Channels   int
}

// DeepgramEngine streams microphone audio to Deepgram live transcription.
type DeepgramEngine struct {
	config DeepgramConfig
	audio  AudioSource
	events chan Event

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	parent  context.Context
	wg      sync.WaitGroup
}

type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final,omitempty"`
	Channel *struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives,omitempty"`
	} `json:"channel,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
}

func NewDeepgramEngine(cfg DeepgramConfig, audio AudioSource) *DeepgramEngine {
	if cfg.URL == "" {
		cfg.URL = DefaultDeepgramURL
	}
	if cfg.Model == "" {
		cfg.Model = "nova-3"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	return &DeepgramEngine{
		config: cfg,
		audio:  audio,
		events: make(chan Event, 32),
	}
}

func (e *DeepgramEngine) Name() string { return "deepgram" }

func (e *DeepgramEngine) Events() <-chan Event { return e.events }

func (e *DeepgramEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		return fmt.Errorf("deepgram: already started")
	}

	wsURL, err := e.buildURL()
	if err != nil {
		return &EngineError{Reason: ReasonServiceNotAllowed, Err: err}
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+e.config.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return &EngineError{Reason: ReasonNotAllowed, Err: err}
		}
		return &EngineError{Reason: ReasonNetwork, Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	frames, audioErrs, err := e.audio.Start(runCtx)
	if err != nil {
		cancel()
		conn.Close()
		return &EngineError{Reason: ReasonAudioCapture, Err: err}
	}

	e.conn = conn
	e.cancel = cancel
	e.parent = ctx

	e.wg.Add(2)
	go e.sendLoop(runCtx, conn, frames, audioErrs)
	go e.readLoop(runCtx, conn)

	log.Printf("deepgram: connected, model=%s, language=%s", e.config.Model, e.config.Language)
	return nil
}

func (e *DeepgramEngine) Stop() error {
	conn := e.detach(nil)
	if conn == nil {
		return nil
	}

	e.writeMu.Lock()
	_ = conn.WriteJSON(map[string]string{"type": "CloseStream"})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	e.writeMu.Unlock()
	conn.Close()

	e.wg.Wait()
	log.Printf("deepgram: closed")
	return nil
}

// detach forgets the live connection (only if it is conn, when conn is
// non-nil) and stops audio capture. It returns the detached connection.
func (e *DeepgramEngine) detach(conn *websocket.Conn) *websocket.Conn {
	e.mu.Lock()
	live := e.conn
	if live == nil || (conn != nil && live != conn) {
		e.mu.Unlock()
		return nil
	}
	e.conn = nil
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.audio.Stop()
	return live
}

// ended reports that the engine stopped on its own.
func (e *DeepgramEngine) ended(conn *websocket.Conn, reason string) {
	if e.detach(conn) == nil {
		return
	}
	conn.Close()

	e.mu.Lock()
	parent := e.parent
	e.mu.Unlock()

	for _, ev := range []Event{{Kind: ErrorEvent, Reason: reason}, {Kind: EndEvent}} {
		select {
		case e.events <- ev:
		case <-parent.Done():
			return
		}
	}
}

func (e *DeepgramEngine) post(ctx context.Context, ev Event) {
	select {
	case e.events <- ev:
	case <-ctx.Done():
	}
}

func (e *DeepgramEngine) sendLoop(ctx context.Context, conn *websocket.Conn, frames <-chan recording.AudioFrame, audioErrs <-chan error) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-audioErrs:
			if ok && err != nil {
				log.Printf("deepgram: audio error: %v", err)
				go e.ended(conn, ReasonAudioCapture)
				return
			}
			audioErrs = nil
		case frame, ok := <-frames:
			if !ok {
				if ctx.Err() == nil {
					go e.ended(conn, ReasonAudioCapture)
				}
				return
			}
			e.writeMu.Lock()
			err := conn.WriteMessage(websocket.BinaryMessage, frame.Data)
			e.writeMu.Unlock()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("deepgram: write error: %v", err)
					go e.ended(conn, ReasonNetwork)
				}
				return
			}
		}
	}
}

func (e *DeepgramEngine) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer e.wg.Done()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("deepgram: read error: %v", err)
			reason := ReasonNetwork
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				reason = ReasonNoSpeech
			}
			go e.ended(conn, reason)
			return
		}

		var resp deepgramResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			log.Printf("deepgram: parse error: %v", err)
			continue
		}

		switch resp.Type {
		case "Results":
			if resp.Channel == nil || len(resp.Channel.Alternatives) == 0 {
				continue
			}
			text := resp.Channel.Alternatives[0].Transcript
			if text == "" {
				continue
			}
			e.post(ctx, Event{Kind: ResultEvent, Results: []Result{{Text: text, IsFinal: resp.IsFinal}}})
		case "Error":
			log.Printf("deepgram: error: %s %s", resp.Message, resp.Description)
			e.post(ctx, Event{Kind: ErrorEvent, Reason: ReasonNetwork})
		case "Metadata", "SpeechStarted", "UtteranceEnd":
		default:
			log.Printf("deepgram: unknown message type: %s", resp.Type)
		}
	}
}

func (e *DeepgramEngine) buildURL() (string, error) {
	u, err := url.Parse(e.config.URL)
	if err != nil {
		return "", fmt.Errorf("parse deepgram url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", errors.New("deepgram url must be ws or wss")
	}

	q := u.Query()
	q.Set("model", e.config.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(e.config.SampleRate))
	q.Set("channels", strconv.Itoa(e.config.Channels))
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	if e.config.Language != "" {
		q.Set("language", e.config.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
