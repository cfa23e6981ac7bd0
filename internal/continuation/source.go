package continuation

import (
	"context"
	"fmt"
)

// Request is the single message sent to a continuation service.
type Request struct {
	Transcription string `json:"transcription"`
	Style         string `json:"style"`
}

// Stream yields text fragments in order. Recv returns io.EOF once the service
// signals completion. Close releases the transport and unblocks a pending Recv.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Source opens one continuation stream per request.
type Source interface {
	Name() string
	Open(ctx context.Context, req Request) (Stream, error)
}

// ServiceError is an error terminal event reported by the continuation service.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("continuation service: %s", e.Message)
}

// Config selects and configures a Source.
type Config struct {
	Provider string // openai, groq, gemini, websocket, sse
	APIKey   string
	Model    string
	URL      string // base url of a remote continuation service (websocket, sse)
}

// NewSource builds the Source named by cfg.Provider.
func NewSource(ctx context.Context, cfg Config) (Source, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAISource(cfg), nil
	case "groq":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Groq API key required")
		}
		return NewGroqSource(cfg), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key required")
		}
		return NewGeminiSource(ctx, cfg)
	case "websocket":
		if cfg.URL == "" {
			return nil, fmt.Errorf("continuation.url required for websocket provider")
		}
		return NewWebSocketSource(cfg.URL)
	case "sse":
		if cfg.URL == "" {
			return nil, fmt.Errorf("continuation.url required for sse provider")
		}
		return NewSSESource(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported continuation provider: %s", cfg.Provider)
	}
}
