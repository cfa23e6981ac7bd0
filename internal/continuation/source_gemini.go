package continuation

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiSource streams content from the Gemini API.
type GeminiSource struct {
	client *genai.Client
	model  string
}

func NewGeminiSource(ctx context.Context, cfg Config) (*GeminiSource, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiSource{client: client, model: model}, nil
}

func (s *GeminiSource) Name() string { return "gemini" }

func (s *GeminiSource) Open(ctx context.Context, req Request) (Stream, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: BuildPrompt(req.Transcription, req.Style)}},
	}}

	ctx, cancel := context.WithCancel(ctx)
	next, stop := iter.Pull2(s.client.Models.GenerateContentStream(ctx, s.model, contents, nil))
	log.Printf("gemini-continuation: stream opened, model=%s", s.model)
	return &geminiStream{next: next, stop: stop, cancel: cancel}, nil
}

type geminiStream struct {
	mu     sync.Mutex
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	cancel context.CancelFunc
	closed bool
}

func (s *geminiStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.closed {
			return "", io.ErrClosedPipe
		}
		chunk, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		if text := candidateText(chunk); text != "" {
			return text, nil
		}
	}
}

// Close cancels the request first so a Recv blocked on the network returns.
func (s *geminiStream) Close() error {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.stop()
	}
	return nil
}

func candidateText(chunk *genai.GenerateContentResponse) string {
	if chunk == nil || len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range chunk.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
