package continuation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultGroqModel   = "llama-3.3-70b-versatile"
	groqBaseURL        = "https://api.groq.com/openai/v1"
)

// OpenAISource streams chat completions from OpenAI or any compatible API.
type OpenAISource struct {
	name   string
	client *openai.Client
	model  string
}

func NewOpenAISource(cfg Config) *OpenAISource {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.URL != "" {
		clientConfig.BaseURL = cfg.URL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAISource{
		name:   "openai",
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

// NewGroqSource uses Groq's OpenAI-compatible endpoint.
func NewGroqSource(cfg Config) *OpenAISource {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = groqBaseURL
	if cfg.URL != "" {
		clientConfig.BaseURL = cfg.URL
	}
	model := cfg.Model
	if model == "" {
		model = defaultGroqModel
	}
	return &OpenAISource{
		name:   "groq",
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

func (s *OpenAISource) Name() string { return s.name }

func (s *OpenAISource) Open(ctx context.Context, req Request) (Stream, error) {
	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req.Transcription, req.Style)},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("%s chat completion stream: %w", s.name, err)
	}
	log.Printf("%s-continuation: stream opened, model=%s", s.name, s.model)
	return &openAIStream{name: s.name, stream: stream}, nil
}

type openAIStream struct {
	name   string
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("%s stream recv: %w", s.name, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
		if resp.Choices[0].FinishReason != "" {
			return "", io.EOF
		}
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
