package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultElevenLabsURL = "https://api.elevenlabs.io"
	DefaultVoiceID       = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID       = "eleven_flash_v2_5"
)

var DefaultPlayer = []string{"mpv", "--no-terminal", "--really-quiet", "-"}

type ClipConfig struct {
	BaseURL string
	APIKey  string
	VoiceID string
	ModelID string
	Player  []string // argv of a program that plays audio read from stdin
}

// ClipBackend fetches one synthesized clip per unit from ElevenLabs and pipes
// it into an external player.
type ClipBackend struct {
	config ClipConfig
	client *http.Client
}

func NewClipBackend(cfg ClipConfig) *ClipBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if len(cfg.Player) == 0 {
		cfg.Player = DefaultPlayer
	}
	return &ClipBackend{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *ClipBackend) Name() string { return string(KindClip) }

func (b *ClipBackend) Prepare(ctx context.Context, text string) (Clip, error) {
	audio, err := b.Fetch(ctx, text, "")
	if err != nil {
		return Clip{}, err
	}
	return Clip{Kind: KindClip, Text: text, Audio: audio}, nil
}

// Fetch synthesizes text with voiceID (the configured voice when empty) and
// returns the encoded audio payload.
func (b *ClipBackend) Fetch(ctx context.Context, text, voiceID string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyUnit
	}
	if voiceID == "" {
		voiceID = b.config.VoiceID
	}

	u, err := url.Parse(b.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse tts url: %w", err)
	}
	u = u.JoinPath("v1", "text-to-speech", voiceID)

	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": b.config.ModelID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", b.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(msg)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	log.Printf("playback: fetched %d bytes for %q in %v", len(audio), text, time.Since(start))
	return audio, nil
}

func (b *ClipBackend) Play(ctx context.Context, clip Clip) error {
	if len(clip.Audio) == 0 {
		return ErrEmptyUnit
	}
	cmd := exec.CommandContext(ctx, b.config.Player[0], b.config.Player[1:]...)
	cmd.Stdin = bytes.NewReader(clip.Audio)
	return runPlayer(ctx, cmd)
}

// runPlayer runs cmd to completion. A kill caused by ctx is reported as ctx.Err().
func runPlayer(ctx context.Context, cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", cmd.Path, err, msg)
		}
		return fmt.Errorf("%s: %w", cmd.Path, err)
	}
	return nil
}
