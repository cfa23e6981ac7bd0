package playback

import (
	"context"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

const (
	DefaultSynthCommand = "espeak-ng"
	DefaultRate         = 1.5
	DefaultPitch        = 1.0

	baseWordsPerMinute = 175
	basePitch          = 50
)

type LocalConfig struct {
	Command string
	Rate    float64 // 1.0 is the engine's normal speed
	Pitch   float64 // 1.0 is the engine's normal pitch, range 0..2
	Voice   string
}

// LocalBackend speaks units with a local speech synthesizer (espeak-ng compatible CLI).
type LocalBackend struct {
	config LocalConfig
}

func NewLocalBackend(cfg LocalConfig) *LocalBackend {
	if cfg.Command == "" {
		cfg.Command = DefaultSynthCommand
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Pitch <= 0 {
		cfg.Pitch = DefaultPitch
	}
	return &LocalBackend{config: cfg}
}

func (b *LocalBackend) Name() string { return string(KindLocal) }

func (b *LocalBackend) Prepare(_ context.Context, text string) (Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Clip{}, ErrEmptyUnit
	}
	return Clip{Kind: KindLocal, Text: text, Rate: b.config.Rate, Pitch: b.config.Pitch}, nil
}

func (b *LocalBackend) Play(ctx context.Context, clip Clip) error {
	cmd := exec.CommandContext(ctx, b.config.Command, b.args(clip)...)
	return runPlayer(ctx, cmd)
}

func (b *LocalBackend) args(clip Clip) []string {
	wpm := int(math.Round(baseWordsPerMinute * clip.Rate))
	pitch := int(math.Round(basePitch * clip.Pitch))
	pitch = min(max(pitch, 0), 99)

	args := []string{"-s", strconv.Itoa(wpm), "-p", strconv.Itoa(pitch)}
	if b.config.Voice != "" {
		args = append(args, "-v", b.config.Voice)
	}
	// "--" keeps units starting with "-" from being read as flags
	return append(args, "--", clip.Text)
}
