package daemon

import (
	"context"
	"fmt"
	"log"

	"github.com/leonardotrapani/copresenter/internal/config"
	"github.com/leonardotrapani/copresenter/internal/continuation"
	"github.com/leonardotrapani/copresenter/internal/playback"
	"github.com/leonardotrapani/copresenter/internal/recording"
	"github.com/leonardotrapani/copresenter/internal/server"
	"github.com/leonardotrapani/copresenter/internal/transcript"
)

func buildSource(ctx context.Context, cfg *config.Config) (continuation.Source, error) {
	source, err := continuation.NewSource(ctx, cfg.ToContinuationConfig())
	if err != nil {
		return nil, fmt.Errorf("continuation: %w", err)
	}
	return source, nil
}

func buildBackend(cfg *config.Config) (playback.Backend, error) {
	switch cfg.Speech.Backend {
	case string(playback.KindClip):
		if cfg.APIKey("elevenlabs") == "" {
			return nil, fmt.Errorf("speech: ElevenLabs API key required for the clip backend")
		}
		return playback.NewClipBackend(cfg.ToClipConfig()), nil
	case string(playback.KindLocal):
		return playback.NewLocalBackend(cfg.ToLocalConfig()), nil
	default:
		return nil, fmt.Errorf("speech: unsupported backend: %s", cfg.Speech.Backend)
	}
}

// buildSynthesizer returns the clip fetcher behind /api/tts, or nil when no
// ElevenLabs key is configured.
func buildSynthesizer(cfg *config.Config, backend playback.Backend) server.Synthesizer {
	if clip, ok := backend.(*playback.ClipBackend); ok {
		return clip
	}
	if cfg.APIKey("elevenlabs") == "" {
		log.Printf("Daemon: no ElevenLabs key, /api/tts disabled")
		return nil
	}
	return playback.NewClipBackend(cfg.ToClipConfig())
}

func buildEngine(cfg *config.Config, hub *server.Hub) (transcript.Engine, error) {
	switch cfg.Transcription.Engine {
	case "remote":
		return hub, nil
	case "deepgram":
		dg := cfg.ToDeepgramConfig()
		if dg.APIKey == "" {
			return nil, fmt.Errorf("transcription: Deepgram API key required")
		}
		return transcript.NewDeepgramEngine(dg, recording.NewRecorder(cfg.ToRecordingConfig())), nil
	default:
		return nil, fmt.Errorf("transcription: unsupported engine: %s", cfg.Transcription.Engine)
	}
}

// continuationChanged reports whether a reload needs a new source.
func continuationChanged(old, updated *config.Config) bool {
	return old.Continuation.Provider != updated.Continuation.Provider ||
		old.Continuation.Model != updated.Continuation.Model ||
		old.Continuation.URL != updated.Continuation.URL ||
		old.APIKey(old.Continuation.Provider) != updated.APIKey(updated.Continuation.Provider)
}

// restartRequired lists reloaded sections that only apply on the next start.
func restartRequired(old, updated *config.Config) []string {
	var sections []string
	if old.Transcription != updated.Transcription {
		sections = append(sections, "transcription")
	}
	if old.Speech.Backend != updated.Speech.Backend || old.Speech.VoiceID != updated.Speech.VoiceID ||
		old.Speech.ModelID != updated.Speech.ModelID || old.Speech.SynthCommand != updated.Speech.SynthCommand ||
		old.Speech.Rate != updated.Speech.Rate || old.Speech.Pitch != updated.Speech.Pitch {
		sections = append(sections, "speech")
	}
	if old.Server != updated.Server {
		sections = append(sections, "server")
	}
	if old.Recording != updated.Recording {
		sections = append(sections, "recording")
	}
	if old.Notifications != updated.Notifications {
		sections = append(sections, "notifications")
	}
	if old.Gesture.NeutralLabel != updated.Gesture.NeutralLabel || old.Gesture.WaveLabel != updated.Gesture.WaveLabel ||
		old.Gesture.InterruptLabel != updated.Gesture.InterruptLabel || old.Gesture.Tick != updated.Gesture.Tick ||
		old.Gesture.FrameMaxAge != updated.Gesture.FrameMaxAge {
		sections = append(sections, "gesture")
	}
	return sections
}
