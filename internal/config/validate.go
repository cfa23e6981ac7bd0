package config

import (
	"fmt"
	"strings"

	"github.com/leonardotrapani/copresenter/internal/language"
)

func (c *Config) Validate() error {
	if c.Gesture.NeutralLabel == "" {
		return fmt.Errorf("invalid gesture.neutral_label: empty")
	}
	if c.Gesture.WaveLabel == "" {
		return fmt.Errorf("invalid gesture.wave_label: empty")
	}
	if c.Gesture.InterruptLabel == "" {
		return fmt.Errorf("invalid gesture.interrupt_label: empty")
	}
	if c.Gesture.InterruptLabel == c.Gesture.NeutralLabel {
		return fmt.Errorf("invalid gesture.interrupt_label: must differ from neutral_label")
	}
	if c.Gesture.Cooldown < 0 {
		return fmt.Errorf("invalid gesture.cooldown: %v", c.Gesture.Cooldown)
	}
	if c.Gesture.Tick <= 0 {
		return fmt.Errorf("invalid gesture.tick: %v", c.Gesture.Tick)
	}
	if c.Gesture.FrameMaxAge < 0 {
		return fmt.Errorf("invalid gesture.frame_max_age: %v", c.Gesture.FrameMaxAge)
	}

	if c.Transcription.RetryAttempts < 0 {
		return fmt.Errorf("invalid transcription.retry_attempts: %d", c.Transcription.RetryAttempts)
	}
	if c.Transcription.RetryDelay < 0 {
		return fmt.Errorf("invalid transcription.retry_delay: %v", c.Transcription.RetryDelay)
	}
	if c.Transcription.Language != "" && !language.IsValid(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use empty string for the engine default or codes like 'en', 'en-US', 'fr')", c.Transcription.Language)
	}
	switch c.Transcription.Engine {
	case "remote":
	case "deepgram":
		if c.APIKey("deepgram") == "" {
			return fmt.Errorf("Deepgram API key required: not found in config (providers.deepgram.api_key) or environment variable (DEEPGRAM_API_KEY)")
		}
		if c.Transcription.Model == "" {
			return fmt.Errorf("invalid transcription.model: empty")
		}
		if err := c.validateRecording(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported transcription.engine: %s (must be remote or deepgram)", c.Transcription.Engine)
	}

	switch c.Continuation.Provider {
	case "openai", "groq", "gemini":
		if c.APIKey(c.Continuation.Provider) == "" {
			return fmt.Errorf("%s API key required: not found in config (providers.%s.api_key) or environment variable (%s)",
				c.Continuation.Provider, c.Continuation.Provider, EnvVarForProvider(c.Continuation.Provider))
		}
	case "websocket", "sse":
		if c.Continuation.URL == "" {
			return fmt.Errorf("continuation.url required when continuation.provider = %s", c.Continuation.Provider)
		}
		if !strings.Contains(c.Continuation.URL, "://") {
			return fmt.Errorf("invalid continuation.url: %s (must include a scheme)", c.Continuation.URL)
		}
	default:
		return fmt.Errorf("unsupported continuation.provider: %s (must be openai, groq, gemini, websocket, or sse)", c.Continuation.Provider)
	}

	switch c.Speech.Backend {
	case "clip":
		if c.APIKey("elevenlabs") == "" {
			return fmt.Errorf("ElevenLabs API key required: not found in config (providers.elevenlabs.api_key) or environment variable (ELEVENLABS_API_KEY)")
		}
		if len(c.Speech.Player) == 0 || c.Speech.Player[0] == "" {
			return fmt.Errorf("invalid speech.player: empty")
		}
	case "local":
		if c.Speech.SynthCommand == "" {
			return fmt.Errorf("invalid speech.synth_command: empty")
		}
	default:
		return fmt.Errorf("unsupported speech.backend: %s (must be clip or local)", c.Speech.Backend)
	}
	if c.Speech.Rate <= 0 || c.Speech.Rate > 10 {
		return fmt.Errorf("invalid speech.rate: %v (must be in (0, 10])", c.Speech.Rate)
	}
	if c.Speech.Pitch < 0 || c.Speech.Pitch > 2 {
		return fmt.Errorf("invalid speech.pitch: %v (must be in [0, 2])", c.Speech.Pitch)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("invalid server.addr: empty")
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	return nil
}

func (c *Config) validateRecording() error {
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid recording.sample_rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels <= 0 {
		return fmt.Errorf("invalid recording.channels: %d", c.Recording.Channels)
	}
	if c.Recording.BufferSize <= 0 {
		return fmt.Errorf("invalid recording.buffer_size: %d", c.Recording.BufferSize)
	}
	if c.Recording.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid recording.channel_buffer_size: %d", c.Recording.ChannelBufferSize)
	}
	if c.Recording.Format == "" {
		return fmt.Errorf("invalid recording.format: empty")
	}
	return nil
}
