package config

import (
	"os"

	"github.com/leonardotrapani/copresenter/internal/continuation"
	"github.com/leonardotrapani/copresenter/internal/gesture"
	"github.com/leonardotrapani/copresenter/internal/playback"
	"github.com/leonardotrapani/copresenter/internal/recording"
	"github.com/leonardotrapani/copresenter/internal/transcript"
)

// envVars maps provider names to the environment variable holding their key.
var envVars = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"groq":       "GROQ_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"elevenlabs": "ELEVENLABS_API_KEY",
	"deepgram":   "DEEPGRAM_API_KEY",
}

// EnvVarForProvider returns the environment variable for provider's key, or "".
func EnvVarForProvider(provider string) string {
	return envVars[provider]
}

// APIKey resolves provider's key from providers.<name>.api_key, then the
// environment.
func (c *Config) APIKey(provider string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[provider]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}
	if env := envVars[provider]; env != "" {
		return os.Getenv(env)
	}
	return ""
}

func (c *Config) ToRecordingConfig() recording.Config {
	return recording.Config{
		SampleRate:        c.Recording.SampleRate,
		Channels:          c.Recording.Channels,
		Format:            c.Recording.Format,
		BufferSize:        c.Recording.BufferSize,
		Device:            c.Recording.Device,
		ChannelBufferSize: c.Recording.ChannelBufferSize,
	}
}

func (c *Config) ToDeepgramConfig() transcript.DeepgramConfig {
	return transcript.DeepgramConfig{
		APIKey:     c.APIKey("deepgram"),
		Model:      c.Transcription.Model,
		Language:   c.Transcription.Language,
		SampleRate: c.Recording.SampleRate,
		Channels:   c.Recording.Channels,
	}
}

func (c *Config) ToRetryPolicy() transcript.RetryPolicy {
	p := transcript.DefaultRetryPolicy()
	p.Attempts = c.Transcription.RetryAttempts
	p.Delay = c.Transcription.RetryDelay
	return p
}

func (c *Config) ToContinuationConfig() continuation.Config {
	return continuation.Config{
		Provider: c.Continuation.Provider,
		APIKey:   c.APIKey(c.Continuation.Provider),
		Model:    c.Continuation.Model,
		URL:      c.Continuation.URL,
	}
}

func (c *Config) ToClipConfig() playback.ClipConfig {
	return playback.ClipConfig{
		APIKey:  c.APIKey("elevenlabs"),
		VoiceID: c.Speech.VoiceID,
		ModelID: c.Speech.ModelID,
		Player:  c.Speech.Player,
	}
}

func (c *Config) ToLocalConfig() playback.LocalConfig {
	return playback.LocalConfig{
		Command: c.Speech.SynthCommand,
		Rate:    c.Speech.Rate,
		Pitch:   c.Speech.Pitch,
	}
}

func (c *Config) ToLabels() gesture.Labels {
	return gesture.Labels{
		Neutral:   c.Gesture.NeutralLabel,
		Wave:      c.Gesture.WaveLabel,
		Interrupt: c.Gesture.InterruptLabel,
	}
}

// NotifierType is the notifier to build, "none" when notifications are off.
func (c *Config) NotifierType() string {
	if !c.Notifications.Enabled {
		return "none"
	}
	return c.Notifications.Type
}
