package config

import "time"

type Config struct {
	Gesture       GestureConfig             `toml:"gesture"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Continuation  ContinuationConfig        `toml:"continuation"`
	Speech        SpeechConfig              `toml:"speech"`
	Server        ServerConfig              `toml:"server"`
	Recording     RecordingConfig           `toml:"recording"`
	Notifications NotificationsConfig       `toml:"notifications"`
	Providers     map[string]ProviderConfig `toml:"providers"`
}

// ProviderConfig holds API key for a provider
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}

// GestureConfig names the classifier labels and paces the arbiter
type GestureConfig struct {
	NeutralLabel   string        `toml:"neutral_label"`
	WaveLabel      string        `toml:"wave_label"`
	InterruptLabel string        `toml:"interrupt_label"`
	Cooldown       time.Duration `toml:"cooldown"`
	Tick           time.Duration `toml:"tick"`
	FrameMaxAge    time.Duration `toml:"frame_max_age"`
}

type TranscriptionConfig struct {
	Engine        string        `toml:"engine"` // "remote" (browser page) or "deepgram"
	Model         string        `toml:"model"`
	Language      string        `toml:"language"`
	RetryAttempts int           `toml:"retry_attempts"`
	RetryDelay    time.Duration `toml:"retry_delay"`
}

type ContinuationConfig struct {
	Provider string `toml:"provider"` // openai, groq, gemini, websocket, sse
	Model    string `toml:"model"`
	Style    string `toml:"style"`
	URL      string `toml:"url"`
}

type SpeechConfig struct {
	Backend      string   `toml:"backend"` // "clip" or "local"
	VoiceID      string   `toml:"voice_id"`
	ModelID      string   `toml:"model_id"`
	Player       []string `toml:"player"`
	SynthCommand string   `toml:"synth_command"`
	Rate         float64  `toml:"rate"`
	Pitch        float64  `toml:"pitch"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type RecordingConfig struct {
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	Format            string `toml:"format"`
	BufferSize        int    `toml:"buffer_size"`
	Device            string `toml:"device"`
	ChannelBufferSize int    `toml:"channel_buffer_size"`
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "desktop", "log", "none"
}
