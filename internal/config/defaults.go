package config

import (
	"time"

	"github.com/leonardotrapani/copresenter/internal/continuation"
	"github.com/leonardotrapani/copresenter/internal/gesture"
	"github.com/leonardotrapani/copresenter/internal/playback"
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Gesture: GestureConfig{
			NeutralLabel:   gesture.DefaultNeutralLabel,
			WaveLabel:      gesture.DefaultWaveLabel,
			InterruptLabel: gesture.DefaultInterruptLabel,
			Cooldown:       gesture.DefaultCooldown,
			Tick:           100 * time.Millisecond,
			FrameMaxAge:    500 * time.Millisecond,
		},
		Transcription: TranscriptionConfig{
			Engine:        "remote",
			Model:         "nova-3",
			Language:      "",
			RetryAttempts: 1,
			RetryDelay:    time.Second,
		},
		Continuation: ContinuationConfig{
			Provider: "openai",
			Model:    "",
			Style:    continuation.DefaultStyle,
		},
		Speech: SpeechConfig{
			Backend:      "clip",
			VoiceID:      playback.DefaultVoiceID,
			ModelID:      playback.DefaultModelID,
			Player:       append([]string(nil), playback.DefaultPlayer...),
			SynthCommand: playback.DefaultSynthCommand,
			Rate:         playback.DefaultRate,
			Pitch:        playback.DefaultPitch,
		},
		Server: ServerConfig{
			Addr: ":3000",
		},
		Recording: RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16",
			BufferSize:        8192,
			Device:            "",
			ChannelBufferSize: 30,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "log",
		},
		Providers: make(map[string]ProviderConfig),
	}
}
