package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/leonardotrapani/copresenter/internal/testutil"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, env := range envVars {
		t.Setenv(env, "")
	}
}

// createTestConfig returns a valid configuration for testing
func createTestConfig() *Config {
	c := DefaultConfig()
	c.Providers["openai"] = ProviderConfig{APIKey: "sk-test"}
	c.Providers["elevenlabs"] = ProviderConfig{APIKey: "xi-test"}
	return c
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	if c.Gesture.Cooldown != 5*time.Second {
		t.Errorf("default cooldown should be 5s, got %v", c.Gesture.Cooldown)
	}
	if c.Gesture.Tick != 100*time.Millisecond {
		t.Errorf("default tick should be 100ms, got %v", c.Gesture.Tick)
	}
	if c.Gesture.WaveLabel != "handwave" || c.Gesture.InterruptLabel != "Open_Palm" || c.Gesture.NeutralLabel != "None" {
		t.Errorf("default labels = %+v", c.Gesture)
	}
	if c.Continuation.Style != "funny and whimsical" {
		t.Errorf("default style = %q", c.Continuation.Style)
	}
	if c.Speech.Rate != 1.5 || c.Speech.Pitch != 1 {
		t.Errorf("default rate/pitch = %v/%v", c.Speech.Rate, c.Speech.Pitch)
	}
	if c.Transcription.RetryAttempts != 1 || c.Transcription.RetryDelay != time.Second {
		t.Errorf("default retry = %d after %v", c.Transcription.RetryAttempts, c.Transcription.RetryDelay)
	}
	if c.Server.Addr != ":3000" {
		t.Errorf("default addr = %q", c.Server.Addr)
	}
}

func TestConfig_Validate(t *testing.T) {
	clearKeyEnv(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "empty wave label", mutate: func(c *Config) { c.Gesture.WaveLabel = "" }, wantErr: "gesture.wave_label"},
		{name: "interrupt equals neutral", mutate: func(c *Config) { c.Gesture.InterruptLabel = "None" }, wantErr: "gesture.interrupt_label"},
		{name: "negative cooldown", mutate: func(c *Config) { c.Gesture.Cooldown = -time.Second }, wantErr: "gesture.cooldown"},
		{name: "zero cooldown", mutate: func(c *Config) { c.Gesture.Cooldown = 0 }},
		{name: "zero tick", mutate: func(c *Config) { c.Gesture.Tick = 0 }, wantErr: "gesture.tick"},
		{name: "unknown engine", mutate: func(c *Config) { c.Transcription.Engine = "whisper" }, wantErr: "transcription.engine"},
		{name: "deepgram without key", mutate: func(c *Config) { c.Transcription.Engine = "deepgram" }, wantErr: "Deepgram API key"},
		{
			name: "deepgram with key",
			mutate: func(c *Config) {
				c.Transcription.Engine = "deepgram"
				c.Providers["deepgram"] = ProviderConfig{APIKey: "dg"}
			},
		},
		{
			name: "deepgram bad recording",
			mutate: func(c *Config) {
				c.Transcription.Engine = "deepgram"
				c.Providers["deepgram"] = ProviderConfig{APIKey: "dg"}
				c.Recording.SampleRate = 0
			},
			wantErr: "recording.sample_rate",
		},
		{name: "negative retries", mutate: func(c *Config) { c.Transcription.RetryAttempts = -1 }, wantErr: "retry_attempts"},
		{name: "language with region", mutate: func(c *Config) { c.Transcription.Language = "en-US" }},
		{name: "bad language", mutate: func(c *Config) { c.Transcription.Language = "klingon" }, wantErr: "transcription.language"},
		{name: "groq without key", mutate: func(c *Config) { c.Continuation.Provider = "groq" }, wantErr: "GROQ_API_KEY"},
		{name: "sse without url", mutate: func(c *Config) { c.Continuation.Provider = "sse" }, wantErr: "continuation.url"},
		{
			name: "websocket with url",
			mutate: func(c *Config) {
				c.Continuation.Provider = "websocket"
				c.Continuation.URL = "http://localhost:3000"
			},
		},
		{name: "unknown provider", mutate: func(c *Config) { c.Continuation.Provider = "eliza" }, wantErr: "continuation.provider"},
		{name: "clip without key", mutate: func(c *Config) { delete(c.Providers, "elevenlabs") }, wantErr: "ElevenLabs"},
		{
			name: "local without key",
			mutate: func(c *Config) {
				delete(c.Providers, "elevenlabs")
				c.Speech.Backend = "local"
			},
		},
		{name: "empty player", mutate: func(c *Config) { c.Speech.Player = nil }, wantErr: "speech.player"},
		{name: "zero rate", mutate: func(c *Config) { c.Speech.Rate = 0 }, wantErr: "speech.rate"},
		{name: "pitch too high", mutate: func(c *Config) { c.Speech.Pitch = 2.5 }, wantErr: "speech.pitch"},
		{name: "empty addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantErr: "server.addr"},
		{name: "invalid notification type", mutate: func(c *Config) { c.Notifications.Type = "pager" }, wantErr: "notifications.type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := createTestConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_APIKey(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GROQ_API_KEY", "env-groq")
	t.Setenv("OPENAI_API_KEY", "env-openai")

	c := DefaultConfig()
	c.Providers["openai"] = ProviderConfig{APIKey: "file-openai"}

	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "file-openai"},
		{"groq", "env-groq"},
		{"gemini", ""},
		{"websocket", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			if got := c.APIKey(tt.provider); got != tt.want {
				t.Errorf("APIKey(%q) = %q, want %q", tt.provider, got, tt.want)
			}
		})
	}
}

func TestConfig_LoadFile(t *testing.T) {
	path := testutil.CreateTempConfigFile(t, `
[gesture]
  cooldown = "3s"
  wave_label = "wave"

[continuation]
  provider = "sse"
  url = "https://copresenter.example"
  style = "film noir"

[speech]
  backend = "local"
  rate = 1.2

[providers.deepgram]
  api_key = "dg-key"
`)

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c.Gesture.Cooldown != 3*time.Second || c.Gesture.WaveLabel != "wave" {
		t.Errorf("gesture = %+v", c.Gesture)
	}
	if c.Gesture.InterruptLabel != "Open_Palm" || c.Gesture.Tick != 100*time.Millisecond {
		t.Errorf("unset gesture keys should keep defaults, got %+v", c.Gesture)
	}
	if c.Continuation.Provider != "sse" || c.Continuation.Style != "film noir" {
		t.Errorf("continuation = %+v", c.Continuation)
	}
	if c.Speech.Backend != "local" || c.Speech.Rate != 1.2 || c.Speech.Pitch != 1 {
		t.Errorf("speech = %+v", c.Speech)
	}
	if c.Providers["deepgram"].APIKey != "dg-key" {
		t.Errorf("providers = %+v", c.Providers)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_LoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("missing file error = %v, want ErrConfigNotFound", err)
	}

	path := testutil.CreateTempConfigFile(t, "[gesture\ncooldown = ")
	if _, err := LoadFile(path); err == nil || errors.Is(err, ErrConfigNotFound) {
		t.Errorf("invalid TOML error = %v", err)
	}

	path = testutil.CreateTempConfigFile(t, "[gesture]\ncooldown = \"soon\"\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("bad duration should fail to parse")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "nope", "config.toml"))

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(c, DefaultConfig()) {
		t.Errorf("Load() = %+v, want defaults", c)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if path != "/tmp/xdg/copresenter/config.toml" {
		t.Errorf("GetConfigPath() = %q", path)
	}

	t.Setenv(PathEnv, "/etc/copresenter.toml")
	if path, _ := GetConfigPath(); path != "/etc/copresenter.toml" {
		t.Errorf("override path = %q", path)
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	c := createTestConfig()
	c.Gesture.Cooldown = 7 * time.Second
	c.Continuation.Style = "sports commentary"
	c.Speech.Player = []string{"ffplay", "-nodisp", "-autoexit", "-"}

	if err := SaveFile(path, c); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "# Copresenter Configuration") {
		t.Errorf("saved file lacks header:\n%s", raw)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, c) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, c)
	}
}

func TestConfig_Conversions(t *testing.T) {
	clearKeyEnv(t)
	c := createTestConfig()
	c.Providers["deepgram"] = ProviderConfig{APIKey: "dg"}
	c.Transcription.Language = "en"
	c.Transcription.RetryAttempts = 2

	if rc := c.ToRecordingConfig(); rc.SampleRate != 16000 || rc.ChannelBufferSize != 30 {
		t.Errorf("ToRecordingConfig() = %+v", rc)
	}
	if dg := c.ToDeepgramConfig(); dg.APIKey != "dg" || dg.Model != "nova-3" || dg.Language != "en" {
		t.Errorf("ToDeepgramConfig() = %+v", dg)
	}
	if rp := c.ToRetryPolicy(); rp.Attempts != 2 || rp.Delay != time.Second || len(rp.Retryable) == 0 {
		t.Errorf("ToRetryPolicy() = %+v", rp)
	}
	if cc := c.ToContinuationConfig(); cc.Provider != "openai" || cc.APIKey != "sk-test" {
		t.Errorf("ToContinuationConfig() = %+v", cc)
	}
	if clip := c.ToClipConfig(); clip.APIKey != "xi-test" || len(clip.Player) == 0 {
		t.Errorf("ToClipConfig() = %+v", clip)
	}
	if l := c.ToLocalConfig(); l.Command != "espeak-ng" || l.Rate != 1.5 {
		t.Errorf("ToLocalConfig() = %+v", l)
	}
	if labels := c.ToLabels(); labels.Wave != "handwave" {
		t.Errorf("ToLabels() = %+v", labels)
	}

	c.Notifications.Enabled = false
	if got := c.NotifierType(); got != "none" {
		t.Errorf("NotifierType() = %q, want none", got)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("COPRESENTER_TEST_A=from-file\nCOPRESENTER_TEST_B=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COPRESENTER_TEST_A", "")
	os.Unsetenv("COPRESENTER_TEST_A")
	t.Setenv("COPRESENTER_TEST_B", "already-set")
	t.Cleanup(func() { os.Unsetenv("COPRESENTER_TEST_A") })

	if err := LoadEnv(envFile, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := os.Getenv("COPRESENTER_TEST_A"); got != "from-file" {
		t.Errorf("COPRESENTER_TEST_A = %q", got)
	}
	if got := os.Getenv("COPRESENTER_TEST_B"); got != "already-set" {
		t.Errorf("existing variable overridden: %q", got)
	}
}

func TestManager_Reload(t *testing.T) {
	clearKeyEnv(t)
	path := testutil.CreateTempConfigFile(t, `
[continuation]
  style = "calm"
[providers.openai]
  api_key = "sk"
[providers.elevenlabs]
  api_key = "xi"
`)

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if m.GetConfig().Continuation.Style != "calm" {
		t.Fatalf("initial style = %q", m.GetConfig().Continuation.Style)
	}

	changes := make(chan [2]string, 4)
	m.OnChange(func(old, updated *Config) {
		changes <- [2]string{old.Continuation.Style, updated.Continuation.Style}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartWatching(ctx); err != nil {
		t.Fatalf("StartWatching() error = %v", err)
	}
	defer m.Stop()

	// invalid updates are ignored
	if err := os.WriteFile(path, []byte("[speech]\nrate = -1\n[providers.openai]\napi_key = \"sk\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := m.GetConfig().Continuation.Style; got != "calm" {
		t.Errorf("invalid reload applied, style = %q", got)
	}

	updated := createTestConfig()
	updated.Continuation.Style = "shakespearean"
	if err := SaveFile(path, updated); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got != [2]string{"calm", "shakespearean"} {
			t.Errorf("OnChange got %v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload was not observed")
	}
	if got := m.GetConfig().Continuation.Style; got != "shakespearean" {
		t.Errorf("style after reload = %q", got)
	}
}

func TestNewManager_MissingFile(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if !reflect.DeepEqual(m.GetConfig(), DefaultConfig()) {
		t.Error("missing file should yield defaults")
	}
}
