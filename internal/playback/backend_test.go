package playback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"reflect"
	"testing"
	"time"
)

type capturedTTS struct {
	path string
	key  string
	body map[string]any
}

func TestClipBackend_Fetch(t *testing.T) {
	captured := make(chan capturedTTS, 2)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := capturedTTS{path: r.URL.Path, key: r.Header.Get("xi-api-key")}
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		captured <- c
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-fake-audio"))
	}))
	defer server.Close()

	b := NewClipBackend(ClipConfig{BaseURL: server.URL, APIKey: "k", VoiceID: "voice-1"})

	clip, err := b.Prepare(context.Background(), "  Hello there.  ")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if clip.Kind != KindClip || string(clip.Audio) != "ID3-fake-audio" {
		t.Errorf("Prepare() = %+v", clip)
	}
	got := <-captured
	if got.path != "/v1/text-to-speech/voice-1" {
		t.Errorf("path = %q", got.path)
	}
	if got.key != "k" {
		t.Errorf("xi-api-key = %q", got.key)
	}
	if got.body["text"] != "Hello there." || got.body["model_id"] != DefaultModelID {
		t.Errorf("body = %v", got.body)
	}

	if _, err := b.Fetch(context.Background(), "Hi.", "other-voice"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := <-captured; got.path != "/v1/text-to-speech/other-voice" {
		t.Errorf("voice override path = %q", got.path)
	}
}

func TestClipBackend_FetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	b := NewClipBackend(ClipConfig{BaseURL: server.URL})

	_, err := b.Prepare(context.Background(), "Hello.")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Prepare() error = %v, want *StatusError", err)
	}
	if se.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d", se.Status)
	}

	if _, err := b.Prepare(context.Background(), "   "); !errors.Is(err, ErrEmptyUnit) {
		t.Errorf("blank Prepare() error = %v, want ErrEmptyUnit", err)
	}
}

func TestClipBackend_PlayPipesAudio(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	b := NewClipBackend(ClipConfig{Player: []string{"sh", "-c", "cat > /dev/null"}})

	if err := b.Play(context.Background(), Clip{Kind: KindClip, Audio: []byte("abc")}); err != nil {
		t.Errorf("Play() error = %v", err)
	}
}

func TestClipBackend_PlayCancelled(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	b := NewClipBackend(ClipConfig{Player: []string{"sleep", "10"}})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := b.Play(ctx, Clip{Kind: KindClip, Audio: []byte("abc")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Play() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("player was not killed on cancel")
	}
}

func TestLocalBackend_Args(t *testing.T) {
	tests := []struct {
		name string
		cfg  LocalConfig
		want []string
	}{
		{
			name: "defaults",
			cfg:  LocalConfig{},
			want: []string{"-s", "263", "-p", "50", "--", "-dash first."},
		},
		{
			name: "voice and clamped pitch",
			cfg:  LocalConfig{Rate: 1, Pitch: 3, Voice: "en-us"},
			want: []string{"-s", "175", "-p", "99", "-v", "en-us", "--", "-dash first."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewLocalBackend(tt.cfg)
			clip, err := b.Prepare(context.Background(), " -dash first. ")
			if err != nil {
				t.Fatalf("Prepare() error = %v", err)
			}
			if got := b.args(clip); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("args() = %v, want %v", got, tt.want)
			}
		})
	}
}
