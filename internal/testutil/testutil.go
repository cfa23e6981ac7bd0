package testutil

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/copresenter/internal/continuation"
	"github.com/leonardotrapani/copresenter/internal/playback"
	"github.com/leonardotrapani/copresenter/internal/recording"
	"github.com/leonardotrapani/copresenter/internal/transcript"
)

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// MockAudioFrame creates a test audio frame
func MockAudioFrame(data []byte) recording.AudioFrame {
	if data == nil {
		data = make([]byte, 1024)
		for i := range data {
			data[i] = byte(i % 256)
		}
	}

	return recording.AudioFrame{
		Data:      data,
		Timestamp: time.Now(),
	}
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// MockSource implements continuation.Source. Every Open hands the test a
// MockStream through Streams.
type MockSource struct {
	OpenError error
	Streams   chan *MockStream

	mu       sync.Mutex
	requests []continuation.Request
}

func NewMockSource() *MockSource {
	return &MockSource{Streams: make(chan *MockStream, 8)}
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Open(ctx context.Context, req continuation.Request) (continuation.Stream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.OpenError != nil {
		return nil, m.OpenError
	}
	s := NewMockStream()
	m.Streams <- s
	return s, nil
}

func (m *MockSource) Requests() []continuation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]continuation.Request(nil), m.requests...)
}

// NextStream waits for the next opened stream.
func (m *MockSource) NextStream(t *testing.T) *MockStream {
	t.Helper()
	select {
	case s := <-m.Streams:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no continuation stream was opened")
		return nil
	}
}

type streamItem struct {
	text string
	err  error
	end  bool
}

// MockStream is a continuation.Stream driven by the test.
type MockStream struct {
	items  chan streamItem
	closed chan struct{}
	once   sync.Once
}

func NewMockStream() *MockStream {
	return &MockStream{
		items:  make(chan streamItem, 64),
		closed: make(chan struct{}),
	}
}

// Send delivers one text fragment.
func (s *MockStream) Send(text string) {
	s.items <- streamItem{text: text}
}

// Finish ends the stream: nil completes it, anything else fails it.
func (s *MockStream) Finish(err error) {
	s.items <- streamItem{err: err, end: true}
}

func (s *MockStream) Recv() (string, error) {
	select {
	case it := <-s.items:
		if !it.end {
			return it.text, nil
		}
		if it.err == nil {
			return "", io.EOF
		}
		return "", it.err
	case <-s.closed:
		return "", io.ErrClosedPipe
	}
}

func (s *MockStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *MockStream) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// MockBackend implements playback.Backend. When Gate is set, each Play waits
// for one value on it (or for cancellation).
type MockBackend struct {
	PrepareError error
	Gate         chan struct{}

	mu       sync.Mutex
	prepared []string
	started  []string
	played   []string
}

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// NewGatedBackend returns a backend whose clips only finish when released.
func NewGatedBackend() *MockBackend {
	return &MockBackend{Gate: make(chan struct{})}
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Prepare(ctx context.Context, text string) (playback.Clip, error) {
	m.mu.Lock()
	m.prepared = append(m.prepared, text)
	m.mu.Unlock()
	if m.PrepareError != nil {
		return playback.Clip{}, m.PrepareError
	}
	return playback.Clip{Kind: playback.KindLocal, Text: text}, nil
}

func (m *MockBackend) Play(ctx context.Context, clip playback.Clip) error {
	m.mu.Lock()
	m.started = append(m.started, clip.Text)
	m.mu.Unlock()

	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	m.played = append(m.played, clip.Text)
	m.mu.Unlock()
	return nil
}

// Release lets the clip currently waiting on Gate finish.
func (m *MockBackend) Release(t *testing.T) {
	t.Helper()
	select {
	case m.Gate <- struct{}{}:
	case <-time.After(2 * time.Second):
		t.Fatal("no clip is waiting to be released")
	}
}

func (m *MockBackend) Started() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.started...)
}

func (m *MockBackend) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}

// MockEngine implements transcript.Engine. Tests push engine callbacks with
// Emit.
type MockEngine struct {
	events chan transcript.Event

	mu       sync.Mutex
	startErr error
	starts   int
	stops    int
	running  bool
}

func NewMockEngine() *MockEngine {
	return &MockEngine{events: make(chan transcript.Event, 16)}
}

func (m *MockEngine) Name() string { return "mock" }

func (m *MockEngine) Events() <-chan transcript.Event { return m.events }

func (m *MockEngine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	return nil
}

// FailStarts makes every following Start return err; nil lets them succeed.
func (m *MockEngine) FailStarts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

func (m *MockEngine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.running = false
	return nil
}

func (m *MockEngine) Emit(ev transcript.Event) {
	m.events <- ev
}

// Say emits one final result.
func (m *MockEngine) Say(text string) {
	m.Emit(transcript.Event{Kind: transcript.ResultEvent, Results: []transcript.Result{{Text: text, IsFinal: true}}})
}

func (m *MockEngine) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

func (m *MockEngine) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func (m *MockEngine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
