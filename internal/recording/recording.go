package recording

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// AudioFrame is one fixed-size chunk of raw PCM from the microphone.
type AudioFrame struct {
	Data      []byte
	Timestamp time.Time
}

type Config struct {
	SampleRate        int
	Channels          int
	Format            string
	BufferSize        int // bytes per frame
	Device            string
	ChannelBufferSize int // frames buffered before new ones are dropped

	// Command overrides the capture program; it must write raw audio to stdout.
	Command []string
}

func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		Channels:          1,
		Format:            "s16",
		BufferSize:        8192,
		ChannelBufferSize: 30,
	}
}

// Validate rejects configs the capture loop cannot run with.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("invalid SampleRate: %d", c.SampleRate)
	case c.Channels <= 0:
		return fmt.Errorf("invalid Channels: %d", c.Channels)
	case c.BufferSize <= 0:
		return fmt.Errorf("invalid BufferSize: %d", c.BufferSize)
	case c.ChannelBufferSize <= 0:
		return fmt.Errorf("invalid ChannelBufferSize: %d", c.ChannelBufferSize)
	case c.Format == "":
		return fmt.Errorf("invalid Format: empty")
	}
	return nil
}

// Argv is the capture command line: Command when set, otherwise pw-record
// writing to stdout.
func (c Config) Argv() []string {
	if len(c.Command) > 0 {
		return c.Command
	}
	args := []string{
		"pw-record",
		"--format", c.Format,
		"--rate", strconv.Itoa(c.SampleRate),
		"--channels", strconv.Itoa(c.Channels),
	}
	if c.Device != "" {
		args = append(args, "--target", c.Device)
	}
	return append(args, "-")
}

// Recorder runs one capture session at a time and delivers its audio as frames.
type Recorder struct {
	config Config

	mu     sync.Mutex
	cancel context.CancelFunc // nil when idle

	dropped atomic.Int64
	wg      sync.WaitGroup
}

func NewRecorder(config Config) *Recorder {
	return &Recorder{config: config}
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Dropped reports how many frames the current or last session discarded
// because the consumer fell behind.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Start begins a capture session. Both channels close when ctx is
// cancelled, Stop is called or the capture program exits.
func (r *Recorder) Start(ctx context.Context) (<-chan AudioFrame, <-chan error, error) {
	if err := r.config.Validate(); err != nil {
		return nil, nil, err
	}
	argv := r.config.Argv()
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, nil, fmt.Errorf("%s not found: %w", argv[0], err)
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("already recording")
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.dropped.Store(0)
	frames := make(chan AudioFrame, r.config.ChannelBufferSize)
	errs := make(chan error, 1)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			r.cancel = nil
			r.mu.Unlock()
			cancel()
		}()
		defer close(errs)
		defer close(frames)

		if err := r.capture(sessionCtx, argv, frames); err != nil {
			log.Printf("Recording error: %v", err)
			errs <- err
		}
	}()

	return frames, errs, nil
}

func (r *Recorder) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the capture session has exited.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) capture(ctx context.Context, argv []string, frames chan<- AudioFrame) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}
	go logLines(argv[0], stderr)

	err = pump(ctx, stdout, r.config.BufferSize, frames, r.dropFrame)
	_ = cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Recorder) dropFrame() {
	if n := r.dropped.Add(1); n%100 == 1 {
		log.Printf("Recording: dropped %d frames due to backpressure", n)
	}
}

// pump reads src in size-byte frames until EOF. A trailing partial frame is
// still delivered. Frames that arrive while out is full go to drop.
func pump(ctx context.Context, src io.Reader, size int, out chan<- AudioFrame, drop func()) error {
	buf := make([]byte, size)
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			frame := AudioFrame{Data: append([]byte(nil), buf[:n]...), Timestamp: time.Now()}
			select {
			case out <- frame:
			case <-ctx.Done():
				return nil
			default:
				drop()
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("read audio: %w", err)
		}
	}
}

func logLines(prefix string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Printf("Recording %s: %s", prefix, scanner.Text())
	}
}
