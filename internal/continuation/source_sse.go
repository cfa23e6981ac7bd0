package continuation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// SSESource subscribes to a request-scoped server-sent event stream:
// one `data: <json string>` event per fragment, then an `event: complete`
// or `event: error`. A stream that just ends counts as complete.
type SSESource struct {
	url    string
	client *http.Client
}

func NewSSESource(base string) (*SSESource, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse continuation url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported continuation url scheme: %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api/handwave"
	}
	return &SSESource{url: u.String(), client: &http.Client{}}, nil
}

func (s *SSESource) Name() string { return "sse" }

func (s *SSESource) Open(ctx context.Context, req Request) (Stream, error) {
	u, _ := url.Parse(s.url)
	q := u.Query()
	q.Set("transcription", req.Transcription)
	q.Set("style", req.Style)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sse request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("sse http status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &sseStream{body: resp.Body, scanner: scanner}, nil
}

type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *sseStream) Recv() (string, error) {
	for !s.done {
		event, data, err := s.nextEvent()
		if err != nil {
			return "", err
		}
		switch event {
		case "", "message":
			text, err := decodeData(data)
			if err != nil {
				log.Printf("sse-continuation: bad data %q: %v", data, err)
				continue
			}
			if text != "" {
				return text, nil
			}
		case MessageComplete:
			s.done = true
		case MessageError:
			msg, err := decodeData(data)
			if err != nil {
				msg = data
			}
			return "", &ServiceError{Message: msg}
		}
	}
	return "", io.EOF
}

// nextEvent reads lines up to the next blank line.
func (s *sseStream) nextEvent() (event, data string, err error) {
	var lines []string
	sawField := false
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if sawField {
				return event, strings.Join(lines, "\n"), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
			sawField = true
		case "data":
			lines = append(lines, value)
			sawField = true
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("sse read: %w", err)
	}
	if sawField {
		return event, strings.Join(lines, "\n"), nil
	}
	s.done = true
	return MessageComplete, "", nil
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

// decodeData accepts a JSON string payload and falls back to raw text.
func decodeData(data string) (string, error) {
	if data == "" {
		return "", nil
	}
	if !strings.HasPrefix(data, `"`) {
		return data, nil
	}
	var text string
	if err := json.Unmarshal([]byte(data), &text); err != nil {
		return "", err
	}
	return text, nil
}
