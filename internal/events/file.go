package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSink appends events to a JSON lines file. Writes are serialized by a
// mutex so the simulator and integration loops can share one sink.
type FileSink struct {
	path   string
	mu     sync.Mutex
	closed bool
	lastTS time.Time
}

// NewFileSink prepares a sink writing to the given path, creating parent
// directories as needed.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("events: create log dir: %w", err)
	}
	return &FileSink{path: path}, nil
}

// Append writes events to the log. Timestamps are clamped forward so the log
// stays monotonic even when callers race on wall-clock reads.
func (s *FileSink) Append(ctx context.Context, evts ...Event) error {
	if len(evts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("events: open log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, evt := range evts {
		if evt.TS.Before(s.lastTS) {
			evt.TS = s.lastTS
		}
		s.lastTS = evt.TS
		line, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("events: marshal: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("events: write: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("events: write: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("events: flush: %w", err)
	}
	return nil
}

// Query scans the log and returns events matching the filter in append order.
func (s *FileSink) Query(ctx context.Context, filter Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("events: open log: %w", err)
	}
	defer file.Close()

	var result []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var evt Event
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return nil, fmt.Errorf("events: decode log line: %w", err)
		}
		if !filter.Matches(evt) {
			continue
		}
		result = append(result, evt)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("events: scan log: %w", err)
	}
	return result, nil
}

// Close marks the sink as closed for writes.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
