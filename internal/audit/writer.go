package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Sink receives audit records. Implementations store, they never return
// query results; reading goes through Query.
type Sink interface {
	Append(r Record) error
	Close() error
}

// fileSink appends JSONL to a file
type fileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens an append-only JSONL sink, creating parent
// directories as needed. The file is never truncated.
func NewFileSink(path string) (Sink, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for audit log: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &fileSink{file: f}, nil
}

func (s *fileSink) Append(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// MemorySink collects records in memory, for tests and dry inspection
type MemorySink struct {
	mu      sync.Mutex
	Records []Record
}

func (m *MemorySink) Append(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, r)
	return nil
}

func (m *MemorySink) Close() error { return nil }
