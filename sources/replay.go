package sources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	replayBatchSeparator = "---"
	replayErrorPrefix    = "!error "
)

// ReplaySource plays back a captured session from a file so the streamer
// can be exercised without a live instance. Batches are separated by a line
// containing only "---". A batch whose first line starts with "!error " is
// returned as a failed fetch. Once every batch has been served, Fetch keeps
// returning empty batches.
//
// The file is re-read on every call so a capture can be appended to while
// it is being replayed.
type ReplaySource struct {
	name string
	path string

	mu   sync.Mutex
	next int
}

func NewReplaySource(name string, path string) *ReplaySource {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return &ReplaySource{
		name: name,
		path: absPath,
	}
}

func (s *ReplaySource) Name() string {
	return s.name
}

func (s *ReplaySource) Fetch(ctx context.Context, instanceID string, since time.Time) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, newFetchError(&EndpointError{Endpoint: "replay " + s.path, Err: err})
	}

	batches := splitBatches(string(data))

	s.mu.Lock()
	idx := s.next
	if idx < len(batches) {
		s.next++
	}
	s.mu.Unlock()

	if idx >= len(batches) {
		return nil, nil
	}

	batch := batches[idx]
	if len(batch) > 0 && strings.HasPrefix(batch[0], replayErrorPrefix) {
		msg := strings.TrimPrefix(batch[0], replayErrorPrefix)
		return nil, newFetchError(&EndpointError{Endpoint: "replay batch " + fmt.Sprint(idx+1), Err: errors.New(msg)})
	}
	return batch, nil
}

func splitBatches(content string) [][]string {
	var batches [][]string
	var current []string
	for _, line := range splitRaw(content) {
		if line == replayBatchSeparator {
			batches = append(batches, current)
			current = nil
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
