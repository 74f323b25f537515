package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore writes verification images under <root>/<candidate-id>/<name>,
// mirroring the layout the inference service reads from.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Save(candidateID, name string, data []byte) error {
	// Candidate ids come from the login surface; keep them from escaping
	// the store root.
	if candidateID == "" || candidateID != filepath.Base(candidateID) {
		return fmt.Errorf("invalid candidate id %q", candidateID)
	}

	dir := filepath.Join(s.root, candidateID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create candidate directory: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, name), data, 0644)
}

// MemoryStore keeps artifacts in memory, keyed candidate-id -> name -> bytes.
// Used when no durable artifact path is configured.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Save(candidateID, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blobs[candidateID] == nil {
		s.blobs[candidateID] = make(map[string][]byte)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[candidateID][name] = buf
	return nil
}

// Get returns a stored artifact, or false if absent.
func (s *MemoryStore) Get(candidateID, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[candidateID][name]
	return data, ok
}
