// Package recording implements the record and replay modes: captured
// upstream interactions are kept in memory, persisted as YAML files and
// replayed by request identity.
package recording

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
)

// Interaction is one captured request/response pair.
type Interaction struct {
	Method      string            `yaml:"method"`
	Path        string            `yaml:"path"`
	RequestHash string            `yaml:"request_hash"`
	StatusCode  int               `yaml:"status_code"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Body        string            `yaml:"body,omitempty"`
	DurationMS  int64             `yaml:"duration_ms"`
}

// HashRequestBody identifies a request body for replay matching.
func HashRequestBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Store keeps interactions grouped by request path.
// Grouping by path matches the on-disk layout of one file per path.
type Store struct {
	mu     sync.RWMutex
	byPath map[string][]Interaction
}

func NewStore() *Store {
	return &Store{
		byPath: make(map[string][]Interaction),
	}
}

func (s *Store) Add(i Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byPath[i.Path] = append(s.byPath[i.Path], i)
}

// Find locates a recorded interaction for the given request identity.
// An exact body-hash match wins; otherwise the first recording for the
// method and path is returned, which keeps replay usable when clients
// vary non-essential body fields between runs.
func (s *Store) Find(method string, path string, requestHash string) (Interaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fallback *Interaction
	for idx, i := range s.byPath[path] {
		if i.Method != method {
			continue
		}

		if i.RequestHash == requestHash {
			return i, true
		}

		if fallback == nil {
			fallback = &s.byPath[path][idx]
		}
	}

	if fallback != nil {
		return *fallback, true
	}

	return Interaction{}, false
}

// Paths lists the recorded paths in a stable order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// Get returns a copy of the interactions recorded for the path.
func (s *Store) Get(path string) []Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	interactions := s.byPath[path]
	copied := make([]Interaction, len(interactions))
	copy(copied, interactions)

	return copied
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, interactions := range s.byPath {
		total += len(interactions)
	}

	return total
}

// FileName converts a request path to a safe recording file name.
func FileName(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		trimmed = "root"
	}

	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, trimmed)

	return sanitized + ".yaml"
}
