// Package state persists the previous run's fingerprints so later runs can
// classify files as changed or deleted without touching the summary cache,
// and so degraded nodes can fall back to their previous summaries.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/docsync-dev/docsync/internal/fileutil"
)

const (
	StateFile           = "state.json"
	CurrentStateVersion = "1"
)

// FileState records one file as it looked at the end of the last run.
type FileState struct {
	Fingerprint string            `json:"fingerprint"`
	Language    string            `json:"language,omitempty"`
	Nodes       map[string]string `json:"nodes,omitempty"` // qualified name -> node fingerprint
	UpdatedAt   time.Time         `json:"updated_at"`
}

// State tracks all files across runs.
type State struct {
	Version         string               `json:"version"`
	UpdatedAt       time.Time            `json:"updated_at"`
	Files           map[string]FileState `json:"files"`
	RootFingerprint string               `json:"root_fingerprint,omitempty"`
}

func NewState() *State {
	return &State{
		Version: CurrentStateVersion,
		Files:   make(map[string]FileState),
	}
}

// Load reads state from the docsync directory. A missing file yields a
// fresh state.
func Load(docsyncDir string) (*State, error) {
	path := filepath.Join(docsyncDir, StateFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.Files == nil {
		st.Files = make(map[string]FileState)
	}
	if st.Version == "" {
		st.Version = CurrentStateVersion
	}
	return &st, nil
}

// Save writes state atomically to the docsync directory.
func (s *State) Save(docsyncDir string) error {
	if s.Version == "" {
		s.Version = CurrentStateVersion
	}
	if s.Files == nil {
		s.Files = make(map[string]FileState)
	}
	s.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return fileutil.WriteAtomic(filepath.Join(docsyncDir, StateFile), data, 0644)
}

// SetFileData stores one file's fingerprints after a successful run.
func (s *State) SetFileData(rel, language, fingerprint string, nodes map[string]string) {
	s.Files[rel] = FileState{
		Fingerprint: fingerprint,
		Language:    language,
		Nodes:       nodes,
		UpdatedAt:   time.Now(),
	}
}

// NodeFingerprint returns the previous run's fingerprint for a node.
func (s *State) NodeFingerprint(rel, qualifiedName string) (string, bool) {
	fs, ok := s.Files[rel]
	if !ok {
		return "", false
	}
	fp, ok := fs.Nodes[qualifiedName]
	return fp, ok
}

// HasChanged returns true if the file fingerprint differs from stored.
func (s *State) HasChanged(rel, currentFingerprint string) bool {
	fs, ok := s.Files[rel]
	if !ok {
		return true // new file
	}
	return fs.Fingerprint != currentFingerprint
}

// ChangedFiles returns files that are new or modified per current
// fingerprints.
func (s *State) ChangedFiles(current map[string]string) []string {
	changed := make([]string, 0)
	for rel, fp := range current {
		if s.HasChanged(rel, fp) {
			changed = append(changed, rel)
		}
	}
	return changed
}

// DeletedFiles returns tracked files that no longer exist.
func (s *State) DeletedFiles(current map[string]bool) []string {
	deleted := make([]string, 0)
	for rel := range s.Files {
		if !current[rel] {
			deleted = append(deleted, rel)
		}
	}
	return deleted
}

// RemoveFile drops a file from tracking.
func (s *State) RemoveFile(rel string) {
	delete(s.Files, rel)
}
