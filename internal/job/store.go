// Package job orchestrates deck generation requests: parameter
// validation, the build/select/layout/render pipeline, progress
// fan-out, and on-disk job records.
package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status of a generation job.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Params are the caller-supplied generation parameters.
type Params struct {
	SymbolsPerCard int    `json:"symbols_per_card"`
	Cards          int    `json:"cards"` // 0 means the maximal deck
	IconSet        string `json:"icon_set"`
	Strategy       string `json:"strategy"`
	CardShape      string `json:"card_shape"`
	Seed           int64  `json:"seed"` // 0 means pick one
	ExportPNG      bool   `json:"export_png"`
	RoundDown      bool   `json:"round_down"` // allow non-prime-power orders to round down
}

// Job is one generation request and its outcome.
type Job struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Params    Params    `json:"params"`
	Seed      int64     `json:"seed"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`

	Cards          int      `json:"cards"`
	SymbolsPerCard int      `json:"symbols_per_card"`
	SymbolsUsed    int      `json:"symbols_used"`
	PDFPath        string   `json:"pdf_path,omitempty"`
	PNGPaths       []string `json:"png_paths,omitempty"`
}

// Store keeps job records in memory and mirrors them as JSON files in
// the exports directory, so records survive restarts.
type Store struct {
	dir string

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewStore opens (and creates if needed) the exports directory and
// loads any existing job records.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("job: creating exports dir: %w", err)
	}
	s := &Store{dir: dir, jobs: make(map[string]*Job)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var j Job
		if json.Unmarshal(data, &j) == nil && j.ID != "" {
			s.jobs[j.ID] = &j
		}
	}
	return s, nil
}

// Dir returns the exports directory.
func (s *Store) Dir() string { return s.dir }

// Put stores and persists a job record.
func (s *Store) Put(j *Job) error {
	s.mu.Lock()
	cp := *j
	s.jobs[j.ID] = &cp
	s.mu.Unlock()

	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, j.ID+".json"), data, 0o644)
}

// Get returns a copy of the job record.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Recent returns up to limit job records, newest first.
func (s *Store) Recent(limit int) []Job {
	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Delete removes a job record and its exported files.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job: no job %s", id)
	}

	paths := append([]string{filepath.Join(s.dir, id+".json")}, j.PNGPaths...)
	if j.PDFPath != "" {
		paths = append(paths, j.PDFPath)
	}
	for _, p := range paths {
		// Exported paths always live under the store directory.
		if err := os.Remove(filepath.Join(s.dir, filepath.Base(p))); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
