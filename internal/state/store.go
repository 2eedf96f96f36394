// Package state persists the shared project record: goals, requirements,
// the architecture plan, per-file build status, the construction checkpoint
// and the bounded event/message logs. The store loads once at start and
// saves after every mutation (last writer wins).
package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStatus tracks how far a file has progressed through construction.
type FileStatus string

const (
	// StatusBuilt means the engineer produced the file but the audit did
	// not pass it.
	StatusBuilt FileStatus = "BUILT"
	// StatusPerfected means the file passed its audit.
	StatusPerfected FileStatus = "PERFECTED"
	// StatusStale means a file this one depends on changed after it was
	// built; it needs rework.
	StatusStale FileStatus = "STALE"
)

// FileRecord is the per-file status entry.
type FileRecord struct {
	Status    FileStatus `json:"status"`
	LastAudit string     `json:"last_audit,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Checkpoint marks the last successfully completed construction step.
// Resuming never re-enters a phase index lower than LastPhaseIndex.
type Checkpoint struct {
	LastPhaseIndex int       `json:"last_phase_index"`
	LastFilePath   string    `json:"last_file_path"`
	Timestamp      time.Time `json:"timestamp"`
}

// Bug is one QA finding recorded during verification.
type Bug struct {
	File        string    `json:"file,omitempty"`
	Description string    `json:"description"`
	ReportedAt  time.Time `json:"reported_at"`
}

// Event is one bounded-log progress entry.
type Event struct {
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Message is one entry of the shared agent message log (post_message tool).
type Message struct {
	From string    `json:"from"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

const (
	maxEvents   = 50
	maxMessages = 20
)

// Project is the full persisted record.
type Project struct {
	ID           string                 `json:"id"`
	Goals        string                 `json:"goals,omitempty"`
	Requirements string                 `json:"requirements,omitempty"`
	Plan         json.RawMessage        `json:"plan,omitempty"`
	Files        map[string]*FileRecord `json:"files"`
	Checkpoint   *Checkpoint            `json:"checkpoint,omitempty"`
	Bugs         []Bug                  `json:"bugs,omitempty"`
	Events       []Event                `json:"events,omitempty"`
	Messages     []Message              `json:"messages,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Store handles persistence of the project record.
type Store struct {
	mu      sync.Mutex
	path    string
	project *Project
}

// NewStore creates a store rooted at the project directory. The record
// lives in <root>/.foreman/project.json.
func NewStore(root string) *Store {
	return &Store{path: filepath.Join(root, ".foreman", "project.json")}
}

// Load reads the record from disk. A missing or corrupt file falls back to
// an empty default and re-initializes the store on the next save.
func (s *Store) Load() *Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.project = newProject()
		return s.project
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" {
		log.Printf("WARNING: project state at %s is unreadable, starting fresh: %v", s.path, err)
		s.project = newProject()
		return s.project
	}
	if p.Files == nil {
		p.Files = make(map[string]*FileRecord)
	}
	s.project = &p
	return s.project
}

// Exists reports whether a project record is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func newProject() *Project {
	now := time.Now()
	return &Project{
		ID:        uuid.NewString(),
		Files:     make(map[string]*FileRecord),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Store) save() error {
	s.project.UpdatedAt = time.Now()
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(s.project, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write project state: %w", err)
	}
	return nil
}

// mutate applies fn under the lock and persists immediately.
func (s *Store) mutate(fn func(*Project)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project == nil {
		s.project = newProject()
	}
	fn(s.project)
	return s.save()
}

// SetGoals records the project goals/description.
func (s *Store) SetGoals(goals string) error {
	return s.mutate(func(p *Project) { p.Goals = goals })
}

// SetRequirements records the requirements agent's output.
func (s *Store) SetRequirements(text string) error {
	return s.mutate(func(p *Project) { p.Requirements = text })
}

// SetPlan records the architecture plan as raw JSON.
func (s *Store) SetPlan(plan json.RawMessage) error {
	return s.mutate(func(p *Project) { p.Plan = plan })
}

// SetFileStatus upserts the status record for a file.
func (s *Store) SetFileStatus(path string, status FileStatus, audit string) error {
	return s.mutate(func(p *Project) {
		p.Files[path] = &FileRecord{
			Status:    status,
			LastAudit: audit,
			UpdatedAt: time.Now(),
		}
	})
}

// MarkStale downgrades a file to STALE, preserving its audit text.
// Files without a record are ignored.
func (s *Store) MarkStale(path string) error {
	return s.mutate(func(p *Project) {
		rec, ok := p.Files[path]
		if !ok {
			return
		}
		rec.Status = StatusStale
		rec.UpdatedAt = time.Now()
	})
}

// SetCheckpoint persists the construction checkpoint.
func (s *Store) SetCheckpoint(phaseIndex int, filePath string) error {
	return s.mutate(func(p *Project) {
		p.Checkpoint = &Checkpoint{
			LastPhaseIndex: phaseIndex,
			LastFilePath:   filePath,
			Timestamp:      time.Now(),
		}
	})
}

// AddBug appends a QA finding.
func (s *Store) AddBug(file, description string) error {
	return s.mutate(func(p *Project) {
		p.Bugs = append(p.Bugs, Bug{File: file, Description: description, ReportedAt: time.Now()})
	})
}

// RecordEvent appends to the bounded event log, evicting the oldest
// entries past the cap.
func (s *Store) RecordEvent(kind, detail string) error {
	return s.mutate(func(p *Project) {
		p.Events = append(p.Events, Event{Kind: kind, Detail: detail, At: time.Now()})
		if n := len(p.Events); n > maxEvents {
			p.Events = p.Events[n-maxEvents:]
		}
	})
}

// PostMessage appends to the bounded shared message log.
func (s *Store) PostMessage(from, text string) error {
	return s.mutate(func(p *Project) {
		p.Messages = append(p.Messages, Message{From: from, Text: text, At: time.Now()})
		if n := len(p.Messages); n > maxMessages {
			p.Messages = p.Messages[n-maxMessages:]
		}
	})
}

// Snapshot returns a read-only view of the current record. The caller must
// not mutate it.
func (s *Store) Snapshot() *Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project == nil {
		s.project = newProject()
	}
	return s.project
}

// FileRecordFor returns a copy of the record for path, or nil if untracked.
// Handing out the stored pointer would let callers read it while MarkStale
// mutates the entry under the lock.
func (s *Store) FileRecordFor(path string) *FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project == nil {
		return nil
	}
	rec, ok := s.project.Files[path]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}
