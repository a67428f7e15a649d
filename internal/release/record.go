package release

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is the single release record a run aggregates onto. It is created
// once per invocation and mutated additively by each completing channel.
// Attach calls are serialized internally so that concurrent channel
// completion never loses an artifact.
type Record struct {
	ID        string    `yaml:"id"`
	Tag       string    `yaml:"tag"`
	Commit    string    `yaml:"commit"`
	CreatedAt time.Time `yaml:"created_at"`

	mu        sync.Mutex
	finalized bool
	Artifacts []Artifact `yaml:"artifacts"`
}

// NewRecord creates the release record for one run, keyed by the release tag.
func NewRecord(tag, commit string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Tag:       tag,
		Commit:    commit,
		CreatedAt: time.Now().UTC(),
	}
}

// Attach appends an artifact to the record. Safe for concurrent use; the
// artifact list is append-only.
func (r *Record) Attach(a Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Artifacts = append(r.Artifacts, a)
}

// Finalize marks the record complete. Idempotent; partial completion (some
// channels failed) is still a valid terminal state.
func (r *Record) Finalize() *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = true
	return r
}

// Snapshot returns a copy of the attached artifacts.
func (r *Record) Snapshot() []Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Artifact, len(r.Artifacts))
	copy(out, r.Artifacts)
	return out
}
