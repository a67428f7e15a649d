// Package aggregator owns the single release record of a run: it collects
// artifacts from concurrently completing channels, uploads their files to
// the external release object, and renders the final report.
package aggregator

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vk/shipgrid/internal/release"
)

// ErrMissingArchive gates downstream consumers of the source archive: the
// tap update must not run when the archive channel failed.
var ErrMissingArchive = errors.New("archive artifact missing from release record")

// Aggregator serializes access to the run's release record.
type Aggregator struct {
	record *release.Record
}

// New creates an aggregator around a fresh record for the given release.
func New(tag, commit string) *Aggregator {
	return &Aggregator{record: release.NewRecord(tag, commit)}
}

// Attach appends one artifact. Safe to call concurrently from multiple
// channels; the record serializes writers internally.
func (a *Aggregator) Attach(artifact release.Artifact) {
	a.record.Attach(artifact)
}

// Finalize marks the record terminal and returns it. Idempotent; callers
// invoke it once all channels have reported, successes and failures alike.
func (a *Aggregator) Finalize() *release.Record {
	return a.record.Finalize()
}

// ArchiveChecksum returns the checksum of the attached source archive, or
// ErrMissingArchive when the archive channel did not deliver one.
func (a *Aggregator) ArchiveChecksum() (string, error) {
	for _, artifact := range a.record.Snapshot() {
		if artifact.Kind == release.KindArchive && artifact.Checksum != "" {
			return artifact.Checksum, nil
		}
	}
	return "", ErrMissingArchive
}

// WriteReport renders the finalized record as YAML at path.
func (a *Aggregator) WriteReport(path string) error {
	record := a.record.Finalize()
	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshalling release report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing release report: %w", err)
	}
	return nil
}
