package model

import (
	"fmt"
	"slices"
	"time"
)

// Report is the structured result of one completed pipeline run.
//
// Counts and Artifacts always carry the same set of keys: a kind that was
// measured appears in both with Counts[k] == len(Artifacts[k]), and a kind
// whose file was missing or unreadable appears in neither. A missing key
// means "not measured", which is different from a measured zero.
//
// Use SetArtifact to populate a Report so the invariant holds.
type Report struct {
	// Domain is the scanned target.
	Domain Domain `json:"domain"`

	// ScannedAt is when parsing of the results finished.
	ScannedAt time.Time `json:"scanned_at"`

	// Counts holds the number of lines per measured artifact kind.
	Counts map[ArtifactKind]int `json:"counts"`

	// Artifacts holds the non-empty, trimmed lines per measured artifact
	// kind, in file order.
	Artifacts map[ArtifactKind][]string `json:"artifacts"`
}

// NewReport creates an empty Report for domain with no kinds measured.
func NewReport(domain Domain) *Report {
	return &Report{
		Domain:    domain,
		ScannedAt: time.Now(),
		Counts:    make(map[ArtifactKind]int),
		Artifacts: make(map[ArtifactKind][]string),
	}
}

// SetArtifact records lines as the measured content of kind.
// A nil slice is stored as an empty, measured artifact.
func (r *Report) SetArtifact(kind ArtifactKind, lines []string) {
	if lines == nil {
		lines = []string{}
	}
	r.Artifacts[kind] = lines
	r.Counts[kind] = len(lines)
}

// Measured reports whether kind was present in the results.
func (r *Report) Measured(kind ArtifactKind) bool {
	_, ok := r.Counts[kind]
	return ok
}

// Count returns the line count for kind and whether it was measured.
func (r *Report) Count(kind ArtifactKind) (int, bool) {
	n, ok := r.Counts[kind]
	return n, ok
}

// Lines returns a copy of the lines recorded for kind and whether it was
// measured.
func (r *Report) Lines(kind ArtifactKind) ([]string, bool) {
	lines, ok := r.Artifacts[kind]
	if !ok {
		return nil, false
	}
	return slices.Clone(lines), true
}

// Clone returns a deep copy of r.
func (r *Report) Clone() *Report {
	c := &Report{
		Domain:    r.Domain,
		ScannedAt: r.ScannedAt,
		Counts:    make(map[ArtifactKind]int, len(r.Counts)),
		Artifacts: make(map[ArtifactKind][]string, len(r.Artifacts)),
	}
	for kind, n := range r.Counts {
		c.Counts[kind] = n
	}
	for kind, lines := range r.Artifacts {
		c.Artifacts[kind] = slices.Clone(lines)
	}
	return c
}

// Vulnerable reports whether at least one vulnerable URL was found.
func (r *Report) Vulnerable() bool {
	return r.Counts[VulnerableURLs] > 0
}

// Validate checks the counts/artifacts invariant.
// Reports decoded from storage are validated before being handed out.
func (r *Report) Validate() error {
	if len(r.Counts) != len(r.Artifacts) {
		return fmt.Errorf("report for %s: %d counts but %d artifacts", r.Domain, len(r.Counts), len(r.Artifacts))
	}
	for kind, n := range r.Counts {
		lines, ok := r.Artifacts[kind]
		if !ok {
			return fmt.Errorf("report for %s: count for %s without artifact", r.Domain, kind)
		}
		if n != len(lines) {
			return fmt.Errorf("report for %s: count %d for %s but %d lines", r.Domain, n, kind, len(lines))
		}
	}
	return nil
}

// Summary returns the summary view of the report.
func (r *Report) Summary() Summary {
	counts := make(map[ArtifactKind]int, len(r.Counts))
	for kind, n := range r.Counts {
		counts[kind] = n
	}
	return Summary{
		Domain:     r.Domain,
		ScannedAt:  r.ScannedAt,
		Counts:     counts,
		Vulnerable: r.Vulnerable(),
	}
}

// Summary is the compact view of a Report: the five counts and an overall
// verdict. Kinds that were not measured are absent from Counts.
type Summary struct {
	Domain     Domain               `json:"domain"`
	ScannedAt  time.Time            `json:"scanned_at"`
	Counts     map[ArtifactKind]int `json:"counts"`
	Vulnerable bool                 `json:"vulnerable"`
}

// Count returns the count for kind and whether it was measured.
func (s Summary) Count(kind ArtifactKind) (int, bool) {
	n, ok := s.Counts[kind]
	return n, ok
}
