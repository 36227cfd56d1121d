package model

import (
	"strconv"
	"time"
)

// Change directions for a Delta.
const (
	DirectionWorsened  = "worsened"
	DirectionImproved  = "improved"
	DirectionUnchanged = "unchanged"
)

// Delta describes how a new report for an (identity, domain) pair differs
// from the one it replaced in the cache.
type Delta struct {
	// Domain is the target both reports describe.
	Domain Domain `json:"domain"`

	// PreviousScan is when the replaced report was produced.
	PreviousScan time.Time `json:"previous_scan"`

	// CountDeltas is current minus previous for kinds measured in both.
	CountDeltas map[ArtifactKind]int `json:"count_deltas"`

	// NewVulnerable lists vulnerable URLs absent from the previous report.
	NewVulnerable []string `json:"new_vulnerable,omitempty"`

	// ResolvedVulnerable lists vulnerable URLs that no longer appear.
	ResolvedVulnerable []string `json:"resolved_vulnerable,omitempty"`

	// Direction is worsened, improved or unchanged, judged on the
	// vulnerable URL count.
	Direction string `json:"direction"`
}

// Diff compares previous and current. It returns nil when previous is nil.
func Diff(previous, current *Report) *Delta {
	if previous == nil || current == nil {
		return nil
	}

	delta := &Delta{
		Domain:       current.Domain,
		PreviousScan: previous.ScannedAt,
		CountDeltas:  make(map[ArtifactKind]int),
	}

	for _, kind := range AllArtifactKinds() {
		prev, okPrev := previous.Counts[kind]
		cur, okCur := current.Counts[kind]
		if okPrev && okCur {
			delta.CountDeltas[kind] = cur - prev
		}
	}

	previousVulns := make(map[string]struct{})
	for _, url := range previous.Artifacts[VulnerableURLs] {
		previousVulns[url] = struct{}{}
	}
	currentVulns := make(map[string]struct{})
	for _, url := range current.Artifacts[VulnerableURLs] {
		currentVulns[url] = struct{}{}
		if _, seen := previousVulns[url]; !seen {
			delta.NewVulnerable = append(delta.NewVulnerable, url)
		}
	}
	for _, url := range previous.Artifacts[VulnerableURLs] {
		if _, still := currentVulns[url]; !still {
			delta.ResolvedVulnerable = append(delta.ResolvedVulnerable, url)
		}
	}

	prevVulns := previous.Counts[VulnerableURLs]
	curVulns := current.Counts[VulnerableURLs]
	switch {
	case curVulns > prevVulns || len(delta.NewVulnerable) > 0:
		delta.Direction = DirectionWorsened
	case curVulns < prevVulns:
		delta.Direction = DirectionImproved
	default:
		delta.Direction = DirectionUnchanged
	}

	return delta
}

// HasChanges reports whether any count or vulnerable URL changed.
func (d *Delta) HasChanges() bool {
	if d == nil {
		return false
	}
	if len(d.NewVulnerable) > 0 || len(d.ResolvedVulnerable) > 0 {
		return true
	}
	for _, n := range d.CountDeltas {
		if n != 0 {
			return true
		}
	}
	return false
}

// FormatDelta renders a signed count change, e.g. "+3", "-1" or "0".
func FormatDelta(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
