package model

import "fmt"

// ArtifactKind identifies one of the five output files the pipeline writes
// into a domain's results directory.
//
// The string values double as stable identifiers in JSON output, the sqlite
// store and the bot's drill-down commands.
type ArtifactKind string

const (
	// HarvestedURLs are URLs collected from web archives.
	HarvestedURLs ArtifactKind = "harvested_urls"

	// Subdomains are discovered subdomains of the target.
	Subdomains ArtifactKind = "subdomains"

	// LiveURLs are harvested URLs that answered a liveness check.
	LiveURLs ArtifactKind = "live_urls"

	// TestableURLs are live URLs with parameters suitable for XSS testing.
	TestableURLs ArtifactKind = "testable_urls"

	// VulnerableURLs are URLs the XSS tester confirmed as vulnerable.
	VulnerableURLs ArtifactKind = "vulnerable_urls"
)

// artifactFiles maps each kind to the file name the pipeline writes.
var artifactFiles = map[ArtifactKind]string{
	HarvestedURLs:  "wayback.txt",
	Subdomains:     "subdomains.txt",
	LiveURLs:       "live_uro1.txt",
	TestableURLs:   "xss_ready.txt",
	VulnerableURLs: "Vulnerable_XSS.txt",
}

// artifactLabels are the human-readable names used in summaries.
var artifactLabels = map[ArtifactKind]string{
	HarvestedURLs:  "Archived URLs",
	Subdomains:     "Subdomains",
	LiveURLs:       "Live URLs",
	TestableURLs:   "XSS-testable URLs",
	VulnerableURLs: "Vulnerable URLs",
}

// AllArtifactKinds returns the five kinds in pipeline order.
// A fresh slice is returned on every call.
func AllArtifactKinds() []ArtifactKind {
	return []ArtifactKind{
		HarvestedURLs,
		Subdomains,
		LiveURLs,
		TestableURLs,
		VulnerableURLs,
	}
}

// ParseArtifactKind converts an identifier such as "vulnerable_urls" into an
// ArtifactKind.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	kind := ArtifactKind(s)
	if _, ok := artifactFiles[kind]; !ok {
		return "", fmt.Errorf("unknown artifact kind %q", s)
	}
	return kind, nil
}

// Filename returns the file name the pipeline uses for this kind, or an
// empty string for an unknown kind.
func (k ArtifactKind) Filename() string {
	return artifactFiles[k]
}

// Label returns a human-readable name for this kind.
func (k ArtifactKind) Label() string {
	if label, ok := artifactLabels[k]; ok {
		return label
	}
	return string(k)
}

// String implements fmt.Stringer.
func (k ArtifactKind) String() string {
	return string(k)
}
