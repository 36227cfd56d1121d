// Package metrics exposes scan and bot activity to Prometheus.
//
// A Recorder owns a private registry, so several recorders can coexist in
// one process (tests do this). Server serves the registry over HTTP.
package metrics
