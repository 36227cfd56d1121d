// Package model defines the core data structures shared by the scan engine.
//
// This package contains the following main types:
//   - Domain: a normalized scan target produced by NormalizeDomain
//   - ScanRequest: one submitted scan, keyed by the requesting Identity
//   - Report: per-artifact counts and line lists parsed from a pipeline run
//   - Failure: the single tagged error value every failed scan resolves to
//
// Models live in their own package so that the invoker, parser, orchestrator,
// store and transport packages can share them without import cycles.
//
// Reports are serializable to JSON for the CLI output and the sqlite store.
package model
