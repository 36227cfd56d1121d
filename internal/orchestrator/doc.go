// Package orchestrator drives one scan request from raw input to a cached
// report.
//
// A request moves through Received, Validating, Invoking, Parsing and ends
// in Completed or Failed. The work of each state is a Step; the
// Orchestrator runs the steps in order, reports progress to the caller's
// sink, and turns every error or panic into a *model.Failure on the
// returned Result.
//
// Scans of the same domain never overlap, since the pipeline writes to a
// results directory named after the domain. A global limit bounds how many
// pipelines run at once. BatchProcessor scans several domains concurrently
// on top of an Orchestrator.
package orchestrator
