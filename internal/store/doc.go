// Package store caches the latest report per requester and domain.
//
// A Store keeps exactly one report per (identity, domain) key: a new scan of
// the same domain by the same requester replaces the previous report, and
// nothing outlives the process. Two backends implement the same interface:
//   - MemoryStore keeps reports in a sync.Map.
//   - SQLiteStore keeps them in an in-memory SQLite database
//     (modernc.org/sqlite, CGO-free) as JSON documents.
//
// Stores hand out copies, so callers may modify returned reports freely.
package store
