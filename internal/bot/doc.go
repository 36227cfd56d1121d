// Package bot is the Telegram front-end for the scan orchestrator.
//
// Users send a domain, either as plain text or with /scan, and receive a
// status message that is edited in place while the pipeline runs, followed
// by a summary with buttons to drill into the vulnerable URLs, the tested
// URLs and detailed statistics. Cached reports can be queried again with
// /vulns, /tested, /stats and exported with /export.
//
// Each update is handled on its own goroutine. A user may run one scan at
// a time and is rate limited across scans.
package bot
