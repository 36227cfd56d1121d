// Package parser turns a pipeline results directory into a model.Report.
//
// The pipeline writes up to five plain-text files into results/<domain>/,
// one URL or hostname per line. Each file that is present becomes a measured
// artifact kind in the report; a missing or unreadable file leaves its kind
// unmeasured rather than failing the whole parse. Only a missing results
// directory is a hard failure.
//
// Files are decoded permissively: byte sequences that are not valid UTF-8 are
// dropped, lines are trimmed and empty lines discarded.
package parser
