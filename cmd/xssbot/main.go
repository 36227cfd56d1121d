// Package main provides the entry point for the xssbot CLI.
//
// xssbot runs an external XSS automation pipeline against a domain and turns
// its result files into a report. It serves the scans to Telegram users and
// runs them locally from the command line.
//
// Usage:
//
//	xssbot serve
//	xssbot scan <domain>...
//	xssbot init
//
// See --help for all available options.
package main

// main is the entry point for xssbot.
func main() {
	Execute()
}
