// Package main provides the entry point for the phishguard CLI.
//
// phishguard estimates how likely a web page is to be a phishing page. It
// combines URL heuristics, page content heuristics, third-party reputation
// lookups and a classifier into one score with an explainable report.
//
// Usage:
//
//	phishguard scan <url>
//	phishguard scan --list <file>
//	phishguard serve
//
// See --help for all available options.
package main

// main is the entry point for phishguard.
func main() {
	Execute()
}
