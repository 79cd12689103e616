// Package features extracts the numeric feature vector of a page.
//
// Every feature is encoded in [-1, 1] where 1 is risky, -1 is benign and
// 0 is unknown or borderline. The vector layout is:
//
//	[0, 9)        URL features (ExtractURL)
//	[9, len-1)    content features (ExtractContent)
//	len-1         reputation signal (Assemble)
//
// The package also normalizes URLs into the cache keys used across
// phishguard.
package features
