// Package rat holds module-level metadata for the rat differential
// testing harness.
package rat

// Version is the rat release version.
const Version = "0.2.0"
