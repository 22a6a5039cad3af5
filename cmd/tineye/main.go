// Package main provides the entry point for the tineye CLI.
//
// tineye searches the TinEye index for copies of an image, either by URL or
// by uploading a local file, and keeps a local history so repeated searches
// can be compared.
//
// Usage:
//
//	tineye search <image-url>...
//	tineye upload <file>...
//	tineye remaining
//
// See --help for all available options.
package main

// main is the entry point for tineye.
func main() {
	Execute()
}
