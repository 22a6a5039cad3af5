// Package model defines the data structures shared by the tineye command.
//
// This package contains the following main types:
//   - SearchReport: one search with its matches and local findings
//   - UsageReport: a snapshot of the remaining search quota
//   - Comparison: the difference between two searches for the same image
//   - Finding and Severity: privacy observations about an image
//
// The API response types themselves live in the tineye package; the types
// here add what only the command needs (history IDs, findings, timing).
package model
