// Package report renders search results, quota snapshots and search
// comparisons.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown with a mermaid chart of matches per domain
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed with MultiWriter for multi-format output.
package report
