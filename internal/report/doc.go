// Package report renders crawl reports.
//
// Three formats implement Writer:
//   - SimpleWriter: text for the terminal, optionally colored
//   - JSONWriter / FullJSONWriter: JSON for other tools
//   - MarkdownWriter: GitHub Flavored Markdown with tables and a mermaid chart
//
// Console prints live progress while a crawl runs.
//
// Design decision: rendering lives apart from model.CrawlReport so new
// formats never touch the stored history format.
package report
