// Package database stores spider's crawl history in SQLite.
//
// Three tables are kept:
//   - pages: the latest status, title and body hash of every crawled URL per seed
//   - downloads: every download attempt, linked to its report
//   - crawl_reports: each complete run as JSON plus a count summary
//
// Design decision: SQLite through modernc.org/sqlite keeps the history a
// single CGO-free file, and WAL mode lets history be read during a crawl.
package database
