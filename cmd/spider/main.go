// Package main provides the entry point for the spider CLI.
//
// spider crawls a website within a scope, collects links to files with
// the wanted extensions and downloads them.
//
// Usage:
//
//	spider [-r] [-l N] [-p PATH] URL...
//	spider crawl [-r] [-l N] [-p PATH] URL...
//	spider history [URL]
//	spider metadata FILE...
//
// See --help for all available options.
package main

func main() {
	Execute()
}
