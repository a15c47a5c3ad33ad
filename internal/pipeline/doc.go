// Package pipeline runs the stages of crawling one seed in sequence:
//
//  1. crawl: breadth-first discovery of in-scope pages
//  2. scrape: fetching the seed of a depth-0 crawl and matching resources
//  3. download: saving matched resources without overwriting files
//  4. persist: storing the report in the crawl history (optional)
//
// Every stage reads and extends one model.CrawlReport. BatchProcessor runs
// one pipeline per seed with bounded concurrency using errgroup.
//
// Design decision: a pipeline of steps instead of direct calls keeps error
// handling, logging and progress output in one place, and lets tests run
// any subset of the stages.
package pipeline
