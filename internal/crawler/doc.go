// Package crawler discovers the pages of a website within a crawl scope.
//
// # Components
//
//   - Fetcher: one GET per call, classified into a model.FetchOutcome.
//     Redirects are returned, never followed.
//   - Parser: collects the raw href/src references of a page.
//   - Frontier: pending, in-flight and visited URLs behind one mutex.
//   - Spider: the breadth-first driver. It pops URLs from the Frontier,
//     fetches them on a bounded worker pool, follows in-scope redirects
//     and enqueues the links of every HTML page.
//
// # Usage
//
//	fetcher := crawler.NewFetcher(httpClient)
//	spider := crawler.NewSpider(fetcher, crawler.WithConcurrency(4))
//	result, err := spider.Crawl(ctx, scope)
//
// Crawl never fails because of a single URL. Failures are classified with
// the sentinel errors of the model package and handed to the configured
// model.ErrorSink.
package crawler
