package crawler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/spider/internal/model"
)

// Scrape fetches and parses the pages that Crawl yielded without fetching,
// which is the seed of a depth-0 crawl, so that their references can be
// matched against the resource extensions.
//
// Pages that were already fetched are left alone. A scraped page follows
// in-scope redirects like a crawled one and takes the final URL. Failures
// are recorded to the error sink and leave the page unparsed.
// It returns the number of pages that were parsed.
func (s *Spider) Scrape(ctx context.Context, scope model.Scope, pages []*model.Page) int {
	todo := make([]*model.Page, 0, len(pages))
	for _, p := range pages {
		if p != nil && !p.Parsed && p.StatusCode == 0 {
			todo = append(todo, p)
		}
	}
	if len(todo) == 0 {
		return 0
	}

	frontier := NewFrontier(scope)
	frontier.Pop(1)
	fetchCtx := context.WithoutCancel(ctx)

	parsed := make([]bool, len(todo))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, p := range todo {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			v := s.visit(fetchCtx, scope, frontier, p.URL)
			if v.page == nil {
				return nil
			}
			*p = *v.page
			parsed[i] = p.Parsed
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // visit reports failures to the sink

	n := 0
	for _, ok := range parsed {
		if ok {
			n++
		}
	}
	return n
}
