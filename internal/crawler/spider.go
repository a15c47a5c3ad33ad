package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/spider/internal/model"
)

// DefaultConcurrency is the number of pages fetched in parallel.
const DefaultConcurrency = 4

// DefaultMaxRedirects is the redirect hop limit per URL.
const DefaultMaxRedirects = 10

// Spider walks a site breadth-first within a scope.
//
// Design decision: URLs are popped in batches of up to concurrency entries,
// fetched in parallel, and their results are applied in pop order. The
// network work runs concurrently, but the order in which pages are yielded
// and children are enqueued depends only on the site, so two crawls of an
// unchanged site produce the same result.
type Spider struct {
	fetcher      *Fetcher
	parser       *Parser
	sink         model.ErrorSink
	logger       *slog.Logger
	concurrency  int
	maxPages     int
	maxRedirects int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithConcurrency sets how many pages are fetched in parallel.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxPages caps the number of yielded pages. 0 means no cap.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		if n >= 0 {
			s.maxPages = n
		}
	}
}

// WithMaxRedirects sets the redirect hop limit per URL.
func WithMaxRedirects(n int) SpiderOption {
	return func(s *Spider) {
		if n >= 0 {
			s.maxRedirects = n
		}
	}
}

// WithErrorSink sets where per-URL failures are recorded.
func WithErrorSink(sink model.ErrorSink) SpiderOption {
	return func(s *Spider) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider that fetches pages with fetcher.
func NewSpider(fetcher *Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:      fetcher,
		parser:       NewParser(),
		sink:         model.MultiSink{},
		logger:       slog.Default(),
		concurrency:  DefaultConcurrency,
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CrawlResult is the output of Spider.Crawl.
type CrawlResult struct {
	// Pages are the yielded pages in traversal order.
	Pages []*model.Page

	// Fetched is the number of URLs requested, redirect targets included.
	Fetched int
}

// visitResult is what one worker reports back for a popped URL.
type visitResult struct {
	page     *model.Page
	children []string
	claimed  []model.CanonicalURL
}

// Crawl discovers the pages of scope.
//
// With MaxDepth 0 the seed is returned without being fetched. Otherwise
// pages are fetched breadth-first; a URL is marked visited after its fetch
// and before its children are enqueued. Per-URL failures are recorded to
// the error sink and never stop the crawl.
//
// When ctx is done no further URLs are popped. Requests already in flight
// are not cancelled; they finish or hit the client timeout. The pages
// found so far are returned together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, scope model.Scope) (*CrawlResult, error) {
	result := &CrawlResult{Pages: make([]*model.Page, 0)}

	if scope.MaxDepth == 0 {
		result.Pages = append(result.Pages, &model.Page{URL: scope.Base})
		return result, nil
	}

	frontier := NewFrontier(scope)
	fetchCtx := context.WithoutCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("crawl stopped early", "seed", scope.Base.String(), "pages", len(result.Pages), "error", err)
			result.Fetched = frontier.VisitedCount()
			return result, err
		}

		n := s.concurrency
		if s.maxPages > 0 {
			remaining := s.maxPages - len(result.Pages)
			if remaining <= 0 {
				s.logger.Info("page limit reached", "seed", scope.Base.String(), "limit", s.maxPages)
				break
			}
			n = min(n, remaining)
		}

		batch := frontier.Pop(n)
		if len(batch) == 0 {
			break
		}

		visits := make([]visitResult, len(batch))
		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for i, u := range batch {
			g.Go(func() error {
				visits[i] = s.visit(fetchCtx, scope, frontier, u)
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // visit reports failures to the sink

		for i, v := range visits {
			frontier.Done(batch[i])
			frontier.Done(v.claimed...)
			if v.page == nil {
				continue
			}
			result.Pages = append(result.Pages, v.page)
			for _, ref := range v.children {
				frontier.Push(model.Canonicalize(v.page.URL, ref))
			}
		}
	}

	result.Fetched = frontier.VisitedCount()
	s.logger.Debug("crawl finished", "seed", scope.Base.String(), "pages", len(result.Pages), "fetched", result.Fetched)
	return result, nil
}

// visit fetches start, following in-scope redirects that the frontier
// has not seen yet.
func (s *Spider) visit(ctx context.Context, scope model.Scope, frontier *Frontier, start model.CanonicalURL) visitResult {
	var res visitResult
	current := start
	from := make([]model.CanonicalURL, 0)
	sameKeyRetried := false

	for hops := 0; ; hops++ {
		out := s.fetcher.Fetch(ctx, current)

		switch out.Kind {
		case model.FetchRedirect:
			if hops >= s.maxRedirects {
				s.record(current, model.ErrRedirectLimit, fmt.Errorf("more than %d redirects", s.maxRedirects))
				return res
			}

			target := model.Canonicalize(current, out.Target)
			if !scope.InScope(target) {
				s.record(current, model.ErrOutOfScopeRedirect, fmt.Errorf("to %s", target.RequestString()))
				return res
			}

			// "/dir" -> "/dir/" keeps the identity but changes the request.
			if target.Equal(current) {
				if sameKeyRetried || target.RequestString() == current.RequestString() {
					s.record(current, model.ErrRedirectLimit, fmt.Errorf("redirect loop to %s", target.RequestString()))
					return res
				}
				sameKeyRetried = true
				current = target
				continue
			}

			// A known target is crawled on its own, so dropping the
			// redirect loses nothing and is not a failure.
			if !frontier.Claim(target) {
				s.logger.Debug("redirect target already known", "url", current.String(), "target", target.String())
				return res
			}
			res.claimed = append(res.claimed, target)
			from = append(from, current)
			current = target

		case model.FetchHTML, model.FetchNonHTML:
			page := &model.Page{
				URL:         current,
				StatusCode:  out.StatusCode,
				ContentType: out.ContentType,
			}
			if len(from) > 0 {
				page.RedirectedFrom = from
			}
			if out.Kind == model.FetchNonHTML {
				s.sink.Record(current.String(), out.Err)
				s.logger.Debug("page not parsed", "url", current.String(), "error", out.Err)
				res.page = page
				return res
			}

			parsed, err := s.parser.Parse(bytes.NewReader(out.Body))
			if err != nil {
				s.record(current, model.ErrNotHTMLBody, err)
				res.page = page
				return res
			}
			page.Title = parsed.Title
			page.Links = parsed.All()
			page.Parsed = true
			page.ComputeHash(out.Body)
			res.page = page
			res.children = parsed.Links
			return res

		default:
			s.sink.Record(current.String(), out.Err)
			s.logger.Debug("fetch failed", "url", current.String(), "error", out.Err)
			return res
		}
	}
}

// record reports a failure for u.
func (s *Spider) record(u model.CanonicalURL, kind, cause error) {
	err := model.NewCrawlError(u.String(), kind, cause)
	s.sink.Record(u.String(), err)
	s.logger.Debug("crawl error", "url", u.String(), "error", err)
}
