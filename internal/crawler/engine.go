package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nao1215/onionharvest/internal/model"
	"github.com/nao1215/onionharvest/internal/parser"
	"golang.org/x/sync/errgroup"
)

// Engine orchestrates BFS crawling across one or more onion seed addresses.
//
// The fingerprint set, the global page counter, and the statistics are the
// only state shared between concurrent site crawls; all three are guarded
// by a single mutex. Everything else is local to one CrawlSite run.
type Engine struct {
	// provider supplies per-site transport sessions and identity rotation.
	provider FetchProvider

	// blacklist holds URL paths that are skipped without fetching.
	blacklist *parser.Blacklist

	// maxDepth limits how deep to follow links from each seed.
	// 0 means only the seed page itself.
	maxDepth int

	// maxPages caps accepted (non-duplicate) pages per site.
	maxPages int

	// delay is the politeness pause between consecutive requests.
	delay time.Duration

	// retryCount is the number of fetch attempts per address.
	retryCount int

	// backoffFactor scales the exponential sleep between failed attempts.
	backoffFactor float64

	// renewEvery triggers identity rotation after this many accepted
	// pages globally. 0 disables rotation.
	renewEvery int

	// maxWorkers bounds concurrent site crawls in CrawlAll.
	maxWorkers int

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// onPage, when set, is invoked synchronously with each accepted
	// result from whichever worker produced it. Implementations must be
	// safe for concurrent use when maxWorkers > 1.
	onPage func(*model.CrawlResult)

	logger *slog.Logger

	// sleep is swapped out in tests so backoff and politeness delays
	// can be observed without wall-clock waits.
	sleep func(ctx context.Context, d time.Duration) error

	// mu guards everything below.
	mu sync.Mutex

	// fingerprints is the run-wide content-fingerprint set. An entry is
	// added exactly once, on first occurrence of the content.
	fingerprints map[string]struct{}

	// pageCount counts accepted pages across all sites. Drives rotation.
	pageCount int

	// lastRenew remembers the counter value of the last rotation so one
	// threshold never fires twice.
	lastRenew int

	stats model.CrawlStats
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the maximum link-follow depth from each seed.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithMaxPages sets the per-site cap on accepted pages.
func WithMaxPages(pages int) Option {
	return func(e *Engine) {
		e.maxPages = pages
	}
}

// WithDelay sets the politeness delay between requests.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = d
	}
}

// WithRetryCount sets how many fetch attempts are made per address.
func WithRetryCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.retryCount = n
		}
	}
}

// WithBackoffFactor sets the multiplier for the exponential retry backoff.
// The sleep before retry n is factor * 2^(n-1) seconds.
func WithBackoffFactor(factor float64) Option {
	return func(e *Engine) {
		e.backoffFactor = factor
	}
}

// WithRenewInterval sets how many accepted pages pass between identity
// rotations. 0 disables rotation.
func WithRenewInterval(pages int) Option {
	return func(e *Engine) {
		e.renewEvery = pages
	}
}

// WithMaxWorkers bounds the number of concurrently crawled sites.
func WithMaxWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxWorkers = n
		}
	}
}

// WithBlacklist sets the path blacklist applied before fetching.
func WithBlacklist(bl *parser.Blacklist) Option {
	return func(e *Engine) {
		e.blacklist = bl
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) Option {
	return func(e *Engine) {
		if size > 0 {
			e.maxBodySize = size
		}
	}
}

// WithOnPage registers a callback invoked synchronously for every accepted
// page. When multiple sites are crawled concurrently the callback runs
// from different goroutines and must be safe for that.
func WithOnPage(fn func(*model.CrawlResult)) Option {
	return func(e *Engine) {
		e.onPage = fn
	}
}

// WithKnownFingerprints pre-seeds the run-wide fingerprint set, typically
// with digests persisted by earlier runs so resumed crawls also discard
// content that was collected before.
func WithKnownFingerprints(fingerprints map[string]struct{}) Option {
	return func(e *Engine) {
		for fp := range fingerprints {
			e.fingerprints[fp] = struct{}{}
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine that fetches through the given provider.
func NewEngine(provider FetchProvider, opts ...Option) *Engine {
	e := &Engine{
		provider:      provider,
		blacklist:     parser.NewBlacklist(nil),
		maxDepth:      2,
		maxPages:      20,
		delay:         7 * time.Second,
		retryCount:    3,
		backoffFactor: 4.0,
		renewEvery:    10,
		maxWorkers:    3,
		maxBodySize:   5 * 1024 * 1024, // 5MB
		fingerprints:  make(map[string]struct{}),
		stats:         model.NewCrawlStats(),
		sleep:         sleepContext,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Stats returns a snapshot of the aggregate counters.
func (e *Engine) Stats() model.CrawlStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// CrawlSite runs a breadth-first crawl of a single hidden service.
//
// known contains addresses collected in a previous run (resume support);
// they are treated as already visited and never fetched. The returned slice
// holds only newly accepted pages, in BFS dequeue order.
//
// There is no fatal error path: fetch failures, blacklisted paths, and
// duplicate content are counted and the traversal continues. Cancelling
// the context stops the run early and returns whatever was collected.
func (e *Engine) CrawlSite(ctx context.Context, seed string, known map[string]struct{}) []*model.CrawlResult {
	session := e.provider.NewSession()

	visited := make(map[string]struct{}, len(known))
	for addr := range known {
		visited[addr] = struct{}{}
	}

	queue := newFrontier(seed)
	var results []*model.CrawlResult
	pagesThisSite := 0

	e.logger.Info("starting site crawl", "seed", seed)

	for !queue.empty() && pagesThisSite < e.maxPages {
		select {
		case <-ctx.Done():
			e.logger.Warn("site crawl interrupted", "seed", seed, "collected", len(results))
			return results
		default:
		}

		item, _ := queue.pop()

		if _, seen := visited[item.addr]; seen || item.depth > e.maxDepth {
			continue
		}
		visited[item.addr] = struct{}{}

		result, links := e.crawlPage(ctx, session, item.addr, item.depth)

		if result != nil {
			results = append(results, result)
			pagesThisSite++

			e.mu.Lock()
			e.stats.PagesCollected++
			e.pageCount++
			e.mu.Unlock()

			if e.onPage != nil {
				e.onPage(result)
			}
			e.logger.Debug("page collected",
				"seed", seed,
				"address", item.addr,
				"site_total", pagesThisSite,
			)
		}

		// Links from duplicate pages are enqueued too: exploration of the
		// site graph continues even when the content was seen before.
		if item.depth < e.maxDepth {
			for _, link := range links {
				if _, seen := visited[link]; !seen {
					queue.push(link, item.depth+1)
				}
			}
		}

		if err := e.sleep(ctx, e.delay); err != nil {
			return results
		}
		e.maybeRenewIdentity(ctx)
	}

	e.mu.Lock()
	e.stats.SitesCompleted++
	e.mu.Unlock()

	e.logger.Info("site crawl complete", "seed", seed, "collected", len(results))
	return results
}

// crawlPage fetches and parses a single address.
//
// The returned result is nil when the address is blacklisted, unreachable,
// or a duplicate. links always contains whatever valid onion URLs were
// discovered, so the frontier can be populated even when result is nil.
func (e *Engine) crawlPage(ctx context.Context, session *http.Client, addr string, depth int) (*model.CrawlResult, []string) {
	if e.blacklist.Matches(addr) {
		e.logger.Info("skipping blacklisted path", "address", addr)
		e.mu.Lock()
		e.stats.PagesSkipped++
		e.mu.Unlock()
		return nil, nil
	}

	e.logger.Info("fetching", "address", addr, "depth", depth)
	start := time.Now()

	body, err := e.fetchWithRetry(ctx, session, addr)
	if err != nil {
		e.mu.Lock()
		e.stats.PagesFailed++
		e.mu.Unlock()
		return nil, nil
	}

	content, err := parser.Extract(body, addr)
	if err != nil {
		e.logger.Warn("parse failed", "address", addr, "error", err)
		e.mu.Lock()
		e.stats.PagesFailed++
		e.mu.Unlock()
		return nil, nil
	}
	elapsed := time.Since(start)

	e.mu.Lock()
	if _, dup := e.fingerprints[content.Fingerprint]; dup {
		e.stats.PagesDeduplicated++
		e.mu.Unlock()
		e.logger.Debug("duplicate content", "address", addr)
		return nil, content.Links
	}
	e.fingerprints[content.Fingerprint] = struct{}{}
	e.mu.Unlock()

	return &model.CrawlResult{
		Address:     addr,
		Title:       content.Title,
		Text:        content.Text,
		Fingerprint: content.Fingerprint,
		Depth:       depth,
		Elapsed:     elapsed,
		LinksFound:  len(content.Links),
		Site:        parser.SiteKey(addr),
	}, content.Links
}

// maybeRenewIdentity rotates the network identity when the global accepted
// page counter reaches a multiple of the renewal interval. Each threshold
// fires at most once; rotation failure is logged and the crawl proceeds at
// the unchanged anonymity state.
//
// Rotation requests from concurrent site tasks are intentionally not
// serialized against each other; the transport tolerates redundant calls.
func (e *Engine) maybeRenewIdentity(ctx context.Context) {
	if e.renewEvery <= 0 {
		return
	}

	e.mu.Lock()
	count := e.pageCount
	if count == 0 || count%e.renewEvery != 0 || count == e.lastRenew {
		e.mu.Unlock()
		return
	}
	e.lastRenew = count
	e.mu.Unlock()

	if err := e.provider.RenewIdentity(ctx); err != nil {
		e.logger.Warn("identity rotation failed", "pages", count, "error", err)
		return
	}
	e.logger.Info("identity rotated", "pages", count)
}

// CrawlAll crawls every valid seed address, concurrently when configured.
//
// Invalid seeds are logged and discarded. With one worker or a single
// valid seed the sites are crawled sequentially; otherwise up to
// min(maxWorkers, seeds) site crawls run at once. A failure inside one
// site task is isolated: its partial results are kept and sibling tasks
// are unaffected. Results from different sites have no defined relative
// order, but one site's results are never interleaved with another's.
func (e *Engine) CrawlAll(ctx context.Context, seeds []string, known map[string]struct{}) []*model.CrawlResult {
	valid := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if parser.IsValidAddress(seed) {
			valid = append(valid, seed)
			continue
		}
		e.logger.Warn("invalid seed address skipped", "seed", seed)
	}

	if len(valid) == 0 {
		e.logger.Error("no valid onion seed addresses to crawl")
		return nil
	}

	if e.maxWorkers <= 1 || len(valid) == 1 {
		var all []*model.CrawlResult
		for _, seed := range valid {
			all = append(all, e.CrawlSite(ctx, seed, known)...)
		}
		return all
	}

	workers := min(e.maxWorkers, len(valid))
	e.logger.Info("crawling sites concurrently", "sites", len(valid), "workers", workers)

	var (
		collectMu sync.Mutex
		all       []*model.CrawlResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, seed := range valid {
		g.Go(func() error {
			// A panic in one site task must not take down its siblings;
			// the site contributes whatever it had accumulated.
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("site crawl failed", "seed", seed, "panic", r)
				}
			}()

			results := e.CrawlSite(gctx, seed, known)

			collectMu.Lock()
			all = append(all, results...)
			collectMu.Unlock()
			return nil
		})
	}

	// Tasks never return errors; Wait only propagates context cancellation.
	_ = g.Wait()

	return all
}

// sleepContext pauses for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
