package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/onionharvest/internal/model"
	"github.com/nao1215/onionharvest/internal/parser"
)

// fakeProvider satisfies FetchProvider with a canned transport.
type fakeProvider struct {
	transport http.RoundTripper

	mu       sync.Mutex
	renewals int
	renewErr error
}

func (p *fakeProvider) NewSession() *http.Client {
	return &http.Client{Transport: p.transport}
}

func (p *fakeProvider) RenewIdentity(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renewals++
	return p.renewErr
}

func (p *fakeProvider) renewalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renewals
}

// stubSite serves a fixed URL-to-HTML map and records every request.
type stubSite struct {
	mu       sync.Mutex
	pages    map[string]string
	statuses map[string]int
	requests []string
}

func (s *stubSite) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()

	s.mu.Lock()
	s.requests = append(s.requests, url)
	s.mu.Unlock()

	if status, ok := s.statuses[url]; ok {
		return htmlResponse(status, ""), nil
	}
	if html, ok := s.pages[url]; ok {
		return htmlResponse(http.StatusOK, html), nil
	}
	return htmlResponse(http.StatusNotFound, ""), nil
}

func (s *stubSite) requested(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r == url {
			return true
		}
	}
	return false
}

// onionAddr builds a syntactically valid v3 onion URL from a repeated
// base32 character.
func onionAddr(c byte, path string) string {
	return "http://" + strings.Repeat(string(c), 56) + ".onion" + path
}

// htmlPage builds a page whose visible text is body and whose links point
// at hrefs.
func htmlPage(title, body string, hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(title)
	b.WriteString("</title></head><body><p>")
	b.WriteString(body)
	b.WriteString("</p>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href=%q>x</a>`, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestEngine(provider FetchProvider, opts ...Option) *Engine {
	base := []Option{
		WithDelay(0),
		WithRetryCount(1),
		WithRenewInterval(0),
		WithLogger(discardLogger()),
	}
	e := NewEngine(provider, append(base, opts...)...)
	e.sleep = func(_ context.Context, _ time.Duration) error { return nil }
	return e
}

func TestCrawlSiteCollectsPagesBreadthFirst(t *testing.T) {
	t.Parallel()

	seed := onionAddr('a', "/")
	site := &stubSite{pages: map[string]string{
		seed:                 htmlPage("Home", "welcome", "/about", "/contact"),
		onionAddr('a', "/about"):   htmlPage("About", "about us"),
		onionAddr('a', "/contact"): htmlPage("Contact", "reach us"),
	}}

	e := newTestEngine(&fakeProvider{transport: site})
	results := e.CrawlSite(context.Background(), seed, nil)

	if len(results) != 3 {
		t.Fatalf("collected %d pages, want 3", len(results))
	}
	if results[0].Address != seed || results[0].Depth != 0 {
		t.Errorf("first result = %s at depth %d, want seed at depth 0", results[0].Address, results[0].Depth)
	}
	for _, r := range results[1:] {
		if r.Depth != 1 {
			t.Errorf("%s at depth %d, want 1", r.Address, r.Depth)
		}
	}
	if results[0].Title != "Home" {
		t.Errorf("seed title = %q, want %q", results[0].Title, "Home")
	}
	if results[0].LinksFound != 2 {
		t.Errorf("seed links found = %d, want 2", results[0].LinksFound)
	}

	stats := e.Stats()
	if stats.PagesCollected != 3 {
		t.Errorf("PagesCollected = %d, want 3", stats.PagesCollected)
	}
	if stats.SitesCompleted != 1 {
		t.Errorf("SitesCompleted = %d, want 1", stats.SitesCompleted)
	}
}

func TestCrawlSiteDeduplicatesIdenticalContent(t *testing.T) {
	t.Parallel()

	seed := onionAddr('b', "/")
	// /mirror1 and /mirror2 carry identical text; only the first accepted.
	site := &stubSite{pages: map[string]string{
		seed:                  htmlPage("Home", "index", "/mirror1", "/mirror2"),
		onionAddr('b', "/mirror1"): htmlPage("Mirror", "same content"),
		onionAddr('b', "/mirror2"): htmlPage("Mirror", "same content"),
	}}

	e := newTestEngine(&fakeProvider{transport: site})
	results := e.CrawlSite(context.Background(), seed, nil)

	if len(results) != 2 {
		t.Fatalf("collected %d pages, want 2 (one mirror deduplicated)", len(results))
	}
	stats := e.Stats()
	if stats.PagesDeduplicated != 1 {
		t.Errorf("PagesDeduplicated = %d, want 1", stats.PagesDeduplicated)
	}
	if stats.PagesCollected != 2 {
		t.Errorf("PagesCollected = %d, want 2", stats.PagesCollected)
	}
}

func TestCrawlSiteWithKnownFingerprints(t *testing.T) {
	t.Parallel()

	seed := onionAddr('b', "/")
	site := &stubSite{pages: map[string]string{
		seed: htmlPage("Home", "persisted content"),
	}}

	// First run discovers the page and yields its fingerprint.
	first := newTestEngine(&fakeProvider{transport: site})
	results := first.CrawlSite(context.Background(), seed, nil)
	if len(results) != 1 {
		t.Fatalf("collected %d pages, want 1", len(results))
	}

	// A resumed run pre-seeded with that fingerprint drops the page even
	// though its address is not in the visited set.
	resumed := newTestEngine(&fakeProvider{transport: site},
		WithKnownFingerprints(map[string]struct{}{results[0].Fingerprint: {}}))
	results = resumed.CrawlSite(context.Background(), seed, nil)

	if len(results) != 0 {
		t.Fatalf("collected %d pages, want 0", len(results))
	}
	if stats := resumed.Stats(); stats.PagesDeduplicated != 1 {
		t.Errorf("PagesDeduplicated = %d, want 1", stats.PagesDeduplicated)
	}
}

func TestCrawlSiteFollowsLinksFromDuplicatePages(t *testing.T) {
	t.Parallel()

	seed := onionAddr('c', "/")
	deep := onionAddr('c', "/deep")
	// /copy duplicates the seed's text but links onward to /deep. The
	// duplicate itself is dropped while its outgoing link is still followed.
	site := &stubSite{pages: map[string]string{
		seed:                  htmlPage("Same", "shared text", "/copy"),
		onionAddr('c', "/copy"): htmlPage("Same", "shared text", "/deep"),
		deep:                  htmlPage("Deep", "unique leaf"),
	}}

	e := newTestEngine(&fakeProvider{transport: site}, WithMaxDepth(3))
	results := e.CrawlSite(context.Background(), seed, nil)

	var foundDeep bool
	for _, r := range results {
		if r.Address == deep {
			foundDeep = true
		}
	}
	if !foundDeep {
		t.Error("page linked only from a duplicate was never collected")
	}
	if got := e.Stats().PagesDeduplicated; got != 1 {
		t.Errorf("PagesDeduplicated = %d, want 1", got)
	}
}

func TestCrawlSiteSkipsBlacklistedPaths(t *testing.T) {
	t.Parallel()

	seed := onionAddr('d', "/")
	login := onionAddr('d', "/login")
	site := &stubSite{pages: map[string]string{
		seed:                 htmlPage("Home", "welcome", "/login", "/about"),
		login:                htmlPage("Login", "credentials"),
		onionAddr('d', "/about"): htmlPage("About", "info"),
	}}

	e := newTestEngine(&fakeProvider{transport: site},
		WithBlacklist(parser.NewBlacklist([]string{"/login"})),
	)
	results := e.CrawlSite(context.Background(), seed, nil)

	if site.requested(login) {
		t.Error("blacklisted path was fetched")
	}
	if len(results) != 2 {
		t.Errorf("collected %d pages, want 2", len(results))
	}
	if got := e.Stats().PagesSkipped; got != 1 {
		t.Errorf("PagesSkipped = %d, want 1", got)
	}
}

func TestCrawlSiteRespectsMaxDepth(t *testing.T) {
	t.Parallel()

	seed := onionAddr('e', "/")
	site := &stubSite{pages: map[string]string{
		seed:               htmlPage("Home", "root", "/a"),
		onionAddr('e', "/a"): htmlPage("A", "level one", "/b"),
		onionAddr('e', "/b"): htmlPage("B", "level two"),
	}}

	e := newTestEngine(&fakeProvider{transport: site}, WithMaxDepth(1))
	results := e.CrawlSite(context.Background(), seed, nil)

	if len(results) != 2 {
		t.Fatalf("collected %d pages, want 2", len(results))
	}
	for _, r := range results {
		if r.Depth > 1 {
			t.Errorf("%s collected at depth %d beyond limit", r.Address, r.Depth)
		}
	}
	if site.requested(onionAddr('e', "/b")) {
		t.Error("page beyond the depth limit was fetched")
	}
}

func TestCrawlSiteRespectsMaxPages(t *testing.T) {
	t.Parallel()

	seed := onionAddr('f', "/")
	pages := map[string]string{
		seed: htmlPage("Home", "root", "/p1", "/p2", "/p3", "/p4"),
	}
	for i := 1; i <= 4; i++ {
		addr := onionAddr('f', fmt.Sprintf("/p%d", i))
		pages[addr] = htmlPage(fmt.Sprintf("P%d", i), fmt.Sprintf("page %d", i))
	}
	site := &stubSite{pages: pages}

	e := newTestEngine(&fakeProvider{transport: site}, WithMaxPages(2))
	results := e.CrawlSite(context.Background(), seed, nil)

	if len(results) != 2 {
		t.Errorf("collected %d pages, want 2", len(results))
	}
}

func TestCrawlSiteCountsFailedFetches(t *testing.T) {
	t.Parallel()

	seed := onionAddr('g', "/")
	broken := onionAddr('g', "/broken")
	site := &stubSite{
		pages: map[string]string{
			seed:              htmlPage("Home", "root", "/broken", "/ok"),
			onionAddr('g', "/ok"): htmlPage("OK", "fine"),
		},
		statuses: map[string]int{broken: http.StatusNotFound},
	}

	e := newTestEngine(&fakeProvider{transport: site})
	results := e.CrawlSite(context.Background(), seed, nil)

	if len(results) != 2 {
		t.Errorf("collected %d pages, want 2", len(results))
	}
	if got := e.Stats().PagesFailed; got != 1 {
		t.Errorf("PagesFailed = %d, want 1", got)
	}
}

func TestCrawlSiteSkipsKnownAddresses(t *testing.T) {
	t.Parallel()

	seed := onionAddr('h', "/")
	about := onionAddr('h', "/about")
	site := &stubSite{pages: map[string]string{
		seed:  htmlPage("Home", "root", "/about"),
		about: htmlPage("About", "info"),
	}}

	known := map[string]struct{}{about: {}}
	e := newTestEngine(&fakeProvider{transport: site})
	results := e.CrawlSite(context.Background(), seed, known)

	if site.requested(about) {
		t.Error("previously collected address was fetched again")
	}
	if len(results) != 1 {
		t.Errorf("collected %d pages, want 1", len(results))
	}
}

func TestCrawlSiteKnownSeedYieldsNothing(t *testing.T) {
	t.Parallel()

	seed := onionAddr('i', "/")
	site := &stubSite{pages: map[string]string{
		seed: htmlPage("Home", "root"),
	}}

	known := map[string]struct{}{seed: {}}
	e := newTestEngine(&fakeProvider{transport: site})
	results := e.CrawlSite(context.Background(), seed, known)

	if len(results) != 0 {
		t.Errorf("collected %d pages from a fully known site, want 0", len(results))
	}
	if len(site.requests) != 0 {
		t.Errorf("made %d requests, want 0", len(site.requests))
	}
}

func TestCrawlSitePausesBetweenRequests(t *testing.T) {
	t.Parallel()

	seed := onionAddr('j', "/")
	site := &stubSite{pages: map[string]string{
		seed:                 htmlPage("Home", "root", "/about", "/login"),
		onionAddr('j', "/about"): htmlPage("About", "info"),
	}}

	var pauses []time.Duration
	e := newTestEngine(&fakeProvider{transport: site},
		WithDelay(3*time.Second),
		WithBlacklist(parser.NewBlacklist([]string{"/login"})),
	)
	e.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	e.CrawlSite(context.Background(), seed, nil)

	// Seed, /about, and the blacklisted /login each end with a pause.
	if len(pauses) != 3 {
		t.Fatalf("paused %d times, want 3 (blacklisted items pause too)", len(pauses))
	}
	for i, d := range pauses {
		if d != 3*time.Second {
			t.Errorf("pause %d = %v, want 3s", i, d)
		}
	}
}

func TestCrawlSiteRotatesIdentityAtInterval(t *testing.T) {
	t.Parallel()

	seed := onionAddr('k', "/")
	pages := map[string]string{
		seed: htmlPage("Home", "root", "/p1", "/p2", "/p3"),
	}
	for i := 1; i <= 3; i++ {
		addr := onionAddr('k', fmt.Sprintf("/p%d", i))
		pages[addr] = htmlPage(fmt.Sprintf("P%d", i), fmt.Sprintf("page %d", i))
	}
	site := &stubSite{pages: pages}
	provider := &fakeProvider{transport: site}

	e := newTestEngine(provider, WithRenewInterval(2))
	results := e.CrawlSite(context.Background(), seed, nil)

	if len(results) != 4 {
		t.Fatalf("collected %d pages, want 4", len(results))
	}
	// Thresholds crossed at 2 and 4 accepted pages.
	if got := provider.renewalCount(); got != 2 {
		t.Errorf("renewals = %d, want 2", got)
	}
}

func TestCrawlSiteSurvivesRotationFailure(t *testing.T) {
	t.Parallel()

	seed := onionAddr('l', "/")
	site := &stubSite{pages: map[string]string{
		seed:              htmlPage("Home", "root", "/a"),
		onionAddr('l', "/a"): htmlPage("A", "more"),
	}}
	provider := &fakeProvider{
		transport: site,
		renewErr:  errors.New("control port unreachable"),
	}

	e := newTestEngine(provider, WithRenewInterval(1))
	results := e.CrawlSite(context.Background(), seed, nil)

	if len(results) != 2 {
		t.Errorf("collected %d pages, want 2 despite rotation failures", len(results))
	}
	if got := provider.renewalCount(); got != 2 {
		t.Errorf("rotation attempts = %d, want 2", got)
	}
}

func TestCrawlSiteStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	seed := onionAddr('m', "/")
	site := &stubSite{pages: map[string]string{
		seed: htmlPage("Home", "root", "/a", "/b"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	e := newTestEngine(&fakeProvider{transport: site})
	e.sleep = func(_ context.Context, _ time.Duration) error {
		cancel() // cancel after the first page completes
		return nil
	}

	results := e.CrawlSite(ctx, seed, nil)
	if len(results) != 1 {
		t.Errorf("collected %d pages, want 1 (partial results on cancel)", len(results))
	}
}

func TestCrawlAllFiltersInvalidSeeds(t *testing.T) {
	t.Parallel()

	seed := onionAddr('n', "/")
	site := &stubSite{pages: map[string]string{
		seed: htmlPage("Home", "root"),
	}}

	e := newTestEngine(&fakeProvider{transport: site})
	seeds := []string{
		"http://example.com",       // clearnet
		"http://short.onion",       // v2-length host
		"not a url",
		seed,
	}
	results := e.CrawlAll(context.Background(), seeds, nil)

	if len(results) != 1 {
		t.Fatalf("collected %d pages, want 1", len(results))
	}
	if results[0].Address != seed {
		t.Errorf("result address = %s, want %s", results[0].Address, seed)
	}
}

func TestCrawlAllNoValidSeeds(t *testing.T) {
	t.Parallel()

	e := newTestEngine(&fakeProvider{transport: &stubSite{}})
	results := e.CrawlAll(context.Background(), []string{"http://example.com", "garbage"}, nil)
	if results != nil {
		t.Errorf("results = %v, want nil when every seed is invalid", results)
	}
}

func TestCrawlAllBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	pages := make(map[string]string)
	seeds := make([]string, 0, 3)
	for _, c := range []byte{'o', 'p', 'q'} {
		seed := onionAddr(c, "/")
		seeds = append(seeds, seed)
		pages[seed] = htmlPage("Site "+string(c), "content of "+string(c))
	}

	transport := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()

		return htmlResponse(http.StatusOK, pages[req.URL.String()]), nil
	})

	e := newTestEngine(&fakeProvider{transport: transport}, WithMaxWorkers(2))
	results := e.CrawlAll(context.Background(), seeds, nil)

	if len(results) != 3 {
		t.Errorf("collected %d pages, want 3", len(results))
	}
	if peak > 2 {
		t.Errorf("peak concurrent fetches = %d, want at most 2", peak)
	}
	if got := e.Stats().SitesCompleted; got != 3 {
		t.Errorf("SitesCompleted = %d, want 3", got)
	}
}

func TestCrawlAllIsolatesPanickingSite(t *testing.T) {
	t.Parallel()

	goodSeed := onionAddr('r', "/")
	badSeed := onionAddr('s', "/")
	transport := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Host, "sss") {
			panic("transport blew up")
		}
		return htmlResponse(http.StatusOK, htmlPage("Good", "fine")), nil
	})

	e := newTestEngine(&fakeProvider{transport: transport}, WithMaxWorkers(2))
	results := e.CrawlAll(context.Background(), []string{goodSeed, badSeed}, nil)

	if len(results) != 1 {
		t.Fatalf("collected %d pages, want 1 from the healthy site", len(results))
	}
	if results[0].Address != goodSeed {
		t.Errorf("result address = %s, want %s", results[0].Address, goodSeed)
	}
}

func TestCrawlAllSharesFingerprintsAcrossSites(t *testing.T) {
	t.Parallel()

	seedA := onionAddr('t', "/")
	seedB := onionAddr('u', "/")
	site := &stubSite{pages: map[string]string{
		seedA: htmlPage("Mirror", "identical body"),
		seedB: htmlPage("Mirror", "identical body"),
	}}

	// Single worker keeps the ordering deterministic for the assertion.
	e := newTestEngine(&fakeProvider{transport: site}, WithMaxWorkers(1))
	results := e.CrawlAll(context.Background(), []string{seedA, seedB}, nil)

	if len(results) != 1 {
		t.Fatalf("collected %d pages, want 1 (cross-site duplicate dropped)", len(results))
	}
	if got := e.Stats().PagesDeduplicated; got != 1 {
		t.Errorf("PagesDeduplicated = %d, want 1", got)
	}
}

func TestOnPageCallback(t *testing.T) {
	t.Parallel()

	seed := onionAddr('v', "/")
	site := &stubSite{pages: map[string]string{
		seed:              htmlPage("Home", "root", "/a"),
		onionAddr('v', "/a"): htmlPage("A", "leaf"),
	}}

	var mu sync.Mutex
	var seen []string
	e := newTestEngine(&fakeProvider{transport: site},
		WithOnPage(func(r *model.CrawlResult) {
			mu.Lock()
			seen = append(seen, r.Address)
			mu.Unlock()
		}),
	)
	e.CrawlSite(context.Background(), seed, nil)

	if len(seen) != 2 {
		t.Errorf("callback fired %d times, want 2", len(seen))
	}
}
