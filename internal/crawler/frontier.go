package crawler

// frontierItem is one pending (address, depth) pair in a site's BFS queue.
type frontierItem struct {
	addr  string
	depth int
}

// frontier is the FIFO work queue for a single site crawl.
// It lives for one CrawlSite run and is never shared between goroutines.
//
// Design decision: an explicit queue rather than recursion keeps depth and
// page-cap bookkeeping trivial and lets tests inspect traversal order.
type frontier struct {
	items []frontierItem
}

// newFrontier creates a frontier seeded with the given address at depth 0.
func newFrontier(seed string) *frontier {
	return &frontier{items: []frontierItem{{addr: seed, depth: 0}}}
}

// push appends an item to the back of the queue.
func (f *frontier) push(addr string, depth int) {
	f.items = append(f.items, frontierItem{addr: addr, depth: depth})
}

// pop removes and returns the front item. ok is false when the queue is empty.
func (f *frontier) pop() (item frontierItem, ok bool) {
	if len(f.items) == 0 {
		return frontierItem{}, false
	}
	item = f.items[0]
	f.items = f.items[1:]
	return item, true
}

// empty reports whether the queue has no pending items.
func (f *frontier) empty() bool {
	return len(f.items) == 0
}

// size returns the number of pending items.
func (f *frontier) size() int {
	return len(f.items)
}
