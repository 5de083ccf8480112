// Package crawler implements breadth-first crawling of hidden services.
//
// # Architecture
//
// The Engine coordinates one BFS run per seed address. Each site run owns a
// FIFO frontier and a visited set; the only state shared across concurrent
// site runs is the global content-fingerprint set, the global page counter,
// and the aggregate statistics, all guarded by a single mutex.
//
// Design decision: We implement our own crawler rather than using a
// third-party library because:
//  1. Hidden services have unique requirements (Tor proxy, slow connections)
//  2. We need tight control over request timing to avoid overwhelming services
//  3. Cross-site content deduplication has to happen inside the traversal loop
//
// # Traversal semantics
//
// Blacklisted addresses are skipped before any fetch and contribute no
// links. Pages whose fingerprint was already seen elsewhere in the run are
// not emitted, but their links are still enqueued so exploration of the
// site graph continues through duplicate content. This asymmetry is
// deliberate: a blacklisted page is never fetched and so can never yield
// links, while a duplicate page has already paid its fetch cost.
//
// # Politeness
//
// A configurable delay separates consecutive requests, failed fetches back
// off exponentially, and the network identity is rotated after every N
// accepted pages.
package crawler
