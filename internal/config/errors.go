package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: package-level sentinel errors rather than new error
// instances in Validate(). Callers can use errors.Is() for programmatic
// handling while still getting human-readable messages. errors.New()
// rather than fmt.Errorf() because no dynamic values are needed.
var (
	// ErrNoSeeds is returned when no seed onion address is specified.
	// Seeds come from positional arguments, --list, or the config file.
	ErrNoSeeds = errors.New("no seeds specified: provide onion addresses or use --list")

	// ErrInvalidDepth is returned when the crawl depth is negative.
	// Depth 0 is valid and means only the seed page is fetched.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the per-site page cap is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidDelay is returned when the politeness delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A zero or negative timeout would cause immediate connection failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetryCount is returned when the retry count is not positive.
	// At least one attempt is required to fetch anything.
	ErrInvalidRetryCount = errors.New("invalid retry count: must be positive")

	// ErrInvalidBackoffFactor is returned when the backoff factor is not positive.
	ErrInvalidBackoffFactor = errors.New("invalid backoff factor: must be positive")

	// ErrInvalidRenewInterval is returned when the renewal interval is negative.
	// Use 0 to disable identity rotation.
	ErrInvalidRenewInterval = errors.New("invalid renew interval: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	// Zero workers would mean no crawling at all.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to fall back to the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrResumeWithoutDB is returned when --resume is requested but no
	// database is configured. Resume needs the previous run's addresses.
	ErrResumeWithoutDB = errors.New("resume requires the database: drop --no-db or unset --resume")
)
