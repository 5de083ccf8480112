package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen based on typical Tor network characteristics:
// generous timeouts, conservative politeness delays, and bounded
// concurrency that won't overwhelm a single local Tor daemon.
const (
	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// Port 9050 is the default for the Tor daemon's SOCKS port.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution overhead
	// and potential issues with IPv6 resolution on some systems.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorControlAddress is the standard Tor control port address.
	// Used for identity rotation. Rotation is skipped when the control
	// port isn't reachable.
	DefaultTorControlAddress = "127.0.0.1:9051"

	// DefaultTimeout is the per-request timeout. Tor connections are
	// slower than clearnet due to the relay hops, but a hidden service
	// that can't produce a page in 30 seconds is usually down.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxDepth limits how far links are followed from each seed.
	// Depth 2 reaches the pages most operators care about (front page
	// plus two hops) without exploding the frontier.
	DefaultMaxDepth = 2

	// DefaultMaxPages caps accepted pages per hidden service. Prevents
	// runaway crawling on large or infinitely-generating sites.
	DefaultMaxPages = 20

	// DefaultDelay is the politeness pause between requests to avoid
	// overwhelming hidden services, which often run on modest hardware.
	DefaultDelay = 7 * time.Second

	// DefaultRetryCount is the number of fetch attempts per page.
	// Tor circuits fail transiently often enough that retrying pays off.
	DefaultRetryCount = 3

	// DefaultBackoffFactor scales the exponential sleep between retries:
	// factor * 2^(attempt-1) seconds.
	DefaultBackoffFactor = 4.0

	// DefaultRenewInterval is how many collected pages pass between Tor
	// identity rotations.
	DefaultRenewInterval = 10

	// DefaultWorkers bounds concurrent site crawls. Higher values may
	// overwhelm the local Tor daemon or trigger rate limiting.
	DefaultWorkers = 3

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the
	// embedded Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "onionharvest"

	// ControlPasswordEnv is the environment variable the control-port
	// password is read from. Kept out of flags and config files so it
	// doesn't end up in shell history or committed YAML.
	ControlPasswordEnv = "TOR_CONTROL_PASSWORD"
)

// DefaultBlacklist holds the URL paths skipped by default. These are the
// account-related paths that commonly trip crawler traps or trigger
// lockouts on hidden services.
func DefaultBlacklist() []string {
	return []string{"/register", "/login", "/signup", "/auth"}
}

// Config holds all configuration options for a harvest run.
// Populated from defaults, then an optional YAML file, then CLI flags,
// and passed through the application via dependency injection rather
// than global state.
//
// Design decision: a single flat struct instead of nested sub-structs.
// The number of options is manageable, and nesting would add complexity
// without significant benefit.
type Config struct {
	// Seeds is the list of onion URLs to crawl. At least one valid v3
	// onion address is required.
	Seeds []string

	// Blacklist holds URL paths that are never fetched.
	Blacklist []string

	// MaxDepth is the maximum link-follow depth from each seed.
	// Depth 0 means only fetch the seed page.
	MaxDepth int

	// MaxPages is the maximum number of accepted pages per hidden service.
	MaxPages int

	// Delay is the politeness pause between consecutive requests.
	Delay time.Duration

	// Timeout is the per-request timeout. Tor latency means this should
	// be generous.
	Timeout time.Duration

	// RetryCount is the number of fetch attempts per page.
	RetryCount int

	// BackoffFactor scales the exponential sleep between failed attempts.
	BackoffFactor float64

	// RenewInterval is how many collected pages pass between identity
	// rotations. 0 disables rotation.
	RenewInterval int

	// Workers bounds the number of concurrently crawled sites.
	Workers int

	// TorProxyAddress is the Tor SOCKS5 proxy in "host:port" format.
	// All network traffic goes through Tor; there is no clearnet path.
	TorProxyAddress string

	// TorControlAddress is the Tor control port in "host:port" format.
	// Needed only for identity rotation.
	TorControlAddress string

	// TorControlPassword authenticates against the control port. Read
	// from the TOR_CONTROL_PASSWORD environment variable, never from
	// flags or the config file.
	TorControlPassword string

	// UseExternalTor disables the embedded Tor daemon and uses an
	// external proxy at TorProxyAddress. When false the tool launches
	// its own daemon, which takes 1-3 minutes to bootstrap.
	UseExternalTor bool

	// TorStartupTimeout is the maximum wait for the embedded Tor daemon
	// to bootstrap. Only used when UseExternalTor is false.
	TorStartupTimeout time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated.
	MaxBodySize int64

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only info and above are logged.
	Verbose bool

	// DBDir is the directory for the SQLite database. When set, results
	// are persisted and later runs resume past already-collected pages.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB indicates whether results are persisted to the database.
	SaveToDB bool

	// Resume makes the crawl skip addresses already present in the
	// database from previous runs. Requires SaveToDB.
	Resume bool

	// JSONFile, CSVFile, and MarkdownFile are export destinations.
	// Each is written when non-empty; they are not mutually exclusive.
	JSONFile     string
	CSVFile      string
	MarkdownFile string

	// IntelReport enables indicator extraction over the collected pages
	// and prints the per-page findings after the crawl summary.
	IntelReport bool

	// ConfigFilePath is the path to the YAML configuration file. If
	// empty, the tool searches for .onionharvest in the current
	// directory and then in the user's home directory.
	ConfigFilePath string
}

// NewConfig creates a Config with default values. Many defaults are
// non-zero, so relying on zero values would be wrong; the constructor
// also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Blacklist:          DefaultBlacklist(),
		MaxDepth:           DefaultMaxDepth,
		MaxPages:           DefaultMaxPages,
		Delay:              DefaultDelay,
		Timeout:            DefaultTimeout,
		RetryCount:         DefaultRetryCount,
		BackoffFactor:      DefaultBackoffFactor,
		RenewInterval:      DefaultRenewInterval,
		Workers:            DefaultWorkers,
		TorProxyAddress:    DefaultTorProxyAddress,
		TorControlAddress:  DefaultTorControlAddress,
		TorControlPassword: os.Getenv(ControlPasswordEnv),
		TorStartupTimeout:  DefaultTorStartupTimeout,
		MaxBodySize:        DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for onionharvest.
// On Linux: ~/.local/share/onionharvest
// On macOS: ~/Library/Application Support/onionharvest
// On Windows: %LOCALAPPDATA%\onionharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for onionharvest.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for onionharvest.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid and returns a specific
// error describing the first problem found. Fixing one error often makes
// others irrelevant, so errors are not collected.
//
// Called once after CLI parsing, before any crawling begins.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RetryCount <= 0 {
		return ErrInvalidRetryCount
	}
	if c.BackoffFactor <= 0 {
		return ErrInvalidBackoffFactor
	}
	if c.RenewInterval < 0 {
		return ErrInvalidRenewInterval
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Resume && !c.SaveToDB {
		return ErrResumeWithoutDB
	}
	return nil
}
