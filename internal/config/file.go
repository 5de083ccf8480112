package config

import "time"

// File represents the structure of the .onionharvest configuration file.
// Every field is optional; unset fields leave the corresponding Config
// value untouched, which is why the numeric settings are pointers.
type File struct {
	// Seeds are onion URLs to crawl, merged with seeds given on the
	// command line.
	Seeds []string `yaml:"seeds,omitempty"`

	// Blacklist replaces the default path blacklist when present.
	Blacklist []string `yaml:"blacklist,omitempty"`

	// Crawl holds the traversal settings.
	Crawl CrawlSettings `yaml:"crawl,omitempty"`

	// Tor holds the proxy and daemon settings.
	Tor TorSettings `yaml:"tor,omitempty"`
}

// CrawlSettings mirrors the crawl-related Config fields in YAML form.
// Durations are expressed in seconds because that's what operators think
// in when tuning politeness.
type CrawlSettings struct {
	Depth          *int     `yaml:"depth,omitempty"`
	MaxPages       *int     `yaml:"maxPages,omitempty"`
	DelaySeconds   *float64 `yaml:"delaySeconds,omitempty"`
	TimeoutSeconds *float64 `yaml:"timeoutSeconds,omitempty"`
	RetryCount     *int     `yaml:"retryCount,omitempty"`
	BackoffFactor  *float64 `yaml:"backoffFactor,omitempty"`
	RenewInterval  *int     `yaml:"renewInterval,omitempty"`
	Workers        *int     `yaml:"workers,omitempty"`
}

// TorSettings mirrors the Tor-related Config fields in YAML form.
// The control password is deliberately absent; it comes only from the
// TOR_CONTROL_PASSWORD environment variable.
type TorSettings struct {
	ProxyAddress   string `yaml:"proxyAddress,omitempty"`
	ControlAddress string `yaml:"controlAddress,omitempty"`
	External       *bool  `yaml:"external,omitempty"`
}

// ApplyTo overlays the file's settings onto c. File seeds are appended to
// whatever seeds c already carries; everything else overwrites only when
// set in the file.
func (f *File) ApplyTo(c *Config) {
	c.Seeds = append(c.Seeds, f.Seeds...)

	if len(f.Blacklist) > 0 {
		c.Blacklist = f.Blacklist
	}

	if f.Crawl.Depth != nil {
		c.MaxDepth = *f.Crawl.Depth
	}
	if f.Crawl.MaxPages != nil {
		c.MaxPages = *f.Crawl.MaxPages
	}
	if f.Crawl.DelaySeconds != nil {
		c.Delay = time.Duration(*f.Crawl.DelaySeconds * float64(time.Second))
	}
	if f.Crawl.TimeoutSeconds != nil {
		c.Timeout = time.Duration(*f.Crawl.TimeoutSeconds * float64(time.Second))
	}
	if f.Crawl.RetryCount != nil {
		c.RetryCount = *f.Crawl.RetryCount
	}
	if f.Crawl.BackoffFactor != nil {
		c.BackoffFactor = *f.Crawl.BackoffFactor
	}
	if f.Crawl.RenewInterval != nil {
		c.RenewInterval = *f.Crawl.RenewInterval
	}
	if f.Crawl.Workers != nil {
		c.Workers = *f.Crawl.Workers
	}

	if f.Tor.ProxyAddress != "" {
		c.TorProxyAddress = f.Tor.ProxyAddress
	}
	if f.Tor.ControlAddress != "" {
		c.TorControlAddress = f.Tor.ControlAddress
	}
	if f.Tor.External != nil {
		c.UseExternalTor = *f.Tor.External
	}
}
