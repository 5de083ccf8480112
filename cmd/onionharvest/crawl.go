package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/onionharvest/internal/config"
	"github.com/nao1215/onionharvest/internal/crawler"
	"github.com/nao1215/onionharvest/internal/database"
	"github.com/nao1215/onionharvest/internal/intel"
	"github.com/nao1215/onionharvest/internal/log"
	"github.com/nao1215/onionharvest/internal/model"
	"github.com/nao1215/onionharvest/internal/parser"
	"github.com/nao1215/onionharvest/internal/report"
	"github.com/nao1215/onionharvest/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [onion-address]...",
		Short: "Crawl Tor hidden services and collect page content",
		Long: `Crawl fetches pages from Tor hidden services (.onion addresses).

For each seed it performs a breadth-first crawl: pages are fetched through
Tor with a politeness delay, parsed for title, text, and onion links, and
deduplicated by content fingerprint across all crawled sites. The Tor
identity is rotated periodically during long crawls.

Examples:
  # Crawl a single onion service
  onionharvest crawl exampleonionaddressexampleonionaddressexampleonionaddr.onion

  # Crawl seeds listed in a file (one address per line)
  onionharvest crawl --list seeds.txt

  # Use an external Tor proxy instead of the embedded daemon
  onionharvest crawl --external-tor 127.0.0.1:9050 example.onion

  # Resume a previous harvest, skipping already-collected pages
  onionharvest crawl --resume --list seeds.txt

  # Export the harvest
  onionharvest crawl --json out.json --csv out.csv --markdown report.md example.onion

The Tor control-port password, if one is required for identity rotation,
is read from the TOR_CONTROL_PASSWORD environment variable.`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Seed sources
	cmd.Flags().StringP("list", "l", "", "File with one onion address per line ('#' starts a comment)")

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth, "Maximum link-follow depth from each seed")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages, "Maximum accepted pages per hidden service")
	cmd.Flags().Duration("delay", config.DefaultDelay, "Politeness pause between requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Per-request timeout")
	cmd.Flags().Int("retry", config.DefaultRetryCount, "Fetch attempts per page")
	cmd.Flags().Float64("backoff", config.DefaultBackoffFactor, "Exponential backoff factor between retries (seconds)")
	cmd.Flags().Int("renew-interval", config.DefaultRenewInterval, "Collected pages between Tor identity rotations (0 disables)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Concurrently crawled sites")
	cmd.Flags().StringSlice("skip-path", config.DefaultBlacklist(), "URL paths never fetched")

	// Tor connection flags
	cmd.Flags().StringP("external-tor", "e", "",
		"Use external Tor proxy at specified address (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("control-addr", config.DefaultTorControlAddress,
		"Tor control port address for identity rotation (external Tor only)")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Persistence flags
	cmd.Flags().Bool("no-db", false, "Do not persist results to the database")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")
	cmd.Flags().Bool("resume", false, "Skip pages already collected in previous runs")

	// Export flags
	cmd.Flags().String("json", "", "Write JSON export to the specified file")
	cmd.Flags().String("csv", "", "Write CSV export to the specified file")
	cmd.Flags().StringP("markdown", "m", "", "Write Markdown report to the specified file")
	cmd.Flags().Bool("intel", false, "Extract threat indicators from collected pages")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .onionharvest in current or home directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Context cancelled on SIGINT/SIGTERM so a long crawl can be stopped
	// and still flush partial results.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// buildCrawlConfig creates a Config from the config file and cobra flags.
// Flags override file values only when explicitly set on the command line.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Seeds = append(cfg.Seeds, args...)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Config file first, then flags on top.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.ApplyTo(cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	listFile, err := cmd.Flags().GetString("list")
	if err != nil {
		return nil, err
	}
	if listFile != "" {
		seeds, err := readSeedList(listFile)
		if err != nil {
			return nil, err
		}
		cfg.Seeds = append(cfg.Seeds, seeds...)
	}

	if cmd.Flags().Changed("depth") {
		if cfg.MaxDepth, err = cmd.Flags().GetInt("depth"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("max-pages") {
		if cfg.MaxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("delay") {
		if cfg.Delay, err = cmd.Flags().GetDuration("delay"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("timeout") {
		if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("retry") {
		if cfg.RetryCount, err = cmd.Flags().GetInt("retry"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("backoff") {
		if cfg.BackoffFactor, err = cmd.Flags().GetFloat64("backoff"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("renew-interval") {
		if cfg.RenewInterval, err = cmd.Flags().GetInt("renew-interval"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("workers") {
		if cfg.Workers, err = cmd.Flags().GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("skip-path") {
		if cfg.Blacklist, err = cmd.Flags().GetStringSlice("skip-path"); err != nil {
			return nil, err
		}
	}

	externalTor, err := cmd.Flags().GetString("external-tor")
	if err != nil {
		return nil, err
	}
	if externalTor != "" {
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = externalTor
	}
	if cmd.Flags().Changed("control-addr") {
		if cfg.TorControlAddress, err = cmd.Flags().GetString("control-addr"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout"); err != nil {
			return nil, err
		}
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}
	if cfg.Resume, err = cmd.Flags().GetBool("resume"); err != nil {
		return nil, err
	}

	if cfg.JSONFile, err = cmd.Flags().GetString("json"); err != nil {
		return nil, err
	}
	if cfg.CSVFile, err = cmd.Flags().GetString("csv"); err != nil {
		return nil, err
	}
	if cfg.MarkdownFile, err = cmd.Flags().GetString("markdown"); err != nil {
		return nil, err
	}
	if cfg.IntelReport, err = cmd.Flags().GetBool("intel"); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// readSeedList reads one onion address per line. Blank lines and lines
// starting with '#' are skipped.
func readSeedList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided seed list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open seed list: %w", err)
	}
	defer func() { _ = f.Close() }()

	var seeds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seed list: %w", err)
	}
	return seeds, nil
}

// runCrawl executes the harvest.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Normalize and checksum-validate the operator-supplied seeds before
	// touching the network. Crawl-discovered links get the cheaper
	// format-only check inside the engine.
	seeds := make([]string, 0, len(cfg.Seeds))
	for _, target := range cfg.Seeds {
		seed, err := tor.NormalizeSeedURL(target)
		if err != nil {
			return fmt.Errorf("invalid onion address %q: %w", target, err)
		}
		seeds = append(seeds, seed)
	}

	logger.Info("starting harvest",
		"seeds", len(seeds),
		"useExternalTor", cfg.UseExternalTor,
		"workers", cfg.Workers,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.HarvestDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	known, knownFingerprints, err := loadResumeState(ctx, db, cfg, logger)
	if err != nil {
		return err
	}

	client, embeddedTor, err := setupTor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if embeddedTor != nil {
		defer func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
	}

	engine := crawler.NewEngine(client,
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithDelay(cfg.Delay),
		crawler.WithRetryCount(cfg.RetryCount),
		crawler.WithBackoffFactor(cfg.BackoffFactor),
		crawler.WithRenewInterval(cfg.RenewInterval),
		crawler.WithMaxWorkers(cfg.Workers),
		crawler.WithBlacklist(parser.NewBlacklist(cfg.Blacklist)),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithKnownFingerprints(knownFingerprints),
		crawler.WithLogger(logger),
		crawler.WithOnPage(func(r *model.CrawlResult) {
			logger.Info("page collected", "address", r.Address, "title", r.Title, "depth", r.Depth)
		}),
	)

	startTime := time.Now()
	results := engine.CrawlAll(ctx, seeds, known)
	stats := engine.Stats()

	fmt.Printf("Harvest finished in %s: %d pages from %d sites\n",
		time.Since(startTime).Round(time.Millisecond), stats.PagesCollected, stats.SitesCompleted)

	if db != nil {
		inserted, err := db.InsertResults(ctx, results)
		if err != nil {
			return fmt.Errorf("failed to persist results: %w", err)
		}
		if err := db.SaveRunStats(ctx, stats); err != nil {
			logger.Error("failed to save run stats", "error", err)
		}
		logger.Info("results persisted", "inserted", inserted, "path", db.Path())
	}

	run := report.NewRun(results, stats)
	if err := writeExports(cfg, run, logger); err != nil {
		return err
	}

	if _, err := report.NewSimpleWriter(os.Stdout, report.WithVerbose(cfg.Verbose)).Write(run); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if cfg.IntelReport {
		if err := printIntel(ctx, results); err != nil {
			return err
		}
	}

	return nil
}

// loadResumeState loads previously collected addresses and fingerprints
// when resuming. Without --resume both sets are empty.
func loadResumeState(ctx context.Context, db *database.HarvestDB, cfg *config.Config, logger *slog.Logger) (map[string]struct{}, map[string]struct{}, error) {
	if !cfg.Resume || db == nil {
		return nil, nil, nil
	}

	known, err := db.KnownAddresses(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load known addresses: %w", err)
	}
	fingerprints, err := db.KnownFingerprints(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load known fingerprints: %w", err)
	}

	logger.Info("resuming harvest", "knownAddresses", len(known), "knownFingerprints", len(fingerprints))
	return known, fingerprints, nil
}

// setupTor creates the Tor fetch provider, starting an embedded daemon
// unless an external proxy was requested. The returned EmbeddedTor is nil
// in the external case.
func setupTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tor.Client, *tor.EmbeddedTor, error) {
	if cfg.UseExternalTor {
		var opts []tor.ClientOption
		if cfg.RenewInterval > 0 {
			ctrl, err := tor.NewController(cfg.TorControlAddress,
				tor.WithControlPassword(cfg.TorControlPassword))
			if err != nil {
				return nil, nil, fmt.Errorf("invalid control address: %w", err)
			}
			opts = append(opts, tor.WithController(ctrl))
		}

		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
		}

		status := client.CheckConnection(ctx)
		if status != tor.ProxyStatusOK {
			return nil, nil, fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s)",
				status, cfg.TorProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
		return client, nil, nil
	}

	fmt.Println("Starting embedded Tor daemon...")
	fmt.Printf("This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)

	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	status := client.CheckConnection(ctx)
	if status != tor.ProxyStatusOK {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}

	return client, embeddedTor, nil
}

// writeExports writes the requested export files.
func writeExports(cfg *config.Config, run *report.Run, logger *slog.Logger) error {
	exports := []struct {
		path   string
		writer func(f *os.File) report.Writer
	}{
		{cfg.JSONFile, func(f *os.File) report.Writer { return report.NewJSONWriter(f, report.WithPrettyPrint()) }},
		{cfg.CSVFile, func(f *os.File) report.Writer { return report.NewCSVWriter(f) }},
		{cfg.MarkdownFile, func(f *os.File) report.Writer { return report.NewMarkdownWriter(f) }},
	}

	for _, e := range exports {
		if e.path == "" {
			continue
		}
		if err := writeExportFile(e.path, run, e.writer); err != nil {
			return err
		}
		logger.Info("export written", "path", e.path)
	}

	return nil
}

// writeExportFile renders one export into path, creating parent
// directories as needed. Harvested content may be sensitive, so files are
// created owner-readable only.
func writeExportFile(path string, run *report.Run, newWriter func(f *os.File) report.Writer) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided export path is intentional
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := newWriter(f).Write(run); err != nil {
		return fmt.Errorf("failed to write export %s: %w", path, err)
	}
	return nil
}

// printIntel runs indicator extraction and prints the findings.
func printIntel(ctx context.Context, results []*model.CrawlResult) error {
	pages, err := intel.NewAnalyzer().Analyze(ctx, results)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("indicator analysis failed: %w", err)
	}

	if len(pages) == 0 {
		fmt.Println("No threat indicators found.")
		return nil
	}

	fmt.Printf("THREAT INDICATORS (%d pages)\n", len(pages))
	fmt.Println(strings.Repeat("-", 70))
	for _, p := range pages {
		fmt.Printf("%s\n", p.Address)
		if p.Threat.RiskScore > 0 {
			fmt.Printf("  risk: %.1f (%s)", p.Threat.RiskScore, p.Threat.RiskLabel)
			if len(p.Threat.Categories) > 0 {
				fmt.Printf("  categories: %s", strings.Join(p.Threat.Categories, ", "))
			}
			fmt.Println()
		}
		for _, kc := range p.IOCs.Counts() {
			fmt.Printf("  %s: %d\n", kc.Kind, kc.Count)
		}
		if p.IOCs.PGPPresent {
			fmt.Println("  PGP material present")
		}
	}

	return nil
}
