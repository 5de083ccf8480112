// Package main provides the entry point for the onionharvest CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for onionharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onionharvest",
		Short: "Polite crawler for Tor hidden services",
		Long: `onionharvest crawls Tor hidden services (.onion addresses) through the
Tor network, collects page text and links, and deduplicates content by
fingerprint across all crawled sites.

By default, onionharvest starts an embedded Tor daemon automatically.
Use --external-tor to use an existing Tor proxy instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
