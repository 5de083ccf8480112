package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/onionharvest/internal/config"
	"github.com/nao1215/onionharvest/internal/tor"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [onion-address]...",
		Short: "Check Tor connectivity and validate onion addresses",
		Long: `Verify checks that a Tor SOCKS proxy is reachable and behaving like
Tor, and validates any onion addresses given as arguments (v3 address
format plus the embedded ed25519 checksum).

Examples:
  # Check the default local Tor proxy
  onionharvest verify

  # Check a non-standard proxy and validate addresses
  onionharvest verify --proxy 127.0.0.1:9150 example.onion`,
		Args: cobra.ArbitraryArgs,
		RunE: runVerifyCmd,
	}

	cmd.Flags().String("proxy", config.DefaultTorProxyAddress, "Tor SOCKS5 proxy address to check")
	cmd.Flags().DurationP("timeout", "t", 15*time.Second, "Connection timeout for the proxy check")

	return cmd
}

// runVerifyCmd executes the verify command.
func runVerifyCmd(cmd *cobra.Command, args []string) error {
	proxyAddr, err := cmd.Flags().GetString("proxy")
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	client, err := tor.NewClient(proxyAddr, timeout)
	if err != nil {
		return fmt.Errorf("failed to create Tor client: %w", err)
	}

	status := client.CheckConnection(cmd.Context())
	fmt.Fprintf(out, "Tor proxy %s: %s\n", proxyAddr, status)

	failed := status != tor.ProxyStatusOK

	for _, addr := range args {
		normalized, err := tor.NormalizeAddress(addr)
		if err != nil {
			fmt.Fprintf(out, "address %s: INVALID (%v)\n", addr, err)
			failed = true
			continue
		}
		fmt.Fprintf(out, "address %s: OK\n", normalized)
	}

	if failed {
		return fmt.Errorf("verification failed")
	}
	return nil
}
