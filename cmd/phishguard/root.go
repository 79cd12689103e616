// Package main provides the entry point for the phishguard CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for phishguard.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phishguard",
		Short: "Phishing likelihood scoring for web pages",
		Long: `phishguard estimates how likely a web page is to be a phishing page.

Each URL is scored from four signal families: URL structure, page content,
third-party reputation (Safe Browsing, WHOIS domain age, DNS blocklists,
certificates) and a classifier over the combined feature vector. The result
is a verdict (safe, suspicious, phishing) with a report explaining every
finding.

Reports are stored in a local SQLite database (or Postgres when
PHISHGUARD_DATABASE_URL is set) for history and comparison.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewPredictCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
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
