package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/phishguard.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new phishguard configuration file",
		Long: `Initialize creates a .phishguard.yaml configuration file in the current directory.

The generated file documents every option with its default:
- Enabled signal families, weights and thresholds
- Cache lifetimes
- Reputation services and their API keys
- Per-site cookies and headers

Examples:
  # Create .phishguard.yaml in current directory
  phishguard init

  # Create config file at a specific path
  phishguard init --path ~/.config/phishguard/config.yaml

  # Force overwrite existing file
  phishguard init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("path", "p", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("path")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/phishguard.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// API keys may be added to this file.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Scoring weights and thresholds")
	fmt.Fprintln(out, "  - Reputation API keys (or use environment variables)")
	fmt.Fprintln(out, "  - Cookies and headers for pages behind a login")
	return nil
}
