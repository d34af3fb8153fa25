// Package cli provides the command-line interface for the journal.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/journal-go/internal/config"
	"github.com/raphaelgruber/journal-go/internal/llm"
	"github.com/raphaelgruber/journal-go/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configFile string

	// Global config, logger and store
	cfg         config.Config
	logger      *slog.Logger
	closeLogger func() error
	st          *store.Store

	// Lazy-initialized model
	model *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "journal",
	Short: "Personal journaling companion",
	Long: `Journal is a personal journaling companion - a private chat that keeps
your conversations on disk and talks back through a local or hosted LLM.

Conversations, moods and goals live in a single SQLite file. Titles are
summarized in the background once a conversation gets going.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// Load config
		var err error
		if configFile != "" {
			cfg, err = config.LoadFile(configFile)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Load()
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, closeLogger = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)

		// Open the store
		st, err = store.Open(cfg.DBPath, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			if err := st.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
			}
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// getModel initializes the LLM on first use. Commands that never talk to
// the model skip the connection entirely.
func getModel() (*llm.Model, error) {
	if model == nil {
		var err error
		model, err = llm.NewModel(cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}
	return model, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config file")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statsCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
