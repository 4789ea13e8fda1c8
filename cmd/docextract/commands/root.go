// Package commands implements the CLI commands for docextract.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "docextract",
	Short: "Export document content, tables and numeric values",
	Long: `Docextract converts documents (PDF, DOCX, HTML, Markdown, CSV, text)
into structured artifacts: JSON and Markdown dumps, HTML, per-table CSV and
Excel workbooks, figures, key/value and form data. Documents without tables
fall back to numeric value extraction.

Examples:
  # Export one file into ./out
  docextract process report.pdf -o out

  # Process a folder, skipping HTML and images
  docextract process ./invoices -o out --no-html --no-images

  # Record runs and list them later
  docextract process ./invoices -o out --history runs.db
  docextract history --history runs.db`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.docextract.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().String("history", "", "SQLite file for the processing ledger")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("history_db", rootCmd.PersistentFlags().Lookup("history"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".docextract")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("DOCEXTRACT")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger returns the structured logger for pipeline internals. Progress
// lines are printed separately, so only warnings show by default.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	if viper.GetBool("quiet") && !viper.GetBool("debug") {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
