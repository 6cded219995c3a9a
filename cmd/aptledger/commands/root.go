// Package commands implements the CLI commands for aptledger.
package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/aptledger/internal/config"
	"github.com/jmylchreest/aptledger/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "aptledger",
	Short: "Collect APT.i utility bills and publish them to Notion",
	Long: `aptledger logs in to the APT.i resident portal, reads the current
maintenance and energy statement, and publishes it as a page in a Notion
database.

Settings come from flags, APTLEDGER_* environment variables (the plain
APTI_USER_ID, APTI_PASSWORD, NOTION_TOKEN and NOTION_DATABASE_ID names
also work) or a .aptledger.yaml file.

Examples:
  # Collect and publish the current bill
  aptledger sync

  # Publish even if the month is already paid
  aptledger sync --force

  # Collect only and keep the pages for offline replay
  aptledger scrape --snapshot-dir ./pages

  # Rerun extraction against saved pages
  aptledger scrape --replay-dir ./pages

  # Show the Notion payload for a saved record
  aptledger render -i apti_result_20251219_093000.json`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.aptledger.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")

	// Browser settings are shared by every command that logs in.
	flags.Bool("headless", true, "run Chrome headless (--headless=false to watch the login)")
	flags.String("chrome-path", "", "Chrome executable (default: search the usual locations)")
	flags.Duration("browser-timeout", 30*time.Second, "bound on each browser action")
	flags.String("debug-dir", "", "where failure screenshots go (default: temp dir)")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log_json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("browser.headless", flags.Lookup("headless"))
	_ = viper.BindPFlag("browser.chrome_path", flags.Lookup("chrome-path"))
	_ = viper.BindPFlag("browser.timeout", flags.Lookup("browser-timeout"))
	_ = viper.BindPFlag("browser.debug_dir", flags.Lookup("debug-dir"))
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
		viper.SetConfigName(".aptledger")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setupLogger applies the logging flags. Every command calls it first.
func setupLogger() {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})
	if f := viper.ConfigFileUsed(); f != "" {
		logger.Debug("config file loaded", "path", f)
	}
}

// loadConfig decodes the settings and checks the ones mode needs.
func loadConfig(mode config.Mode) (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(mode); err != nil {
		logger.Error("configuration incomplete", "error", err)
		return nil, err
	}
	return cfg, nil
}

// logInfo prints a progress line to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
