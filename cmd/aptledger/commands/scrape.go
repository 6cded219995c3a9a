package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/aptledger/internal/config"
	"github.com/jmylchreest/aptledger/internal/logger"
	"github.com/jmylchreest/aptledger/internal/output"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Collect the current bill and save it to a file",
	Long: `Log in to the portal, collect every billing page and write the
assembled record to <prefix>_<YYYYMMDD_HHMMSS>.json (or .yaml).

Examples:
  # Save the record in the current directory
  aptledger scrape

  # Keep the raw pages, then rerun extraction offline
  aptledger scrape --snapshot-dir ./pages
  aptledger scrape --replay-dir ./pages -o ./records`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()
	flags.StringP("output-dir", "o", ".", "directory for the record file")
	flags.String("prefix", "apti_result", "record file name prefix")
	flags.String("format", "json", "output format: json, yaml")
	flags.String("replay-dir", "", "collect from saved pages instead of logging in")
	flags.String("snapshot-dir", "", "save every fetched page here for later replay")

	_ = viper.BindPFlag("output.dir", flags.Lookup("output-dir"))
	_ = viper.BindPFlag("output.prefix", flags.Lookup("prefix"))
	_ = viper.BindPFlag("output.format", flags.Lookup("format"))
}

func runScrape(cmd *cobra.Command, _ []string) error {
	setupLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	replayDir, _ := cmd.Flags().GetString("replay-dir")
	snapshotDir, _ := cmd.Flags().GetString("snapshot-dir")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	// replaying never logs in, so credentials are optional
	if replayDir == "" {
		if err := cfg.Validate(config.ModeScrape); err != nil {
			logger.Error("configuration incomplete", "error", err)
			return err
		}
	}

	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	res, err := collect(ctx, cfg, collectOptions{ReplayDir: replayDir, SnapshotDir: snapshotDir})
	if err != nil {
		logger.Error("collection failed", "error", err)
		return err
	}

	path, err := output.Save(cfg.Output.Dir, cfg.Output.Prefix, format, res.Record, time.Now())
	if err != nil {
		logger.Error("failed to save record", "error", err)
		return err
	}

	if !viper.GetBool("quiet") {
		renderRecord(os.Stdout, res.Record)
		renderSteps(os.Stdout, res.Steps)
	}
	logInfo("record saved to %s", path)
	return nil
}
