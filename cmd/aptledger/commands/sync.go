package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/aptledger/internal/config"
	"github.com/jmylchreest/aptledger/internal/logger"
	"github.com/jmylchreest/aptledger/pkg/document"
	"github.com/jmylchreest/aptledger/pkg/notion"
	"github.com/jmylchreest/aptledger/pkg/publish"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Collect the current bill and publish it to Notion",
	Long: `Log in to the portal, collect the current statement and publish it
as a page in the Notion billing database. A page already holding the same
billing month is archived first.

If the payment history shows the month as paid, nothing is published
unless --force is given. With --replay-dir the saved pages are used and
only the Notion settings are required.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	flags := syncCmd.Flags()
	flags.Bool("force", false, "publish even if the billing month is already paid")
	flags.Bool("dashboard", false, "also replace the dashboard page")
	flags.Bool("insecure", false, "skip TLS verification for the Notion API")
	flags.String("snapshot-dir", "", "save every fetched page here for later replay")
	flags.String("replay-dir", "", "collect from saved pages instead of logging in")

	_ = viper.BindPFlag("notion.dashboard_enabled", flags.Lookup("dashboard"))
	_ = viper.BindPFlag("notion.insecure_skip_verify", flags.Lookup("insecure"))
}

func runSync(cmd *cobra.Command, _ []string) error {
	setupLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	force, _ := cmd.Flags().GetBool("force")
	replayDir, _ := cmd.Flags().GetString("replay-dir")
	snapshotDir, _ := cmd.Flags().GetString("snapshot-dir")

	cfg, err := loadConfig(syncMode(replayDir))
	if err != nil {
		return err
	}

	res, err := collect(ctx, cfg, collectOptions{ReplayDir: replayDir, SnapshotDir: snapshotDir})
	if err != nil {
		logger.Error("collection failed", "error", err)
		return err
	}
	if !viper.GetBool("quiet") {
		renderRecord(os.Stdout, res.Record)
	}

	ncfg := notion.DefaultConfig()
	ncfg.Token = cfg.Notion.Token
	ncfg.InsecureSkipVerify = cfg.Notion.InsecureSkipVerify
	if ncfg.InsecureSkipVerify {
		logger.Warn("TLS verification disabled for Notion")
	}

	p := publish.New(notion.New(ncfg), publish.Config{
		DatabaseID:        cfg.Notion.DatabaseID,
		DashboardParentID: cfg.Notion.DashboardParentID,
		DashboardEnabled:  cfg.Notion.DashboardEnabled,
		Document:          document.DefaultOptions(),
	})

	out, err := p.Sync(ctx, res.Record, force)
	if err != nil {
		logger.Error("publish failed", "error", err)
		return err
	}
	if !viper.GetBool("quiet") {
		renderSync(os.Stdout, out)
	}
	if out.AppendErr != nil {
		logInfo("page created but %d blocks could not be written", out.Append.Failed)
	}
	return nil
}

// syncMode picks the settings sync needs. Replaying never logs in, so the
// portal account is optional then.
func syncMode(replayDir string) config.Mode {
	if replayDir != "" {
		return config.ModePublish
	}
	return config.ModeSync
}
