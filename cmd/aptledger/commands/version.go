package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/aptledger/internal/output"
	"github.com/jmylchreest/aptledger/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		if !asJSON {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Full())
			return err
		}
		w, err := output.NewWriter(cmd.OutOrStdout(), output.FormatJSON)
		if err != nil {
			return err
		}
		if err := w.Write(version.Get()); err != nil {
			return err
		}
		return w.Close()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "print as JSON")
}
