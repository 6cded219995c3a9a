package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/aptledger/internal/logger"
	"github.com/jmylchreest/aptledger/internal/output"
	"github.com/jmylchreest/aptledger/pkg/billing"
	"github.com/jmylchreest/aptledger/pkg/document"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the Notion payload for a saved record",
	Long: `Read a record written by scrape and print the page that sync would
create: its properties and the full block tree. Nothing is sent to Notion.

Examples:
  aptledger render -i apti_result_20251219_093000.json
  aptledger render -i record.yaml --dashboard --format jsonl`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	flags := renderCmd.Flags()
	flags.StringP("input", "i", "", "record file (.json or .yaml)")
	flags.Bool("dashboard", false, "render the dashboard page instead")
	flags.String("format", "json", "output format: json, jsonl")
	flags.Bool("compact", false, "print json without indentation")
	_ = renderCmd.MarkFlagRequired("input")
}

// payload is the request body a page create plus its appends amount to.
type payload struct {
	Title      string                       `json:"title"`
	Properties map[string]document.Property `json:"properties"`
	Children   []map[string]any             `json:"children"`
}

func runRender(cmd *cobra.Command, _ []string) error {
	setupLogger()

	path, _ := cmd.Flags().GetString("input")
	dashboard, _ := cmd.Flags().GetBool("dashboard")
	formatStr, _ := cmd.Flags().GetString("format")
	compact, _ := cmd.Flags().GetBool("compact")

	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	if format == output.FormatYAML {
		return fmt.Errorf("render prints Notion JSON; use json or jsonl")
	}

	rec, err := readRecord(path)
	if err != nil {
		logger.Error("failed to read record", "path", path, "error", err)
		return err
	}

	return writePayload(cmd.OutOrStdout(), rec, dashboard, format, output.WithPretty(!compact))
}

func writePayload(w io.Writer, rec *billing.Record, dashboard bool, format output.Format, opts ...output.WriterOption) error {
	var page *document.Page
	if dashboard {
		page = document.BuildDashboard(rec)
	} else {
		var err error
		if page, err = document.Build(rec, document.DefaultOptions()); err != nil {
			return err
		}
	}

	out, err := output.NewWriter(w, format, opts...)
	if err != nil {
		return err
	}
	if err := out.Write(payload{
		Title:      page.Title,
		Properties: page.Properties,
		Children:   document.EncodeAll(page.Children),
	}); err != nil {
		return err
	}
	return out.Close()
}

// readRecord decodes a record saved as JSON or YAML, chosen by extension.
func readRecord(path string) (*billing.Record, error) {
	f, err := os.Open(path) //#nosec G304 -- CLI tool reads a user-specified file
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var rec billing.Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(&rec)
	default:
		err = json.NewDecoder(f).Decode(&rec)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &rec, nil
}
