package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/mortality-audit/internal/analysis"
	"github.com/KaramelBytes/mortality-audit/internal/records"
	"github.com/KaramelBytes/mortality-audit/internal/utils"
)

var (
	sumSource sourceOptions
	sumFormat string
	sumOutput string
	sumQuiet  bool
	sumStrict bool
)

// monthlyReport is the summarize output across many monthly exports.
type monthlyReport struct {
	Files   []string                `json:"files" yaml:"files"`
	Skipped []string                `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Totals  analysis.Totals         `json:"totals" yaml:"totals"`
	Monthly []analysis.MonthSummary `json:"monthly" yaml:"monthly"`
	Latest  *analysis.Comparison    `json:"latest_change,omitempty" yaml:"latest_change,omitempty"`
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <files...>",
	Short: "Summarize monthly mortality across many CSV/TSV/XLSX exports",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("max-rows") {
			sumSource.MaxRows = c.MaxRows
		}
		files, err := expandInputs(args)
		if err != nil {
			return err
		}

		rep := monthlyReport{Files: []string{}}
		var datasets []*records.Dataset
		total := len(files)
		for i, path := range files {
			if !sumQuiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			res, err := loadDataset(path, sumSource)
			if err != nil {
				if sumStrict {
					return err
				}
				if !sumQuiet {
					fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Skipping %v\n", err)
				}
				rep.Skipped = append(rep.Skipped, path)
				continue
			}
			rep.Files = append(rep.Files, path)
			datasets = append(datasets, res.Dataset)
		}
		if len(datasets) == 0 {
			return fmt.Errorf("no input file could be read")
		}

		rep.Monthly = analysis.MonthlySummary(datasets...)
		rep.Totals = analysis.TotalsOf(records.Concat(datasets...))
		if cmp, ok := analysis.LatestChange(rep.Monthly); ok {
			rep.Latest = &cmp
		}

		var data []byte
		switch strings.ToLower(strings.TrimSpace(sumFormat)) {
		case "", "markdown", "md":
			data = []byte(rep.markdown())
		case "json":
			data, err = utils.PrettyJSON(rep)
		case "yaml", "yml":
			data, err = yaml.Marshal(rep)
		default:
			return fmt.Errorf("%w: %q (use markdown, json or yaml)", analysis.ErrUnknownFormat, sumFormat)
		}
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), sumOutput, data, "summary")
	},
}

func (r monthlyReport) markdown() string {
	var b strings.Builder
	b.WriteString("[MONTHLY MORTALITY]\n")
	fmt.Fprintf(&b, "Files: %d", len(r.Files))
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, " (%d skipped)", len(r.Skipped))
	}
	fmt.Fprintf(&b, "\nAdmissions: %d\nDeaths: %d\nMortality: %.2f%%\n\n", r.Totals.Admissions, r.Totals.Deaths, r.Totals.MortalityRate)
	if len(r.Monthly) == 0 {
		b.WriteString("No records with a known month.\n")
		return b.String()
	}
	b.WriteString("| month | admissions | deaths | mortality % |\n| --- | --- | --- | --- |\n")
	for _, m := range r.Monthly {
		fmt.Fprintf(&b, "| %s | %d | %d | %.2f |\n", m.Month, m.Admissions, m.Deaths, m.MortalityRate)
	}
	if r.Latest != nil {
		fmt.Fprintf(&b, "\nLatest change: %s %.2f%% -> %s %.2f%% (%+.2f)\n",
			r.Latest.A.Month, r.Latest.A.MortalityRate, r.Latest.B.Month, r.Latest.B.MortalityRate, r.Latest.RateDelta)
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().StringVarP(&sumFormat, "format", "f", "markdown", "output format: markdown | json | yaml")
	summarizeCmd.Flags().StringVarP(&sumOutput, "output", "o", "", "write the summary to a file instead of stdout")
	summarizeCmd.Flags().BoolVar(&sumQuiet, "quiet", false, "suppress progress and non-essential output")
	summarizeCmd.Flags().BoolVar(&sumStrict, "strict", false, "fail on the first unreadable or invalid file instead of skipping it")
	summarizeCmd.Flags().IntVar(&sumSource.MaxRows, "max-rows", 0, "reject files with more data rows (default from config; 0 = unlimited)")
	summarizeCmd.Flags().StringVar(&sumSource.Delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	summarizeCmd.Flags().StringVar(&sumSource.SheetName, "sheet-name", "", "XLSX: sheet name to read")
	summarizeCmd.Flags().IntVar(&sumSource.SheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}
