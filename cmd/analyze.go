package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/mortality-audit/internal/analysis"
	"github.com/KaramelBytes/mortality-audit/internal/records"
)

var (
	anSource   sourceOptions
	anPrevious string
	anMonth    string
	anCompare  []string
	anFormat   string
	anOutput   string
	anBins     int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <current-file>",
	Short: "Produce a mortality audit report for a monthly export",
	Long: `Analyze normalizes the current month's export, optionally together with the
previous month's, and writes the audit report: monthly mortality, month-to-month
change, causes of death, age groups, mortality particulars and histograms.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(c)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		if !cmd.Flags().Changed("max-rows") {
			anSource.MaxRows = c.MaxRows
		}
		bins := anBins
		if !cmd.Flags().Changed("bins") {
			bins = c.HistogramBins
		}

		cur, err := loadDataset(args[0], anSource)
		if err != nil {
			return err
		}
		log.Debug("normalized current dataset", zap.String("file", args[0]), zap.Int("records", cur.Dataset.Len()))
		warnings := prefixWarnings("current", cur.Warnings)

		var previous *records.Dataset
		if anPrevious != "" {
			prev, err := loadDataset(anPrevious, anSource)
			if err != nil {
				return err
			}
			previous = prev.Dataset
			warnings = append(warnings, prefixWarnings("previous", prev.Warnings)...)
		}

		opt := analysis.Options{HistogramBins: bins, DurationBins: c.DurationBins, Warnings: warnings}
		if anMonth != "" {
			m, err := records.ParseMonth(anMonth)
			if err != nil {
				return err
			}
			opt.Month = &m
		}
		rep := analysis.BuildReport(cur.Dataset, previous, opt)

		if len(anCompare) > 0 {
			if len(anCompare) != 2 {
				return fmt.Errorf("--compare takes exactly two months, e.g. --compare 2025-09,2025-10")
			}
			a, err := records.ParseMonth(anCompare[0])
			if err != nil {
				return err
			}
			b, err := records.ParseMonth(anCompare[1])
			if err != nil {
				return err
			}
			cmp, err := analysis.CompareMonths(records.Concat(previous, cur.Dataset), a, b)
			if err != nil {
				return err
			}
			rep.Comparison = &cmp
		}

		data, err := rep.Encode(anFormat)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), anOutput, data, "analysis")
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anPrevious, "previous", "", "previous month's export to combine with the current one")
	analyzeCmd.Flags().StringVarP(&anMonth, "month", "m", "", "restrict the report to one month (YYYY-MM)")
	analyzeCmd.Flags().StringSliceVar(&anCompare, "compare", nil, "compare two months, e.g. 2025-09,2025-10")
	analyzeCmd.Flags().StringVarP(&anFormat, "format", "f", "markdown", "output format: markdown | json | yaml")
	analyzeCmd.Flags().StringVarP(&anOutput, "output", "o", "", "write the report to a file instead of stdout")
	analyzeCmd.Flags().IntVar(&anBins, "bins", 0, "age histogram bins (default from config)")
	analyzeCmd.Flags().IntVar(&anSource.MaxRows, "max-rows", 0, "reject files with more data rows (default from config; 0 = unlimited)")
	analyzeCmd.Flags().StringVar(&anSource.Delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	analyzeCmd.Flags().StringVar(&anSource.SheetName, "sheet-name", "", "XLSX: sheet name to read")
	analyzeCmd.Flags().IntVar(&anSource.SheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

func prefixWarnings(slot string, warnings []string) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, fmt.Sprintf("%s: %s", slot, strings.TrimSpace(w)))
	}
	return out
}
