package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/mortality-audit/internal/records"
	"github.com/KaramelBytes/mortality-audit/internal/utils"
)

var (
	valSource  sourceOptions
	valPreview int
	valJSON    bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a monthly export and show the derived fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("max-rows") {
			valSource.MaxRows = c.MaxRows
		}
		preview := valPreview
		if !cmd.Flags().Changed("preview") {
			preview = c.PreviewRows
		}
		path := args[0]
		t, err := readTable(path, valSource)
		if err != nil {
			return err
		}
		res := records.Normalize(t)
		out := cmd.OutOrStdout()
		if valJSON {
			return writeValidationJSON(out, path, res, preview)
		}
		if err := res.Err(); err != nil {
			fmt.Fprintf(out, "✗ %s failed validation:\n", filepath.Base(path))
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  - %v\n", e)
			}
			return err
		}
		printValidation(out, path, res, preview)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().IntVar(&valSource.MaxRows, "max-rows", 0, "reject files with more data rows (default from config; 0 = unlimited)")
	validateCmd.Flags().StringVar(&valSource.Delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	validateCmd.Flags().StringVar(&valSource.SheetName, "sheet-name", "", "XLSX: sheet name to read")
	validateCmd.Flags().IntVar(&valSource.SheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	validateCmd.Flags().IntVar(&valPreview, "preview", 0, "number of normalized rows to show (default from config)")
	validateCmd.Flags().BoolVar(&valJSON, "json", false, "print the validation result as JSON")
}

func printValidation(w io.Writer, path string, res records.Result, preview int) {
	ds := res.Dataset
	fmt.Fprintf(w, "✓ %s: %d records validated\n", filepath.Base(path), ds.Len())
	if res.Anchor != "" {
		fmt.Fprintf(w, "  Month derived from: %s\n", res.Anchor)
	}
	if res.Age.Known() {
		fmt.Fprintf(w, "  Age derived from: %s (x%g)\n", res.Age.Column, res.Age.Factor)
	}
	if months := ds.Months(); len(months) > 0 {
		names := make([]string, len(months))
		for i, m := range months {
			names[i] = m.String()
		}
		fmt.Fprintf(w, "  Months: %s\n", strings.Join(names, ", "))
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "⚠ Warning: %s\n", warn)
	}

	keys := make([]string, 0, len(res.Missing))
	for k, n := range res.Missing {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		fmt.Fprintln(w, "Missing values:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %d\n", k, res.Missing[k])
		}
	}

	if preview > 0 && ds.Len() > 0 {
		n := preview
		if n > ds.Len() {
			n = ds.Len()
		}
		fmt.Fprintf(w, "\nPreview (first %d of %d):\n", n, ds.Len())
		fmt.Fprintln(w, "| patient_id | sex_norm | age_days | outcome_norm | primary_diagnosis | month |")
		fmt.Fprintln(w, "| --- | --- | --- | --- | --- | --- |")
		for _, r := range ds.Records[:n] {
			age := ""
			if r.AgeDays != nil {
				age = fmt.Sprintf("%d", *r.AgeDays)
			}
			fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s |\n",
				r.PatientID, r.Sex, age, r.Outcome, r.PrimaryDiagnosis, r.Month)
		}
	}
}

type validationJSON struct {
	File     string            `json:"file"`
	Valid    bool              `json:"valid"`
	Errors   []string          `json:"errors,omitempty"`
	Records  int               `json:"records"`
	Anchor   string            `json:"anchor,omitempty"`
	Age      records.AgeSource `json:"age"`
	Months   []records.Month   `json:"months"`
	Warnings []string          `json:"warnings"`
	Missing  map[string]int    `json:"missing,omitempty"`
	Preview  []records.Record  `json:"preview"`
}

func writeValidationJSON(w io.Writer, path string, res records.Result, preview int) error {
	v := validationJSON{
		File:     filepath.Base(path),
		Valid:    len(res.Errors) == 0,
		Anchor:   res.Anchor,
		Age:      res.Age,
		Months:   res.Dataset.Months(),
		Warnings: res.Warnings,
		Missing:  res.Missing,
		Preview:  []records.Record{},
	}
	for _, e := range res.Errors {
		v.Errors = append(v.Errors, e.Error())
	}
	if v.Warnings == nil {
		v.Warnings = []string{}
	}
	if v.Months == nil {
		v.Months = []records.Month{}
	}
	if ds := res.Dataset; ds != nil {
		v.Records = ds.Len()
		n := preview
		if n > ds.Len() {
			n = ds.Len()
		}
		if n > 0 {
			v.Preview = ds.Records[:n]
		}
	}
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return err
	}
	if !v.Valid {
		return res.Err()
	}
	return nil
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte, what string) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("mkdir output dir: %w", err)
		}
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %s to %s\n", what, path)
	return nil
}
