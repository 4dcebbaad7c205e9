package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/mortality-audit/internal/ingest"
	"github.com/KaramelBytes/mortality-audit/internal/records"
)

// sourceOptions selects how one input file is read.
type sourceOptions struct {
	MaxRows    int
	Delimiter  string
	SheetName  string
	SheetIndex int
}

func (o sourceOptions) ingestOptions() (ingest.Options, error) {
	opt := ingest.Options{MaxRows: o.MaxRows}
	switch o.Delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", o.Delimiter)
	}
	return opt, nil
}

// readTable decodes path, honouring the sheet selection for workbooks.
func readTable(path string, o sourceOptions) (*ingest.Table, error) {
	opt, err := o.ingestOptions()
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") && (o.SheetName != "" || o.SheetIndex > 1) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return ingest.ReadXLSX(filepath.Base(path), data, o.SheetName, o.SheetIndex, opt)
	}
	return ingest.ReadFile(path, opt)
}

// loadDataset reads and normalizes path. A file missing every minimal column is an error.
func loadDataset(path string, o sourceOptions) (records.Result, error) {
	t, err := readTable(path, o)
	if err != nil {
		return records.Result{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	res := records.Normalize(t)
	if err := res.Err(); err != nil {
		return res, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return res, nil
}

// expandInputs resolves globs and literal paths, dropping duplicates. The result is sorted.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}
