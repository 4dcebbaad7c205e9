package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Reader decodes one file format into a Table.
type Reader interface {
	CanRead(filename string) bool
	Read(name string, r io.Reader, opt Options) (*Table, error)
}

// Options bounds how much of an upload is accepted.
type Options struct {
	// MaxRows rejects files with more data rows; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, sniffed from the extension and header line.
	Delimiter rune
}

var (
	// ErrUnsupported indicates a format is not supported.
	ErrUnsupported = errors.New("unsupported file format")
	// ErrEmpty indicates the file has no header row.
	ErrEmpty = errors.New("file is empty")
	// ErrTooManyRows indicates the upload exceeds Options.MaxRows.
	ErrTooManyRows = errors.New("too many rows")
)

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// ReadFile opens path and decodes it with the first matching reader.
func ReadFile(path string, opt Options) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Read(filepath.Base(path), bytes.NewReader(data), opt)
}

// Read decodes r, choosing the reader by the file name's extension.
func Read(name string, r io.Reader, opt Options) (*Table, error) {
	for _, rd := range registry {
		if rd.CanRead(name) {
			return rd.Read(name, r, opt)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}
