package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/fintrack/fintrack/internal/schema"
)

// Format is a file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// File writes the whole batch to a single file, replacing its contents.
type File struct {
	Path   string
	Format Format

	// Stdout is used when Path is "-". Default: os.Stdout.
	Stdout io.Writer
}

// tomlDoc wraps the batch because a TOML document cannot be a bare array.
type tomlDoc struct {
	Transactions []Record `toml:"transactions"`
}

// Write implements Sink.
func (f *File) Write(_ context.Context, txns []schema.Transaction) (err error) {
	w, err := openTarget(f.Path, f.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", f.Path, cerr)
		}
	}()

	records := Records(txns)
	switch f.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(records)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(records); err == nil {
			err = enc.Close()
		}
	case FormatTOML:
		err = toml.NewEncoder(w).Encode(tomlDoc{Transactions: records})
	default:
		return fmt.Errorf("unknown format %q", f.Format)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s export: %w", f.Format, err)
	}
	return nil
}
