package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/nickyhof/orpheus/core"
	"go.uber.org/multierr"
)

// Options control how delimited files are read and written.
type Options struct {
	// Delimiter defaults to a comma.
	Delimiter string
	// Header means the first line holds column names.
	Header bool
	S3     *S3Config
}

func (o Options) comma() (rune, error) {
	if o.Delimiter == "" {
		return ',', nil
	}
	d := o.Delimiter
	if d == `\t` {
		d = "\t"
	}
	r, size := utf8.DecodeRuneInString(d)
	if size != len(d) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, &core.BadParametersError{Reason: fmt.Sprintf("invalid delimiter %q", o.Delimiter)}
	}
	return r, nil
}

// Table is the content of a delimited file.
type Table struct {
	Header []string
	Rows   [][]string
}

// Project returns the rows reduced to attrs, in that order. Without a
// header attrs are matched to columns by position.
func (t Table) Project(attrs []string) ([][]string, error) {
	positions := make([]int, len(attrs))
	if len(t.Header) == 0 {
		for i := range attrs {
			positions[i] = i
		}
	} else {
		var missing []string
		for i, attr := range attrs {
			positions[i] = -1
			for j, name := range t.Header {
				if strings.EqualFold(strings.TrimSpace(name), attr) {
					positions[i] = j
					break
				}
			}
			if positions[i] < 0 {
				missing = append(missing, attr)
			}
		}
		if len(missing) > 0 {
			return nil, &core.SchemaMismatchError{Missing: missing}
		}
	}

	out := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		projected := make([]string, len(attrs))
		for i, p := range positions {
			if p >= len(row) {
				return nil, &core.SchemaMismatchError{Missing: []string{attrs[i]}}
			}
			projected[i] = row[p]
		}
		out[r] = projected
	}
	return out, nil
}

// LoadDelimited reads a delimited file from a local path or URL.
func LoadDelimited(ctx context.Context, path string, opts Options) (Table, error) {
	comma, err := opts.comma()
	if err != nil {
		return Table{}, err
	}

	rc, err := openReader(ctx, path, opts.S3)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	var table Table
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if opts.Header && table.Header == nil {
			table.Header = record
			continue
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// WriteDelimited writes rows to a local path or an s3:// URL, preceded by
// columns when opts.Header is set.
func WriteDelimited(ctx context.Context, path string, columns []string, rows []core.Row, opts Options) (err error) {
	comma, err := opts.comma()
	if err != nil {
		return err
	}

	wc, err := openWriter(ctx, path, opts.S3)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, wc.Close())
	}()

	writer := csv.NewWriter(wc)
	writer.Comma = comma

	if opts.Header {
		if err := writer.Write(columns); err != nil {
			return err
		}
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, v := range row {
			record[i] = core.FormatValue(v)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
