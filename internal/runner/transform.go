package runner

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	sourceColumn = "data"
	outputColumn = "processed"
)

var (
	ErrEmptyInput        = errors.New("input file is empty")
	ErrMissingDataColumn = errors.New(`input has no "data" column`)
)

// Transform copies the CSV from r to w and appends a "processed" column
// holding the upper-cased value of the "data" column.
func Transform(r io.Reader, w io.Writer) error {
	in := csv.NewReader(r)
	out := csv.NewWriter(w)

	header, err := in.Read()
	if errors.Is(err, io.EOF) {
		return ErrEmptyInput
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	idx := -1
	for i, name := range header {
		// Excel exports often start with a byte order mark.
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == sourceColumn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrMissingDataColumn
	}

	if err := out.Write(append(header, outputColumn)); err != nil {
		return err
	}

	line := 1
	for {
		rec, err := in.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return fmt.Errorf("read row %d: %w", line, err)
		}
		if err := out.Write(append(rec, strings.ToUpper(rec[idx]))); err != nil {
			return err
		}
	}

	out.Flush()
	return out.Error()
}
