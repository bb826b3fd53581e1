package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Format is an output file format.
type Format string

const (
	FormatXLSX    Format = "xlsx"
	FormatCSVGzip Format = "csv.gz"
)

// ParseFormat validates s. An empty string selects xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSVGzip:
		return FormatCSVGzip, nil
	default:
		return "", errors.Wrapf(ErrUnsupported, "%q", s)
	}
}

// Extension returns the file extension without the leading dot.
func (f Format) Extension() string { return string(f) }

// ContentType returns the MIME type of files in format f.
func (f Format) ContentType() string {
	if f == FormatCSVGzip {
		return "application/gzip"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Write renders r to w in format f.
func Write(w io.Writer, r Report, f Format) error {
	switch f {
	case FormatXLSX:
		return writeXLSX(w, r)
	case FormatCSVGzip:
		if len(r.Sheets) != 1 {
			return errors.Wrapf(ErrUnsupported, "%s has %d sheets, csv.gz holds one", r.Kind, len(r.Sheets))
		}
		return writeCSVGzip(w, r.Sheets[0])
	default:
		return errors.Wrapf(ErrUnsupported, "%q", f)
	}
}

// WriteFile writes r into dir under its file name and returns the path. The
// file appears only once it is complete.
func WriteFile(dir string, r Report, f Format) (_ string, rerr error) {
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	defer func() {
		if rerr != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := Write(tmp, r, f); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "close temp file")
	}
	path := filepath.Join(dir, r.FileName(f))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrap(err, "rename")
	}
	return path, nil
}

func writeXLSX(w io.Writer, r Report) error {
	if len(r.Sheets) == 0 {
		return errors.Wrapf(ErrUnsupported, "%s has no sheets", r.Kind)
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, sh := range r.Sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				return errors.Wrapf(err, "name sheet %q", sh.Name)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return errors.Wrapf(err, "add sheet %q", sh.Name)
		}

		header := make([]any, len(sh.Header))
		for j, h := range sh.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(sh.Name, "A1", &header); err != nil {
			return errors.Wrapf(err, "write %s header", sh.Name)
		}
		for j, row := range sh.Rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return errors.Wrap(err, "cell name")
			}
			values := make([]any, len(row))
			for k, v := range row {
				values[k] = xlsxValue(v)
			}
			if err := f.SetSheetRow(sh.Name, cell, &values); err != nil {
				return errors.Wrapf(err, "write %s row %d", sh.Name, j+1)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

func writeCSVGzip(w io.Writer, sh Sheet) error {
	gz := pgzip.NewWriter(w)
	cw := csv.NewWriter(gz)

	if err := cw.Write(sh.Header); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, record := range sh.Strings() {
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, "flush csv")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip")
	}
	return nil
}

// xlsxValue keeps money numeric in spreadsheets.
func xlsxValue(v any) any {
	switch v := v.(type) {
	case decimal.Decimal:
		return v.Round(2).InexactFloat64()
	case time.Time:
		return v.Format(time.DateTime)
	default:
		return v
	}
}

// Strings renders every row of the sheet as text, money with two decimals.
func (sh Sheet) Strings() [][]string {
	out := make([][]string, len(sh.Rows))
	for i, row := range sh.Rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = cellString(v)
		}
	}
	return out
}

func cellString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case decimal.Decimal:
		return v.StringFixed(2)
	case time.Time:
		return v.Format(time.DateTime)
	default:
		return fmt.Sprint(v)
	}
}
