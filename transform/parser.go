package transform

import (
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/extrame/xls"
	"github.com/rs/zerolog/log"
	"gitlab.com/osaki-lab/iowrapper"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	textransform "golang.org/x/text/transform"
	"golang.org/x/xerrors"
)

var (
	errNoSheet         = errors.New("no sheet found")
	errMalformedHeader = errors.New("malformed header")
)

// Parser parses a raw file into records. The first record is the header.
type Parser func(context.Context, io.Reader) ([][]string, error)

// CSVParser provides a parser for semicolon separated files.
//
// A leading byte order mark selects its UTF encoding and is dropped.
// Otherwise the source is decoded with enc, or read as UTF-8 when enc is nil.
// Malformed lines are skipped, except the header: a malformed header fails the file.
func CSVParser(enc encoding.Encoding) Parser {
	return func(ctx context.Context, r io.Reader) ([][]string, error) {
		l := log.Ctx(ctx)

		fallback := unicode.UTF8.NewDecoder()
		if enc != nil {
			fallback = enc.NewDecoder()
		}

		cr := csv.NewReader(textransform.NewReader(r, unicode.BOMOverride(fallback)))
		cr.Comma = ';'
		cr.FieldsPerRecord = -1

		records := [][]string{}
		skipped := 0

		for {
			record, err := cr.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				var perr *csv.ParseError
				if xerrors.As(err, &perr) && len(records) == 0 {
					return nil, xerrors.Errorf("line %d: %v: %w", perr.StartLine, perr.Err, errMalformedHeader)
				}
				if xerrors.As(err, &perr) {
					l.Debug().Int("line", perr.Line).Err(perr.Err).Msg("skip malformed line")
					skipped++
					continue
				}
				return nil, xerrors.Errorf("failed to read content as a CSV: %w", err)
			}

			records = append(records, record)
		}

		if skipped > 0 {
			l.Warn().Int("skipped", skipped).Msg("malformed lines skipped")
		}

		return records, nil
	}
}

// XLSParser provides a parser for the first sheet of Excel 97-2003 workbooks.
func XLSParser() Parser {
	getRow := func(sheet *xls.WorkSheet, row int) (r *xls.Row, ok bool) {
		defer func() { recover() }()

		r = nil
		ok = false

		return sheet.Row(row), true
	}

	return func(_ context.Context, r io.Reader) ([][]string, error) {
		wb, err := xls.OpenReader(iowrapper.NewSeeker(r), "utf-8")
		if err != nil {
			return nil, xerrors.Errorf("failed to open xls file: %w", err)
		}

		sheet := wb.GetSheet(0)
		if sheet == nil {
			return nil, errNoSheet
		}

		records := [][]string{}

		for i := 0; i <= int(sheet.MaxRow); i++ {
			row, ok := getRow(sheet, i)
			if !ok || row == nil || row.LastCol() <= 0 {
				continue
			}

			record := make([]string, 0, row.LastCol())
			for colNum := 0; colNum < row.LastCol(); colNum++ {
				record = append(record, row.Col(colNum))
			}

			records = append(records, record)
		}

		return records, nil
	}
}
