// Package fetcher pulls source datasets over HTTP and FTP and parses the
// formats they arrive in: CSV and XLSX tables, XML documents, JSON and ZIP
// archives. Table and document parsers stream through channels so a citywide
// POI dump never has to sit in memory whole.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// rowBuffer decouples parsing from slow consumers without holding much back.
const rowBuffer = 64

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	HasHeader bool            // first row is a header, not data
	HeaderCh  chan<- []string // receives the header row when HasHeader is set
	TrimSpace bool            // trim whitespace around every field
}

// StreamCSV reads records from r and delivers them over the returned row
// channel. Rows may have varying field counts. The error channel carries at
// most one value; both channels close when the input is exhausted or fails.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rows := make(chan []string, rowBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(rows)
		defer close(errs)

		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1

		for n := 0; ; n++ {
			rec, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- eris.Wrap(err, "csv: read row")
				return
			}
			if opts.TrimSpace {
				for i := range rec {
					rec[i] = strings.TrimSpace(rec[i])
				}
			}

			if n == 0 && opts.HasHeader {
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- rec:
					case <-ctx.Done():
						errs <- eris.Wrap(ctx.Err(), "csv: cancelled")
						return
					}
				}
				continue
			}

			select {
			case rows <- rec:
			case <-ctx.Done():
				errs <- eris.Wrap(ctx.Err(), "csv: cancelled")
				return
			}
		}
	}()

	return rows, errs
}
