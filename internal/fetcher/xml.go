package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// StreamXML decodes every element whose local name matches name into T and
// delivers the values over the returned channel. Documents in legacy
// encodings are transcoded via the charset declared in the XML prolog.
// Both channels close when the input is exhausted or fails.
func StreamXML[T any](ctx context.Context, r io.Reader, name string) (<-chan T, <-chan error) {
	out := make(chan T, rowBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		dec := xml.NewDecoder(r)
		dec.CharsetReader = charsetReader

		for {
			tok, err := dec.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- eris.Wrap(err, "xml: read token")
				return
			}
			start, ok := tok.(xml.StartElement)
			if !ok || start.Name.Local != name {
				continue
			}

			var v T
			if err := dec.DecodeElement(&v, &start); err != nil {
				errs <- eris.Wrap(err, "xml: decode element")
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
				errs <- eris.Wrap(ctx.Err(), "xml: cancelled")
				return
			}
		}
	}()

	return out, errs
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}
