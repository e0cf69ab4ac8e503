package dataset

import (
	"context"
	"io"
)

// Stream reads path row by row and sends each row as a TransactionObservation.
// Both channels are closed when reading ends. At most one error is sent;
// cancelling ctx stops the reader without an error, and no record is read
// once ctx is done.
func Stream(ctx context.Context, path string, schema Schema, opts LoadOptions) (<-chan TransactionObservation, <-chan error) {
	out := make(chan TransactionObservation)
	errc := make(chan error, 1)

	f, err := openInput(path)
	if err != nil {
		errc <- err
		close(errc)
		close(out)
		return out, errc
	}

	go func() {
		defer f.Close()
		defer close(errc)
		defer close(out)

		p := newRowParser(path, schema)
		slots := slotsFor(schema)
		src := newRecordSource(f, opts)
		for ctx.Err() == nil {
			rec, line, err := src.next()
			if err == io.EOF {
				return
			}
			if err == nil {
				err = p.parse(rec, line)
			} else {
				err = readError(path, err)
			}
			if err != nil {
				if ctx.Err() == nil {
					errc <- err
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- p.observation(slots):
			}
		}
	}()
	return out, errc
}
