package pkg

import (
	"io"
	"os"

	"go.uber.org/multierr"
)

// CombinedWriter fans log output out to stdout and the rotating log file.
// Unlike io.MultiWriter it keeps writing to the rest when one writer fails,
// so a full disk does not silence stdout.
type CombinedWriter struct {
	Writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{Writers: writers}
}

// Write reports len(p) when at least one writer took the whole of p, and the
// combined errors of those that did not.
func (cw *CombinedWriter) Write(p []byte) (int, error) {
	var err error
	delivered := false
	for _, w := range cw.Writers {
		written, werr := w.Write(p)
		if werr == nil && written < len(p) {
			werr = io.ErrShortWrite
		}
		if werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		delivered = true
	}

	if !delivered && len(cw.Writers) > 0 {
		return 0, err
	}
	return len(p), err
}

// Close closes every writer that is an io.Closer, except the process
// standard streams.
func (cw *CombinedWriter) Close() error {
	var err error
	for _, w := range cw.Writers {
		if w == os.Stdout || w == os.Stderr {
			continue
		}
		if closer, ok := w.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
	}
	return err
}
