package export

import (
	"bufio"
	"os"
	"sync"

	csvmap "github.com/opendatakit-go/export-core/csvmap"
	schema "github.com/opendatakit-go/export-core/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// csvWriter wraps one output CSV file. Writes are serialized by mu; the
// pipeline only ever calls Append from its single ordered fan-in loop, but
// the mutex also protects Close racing a late Append.
type csvWriter struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// openWriter opens path for the output CSV. When overwrite is true (or the
// file does not yet exist) it is truncated and header is written
// immediately; otherwise new rows are appended without a header.
func openWriter(path string, header []string, overwrite bool) (*csvWriter, error) {
	_, statErr := os.Stat(path)
	exists := statErr == nil

	flags := os.O_CREATE | os.O_WRONLY
	truncate := overwrite || !exists
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, schema.ErrIO(path, err)
	}

	cw := &csvWriter{file: f, w: bufio.NewWriter(f)}
	if truncate {
		if err := cw.append(csvmap.EncodeLine(header)); err != nil {
			f.Close()
			return nil, err
		}
	}
	return cw, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (cw *csvWriter) Append(line string) error {
	return cw.append(line)
}

func (cw *csvWriter) append(line string) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if _, err := cw.w.WriteString(line); err != nil {
		return schema.ErrIO(cw.file.Name(), err)
	}
	return nil
}

func (cw *csvWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if err := cw.w.Flush(); err != nil {
		cw.file.Close()
		return schema.ErrIO(cw.file.Name(), err)
	}
	return cw.file.Close()
}
