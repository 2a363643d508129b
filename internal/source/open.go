package source

import (
	"bufio"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
)

type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }

type readCloser struct {
	io.Reader
	c io.Closer
}

func (r readCloser) Close() error { return r.c.Close() }

// Open returns the input stream for a command: the named file, or stdin when
// path is empty or "-". With bz2 set, the stream is bzip2-decompressed.
func Open(path string, bz2 bool) (io.ReadCloser, error) {
	var (
		r io.Reader
		c io.Closer
	)
	if path == "" || path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open IPFIX file: %w", err)
		}
		r, c = f, f
	}

	r = bufio.NewReaderSize(r, 64*1024)
	if bz2 {
		r = bzip2.NewReader(r)
	}
	if c == nil {
		return nopCloser{r}, nil
	}
	return readCloser{Reader: r, c: c}, nil
}
