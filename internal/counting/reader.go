// Package counting wraps readers to report how many bytes passed through.
package counting

import "io"

// Reader counts the bytes read from the wrapped reader.
type Reader struct {
	r io.Reader
	n int64
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (c *Reader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// N returns the number of bytes read so far.
func (c *Reader) N() int64 { return c.n }
