package sim

import "io"

// Conn is one end of a Loopback.
type Conn struct {
	io.Reader
	io.Writer

	r *io.PipeReader
	w *io.PipeWriter
}

// Close closes both directions.
func (c *Conn) Close() error {
	c.w.Close()
	return c.r.Close()
}

// Loopback creates a connected pair of in-memory links. Writes block
// until the other end reads.
func Loopback() (*Conn, *Conn) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return &Conn{Reader: r1, Writer: w2, r: r1, w: w2},
		&Conn{Reader: r2, Writer: w1, r: r2, w: w1}
}
