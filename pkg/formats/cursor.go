package formats

import (
	"bytes"
	"encoding/binary"
	"math"
)

// cursor walks a byte slice of little-endian records. A read past the end
// sets a sticky error and returns zero, so a record's fields can be read
// in sequence with a single Err check at the end.
type cursor struct {
	data []byte
	off  int
	bad  bool
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

// section returns a cursor over count records of size bytes at off,
// after validating the range against the underlying buffer.
func (c *cursor) section(off, count int64, size int) (*cursor, error) {
	if err := checkRange(len(c.data), off, count, size); err != nil {
		return nil, err
	}
	return &cursor{data: c.data[off : off+count*int64(size)]}, nil
}

// Err reports whether any read ran past the end of the data.
func (c *cursor) Err() error {
	if c.bad {
		return ErrCorrupt
	}
	return nil
}

func (c *cursor) take(n int) []byte {
	if c.bad || n < 0 || len(c.data)-c.off < n {
		c.bad = true
		return nil
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) Skip(n int) {
	c.take(n)
}

func (c *cursor) Uint8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) Uint16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) Uint32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) Int16() int16 {
	return int16(c.Uint16())
}

func (c *cursor) Int32() int32 {
	return int32(c.Uint32())
}

func (c *cursor) Float32() float32 {
	return math.Float32frombits(c.Uint32())
}

// Name reads a fixed-length field and returns it trimmed at the first NUL.
func (c *cursor) Name(n int) string {
	b := c.take(n)
	if b == nil {
		return ""
	}
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		b = b[:idx]
	}
	return string(b)
}
