package serialport

import (
	"errors"
	"io"
)

// ReadFull reads up to n bytes from r. Unlike io.ReadFull it treats a
// zero-length read as the port's read timeout expiring and returns whatever
// arrived so far with a nil error. io.EOF is handled the same way. Any other
// read error is returned together with the bytes read before it.
func ReadFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := r.Read(buf[got:])
		got += m
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return buf[:got], err
		}
		if m == 0 {
			break
		}
	}
	return buf[:got], nil
}
