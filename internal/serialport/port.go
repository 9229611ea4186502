// Package serialport is the byte-stream transport underneath the HuskyLens
// protocol engine. It wraps go.bug.st/serial behind a small interface so the
// engine can be exercised against scripted ports in tests.
package serialport

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Port defines the minimal interface the protocol engine needs from a serial
// port. Reads must honour a read timeout: a read that times out returns
// (0, nil) rather than blocking forever.
type Port interface {
	io.ReadWriter
	io.Closer
	// ResetInputBuffer discards any received bytes that have not been read.
	ResetInputBuffer() error
}

// PortFactory defines an interface for opening serial ports.
type PortFactory interface {
	// Open opens a serial port at the specified path with the given options.
	Open(path string, opts PortOptions) (Port, error)
}

// PortOpener is a function type for opening serial ports.
type PortOpener func(path string, opts PortOptions) (Port, error)

// Open implements PortFactory.
func (f PortOpener) Open(path string, opts PortOptions) (Port, error) {
	return f(path, opts)
}

// Open opens the serial device at path and applies the read timeout from
// opts, so that reads return short instead of blocking indefinitely.
func Open(path string, opts PortOptions) (Port, error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := normalized.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(normalized.readTimeout()); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// NewRealPortFactory returns a PortFactory backed by go.bug.st/serial.
func NewRealPortFactory() PortFactory {
	return PortOpener(Open)
}

func (o PortOptions) readTimeout() time.Duration {
	if o.ReadTimeout <= 0 {
		return serial.NoTimeout
	}
	return o.ReadTimeout
}
