package huskylens

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned, wrapped with detail, when a caller
	// supplied value cannot be encoded. Nothing is sent to the device.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrShortWrite is returned when the port accepts fewer bytes than the
	// frame holds.
	ErrShortWrite = errors.New("failed to write full frame to serial port")
)

// Stage names the part of an exchange that came up short.
type Stage string

const (
	StageHeader Stage = "header"
	StageBody   Stage = "data"
	StageInfo   Stage = "info payload"
	StageRecord Stage = "record payload"
)

// ResponseLengthError reports that fewer bytes arrived than the frame
// requires. A read timeout or a disconnected device both end up here.
type ResponseLengthError struct {
	Stage    Stage
	Expected int
	Received int
}

func (e *ResponseLengthError) Error() string {
	return fmt.Sprintf("invalid response %s length %d != %d", e.Stage, e.Expected, e.Received)
}

// ChecksumMismatchError reports a frame whose trailing checksum byte does not
// match the sum of the bytes before it.
type ChecksumMismatchError struct {
	Expected byte
	Received byte
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch 0x%02x != 0x%02x", e.Expected, e.Received)
}

// IsResponseLength reports whether err is or wraps a *ResponseLengthError.
func IsResponseLength(err error) bool {
	var target *ResponseLengthError
	return errors.As(err, &target)
}

// IsChecksumMismatch reports whether err is or wraps a *ChecksumMismatchError.
func IsChecksumMismatch(err error) bool {
	var target *ChecksumMismatchError
	return errors.As(err, &target)
}
