// Package huskylens implements the host side of the HuskyLens serial
// protocol: frame encoding and validation, and one blocking request/response
// exchange per device capability.
package huskylens

import (
	"fmt"
	"io"

	"github.com/banshee-data/huskylens/internal/serialport"
)

const (
	// headerSize covers the three address bytes, the length and the command.
	headerSize = 5
	// MaxPayload is the largest payload the single length byte can declare.
	MaxPayload = 255
)

// commandHeader is the fixed address sequence that starts every frame.
var commandHeader = [3]byte{0x55, 0xAA, 0x11}

// Command is a frame opcode.
type Command byte

// Request opcodes.
const (
	CommandRequestBlocks            Command = 0x21
	CommandRequestArrows            Command = 0x22
	CommandRequestBlocksLearned     Command = 0x24
	CommandRequestArrowsLearned     Command = 0x25
	CommandRequestByID              Command = 0x26
	CommandRequestBlocksByID        Command = 0x27
	CommandRequestArrowsByID        Command = 0x28
	CommandRequestKnock             Command = 0x2C
	CommandRequestAlgorithm         Command = 0x2D
	CommandRequestCustomNames       Command = 0x2F
	CommandRequestPhoto             Command = 0x30
	CommandRequestSendKnowledges    Command = 0x32
	CommandRequestReceiveKnowledges Command = 0x33
	CommandRequestCustomText        Command = 0x34
	CommandRequestClearText         Command = 0x35
	CommandRequestLearn             Command = 0x36
	CommandRequestForget            Command = 0x37
	CommandRequestSaveScreenshot    Command = 0x39
	CommandRequestIsPro             Command = 0x3B
)

// Response opcodes.
const (
	CommandReturnInfo Command = 0x29
	CommandReturnOK   Command = 0x2E
)

var commandNames = map[Command]string{
	CommandRequestBlocks:            "REQUEST_BLOCKS",
	CommandRequestArrows:            "REQUEST_ARROWS",
	CommandRequestBlocksLearned:     "REQUEST_BLOCKS_LEARNED",
	CommandRequestArrowsLearned:     "REQUEST_ARROWS_LEARNED",
	CommandRequestByID:              "REQUEST_BY_ID",
	CommandRequestBlocksByID:        "REQUEST_BLOCKS_BY_ID",
	CommandRequestArrowsByID:        "REQUEST_ARROWS_BY_ID",
	CommandRequestKnock:             "REQUEST_KNOCK",
	CommandRequestAlgorithm:         "REQUEST_ALGORITHM",
	CommandRequestCustomNames:       "REQUEST_CUSTOM_NAMES",
	CommandRequestPhoto:             "REQUEST_PHOTO",
	CommandRequestSendKnowledges:    "REQUEST_SEND_KNOWLEDGES",
	CommandRequestReceiveKnowledges: "REQUEST_RECEIVE_KNOWLEDGES",
	CommandRequestCustomText:        "REQUEST_CUSTOM_TEXT",
	CommandRequestClearText:         "REQUEST_CLEAR_TEXT",
	CommandRequestLearn:             "REQUEST_LEARN",
	CommandRequestForget:            "REQUEST_FORGET",
	CommandRequestSaveScreenshot:    "REQUEST_SAVE_SCREENSHOT",
	CommandRequestIsPro:             "REQUEST_IS_PRO",
	CommandReturnInfo:               "RETURN_INFO",
	CommandReturnOK:                 "RETURN_OK",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("COMMAND_0x%02X", byte(c))
}

// Frame is one validated unit received from the device.
type Frame struct {
	Command Command
	Payload []byte
	// Raw holds the complete frame as it arrived, checksum included.
	Raw []byte
}

// Encode builds the wire bytes for a command frame. The payload must not
// exceed MaxPayload bytes; longer payloads are a programming error.
func Encode(cmd Command, payload []byte) []byte {
	if len(payload) > MaxPayload {
		panic(fmt.Sprintf("huskylens: payload of %d bytes exceeds %d", len(payload), MaxPayload))
	}

	frame := make([]byte, 0, headerSize+len(payload)+1)
	frame = append(frame, commandHeader[:]...)
	frame = append(frame, byte(len(payload)), byte(cmd))
	frame = append(frame, payload...)
	return append(frame, checksum(frame))
}

// Decode reads one frame from r. It first reads the fixed five byte header,
// then the declared payload plus the trailing checksum byte. A short read at
// either step is a *ResponseLengthError; a bad checksum is a
// *ChecksumMismatchError. Other read errors are returned wrapped.
func Decode(r io.Reader) (Frame, error) {
	header, err := serialport.ReadFull(r, headerSize)
	if err != nil {
		return Frame{}, fmt.Errorf("read response header: %w", err)
	}
	if len(header) != headerSize {
		return Frame{}, &ResponseLengthError{Stage: StageHeader, Expected: headerSize, Received: len(header)}
	}

	length := int(header[3])
	body, err := serialport.ReadFull(r, length+1)
	if err != nil {
		return Frame{}, fmt.Errorf("read response body: %w", err)
	}

	raw := make([]byte, 0, headerSize+length+1)
	raw = append(raw, header...)
	raw = append(raw, body...)
	if len(raw) != headerSize+length+1 {
		return Frame{}, &ResponseLengthError{Stage: StageBody, Expected: headerSize + length + 1, Received: len(raw)}
	}

	expected := checksum(raw[:len(raw)-1])
	received := raw[len(raw)-1]
	if expected != received {
		return Frame{}, &ChecksumMismatchError{Expected: expected, Received: received}
	}

	return Frame{
		Command: Command(raw[4]),
		Payload: raw[headerSize : headerSize+length],
		Raw:     raw,
	}, nil
}

// checksum is the low byte of the sum of b.
func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}
