package huskylens

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/banshee-data/huskylens/internal/serialport"
)

// recordPayloadSize is the shortest content frame payload that carries all
// five record fields.
const recordPayloadSize = 9

// Client drives the request/response exchanges with one device.
//
// A Client is not safe for concurrent use: each call writes a command and
// then reads the device's reply, and two overlapping calls would interleave
// on the wire. Callers sharing a Client must serialise access themselves.
type Client struct {
	port     serialport.Port
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithObserver routes diagnostic events to o.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// NewClient returns a Client speaking over port. The port's reads must time
// out; see serialport.Port.
func NewClient(port serialport.Port, opts ...Option) *Client {
	c := &Client{port: port, observer: nopObserver{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial opens path with factory and returns a Client owning the port.
func Dial(factory serialport.PortFactory, path string, portOpts serialport.PortOptions, opts ...Option) (*Client, error) {
	port, err := factory.Open(path, portOpts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return NewClient(port, opts...), nil
}

// Open opens the serial device at path and returns a Client owning it.
func Open(path string, portOpts serialport.PortOptions, opts ...Option) (*Client, error) {
	return Dial(serialport.NewRealPortFactory(), path, portOpts, opts...)
}

// WithSession opens a Client, passes it to fn and closes the port whatever fn
// returns. A close error is joined onto fn's error.
func WithSession(factory serialport.PortFactory, path string, portOpts serialport.PortOptions, fn func(*Client) error, opts ...Option) (err error) {
	c, err := Dial(factory, path, portOpts, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close serial port: %w", cerr))
		}
	}()
	return fn(c)
}

// Close releases the serial port.
func (c *Client) Close() error {
	return c.port.Close()
}

// Knock checks that the device is connected. A device that does not answer
// in time is reported as (false, nil).
func (c *Client) Knock() (bool, error) {
	ok, err := c.acknowledge(CommandRequestKnock, nil)
	if IsResponseLength(err) {
		return false, nil
	}
	return ok, err
}

// SetAlgorithm switches the recognition algorithm.
func (c *Client) SetAlgorithm(algorithm Algorithm) (bool, error) {
	if !algorithm.Valid() {
		return false, fmt.Errorf("%w: unknown algorithm %d", ErrInvalidArgument, uint8(algorithm))
	}
	return c.acknowledge(CommandRequestAlgorithm, uint16Payload(uint16(algorithm)))
}

// Learn learns the currently recognised object under id.
func (c *Client) Learn(id uint16) (bool, error) {
	return c.acknowledge(CommandRequestLearn, uint16Payload(id))
}

// Forget forgets every learned object for the current algorithm.
func (c *Client) Forget() (bool, error) {
	return c.acknowledge(CommandRequestForget, nil)
}

// Photo takes a photo and saves it to the SD card.
func (c *Client) Photo() (bool, error) {
	return c.acknowledge(CommandRequestPhoto, nil)
}

// Screenshot saves a screenshot of the UI to the SD card. The device
// acknowledges even when no card is inserted.
func (c *Client) Screenshot() (bool, error) {
	return c.acknowledge(CommandRequestSaveScreenshot, nil)
}

// SetName sets the display name of the learned object id.
func (c *Client) SetName(id uint16, name string) (bool, error) {
	payload, err := encodeName(id, name)
	if err != nil {
		return false, err
	}
	return c.acknowledge(CommandRequestCustomNames, payload)
}

// SetText draws text on the device screen at (x, y).
func (c *Client) SetText(x, y uint16, text string) (bool, error) {
	payload, err := encodeText(x, y, text)
	if err != nil {
		return false, err
	}
	return c.acknowledge(CommandRequestCustomText, payload)
}

// ClearText removes all custom text from the screen.
func (c *Client) ClearText() (bool, error) {
	return c.acknowledge(CommandRequestClearText, nil)
}

// SaveModel saves the current algorithm's model to SD card slot.
func (c *Client) SaveModel(slot uint16) (bool, error) {
	return c.acknowledge(CommandRequestSendKnowledges, uint16Payload(slot))
}

// LoadModel loads the model in SD card slot for the current algorithm.
func (c *Client) LoadModel(slot uint16) (bool, error) {
	return c.acknowledge(CommandRequestReceiveKnowledges, uint16Payload(slot))
}

// IsPro reports whether the device is the pro variant.
func (c *Client) IsPro() (bool, error) {
	frame, err := c.exchange(CommandRequestIsPro, nil)
	if err != nil {
		return false, err
	}
	return frame.Raw[len(frame.Raw)-2] == 0x01, nil
}

// Blocks returns every block currently detected.
func (c *Client) Blocks() ([]Block, error) {
	return c.blocks(CommandRequestBlocks, nil)
}

// BlocksLearned returns the detected blocks that match learned objects.
func (c *Client) BlocksLearned() ([]Block, error) {
	return c.blocks(CommandRequestBlocksLearned, nil)
}

// BlocksByID returns the detected blocks with the given id. The device does
// the filtering.
func (c *Client) BlocksByID(id uint16) ([]Block, error) {
	return c.blocks(CommandRequestBlocksByID, uint16Payload(id))
}

// Arrows returns every arrow currently detected.
func (c *Client) Arrows() ([]Arrow, error) {
	return c.arrows(CommandRequestArrows, nil)
}

// ArrowsLearned returns the detected arrows that match learned objects.
func (c *Client) ArrowsLearned() ([]Arrow, error) {
	return c.arrows(CommandRequestArrowsLearned, nil)
}

// ArrowsByID returns the detected arrows with the given id. The device does
// the filtering.
func (c *Client) ArrowsByID(id uint16) ([]Arrow, error) {
	return c.arrows(CommandRequestArrowsByID, uint16Payload(id))
}

func (c *Client) blocks(cmd Command, payload []byte) ([]Block, error) {
	if err := c.writeCommand(cmd, payload); err != nil {
		return nil, err
	}
	return readRecords(c, func(p []byte) Block {
		return Block{X: int(p[0]), Y: int(p[2]), Width: int(p[4]), Height: int(p[6]), ID: int(p[8])}
	})
}

func (c *Client) arrows(cmd Command, payload []byte) ([]Arrow, error) {
	if err := c.writeCommand(cmd, payload); err != nil {
		return nil, err
	}
	return readRecords(c, func(p []byte) Arrow {
		return Arrow{XTail: int(p[0]), YTail: int(p[2]), XHead: int(p[4]), YHead: int(p[6]), ID: int(p[8])}
	})
}

// readRecords reads an info frame declaring a record count and then that
// many content frames. Any failure discards the records read so far.
func readRecords[T any](c *Client, decode func(payload []byte) T) ([]T, error) {
	info, err := c.readFrame()
	if err != nil {
		return nil, err
	}
	if len(info.Payload) < 1 {
		return nil, &ResponseLengthError{Stage: StageInfo, Expected: 1, Received: 0}
	}

	count := int(info.Payload[0])
	records := make([]T, 0, count)
	for i := 0; i < count; i++ {
		frame, err := c.readFrame()
		if err != nil {
			return nil, err
		}
		if len(frame.Payload) < recordPayloadSize {
			return nil, &ResponseLengthError{Stage: StageRecord, Expected: recordPayloadSize, Received: len(frame.Payload)}
		}
		records = append(records, decode(frame.Payload))
	}
	return records, nil
}

// acknowledge runs an exchange whose reply is a bare OK.
func (c *Client) acknowledge(cmd Command, payload []byte) (bool, error) {
	frame, err := c.exchange(cmd, payload)
	if err != nil {
		return false, err
	}
	return frame.Command == CommandReturnOK, nil
}

func (c *Client) exchange(cmd Command, payload []byte) (Frame, error) {
	if err := c.writeCommand(cmd, payload); err != nil {
		return Frame{}, err
	}
	return c.readFrame()
}

// writeCommand discards stale input and then writes one command frame.
func (c *Client) writeCommand(cmd Command, payload []byte) error {
	frame := Encode(cmd, payload)

	// Best effort: leftover bytes from an abandoned exchange would otherwise
	// be read as the start of this reply.
	_ = c.port.ResetInputBuffer()

	n, err := c.port.Write(frame)
	if err != nil {
		return fmt.Errorf("write %s: %w", cmd, err)
	}
	if n != len(frame) {
		return fmt.Errorf("write %s: %w (%d of %d bytes)", cmd, ErrShortWrite, n, len(frame))
	}
	c.observer.Observe(Event{Kind: EventFrameSent, Command: cmd, Raw: frame})
	return nil
}

func (c *Client) readFrame() (Frame, error) {
	frame, err := Decode(c.port)
	if err != nil {
		c.observer.Observe(Event{Kind: EventFrameRejected, Err: err})
		return Frame{}, err
	}
	c.observer.Observe(Event{Kind: EventFrameReceived, Command: frame.Command, Raw: frame.Raw})
	return frame, nil
}

func uint16Payload(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(make([]byte, 0, 2), v)
}
