// Package serialtransport owns the one physical serial connection to the
// SRC handheld. It SLIP-frames outgoing CoAP datagrams, feeds incoming
// bytes through a SLIP decoder, and serializes writes so only one frame is
// ever in flight on the wire at a time.
package serialtransport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	serial "go.bug.st/serial"

	"github.com/lobaro/fort-agent-bridge/slip"
)

// ErrClosed is returned by Send once the transport has been closed.
var ErrClosed = errors.New("serialtransport: closed")

// Config describes how to open the serial port to the SRC handheld.
type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultConfig matches the firmware's fixed link parameters.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 200 * time.Millisecond,
	}
}

// conn is the subset of go.bug.st/serial.Port that the transport needs.
// Tests satisfy it with an in-memory pipe instead of a real port, the same
// way the teacher's TestConnection wraps a fake PacketReader/PacketWriter.
type conn interface {
	io.ReadWriteCloser
}

// Transport reads and writes SLIP-framed CoAP datagrams over a serial
// port. One Transport owns exactly one port for the lifetime of the
// bridge; it does not reopen per message the way a generic CoAP
// RoundTripper would, since both inbound dispatch and outbound
// self-issued requests share the single physical link.
type Transport struct {
	port   conn
	log    *logrus.Entry
	frames chan []byte
	errs   chan error

	writeMu sync.Mutex
	closed  chan struct{}
	closeMu sync.Mutex
	done    bool
}

// Open opens the serial port and starts the background read loop. Frames
// become available on Frames(); transport-level errors (including a
// closed/failed port) become available on Errors().
func Open(cfg Config, log *logrus.Entry) (*Transport, error) {
	mode := &serial.Mode{BaudRate: cfg.Baud}
	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("serialtransport: open %s: %w", cfg.Device, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serialtransport: set read timeout: %w", err)
	}

	return newTransport(port, log), nil
}

func newTransport(c conn, log *logrus.Entry) *Transport {
	t := &Transport{
		port:   c,
		log:    log,
		frames: make(chan []byte, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Frames yields decoded CoAP datagrams as they arrive off the wire.
func (t *Transport) Frames() <-chan []byte { return t.frames }

// Errors yields transport-level failures. A single error on this channel
// means the read loop has stopped; the caller should treat the transport
// as dead and close it.
func (t *Transport) Errors() <-chan error { return t.errs }

func (t *Transport) readLoop() {
	defer close(t.frames)
	dec := slip.NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			if err == io.EOF {
				return
			}
			select {
			case t.errs <- fmt.Errorf("serialtransport: read: %w", err):
			default:
			}
			return
		}
		for _, b := range buf[:n] {
			frame, ok, derr := dec.ReadByte(b)
			if derr != nil {
				t.log.WithError(derr).Warn("dropping malformed SLIP data")
				continue
			}
			if ok {
				select {
				case t.frames <- frame:
				case <-t.closed:
					return
				}
			}
		}
	}
}

// Send SLIP-encodes data and writes it to the serial port. Sends are
// serialized: a Send call blocks until any previous one has finished
// writing, which is the idiomatic equivalent of the firmware's single
// writeInProgress ring-buffer guard.
func (t *Transport) Send(data []byte) error {
	encoded, err := slip.Encode(data)
	if err != nil {
		return fmt.Errorf("serialtransport: encode: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	if _, err := t.port.Write(encoded); err != nil {
		return fmt.Errorf("serialtransport: write: %w", err)
	}
	return nil
}

// Close stops the read loop and closes the underlying port.
func (t *Transport) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	close(t.closed)
	return t.port.Close()
}
