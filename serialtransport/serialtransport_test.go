package serialtransport

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lobaro/fort-agent-bridge/slip"
)

// pipeConn adapts a net.Conn (from net.Pipe) to the conn interface so tests
// don't need a real serial port.
type pipeConn struct{ net.Conn }

func newPipeTransport(t *testing.T) (*Transport, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	log := logrus.NewEntry(logrus.New())
	tr := newTransport(pipeConn{a}, log)
	t.Cleanup(func() { tr.Close(); b.Close() })
	return tr, b
}

func TestTransportDecodesIncomingFrames(t *testing.T) {
	tr, remote := newPipeTransport(t)

	payload := []byte{0x40, 0x01, 0x12, 0x34}
	encoded, err := slip.Encode(payload)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		remote.Write(encoded)
	}()

	select {
	case frame := <-tr.Frames():
		if string(frame) != string(payload) {
			t.Fatalf("got %x want %x", frame, payload)
		}
	case err := <-tr.Errors():
		t.Fatalf("unexpected transport error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestTransportSendEncodesAndWrites(t *testing.T) {
	tr, remote := newPipeTransport(t)

	payload := []byte{0x40, 0x02, 0xAB, 0xCD}
	done := make(chan error, 1)
	go func() { done <- tr.Send(payload) }()

	buf := make([]byte, 64)
	n, err := io.ReadAtLeast(remote, buf, len(payload)+2)
	if err != nil {
		t.Fatalf("read from remote: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	frames, err := slip.DecodeAll(buf[:n])
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(frames) != 1 || string(frames[0]) != string(payload) {
		t.Fatalf("unexpected decoded frames: %x", frames)
	}
}

func TestTransportCloseStopsReadLoop(t *testing.T) {
	tr, remote := newPipeTransport(t)
	defer remote.Close()

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Send([]byte{0x40, 0x01, 0, 0}); err != ErrClosed {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}

	select {
	case _, ok := <-tr.Frames():
		if ok {
			t.Fatal("expected Frames to be closed once the read loop stops")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop after Close")
	}
}
