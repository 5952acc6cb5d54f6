package coapreq

import (
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/lobaro/fort-agent-bridge/coapmsg"
)

func parse(t *testing.T, buf []byte) *coapmsg.Message {
	t.Helper()
	msg, err := coapmsg.ParseMessage(buf)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	return &msg
}

func TestGetCombinedJoystickKeypadRegistersObserve(t *testing.T) {
	buf, err := GetCombinedJoystickKeypad(0x3000, true, 0)
	if err != nil {
		t.Fatalf("GetCombinedJoystickKeypad: %v", err)
	}
	msg := parse(t, buf)
	if msg.Code != coapmsg.GET {
		t.Fatalf("got code %v, want GET", msg.Code)
	}
	if !msg.IsConfirmable() {
		t.Fatal("expected a Confirmable request")
	}
	if got := msg.Path(); len(got) != 3 || got[0] != "st" || got[1] != "joystick" || got[2] != "combined" {
		t.Fatalf("got path %v", got)
	}
	observe, ok := msg.Observe()
	if !ok || observe != 0 {
		t.Fatalf("expected Observe=0 (register), got %v set=%v", observe, ok)
	}
}

func TestGetCombinedJoystickKeypadUnregistersObserve(t *testing.T) {
	buf, err := GetCombinedJoystickKeypad(0x3000, true, 1)
	if err != nil {
		t.Fatalf("GetCombinedJoystickKeypad: %v", err)
	}
	msg := parse(t, buf)
	observe, ok := msg.Observe()
	if !ok || observe != 1 {
		t.Fatalf("expected Observe=1 (deregister), got %v set=%v", observe, ok)
	}
}

func TestPostSystemResetPreservesModeLiteral(t *testing.T) {
	for _, mode := range []byte{'n', 'b'} {
		buf, err := PostSystemReset(1, mode)
		if err != nil {
			t.Fatalf("PostSystemReset(%q): %v", mode, err)
		}
		msg := parse(t, buf)
		if msg.Code != coapmsg.POST {
			t.Fatalf("got code %v, want POST", msg.Code)
		}
		if len(msg.Payload) != 1 || msg.Payload[0] != mode {
			t.Fatalf("got payload %v, want single byte %q", msg.Payload, mode)
		}
	}
}

func TestPostVibrateLeftEncodesCBORByteOne(t *testing.T) {
	buf, err := PostVibrateLeft(2)
	if err != nil {
		t.Fatalf("PostVibrateLeft: %v", err)
	}
	msg := parse(t, buf)
	var raw []byte
	if err := cbor.Unmarshal(msg.Payload, &raw); err != nil {
		t.Fatalf("cbor.Unmarshal: %v", err)
	}
	if len(raw) != 1 || raw[0] != 1 {
		t.Fatalf("got %v, want [1]", raw)
	}
}

func TestPostDisplayTextRawLinesRoundTrip(t *testing.T) {
	buf, err := PostDisplayTextRawLines(3, "hello", "world", true)
	if err != nil {
		t.Fatalf("PostDisplayTextRawLines: %v", err)
	}
	msg := parse(t, buf)
	var got displayTextLines
	if err := cbor.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("cbor.Unmarshal: %v", err)
	}
	if got.Line0 != "hello" || got.Line1 != "world" || !got.UpperHalf {
		t.Fatalf("got %+v", got)
	}
}

func TestGetFirmwareFileDataEmbedsFilenameInPath(t *testing.T) {
	buf, err := GetFirmwareFileData(4, "boot.bin")
	if err != nil {
		t.Fatalf("GetFirmwareFileData: %v", err)
	}
	msg := parse(t, buf)
	path := msg.Path()
	if len(path) != 2 || path[0] != "fs" || path[1] != "data?boot.bin" {
		t.Fatalf("got path %v", path)
	}
}

func TestGetBatteryStatusUsesCBORContentFormat(t *testing.T) {
	buf, err := GetBatteryStatus(5, false, 0)
	if err != nil {
		t.Fatalf("GetBatteryStatus: %v", err)
	}
	msg := parse(t, buf)
	format, ok := msg.ContentFormat()
	if !ok || format != coapmsg.AppCBOR {
		t.Fatalf("got content-format %v set=%v, want AppCBOR", format, ok)
	}
}

// TestGetCombinedJoystickKeypadOmitsObserveWhenNotRequested exercises the
// Observe accessor's negative case, covering the branch the maintainer
// flagged as missing: a non-observing request must report Observe unset.
func TestGetCombinedJoystickKeypadOmitsObserveWhenNotRequested(t *testing.T) {
	buf, err := GetCombinedJoystickKeypad(0x3001, false, 0)
	if err != nil {
		t.Fatalf("GetCombinedJoystickKeypad: %v", err)
	}
	msg := parse(t, buf)
	if _, ok := msg.Observe(); ok {
		t.Fatal("expected Observe to be unset when observe=false")
	}
}
