package bridge

import (
	"encoding/binary"
	"testing"
)

func encodeAxis(value int16, ok bool) uint16 {
	raw := uint16(value) & 0x0FFF
	if ok {
		raw |= 0x1000
	}
	return raw
}

func buildJoystickPayload(axes [6]uint16) []byte {
	buf := make([]byte, joystickPayloadLen)
	for i, w := range axes {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], w)
	}
	binary.LittleEndian.PutUint16(buf[12:14], crc16Modbus(buf[:12]))
	return buf
}

func TestDecodeJoystickPayloadRoundTrip(t *testing.T) {
	axes := [6]uint16{
		encodeAxis(1000, true),
		encodeAxis(-1000, true),
		encodeAxis(0, false),
		encodeAxis(2047, true),
		encodeAxis(-2047, true),
		encodeAxis(5, true),
	}
	buf := buildJoystickPayload(axes)

	got, err := decodeJoystickPayload(buf)
	if err != nil {
		t.Fatalf("decodeJoystickPayload: %v", err)
	}
	if got.LeftX.Value != 1000 || !got.LeftX.OK {
		t.Fatalf("LeftX mismatch: %+v", got.LeftX)
	}
	if got.LeftY.Value != -1000 {
		t.Fatalf("LeftY mismatch: %+v", got.LeftY)
	}
	if got.LeftZ.OK {
		t.Fatalf("LeftZ should not be OK")
	}
	if got.RightY.Value != -2047 {
		t.Fatalf("RightY mismatch: %+v", got.RightY)
	}
}

func TestDecodeJoystickPayloadCRCMismatch(t *testing.T) {
	buf := buildJoystickPayload([6]uint16{1, 2, 3, 4, 5, 6})
	buf[13] ^= 0xFF // corrupt the CRC

	_, err := decodeJoystickPayload(buf)
	if err != ErrCRCMismatch {
		t.Fatalf("expected ErrCRCMismatch, got %v", err)
	}
}

func buildKeypadPayload(buttons uint16) []byte {
	buf := make([]byte, keypadPayloadLen)
	binary.LittleEndian.PutUint16(buf[0:2], buttons)
	binary.LittleEndian.PutUint16(buf[2:4], crc16Modbus(buf[:2]))
	return buf
}

func TestDecodeKeypadPayload(t *testing.T) {
	buf := buildKeypadPayload(0x0080) // R-Down
	got, err := decodeKeypadPayload(buf)
	if err != nil {
		t.Fatalf("decodeKeypadPayload: %v", err)
	}
	if got != 0x0080 {
		t.Fatalf("got %x want 0x80", got)
	}
}

func TestDecodeCombinedPayload(t *testing.T) {
	keypad := buildKeypadPayload(0x0080)
	joystick := buildJoystickPayload([6]uint16{
		encodeAxis(500, true), 0, 0, 0, 0, 0,
	})
	buf := append(append([]byte{}, keypad...), joystick...)

	got, err := decodeCombinedPayload(buf)
	if err != nil {
		t.Fatalf("decodeCombinedPayload: %v", err)
	}
	if got.Buttons != 0x0080 {
		t.Fatalf("buttons mismatch: %x", got.Buttons)
	}
	if got.Joystick.LeftX.Value != 500 {
		t.Fatalf("LeftX mismatch: %+v", got.Joystick.LeftX)
	}
}

func TestDecodeCombinedPayloadWrongSize(t *testing.T) {
	_, err := decodeCombinedPayload(make([]byte, combinedPayloadLen-1))
	if err == nil {
		t.Fatal("expected error for short combined payload")
	}
}
