package bridge

import (
	"encoding/binary"
	"errors"

	"github.com/lobaro/fort-agent-bridge/vehiclefsm"
)

// ErrCRCMismatch is returned by the joystick/keypad decoders when the
// CRC-16/MODBUS checksum trailing a payload doesn't match its contents.
var ErrCRCMismatch = errors.New("bridge: crc16 mismatch")

// crc16Modbus computes CRC-16/MODBUS (poly 0xA001, init 0x0000, reflected
// in and out) over data, matching the handheld's own checksum.
func crc16Modbus(data []byte) uint16 {
	var crc uint16 = 0x0000
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// decodeAxis unpacks a single calibrated axis word: 12-bit signed value in
// the low bits, a validity flag in bit 12, 3 reserved bits above it.
func decodeAxis(raw uint16) vehiclefsm.JoystickAxis {
	data := raw & 0x0FFF
	// sign-extend the 12-bit field
	v := int16(data)
	if data&0x0800 != 0 {
		v |= ^int16(0x0FFF)
	}
	return vehiclefsm.JoystickAxis{
		Value: v,
		OK:    raw&0x1000 != 0,
	}
}

const (
	joystickPayloadLen = 14 // 6 axes * 2 bytes + crc16
	keypadPayloadLen   = 4  // button bitmap + crc16
	combinedPayloadLen = keypadPayloadLen + joystickPayloadLen
)

// decodeJoystickPayload parses a standalone calibrated-joystick report
// (port 901) and verifies its trailing CRC-16.
func decodeJoystickPayload(buf []byte) (vehiclefsm.JoystickAxes, error) {
	if len(buf) < joystickPayloadLen {
		return vehiclefsm.JoystickAxes{}, errors.New("bridge: joystick payload too small")
	}
	want := binary.LittleEndian.Uint16(buf[12:14])
	if crc16Modbus(buf[:12]) != want {
		return vehiclefsm.JoystickAxes{}, ErrCRCMismatch
	}
	return axesFromBytes(buf), nil
}

func axesFromBytes(buf []byte) vehiclefsm.JoystickAxes {
	words := make([]uint16, 6)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(buf[i*2 : i*2+2])
	}
	return vehiclefsm.JoystickAxes{
		LeftX:  decodeAxis(words[0]),
		LeftY:  decodeAxis(words[1]),
		LeftZ:  decodeAxis(words[2]),
		RightX: decodeAxis(words[3]),
		RightY: decodeAxis(words[4]),
		RightZ: decodeAxis(words[5]),
	}
}

// decodeKeypadPayload parses a standalone keypad report (port 900) and
// verifies its trailing CRC-16.
func decodeKeypadPayload(buf []byte) (vehiclefsm.KeypadButton, error) {
	if len(buf) < keypadPayloadLen {
		return 0, errors.New("bridge: keypad payload too small")
	}
	want := binary.LittleEndian.Uint16(buf[2:4])
	if crc16Modbus(buf[:2]) != want {
		return 0, ErrCRCMismatch
	}
	return vehiclefsm.KeypadButton(binary.LittleEndian.Uint16(buf[0:2])), nil
}

// decodeCombinedPayload parses the combined joystick+keypad report (port
// 1000): a keypad block followed by a joystick block, each independently
// CRC-checked.
func decodeCombinedPayload(buf []byte) (vehiclefsm.Input, error) {
	if len(buf) != combinedPayloadLen {
		return vehiclefsm.Input{}, errors.New("bridge: combined payload has unexpected length")
	}

	keypadBlock := buf[:keypadPayloadLen]
	joystickBlock := buf[keypadPayloadLen:]

	wantKeypadCRC := binary.LittleEndian.Uint16(keypadBlock[2:4])
	if crc16Modbus(keypadBlock[:2]) != wantKeypadCRC {
		return vehiclefsm.Input{}, ErrCRCMismatch
	}

	wantJoystickCRC := binary.LittleEndian.Uint16(joystickBlock[12:14])
	if crc16Modbus(joystickBlock[:12]) != wantJoystickCRC {
		return vehiclefsm.Input{}, ErrCRCMismatch
	}

	return vehiclefsm.Input{
		Buttons:  vehiclefsm.KeypadButton(binary.LittleEndian.Uint16(keypadBlock[0:2])),
		Joystick: axesFromBytes(joystickBlock),
	}, nil
}
