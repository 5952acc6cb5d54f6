package bridge

import (
	"strconv"

	"github.com/lobaro/fort-agent-bridge/vehiclefsm"
)

// buildResourceTable wires every recognized internal port to its handler.
// Ports with no entry are logged and dropped by dispatchInternal.
func (b *Bridge) buildResourceTable() map[uint16]resourceHandler {
	return map[uint16]resourceHandler{
		PortKeypad:             (*Bridge).handleKeypad,
		PortJoystickCalibrated: (*Bridge).handleCalibratedJoystick,
		PortCombinedJoystick:   (*Bridge).handleCombinedJoystick,
		PortControllerMode:     (*Bridge).handleControllerMode,
		PortDisplayText:        (*Bridge).handleDisplayText,

		PortFirmwareVersion: handleIdentifier("firmware version"),
		PortModelNumber:     handleIdentifier("model number"),
		PortSerialNumber:    handleIdentifier("serial number"),
		PortDeviceMAC:       handleIdentifier("device MAC"),

		PortCPUTemp:   handleTemperature("CPU"),
		PortGaugeTemp: handleTemperature("gauge"),
		PortGyroTemp:  handleTemperature("gyro"),

		PortBatteryStatus: (*Bridge).handleBatteryStatus,

		PortRadioMode:    handleIdentifier("radio mode"),
		PortRadioPower:   handleIdentifier("radio power"),
		PortRadioChannel: handleIdentifier("radio channel"),
		PortRadioStatus:  handleIdentifier("radio status"),

		PortSystemStatus:   handleIdentifier("system status"),
		PortLockdownStatus: handleIdentifier("lockdown status"),

		PortFSO:      handleSecurityEvent("FSO"),
		PortOTP:      handleSecurityEvent("OTP"),
		PortLockdown: handleSecurityEvent("lockdown"),
		PortSecureEl: handleSecurityEvent("secure element"),
	}
}

func (b *Bridge) handleKeypad(payload []byte) {
	buttons, err := decodeKeypadPayload(payload)
	if err != nil {
		b.log.WithError(err).Warn("dropping keypad report")
		return
	}
	b.log.WithField("buttons", buttons).Debug("keypad report")
}

func (b *Bridge) handleCalibratedJoystick(payload []byte) {
	axes, err := decodeJoystickPayload(payload)
	if err != nil {
		b.log.WithError(err).Warn("dropping calibrated joystick report")
		return
	}
	b.log.WithField("axes", axes).Debug("calibrated joystick report")
}

// handleCombinedJoystick decodes the combined keypad+joystick record,
// renders it to the console, and - deduplicating consecutive identical
// reports - posts it to the vehicle FSM.
func (b *Bridge) handleCombinedJoystick(payload []byte) {
	input, err := decodeCombinedPayload(payload)
	if err != nil {
		b.log.WithError(err).Warn("dropping combined joystick report")
		return
	}

	if text, ok := b.console.Render(input); ok {
		b.log.Debug(text)
	}

	b.fsmMu.Lock()
	dup := b.haveLastInput && b.lastInput == input
	b.lastInput = input
	b.haveLastInput = true
	b.fsmMu.Unlock()
	if dup {
		return
	}

	b.fsm.Send(vehiclefsm.Event{Input: &input})
}

func (b *Bridge) handleControllerMode(payload []byte) {
	if len(payload) < 1 {
		b.log.Warn("controller mode payload too small")
		return
	}
	mode := SRCPMode(payload[0])
	b.log.WithField("mode", mode.String()).Info("controller mode report")
}

func (b *Bridge) handleDisplayText(payload []byte) {
	b.log.WithField("text", string(payload)).Debug("display text report")
}

// handleIdentifier returns a handler that logs a text/octet payload under
// the given label; used for the identifier, radio, and status resources
// whose payload is opaque to the bridge.
func handleIdentifier(label string) resourceHandler {
	return func(b *Bridge, payload []byte) {
		b.log.WithField("resource", label).WithField("value", string(payload)).Info("resource report")
	}
}

func handleTemperature(label string) resourceHandler {
	return func(b *Bridge, payload []byte) {
		v, err := strconv.ParseFloat(string(payload), 64)
		if err != nil {
			b.log.WithError(err).WithField("sensor", label).Warn("dropping malformed temperature report")
			return
		}
		b.log.WithField("sensor", label).WithField("celsius", v).Debug("temperature report")
	}
}

func (b *Bridge) handleBatteryStatus(payload []byte) {
	status, err := b.codec.DecodeBatteryStatus(payload)
	if err != nil {
		b.log.WithError(err).Warn("dropping malformed battery status report")
		return
	}
	b.log.WithField("percent", status.Percent).
		WithField("volts", status.Volts).
		WithField("tempC", status.TempC).
		WithField("amps", status.Amps).
		Info("battery status report")
}

// handleSecurityEvent returns a dispatch-only handler for resources the
// bridge doesn't interpret further than logging; these exist so their
// traffic is visible without silently falling through to "no handler".
func handleSecurityEvent(label string) resourceHandler {
	return func(b *Bridge, payload []byte) {
		b.log.WithField("resource", label).WithField("bytes", len(payload)).Info("security resource event")
	}
}
