// Package coapreq builds the CoAP request bytes for every SRC Pro resource
// the bridge can address: safety, device info, config, file, state, and
// security domains. Builders never talk to the wire themselves - they hand
// back bytes for the caller to run through its own send path (the bridge's
// SendSRCRequest), the same separation of concerns coapSRCPro.h draws
// between message construction and UartCoapBridge's transport.
package coapreq

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/lobaro/fort-agent-bridge/coapmsg"
)

// uri is a strongly typed set of CoAP path segments, mirroring
// coapSRCPro.h's Uri struct.
type uri struct {
	segments []string
}

func u(segments ...string) uri { return uri{segments: segments} }

var (
	uriFirmwareVersion = u("deviceInfo", "fwVersion")
	uriRadioMode       = u("deviceInfo", "radioMode")
	uriRadioPower      = u("deviceInfo", "radioPowerDB")
	uriRadioChannel    = u("deviceInfo", "radioChannel")
	uriRadioStatus     = u("deviceInfo", "radioStatus")
	uriRadioUsed       = u("deviceInfo", "radioUsed")
	uriCPUTemp         = u("deviceInfo", "cpuTempC")
	uriDeviceTemp      = u("deviceInfo", "deviceTempC")
	uriGaugeTemp       = u("deviceInfo", "gaugeTempC")
	uriGyroTemp        = u("deviceInfo", "gyroTempC")
	uriBatteryStatus   = u("deviceInfo", "batteryStatus")
	uriSystemStatus    = u("deviceInfo", "sys1")
	uriLockdownStatus  = u("deviceInfo", "lockdownStatus")

	uriSerialNumber = u("cfg", "setup", "serialNumber")
	uriModelNumber  = u("cfg", "setup", "modelNumber")
	uriDeviceMac    = u("cfg", "setup", "deviceMac")
	uriDeviceUID    = u("cfg", "setup", "deviceUID")
	uriDeviceRev    = u("cfg", "setup", "deviceRev")
	uriSystemReset  = u("cfg", "setup", "systemReset")
	uriDisplayMode  = u("cfg", "setup", "userSettings?99")
	uriVibrateLeft  = u("cfg", "setup", "userSettings?10")
	uriVibrateRight = u("cfg", "setup", "userSettings?11")
	uriVibrateBoth  = u("cfg", "setup", "userSettings?12")

	uriFirmwareFileMetadata = u("fs", "metadata")

	uriJoystickCalibrated     = u("st", "joystick", "calibrated")
	uriKeypad                 = u("st", "keypad")
	uriCombinedJoystickKeypad = u("st", "joystick", "combined")
	uriMode                   = u("st", "mode")
	uriDisplayText            = u("st", "display", "text")

	uriSecureElementID   = u("sec", "dev", "seuid")
	uriFsoId             = u("sec", "dev", "fso", "id")
	uriFsoLength         = u("sec", "dev", "fso", "length")
	uriFsoCrc            = u("sec", "dev", "fso", "crc")
	uriFsoErase          = u("sec", "dev", "fso", "erase")
	uriFsoData           = u("sec", "dev", "fso", "data")
	uriOtp               = u("sec", "lockdown", "otp")
	uriLockdownProcessor = u("sec", "lockdown", "processor")
	uriScp03             = u("sec", "lockdown", "scp03")
	uriOtpWrite          = u("sec", "lockdown", "otpWrite")
)

func smcuSafety(idx int) uri             { return u("sf", fmt.Sprint(idx), "s") }
func smcuSafetyDiagnostics(idx int) uri  { return u("sf", fmt.Sprint(idx), "s", "safety_diagnostics") }
func smcuSystemDiagnostics(idx int) uri  { return u("sf", fmt.Sprint(idx), "s", "system_diagnostics") }

var uriSMCUCombinedSafety = u("sf", "transmitter", "combined")

// build constructs a request, mirroring coapSRCPro.cpp's internal `build`
// helper: always Confirmable, optional Observe registration.
func build(code coapmsg.COAPCode, mid uint16, target uri, payload []byte, format coapmsg.MediaType, observe bool, observeValue uint32) ([]byte, error) {
	var obs *uint32
	if observe {
		obs = &observeValue
	}
	return coapmsg.Build(coapmsg.Confirmable, code, mid, nil, target.segments, nil, &format, obs, payload)
}

func get(mid uint16, target uri, format coapmsg.MediaType, observe bool, observeValue uint32) ([]byte, error) {
	return build(coapmsg.GET, mid, target, nil, format, observe, observeValue)
}

func post(mid uint16, target uri, payload []byte, format coapmsg.MediaType) ([]byte, error) {
	return build(coapmsg.POST, mid, target, payload, format, false, 0)
}

// cborByteString mirrors CBORHelpers::cborEncodeByteString: a CBOR byte
// string wrapping the raw payload, used for the single-byte mode/vibrate
// writes.
func cborByteString(raw []byte) ([]byte, error) {
	return cbor.Marshal(raw)
}

// --- Safety domain (sf) ---

// GetSMCUSafety requests the raw safety block for the given SMCU index.
func GetSMCUSafety(mid uint16, smcuIndex int, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, smcuSafety(smcuIndex), coapmsg.AppOctets, observe, observeValue)
}

// PostSMCUSafety pushes a raw safety block back to the SMCU slot.
func PostSMCUSafety(mid uint16, smcuIndex int, raw []byte) ([]byte, error) {
	return post(mid, smcuSafety(smcuIndex), raw, coapmsg.AppOctets)
}

// GetSMCUSafetyDiagnostics requests CBOR diagnostics for an SMCU index.
func GetSMCUSafetyDiagnostics(mid uint16, smcuIndex int, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, smcuSafetyDiagnostics(smcuIndex), coapmsg.AppCBOR, observe, observeValue)
}

// GetSMCUSystemDiagnostics requests system diagnostics for an SMCU index.
func GetSMCUSystemDiagnostics(mid uint16, smcuIndex int, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, smcuSystemDiagnostics(smcuIndex), coapmsg.AppCBOR, observe, observeValue)
}

// GetSMCUCombinedSafety requests the shared combined transmitter safety block.
func GetSMCUCombinedSafety(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriSMCUCombinedSafety, coapmsg.AppOctets, observe, observeValue)
}

// --- Device info domain (deviceInfo) ---

func GetRadioMode(mid uint16) ([]byte, error)    { return get(mid, uriRadioMode, coapmsg.TextPlain, false, 0) }
func GetRadioPowerDb(mid uint16) ([]byte, error) { return get(mid, uriRadioPower, coapmsg.TextPlain, false, 0) }
func GetRadioChannel(mid uint16) ([]byte, error) { return get(mid, uriRadioChannel, coapmsg.TextPlain, false, 0) }
func GetRadioStatus(mid uint16) ([]byte, error)  { return get(mid, uriRadioStatus, coapmsg.TextPlain, false, 0) }
func GetRadioUsed(mid uint16) ([]byte, error)    { return get(mid, uriRadioUsed, coapmsg.TextPlain, false, 0) }

func GetFirmwareVersion(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriFirmwareVersion, coapmsg.TextPlain, observe, observeValue)
}
func GetCpuTempC(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriCPUTemp, coapmsg.TextPlain, observe, observeValue)
}
func GetDeviceTempC(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriDeviceTemp, coapmsg.TextPlain, observe, observeValue)
}
func GetGaugeTempC(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriGaugeTemp, coapmsg.TextPlain, observe, observeValue)
}
func GetGyroTempC(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriGyroTemp, coapmsg.TextPlain, observe, observeValue)
}
func GetBatteryStatus(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriBatteryStatus, coapmsg.AppCBOR, observe, observeValue)
}

// GetSystemStatus queries the global system status bitfield.
func GetSystemStatus(mid uint16) ([]byte, error) {
	return get(mid, uriSystemStatus, coapmsg.TextPlain, false, 0)
}

// GetLockdownStatus is provisioning-only: reports lockdown state.
func GetLockdownStatus(mid uint16) ([]byte, error) {
	return get(mid, uriLockdownStatus, coapmsg.TextPlain, false, 0)
}

// --- Config domain (cfg/setup) ---

func GetSerialNumber(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriSerialNumber, coapmsg.TextPlain, observe, observeValue)
}
func PostSerialNumber(mid uint16, serial string) ([]byte, error) {
	return post(mid, uriSerialNumber, []byte(serial), coapmsg.TextPlain)
}
func GetModelNumber(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriModelNumber, coapmsg.TextPlain, observe, observeValue)
}
func PostModelNumber(mid uint16, model string) ([]byte, error) {
	return post(mid, uriModelNumber, []byte(model), coapmsg.TextPlain)
}
func GetDeviceMac(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriDeviceMac, coapmsg.TextPlain, observe, observeValue)
}

// GetDeviceUID is provisioning/factory-only.
func GetDeviceUID(mid uint16) ([]byte, error) {
	return get(mid, uriDeviceUID, coapmsg.AppOctets, false, 0)
}

// GetDeviceRev is provisioning/factory-only.
func GetDeviceRev(mid uint16) ([]byte, error) {
	return get(mid, uriDeviceRev, coapmsg.AppOctets, false, 0)
}

// PostSystemReset issues a system reset. mode is carried through verbatim
// as its raw ASCII byte - the SRC firmware distinguishes 'n' (normal
// reset) from 'b' (bootloader reset) and no richer enum exists on the
// wire, so this intentionally does not wrap mode in a named Go type.
func PostSystemReset(mid uint16, mode byte) ([]byte, error) {
	return post(mid, uriSystemReset, []byte{mode}, coapmsg.TextPlain)
}

func GetDisplayMode(mid uint16) ([]byte, error) {
	return get(mid, uriDisplayMode, coapmsg.AppCBOR, false, 0)
}

// PostDisplayMode sets the user display mode: 0 = normal, 1 = alternate.
func PostDisplayMode(mid uint16, mode uint8) ([]byte, error) {
	payload, err := cborByteString([]byte{mode})
	if err != nil {
		return nil, err
	}
	return post(mid, uriDisplayMode, payload, coapmsg.AppCBOR)
}

func postVibrate(mid uint16, target uri) ([]byte, error) {
	payload, err := cborByteString([]byte{1})
	if err != nil {
		return nil, err
	}
	return post(mid, target, payload, coapmsg.AppCBOR)
}

func PostVibrateLeft(mid uint16) ([]byte, error)  { return postVibrate(mid, uriVibrateLeft) }
func PostVibrateRight(mid uint16) ([]byte, error) { return postVibrate(mid, uriVibrateRight) }
func PostVibrateBoth(mid uint16) ([]byte, error)  { return postVibrate(mid, uriVibrateBoth) }

// --- File endpoints (fs) ---

// GetFirmwareFileData requests firmware file contents with a single GET
// (no Block option is sent); the filename is appended to the last Uri-Path
// segment as "data?<filename>", matching coapSRCPro.h's URI convention,
// rather than sent as a separate Uri-Query option.
func GetFirmwareFileData(mid uint16, filename string) ([]byte, error) {
	return get(mid, u("fs", "data?"+filename), coapmsg.AppOctets, false, 0)
}

// PostFirmwareFileData uploads a firmware file chunk.
func PostFirmwareFileData(mid uint16, filename string, data []byte) ([]byte, error) {
	return post(mid, u("fs", "data?"+filename), data, coapmsg.AppOctets)
}

// GetFirmwareFileMetadata retrieves metadata describing the current
// firmware file transfer (filename, length, CRC32).
func GetFirmwareFileMetadata(mid uint16) ([]byte, error) {
	return get(mid, uriFirmwareFileMetadata, coapmsg.AppCBOR, false, 0)
}

type firmwareFileMetadata struct {
	Filename string `cbor:"filename"`
	Length   uint32 `cbor:"length"`
	Crc32    uint32 `cbor:"crc32"`
}

// PostFirmwareFileMetadata uploads firmware file metadata as CBOR.
func PostFirmwareFileMetadata(mid uint16, filename string, length, crc32 uint32) ([]byte, error) {
	payload, err := cbor.Marshal(firmwareFileMetadata{Filename: filename, Length: length, Crc32: crc32})
	if err != nil {
		return nil, err
	}
	return post(mid, uriFirmwareFileMetadata, payload, coapmsg.AppCBOR)
}

// --- State endpoints (st) ---

func GetJoystickCalibrated(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriJoystickCalibrated, coapmsg.AppOctets, observe, observeValue)
}
func GetKeypad(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriKeypad, coapmsg.AppOctets, observe, observeValue)
}
func GetCombinedJoystickKeypad(mid uint16, observe bool, observeValue uint32) ([]byte, error) {
	return get(mid, uriCombinedJoystickKeypad, coapmsg.AppOctets, observe, observeValue)
}

// GetMode queries the current SRC operating mode enumeration.
func GetMode(mid uint16) ([]byte, error) {
	return get(mid, uriMode, coapmsg.TextPlain, false, 0)
}

type displayTextLines struct {
	Line0     string `cbor:"line0"`
	Line1     string `cbor:"line1"`
	UpperHalf bool   `cbor:"upperHalf"`
}

// PostDisplayTextRawLines updates two 18-character lines on the user
// display, targeting the upper or lower display region.
func PostDisplayTextRawLines(mid uint16, line0, line1 string, upperHalf bool) ([]byte, error) {
	payload, err := cbor.Marshal(displayTextLines{Line0: line0, Line1: line1, UpperHalf: upperHalf})
	if err != nil {
		return nil, err
	}
	return post(mid, uriDisplayText, payload, coapmsg.AppCBOR)
}

type displayTextSegment struct {
	Line    uint8  `cbor:"line"`
	Segment uint8  `cbor:"segment"`
	Text    string `cbor:"text"`
}

// PostDisplayTextSegment writes a 6-character segment within a display
// quadrant (line 0..3, segment 0..2).
func PostDisplayTextSegment(mid uint16, line, segment uint8, text string) ([]byte, error) {
	payload, err := cbor.Marshal(displayTextSegment{Line: line, Segment: segment, Text: text})
	if err != nil {
		return nil, err
	}
	return post(mid, uriDisplayText, payload, coapmsg.AppCBOR)
}

// --- Security endpoints (sec) ---

// GetSecureElementID queries the secure element unique identifier.
func GetSecureElementID(mid uint16) ([]byte, error) {
	return get(mid, uriSecureElementID, coapmsg.AppOctets, false, 0)
}

// PostFsoId selects the factory secure object ID for subsequent requests.
func PostFsoId(mid uint16, idString string) ([]byte, error) {
	return post(mid, uriFsoId, []byte(idString), coapmsg.TextPlain)
}
func GetFsoLength(mid uint16) ([]byte, error) { return get(mid, uriFsoLength, coapmsg.TextPlain, false, 0) }
func GetFsoCrc(mid uint16) ([]byte, error)    { return get(mid, uriFsoCrc, coapmsg.TextPlain, false, 0) }
func GetFsoErase(mid uint16) ([]byte, error)  { return get(mid, uriFsoErase, coapmsg.TextPlain, false, 0) }
func GetFsoData(mid uint16) ([]byte, error)   { return get(mid, uriFsoData, coapmsg.AppOctets, false, 0) }

// PostFsoData uploads a DER-encoded FSO payload.
func PostFsoData(mid uint16, der []byte) ([]byte, error) {
	return post(mid, uriFsoData, der, coapmsg.AppOctets)
}

// GetOtpKey retrieves OTP key material; factory-only.
func GetOtpKey(mid uint16) ([]byte, error) { return get(mid, uriOtp, coapmsg.AppOctets, false, 0) }

type otpCommit struct {
	Phrase  string `cbor:"phrase"`
	SeedHex string `cbor:"seedHex"`
}

// PostOtpCommit finalizes OTP provisioning using a phrase and hex seed.
func PostOtpCommit(mid uint16, phrase, seedHex string) ([]byte, error) {
	payload, err := cbor.Marshal(otpCommit{Phrase: phrase, SeedHex: seedHex})
	if err != nil {
		return nil, err
	}
	return post(mid, uriOtp, payload, coapmsg.AppCBOR)
}

// GetLockdownProcessorKey retrieves the lockdown processor key.
func GetLockdownProcessorKey(mid uint16) ([]byte, error) {
	return get(mid, uriLockdownProcessor, coapmsg.AppOctets, false, 0)
}

type lockdownProcessor struct {
	Phrase string `cbor:"phrase"`
	KeyHex string `cbor:"keyHex"`
}

// PostLockdownProcessor programs the lockdown processor secret.
func PostLockdownProcessor(mid uint16, phrase, keyHex string) ([]byte, error) {
	payload, err := cbor.Marshal(lockdownProcessor{Phrase: phrase, KeyHex: keyHex})
	if err != nil {
		return nil, err
	}
	return post(mid, uriLockdownProcessor, payload, coapmsg.AppCBOR)
}

// GetScp03Rotate requests SCP03 key rotation.
func GetScp03Rotate(mid uint16) ([]byte, error) {
	return get(mid, uriScp03, coapmsg.TextPlain, false, 0)
}

// PostOtpWriteDevTest is a developer-only helper writing raw OTP data.
func PostOtpWriteDevTest(mid uint16, asciiHex string) ([]byte, error) {
	return post(mid, uriOtpWrite, []byte(asciiHex), coapmsg.TextPlain)
}
