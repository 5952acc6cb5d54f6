package bridge

import "github.com/fxamacker/cbor/v2"

// BatteryStatus is the decoded form of the CBOR battery report the SRC
// publishes on the battery-status resource.
type BatteryStatus struct {
	Percent int     `cbor:"percent"`
	Volts   float64 `cbor:"volts"`
	TempC   float64 `cbor:"tempC"`
	Amps    float64 `cbor:"amps"`
}

// PayloadCodec abstracts the CBOR encode/decode used for battery status
// payloads so handlers can be tested without a real codec and so the wire
// format can be swapped without touching callers. Display and vibrate
// payloads do not go through it; the coapreq builders encode those.
type PayloadCodec interface {
	DecodeBatteryStatus(payload []byte) (BatteryStatus, error)
	EncodeBatteryStatus(BatteryStatus) ([]byte, error)
}

type cborCodec struct{}

// NewCBORCodec returns the production PayloadCodec, backed by
// github.com/fxamacker/cbor.
func NewCBORCodec() PayloadCodec { return cborCodec{} }

func (cborCodec) DecodeBatteryStatus(payload []byte) (BatteryStatus, error) {
	var bs BatteryStatus
	if err := cbor.Unmarshal(payload, &bs); err != nil {
		return BatteryStatus{}, err
	}
	return bs, nil
}

func (cborCodec) EncodeBatteryStatus(bs BatteryStatus) ([]byte, error) {
	return cbor.Marshal(bs)
}
