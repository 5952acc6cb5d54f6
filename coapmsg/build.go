package coapmsg

// Build constructs the wire bytes for a request or response carried over
// the UART link. It mirrors the original firmware's buildMessage helper,
// extended to also emit Uri-Query options (the C++ original built those
// only for a handful of hand-rolled call sites; every caller gets them
// here since Options already supports arbitrary queries).
//
// Options are written in strictly increasing option-number order
// (Observe=6, Uri-Path=11, Content-Format=12, Uri-Query=15), which is also
// what MarshalBinary enforces via its own sort.
func Build(typ COAPType, code COAPCode, mid uint16, token []byte, uriPathSegments []string, uriQuerySegments []string, contentFormat *MediaType, observe *uint32, payload []byte) ([]byte, error) {
	msg := NewMessage()
	msg.Type = typ
	msg.Code = code
	msg.MessageID = mid
	msg.Token = token

	if observe != nil {
		if err := msg.Options().Set(Observe, *observe); err != nil {
			return nil, err
		}
	}

	msg.SetPath(uriPathSegments)

	if contentFormat != nil {
		if err := msg.Options().Set(ContentFormat, *contentFormat); err != nil {
			return nil, err
		}
	}

	for _, q := range uriQuerySegments {
		if err := msg.Options().Add(URIQuery, q); err != nil {
			return nil, err
		}
	}

	msg.Payload = payload

	return msg.MarshalBinary()
}

// Reset builds the 4-byte empty RST message for mid:
// [0x70, 0x00, mid_hi, mid_lo].
func Reset(mid uint16) []byte {
	m := NewRst(mid)
	return m.MustMarshalBinary()
}

// ObserveReply is the minimal decode of a CoAP message relevant to the
// bridge: enough to route the payload to a port and tag it with the
// message's token and ID.
type ObserveReply struct {
	MessageID uint16
	Token     []byte
	Payload   []byte
}

// ParseObserveReply decodes buf as a CoAP message and extracts the fields
// the bridge's internal JAUS dispatch and Observe re-registration logic
// need. Unlike the original firmware's hand-rolled option walk (which
// assumed every option length fit a single nibble), this goes through the
// full UnmarshalBinary parser, so it correctly skips options using the
// 13/14 extended-length encoding instead of misreading subsequent bytes.
func ParseObserveReply(buf []byte) (ObserveReply, error) {
	msg, err := ParseMessage(buf)
	if err != nil {
		return ObserveReply{}, err
	}
	return ObserveReply{
		MessageID: msg.MessageID,
		Token:     msg.Token,
		Payload:   msg.Payload,
	}, nil
}
