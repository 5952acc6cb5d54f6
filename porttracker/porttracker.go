// Package porttracker multiplexes UDP ports through the port-less serial
// link by stealing 3 bytes of CoAP token space for a tracking marker, and
// by remembering the MID of messages that couldn't carry one.
package porttracker

import (
	"errors"
	"sync"
	"time"

	"github.com/lobaro/fort-agent-bridge/coapmsg"
)

var ErrInvalidCoap = errors.New("porttracker: invalid coap message")

// midTimeout mirrors RFC 7252's MAX_EXCHANGE_LIFETIME (247s) rounded up,
// the longest a request/response pair can stay in flight.
const midTimeout = 250 * time.Second

type midEntry struct {
	port      uint16
	createdAt time.Time
}

// Tracker maps UDP ports onto CoAP tokens (outbound) and CoAP MIDs/tokens
// back onto UDP ports (inbound). A Tracker is safe for concurrent use.
type Tracker struct {
	mu          sync.RWMutex
	mids        map[uint16]midEntry
	defaultPort uint16
	now         func() time.Time
}

// New returns a Tracker that routes untrackable inbound messages to
// defaultPort, the EPC's canonical CoAP server port.
func New(defaultPort uint16) *Tracker {
	return &Tracker{
		mids:        map[uint16]midEntry{},
		defaultPort: defaultPort,
		now:         time.Now,
	}
}

// crc8 implements CRC-8 with polynomial 0x07, initial value 0, no input or
// output reflection - the checksum protecting the 2-byte port embedded in
// the CoAP token.
func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func marker(port uint16) (lo, hi, m byte) {
	lo = byte(port)
	hi = byte(port >> 8)
	m = crc8([]byte{lo, hi})
	return
}

// trackMid records (or refreshes) the port a MID is associated with.
// Overwriting an existing MID with a different port is allowed and is
// reported through the return value; UDPToSerial discards that report, so
// such collisions are not logged. Refreshing an identical mapping only
// bumps created_at.
func (t *Tracker) trackMid(mid uint16, port uint16) (changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, existed := t.mids[mid]
	t.mids[mid] = midEntry{port: port, createdAt: t.now()}
	return existed && prev.port != port
}

func (t *Tracker) lookupMid(mid uint16) (uint16, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.mids[mid]
	if !ok {
		return 0, false
	}
	return e.port, true
}

// Sweep removes MID entries older than the exchange-lifetime timeout. It
// should be driven by a periodic (~1s) tick from the bridge's event loop.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for mid, e := range t.mids {
		if now.Sub(e.createdAt) >= midTimeout {
			delete(t.mids, mid)
		}
	}
}

// Clear removes all tracked MIDs.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mids = map[uint16]midEntry{}
}

func header(buf []byte) (typ coapmsg.COAPType, tkl int, code byte, mid uint16, ok bool) {
	if len(buf) < 4 {
		return
	}
	typ = coapmsg.COAPType((buf[0] >> 4) & 0x3)
	tkl = int(buf[0] & 0x0f)
	code = buf[1]
	mid = uint16(buf[2])<<8 | uint16(buf[3])
	ok = true
	return
}

// UDPToSerial applies the outbound policy: given a UDP port and a CoAP
// message read from the EPC, decide whether to insert a tracking token or
// just remember the MID, and return the (possibly rewritten) buffer.
func (t *Tracker) UDPToSerial(port uint16, buf []byte) ([]byte, error) {
	typ, tkl, code, mid, ok := header(buf)
	if !ok {
		return nil, ErrInvalidCoap
	}

	switch {
	case coapmsg.IsRequestCode(code):
		if tkl <= 4 {
			if len(buf) < 4+tkl {
				return nil, ErrInvalidCoap
			}
			lo, hi, mrk := marker(port)
			out := make([]byte, 0, len(buf)+3)
			out = append(out, buf[:4]...)
			out = append(out, mrk, lo, hi)
			out = append(out, buf[4:]...)
			out[0] = out[0]&0xf0 | byte(tkl+3)&0x0f
			if typ == coapmsg.Confirmable {
				t.trackMid(mid, port)
			}
			return out, nil
		}
		t.trackMid(mid, port)
		return buf, nil

	case coapmsg.IsResponseCode(code):
		if typ == coapmsg.Confirmable {
			t.trackMid(mid, port)
		}
		return buf, nil

	case coapmsg.IsEmptyCode(code):
		t.trackMid(mid, port)
		return buf, nil

	default:
		return nil, ErrInvalidCoap
	}
}

// SerialToUDP applies the inbound policy: given a CoAP message read from
// the SRC over serial, determine which UDP port it should be forwarded to
// and return the (possibly rewritten, token-shortened) buffer alongside
// that port.
func (t *Tracker) SerialToUDP(buf []byte) (port uint16, out []byte, err error) {
	_, tkl, code, mid, ok := header(buf)
	if !ok {
		return 0, nil, ErrInvalidCoap
	}

	switch {
	case coapmsg.IsRequestCode(code):
		return t.defaultPort, buf, nil

	case coapmsg.IsResponseCode(code):
		if tkl >= 3 {
			if len(buf) < 4+tkl {
				return 0, nil, ErrInvalidCoap
			}
			mrk, lo, hi := buf[4], buf[5], buf[6]
			_, _, expected := marker(uint16(hi)<<8 | uint16(lo))
			if mrk == expected {
				p := uint16(hi)<<8 | uint16(lo)
				rest := append([]byte(nil), buf[:4]...)
				rest = append(rest, buf[7:]...)
				rest[0] = rest[0]&0xf0 | byte(tkl-3)&0x0f
				return p, rest, nil
			}
		}
		if p, found := t.lookupMid(mid); found {
			return p, buf, nil
		}
		return t.defaultPort, buf, nil

	case coapmsg.IsEmptyCode(code):
		if p, found := t.lookupMid(mid); found {
			return p, buf, nil
		}
		return t.defaultPort, buf, nil

	default:
		return 0, nil, ErrInvalidCoap
	}
}
