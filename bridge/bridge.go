// Package bridge wires the serial transport, the port tracker, and the
// vehicle state machine together into the UART<->CoAP bridge: the single
// event-loop owner of the serial link and the UDP socket to the EPC.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lobaro/fort-agent-bridge/coapmsg"
	"github.com/lobaro/fort-agent-bridge/coapreq"
	"github.com/lobaro/fort-agent-bridge/porttracker"
	"github.com/lobaro/fort-agent-bridge/serialtransport"
	"github.com/lobaro/fort-agent-bridge/vehiclefsm"
)

const (
	bindRetryInterval = 5 * time.Second
	sweepInterval      = time.Second
	udpRecvBufferSize  = 1500
)

// Config describes everything needed to stand up a Bridge.
type Config struct {
	Serial serialtransport.Config

	// LocalAddr is the UDP address the bridge binds to receive traffic
	// from the EPC.
	LocalAddr string
	// RemoteAddr is the EPC's UDP address. Only datagrams from this host
	// are accepted; its port also becomes the port tracker's default
	// port for messages that can't be attributed any other way.
	RemoteAddr string
}

type udpPacket struct {
	addr *net.UDPAddr
	data []byte
}

// Bridge owns the serial transport, the UDP socket, the port tracker, and
// dispatch into local resource handlers and the vehicle FSM. One Bridge
// corresponds to one running agent process.
type Bridge struct {
	log *logrus.Entry

	transport *serialtransport.Transport
	tracker   *porttracker.Tracker
	fsm       *vehiclefsm.Machine
	codec     PayloadCodec
	console   *console

	localAddr  *net.UDPAddr
	remoteAddr *net.UDPAddr

	connMu sync.RWMutex
	conn   *net.UDPConn

	nextMID uint32

	fsmMu         sync.Mutex
	lastInput     vehiclefsm.Input
	haveLastInput bool

	failMu   sync.Mutex
	failures map[uint16]int

	resources map[uint16]resourceHandler

	done chan struct{}
}

// resourceHandler reacts to a decoded Observe payload delivered on an
// internal port.
type resourceHandler func(b *Bridge, payload []byte)

// New constructs a Bridge. It opens the serial transport immediately but
// does not bind the UDP socket or start the event loop; call Run for that.
func New(cfg Config, fsm *vehiclefsm.Machine, log *logrus.Entry) (*Bridge, error) {
	localAddr, err := net.ResolveUDPAddr("udp", cfg.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("bridge: resolve local addr: %w", err)
	}
	remoteAddr, err := net.ResolveUDPAddr("udp", cfg.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("bridge: resolve remote addr: %w", err)
	}

	transport, err := serialtransport.Open(cfg.Serial, log.WithField("component", "serial"))
	if err != nil {
		return nil, fmt.Errorf("bridge: open serial transport: %w", err)
	}

	b := &Bridge{
		log:        log,
		transport:  transport,
		tracker:    porttracker.New(uint16(remoteAddr.Port)),
		fsm:        fsm,
		codec:      NewCBORCodec(),
		console:    newConsole(),
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
		failures:   map[uint16]int{},
		done:       make(chan struct{}),
	}
	b.resources = b.buildResourceTable()
	return b, nil
}

func (b *Bridge) allocMID() uint16 {
	return uint16(atomic.AddUint32(&b.nextMID, 1))
}

// Run binds the UDP socket (retrying every 5s on failure) and drives the
// event loop until ctx is cancelled or Stop is called. It registers the
// standing Observe subscriptions for the combined joystick report and the
// controller mode report before entering the loop.
func (b *Bridge) Run(ctx context.Context) error {
	bound := make(chan *net.UDPConn, 1)
	go b.bindLoop(ctx, bound)

	serialErrs := b.transport.Errors()
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	var udpIn chan udpPacket

	b.registerObserveSubscriptions()

	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return ctx.Err()
		case <-b.done:
			b.shutdown()
			return nil

		case conn := <-bound:
			b.connMu.Lock()
			b.conn = conn
			b.connMu.Unlock()
			udpIn = make(chan udpPacket, 32)
			go b.udpReadLoop(conn, udpIn)

		case frame, ok := <-b.transport.Frames():
			if !ok {
				b.log.Error("serial transport closed")
				b.shutdown()
				return errors.New("bridge: serial transport closed")
			}
			b.handleSerialFrame(frame)

		case err := <-serialErrs:
			b.log.WithError(err).Error("serial transport failure")
			b.shutdown()
			return err

		case pkt := <-udpIn:
			b.handleUDPPacket(pkt)

		case <-sweep.C:
			b.tracker.Sweep()
		}
	}
}

// Stop halts Run.
func (b *Bridge) Stop() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

func (b *Bridge) shutdown() {
	b.transport.Close()
	b.connMu.Lock()
	if b.conn != nil {
		b.conn.Close()
	}
	b.connMu.Unlock()
}

func (b *Bridge) bindLoop(ctx context.Context, bound chan<- *net.UDPConn) {
	for {
		conn, err := net.ListenUDP("udp", b.localAddr)
		if err == nil {
			b.log.WithField("addr", b.localAddr).Info("bound local UDP socket")
			select {
			case bound <- conn:
			case <-ctx.Done():
				conn.Close()
			}
			return
		}
		b.log.WithError(err).WithField("addr", b.localAddr).Error("failed to bind local UDP socket, retrying")
		select {
		case <-time.After(bindRetryInterval):
		case <-ctx.Done():
			return
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) udpReadLoop(conn *net.UDPConn, out chan<- udpPacket) {
	buf := make([]byte, udpRecvBufferSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case out <- udpPacket{addr: addr, data: cp}:
		case <-b.done:
			return
		}
	}
}

// handleUDPPacket implements the UDP receive handler: only datagrams from
// the configured remote are accepted; the payload runs through the port
// tracker's outbound path and the result is written to the serial link.
func (b *Bridge) handleUDPPacket(pkt udpPacket) {
	if !pkt.addr.IP.Equal(b.remoteAddr.IP) {
		b.log.WithField("from", pkt.addr).Debug("dropping UDP traffic from unexpected source")
		return
	}

	out, err := b.tracker.UDPToSerial(uint16(pkt.addr.Port), pkt.data)
	if err != nil {
		b.logSendFailure(uint16(pkt.addr.Port), err)
		return
	}
	if err := b.transport.Send(out); err != nil {
		b.logSendFailure(uint16(pkt.addr.Port), err)
		return
	}
	b.clearSendFailure(uint16(pkt.addr.Port))
}

// logSendFailure logs the first failure for a port at error level, then
// only every power-of-two occurrence thereafter.
func (b *Bridge) logSendFailure(port uint16, err error) {
	b.failMu.Lock()
	b.failures[port]++
	n := b.failures[port]
	b.failMu.Unlock()

	if n == 1 || n&(n-1) == 0 {
		b.log.WithError(err).WithField("port", port).WithField("occurrence", n).
			Error("failed to relay datagram to remote port")
	}
}

func (b *Bridge) clearSendFailure(port uint16) {
	b.failMu.Lock()
	delete(b.failures, port)
	b.failMu.Unlock()
}

// handleSerialFrame implements the serial receive handler: the port
// tracker recovers the originating port; ports in the internal range are
// dispatched locally, everything else is forwarded as a UDP datagram.
func (b *Bridge) handleSerialFrame(frame []byte) {
	port, out, err := b.tracker.SerialToUDP(frame)
	if err != nil {
		b.log.WithError(err).Warn("dropping unparsable serial frame")
		return
	}

	if isInternalPort(port) {
		b.dispatchInternal(port, out)
		return
	}

	b.forwardToRemote(port, out)
}

func (b *Bridge) dispatchInternal(port uint16, frame []byte) {
	reply, err := coapmsg.ParseObserveReply(frame)
	if err != nil {
		b.log.WithError(err).WithField("port", port).Warn("dropping malformed internal CoAP frame")
		return
	}

	handler, ok := b.resources[port]
	if !ok {
		b.log.WithField("port", port).Debug("no handler registered for internal port")
		return
	}
	handler(b, reply.Payload)
}

func (b *Bridge) forwardToRemote(port uint16, frame []byte) {
	b.connMu.RLock()
	conn := b.conn
	b.connMu.RUnlock()
	if conn == nil {
		b.logSendFailure(port, errors.New("bridge: local socket not bound"))
		return
	}

	to := &net.UDPAddr{IP: b.remoteAddr.IP, Port: int(port)}
	if _, err := conn.WriteToUDP(frame, to); err != nil {
		b.logSendFailure(port, err)
		return
	}
	b.clearSendFailure(port)
}

// SendSRCRequest runs a self-issued CoAP request through the port
// tracker's outbound path and hands it to the serial transport, the same
// path a proxied UDP datagram would take. internalPort identifies which
// SRC resource the request targets.
func (b *Bridge) SendSRCRequest(coapBytes []byte, internalPort uint16) error {
	out, err := b.tracker.UDPToSerial(internalPort, coapBytes)
	if err != nil {
		return fmt.Errorf("bridge: prepare request for port %d: %w", internalPort, err)
	}
	return b.transport.Send(out)
}

// registerObserveSubscriptions issues the standing Observe registrations
// the bridge needs at startup: the combined joystick+keypad report (via
// the coapreq catalog, matching its subscribeCombinedJoystickKeypad
// helper) and the controller mode report (built directly, since the
// mode resource has no Observe-capable builder in the catalog).
func (b *Bridge) registerObserveSubscriptions() {
	joystickReq, err := coapreq.GetCombinedJoystickKeypad(b.allocMID(), true, 0)
	if err != nil {
		b.log.WithError(err).Error("failed to build combined joystick observe request")
	} else if err := b.SendSRCRequest(joystickReq, PortCombinedJoystick); err != nil {
		b.log.WithError(err).Error("failed to send combined joystick observe request")
	}

	observeOn := uint32(0)
	modeReq, err := coapmsg.Build(coapmsg.Confirmable, coapmsg.GET, b.allocMID(), nil,
		[]string{"st", "mode"}, nil, nil, &observeOn, nil)
	if err != nil {
		b.log.WithError(err).Error("failed to build controller mode observe request")
	} else if err := b.SendSRCRequest(modeReq, PortControllerMode); err != nil {
		b.log.WithError(err).Error("failed to send controller mode observe request")
	}
}
