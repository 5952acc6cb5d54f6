// Package vehiclefsm drives the handheld's five-state vehicle control
// cycle: Initialize, Control, Standby, Ready, Emergency. It owns the
// VehicleLink handle exclusively and runs on its own goroutine, fed by a
// channel carrying joystick frames and link responses - the idiomatic
// equivalent of the firmware's mutex+condvar input queue.
package vehiclefsm

import (
	"time"

	"github.com/sirupsen/logrus"
)

// KeypadButton is a bitmask matching the handheld's button report.
type KeypadButton uint16

const (
	ButtonMenu   KeypadButton = 1 << 0
	ButtonPause  KeypadButton = 1 << 1
	ButtonPower  KeypadButton = 1 << 2
	ButtonLDown  KeypadButton = 1 << 3
	ButtonLRight KeypadButton = 1 << 4
	ButtonLUp    KeypadButton = 1 << 5
	ButtonLLeft  KeypadButton = 1 << 6
	ButtonRDown  KeypadButton = 1 << 7
	ButtonRRight KeypadButton = 1 << 8
	ButtonRUp    KeypadButton = 1 << 9
	ButtonRLeft  KeypadButton = 1 << 10
)

func pressed(mask, button KeypadButton) bool {
	return mask&button != 0
}

// JoystickAxis is one 12-bit signed calibrated axis sample plus its
// validity flag, as reported by the handheld.
type JoystickAxis struct {
	Value int16 // in [-2047, 2047]
	OK    bool
}

// JoystickAxes bundles the six calibrated axes the handheld reports.
type JoystickAxes struct {
	LeftX, LeftY, LeftZ    JoystickAxis
	RightX, RightY, RightZ JoystickAxis
}

// NormalizeWrenchEffort maps a calibrated 12-bit axis value in
// [-2047, 2047] to a wrench-effort percentage in [-100.0, 100.0],
// clamping out-of-range input rather than wrapping or panicking.
func NormalizeWrenchEffort(v int16) float64 {
	const maxIn = 2047.0
	const maxOut = 100.0
	f := float64(v) / maxIn * maxOut
	if f > maxOut {
		return maxOut
	}
	if f < -maxOut {
		return -maxOut
	}
	return f
}

// Input is one sampled frame from the combined joystick+keypad report.
type Input struct {
	Joystick JoystickAxes
	Buttons  KeypadButton
}

// Response signals that the VehicleLink has something new to react to
// (a control grant, a status reply, a heartbeat tick, ...). The FSM polls
// the link directly in response to it rather than carrying a payload.
type Response struct{}

// Event is the tagged union fed to the FSM's run loop.
type Event struct {
	Input    *Input
	Response *Response
}

// VehicleLink is the capability the FSM drives; the concrete JAUS
// transport implementing it lives outside this package's scope.
type VehicleLink interface {
	DiscoverVehicle() bool
	RequestControl() bool
	IsRequestPending() bool
	HasControl() bool
	RequestResume() bool
	QueryStatus() bool
	HasReadyState() bool
	IsHeartbeatAlive() bool
	SendWrenchEffort(JoystickAxes)
	ComponentName() string
}

// Display is the capability states use to report status to the
// handheld's screen and haptics; distinct from VehicleLink so states can
// be tested without a full link fake.
type Display interface {
	ShowText(line1, line2 string)
	Vibrate(left, right bool)
}

// Name identifies a state for logging and tests.
type Name string

const (
	NameInitialize Name = "Initialize"
	NameControl    Name = "Control"
	NameStandby    Name = "Standby"
	NameReady      Name = "Ready"
	NameEmergency  Name = "Emergency"
)

// state is the per-state behavior, mirroring IVehicleState in the
// original firmware: enter, handle input, handle a link response, run
// periodic bookkeeping, and decide the next state (nil = stay / terminal).
type state interface {
	Name() Name
	Enter()
	HandleInput(Input)
	HandleResponse()
	Update()
	Next() state
}

type base struct {
	link    VehicleLink
	display Display
	log     *logrus.Entry

	lastButtons KeypadButton
}

func (b *base) risingEdge(buttons KeypadButton, button KeypadButton) bool {
	was := pressed(b.lastButtons, button)
	now := pressed(buttons, button)
	b.lastButtons = buttons
	return !was && now
}

// Machine runs the FSM on its own goroutine.
type Machine struct {
	link    VehicleLink
	display Display
	log     *logrus.Entry

	events chan Event
	done   chan struct{}

	cur state
}

// New constructs a Machine in the Initialize state. Call Run to start it.
func New(link VehicleLink, display Display, log *logrus.Entry) *Machine {
	m := &Machine{
		link:    link,
		display: display,
		log:     log,
		events:  make(chan Event, 32),
		done:    make(chan struct{}),
	}
	m.cur = newInitializeState(link, display, log)
	return m
}

// Current returns the name of the active state; mostly for tests/metrics.
func (m *Machine) Current() Name {
	return m.cur.Name()
}

// Send enqueues an event for the FSM's goroutine. It never blocks forever
// on a dead machine; Run must be draining Send's channel.
func (m *Machine) Send(ev Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// Run drives the FSM until Stop is called. It
// ticks state.Update() once per tickInterval and transitions states via
// Next() after every event and every tick.
func (m *Machine) Run(tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	m.cur.Enter()

	for {
		select {
		case ev := <-m.events:
			if ev.Input != nil {
				m.cur.HandleInput(*ev.Input)
			}
			if ev.Response != nil {
				m.cur.HandleResponse()
			}
			m.transition()
		case <-ticker.C:
			m.cur.Update()
			m.transition()
		case <-m.done:
			return
		}
	}
}

func (m *Machine) transition() {
	next := m.cur.Next()
	if next == nil {
		return
	}
	m.log.WithField("from", m.cur.Name()).WithField("to", next.Name()).Info("vehicle FSM transition")
	m.cur = next
	m.cur.Enter()
}

// Stop halts Run.
func (m *Machine) Stop() {
	close(m.done)
}
