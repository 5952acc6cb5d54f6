package vehiclefsm

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeLink struct {
	discoverOK    bool
	controlOK     bool
	readyOK       bool
	heartbeatOK   bool
	requestCalled int
	resumeCalled  int
	queryCalled   int
	wrenchCalls   []JoystickAxes
}

func (f *fakeLink) DiscoverVehicle() bool  { return f.discoverOK }
func (f *fakeLink) RequestControl() bool   { f.requestCalled++; return true }
func (f *fakeLink) IsRequestPending() bool { return false }
func (f *fakeLink) HasControl() bool       { return f.controlOK }
func (f *fakeLink) RequestResume() bool    { f.resumeCalled++; return true }
func (f *fakeLink) QueryStatus() bool      { f.queryCalled++; return true }
func (f *fakeLink) HasReadyState() bool    { return f.readyOK }
func (f *fakeLink) IsHeartbeatAlive() bool { return f.heartbeatOK }
func (f *fakeLink) SendWrenchEffort(js JoystickAxes) {
	f.wrenchCalls = append(f.wrenchCalls, js)
}
func (f *fakeLink) ComponentName() string { return "fake" }

type fakeDisplay struct {
	lines [][2]string
}

func (d *fakeDisplay) ShowText(l1, l2 string) { d.lines = append(d.lines, [2]string{l1, l2}) }
func (d *fakeDisplay) Vibrate(left, right bool) {}

func newTestMachine(link VehicleLink, display Display) *Machine {
	log := logrus.NewEntry(logrus.New())
	return New(link, display, log)
}

func rDownPress(buttons *KeypadButton) Input {
	*buttons = ButtonRDown
	return Input{Buttons: *buttons}
}
func released(buttons *KeypadButton) Input {
	*buttons = 0
	return Input{Buttons: *buttons}
}

func TestInitializeRequiresDiscoverOnEdge(t *testing.T) {
	link := &fakeLink{discoverOK: true}
	display := &fakeDisplay{}
	m := newTestMachine(link, display)
	m.cur.Enter()

	var buttons KeypadButton
	m.cur.HandleInput(rDownPress(&buttons))
	m.cur.HandleInput(Input{Buttons: buttons}) // still pressed, no new edge

	next := m.cur.Next()
	if next == nil || next.Name() != NameControl {
		t.Fatalf("expected transition to Control, got %v", next)
	}
}

func TestInitializeStaysOnFailedDiscovery(t *testing.T) {
	link := &fakeLink{discoverOK: false}
	display := &fakeDisplay{}
	m := newTestMachine(link, display)
	m.cur.Enter()

	var buttons KeypadButton
	m.cur.HandleInput(rDownPress(&buttons))

	if next := m.cur.Next(); next != nil {
		t.Fatalf("expected to stay in Initialize, got %v", next)
	}
}

func TestFullHappyPathToReady(t *testing.T) {
	link := &fakeLink{discoverOK: true, controlOK: true, readyOK: true, heartbeatOK: true}
	display := &fakeDisplay{}
	m := newTestMachine(link, display)
	m.cur.Enter()

	var buttons KeypadButton
	// Initialize -> Control
	m.cur.HandleInput(rDownPress(&buttons))
	m.cur = m.cur.Next()
	m.cur.Enter()
	if m.cur.Name() != NameControl {
		t.Fatalf("expected Control, got %v", m.cur.Name())
	}

	// Control: first edge requests control, second edge (after release) grants it
	m.cur.HandleInput(released(&buttons))
	m.cur.HandleInput(rDownPress(&buttons))
	if link.requestCalled != 1 {
		t.Fatalf("expected RequestControl called once, got %d", link.requestCalled)
	}
	m.cur.HandleInput(released(&buttons))
	m.cur.HandleInput(rDownPress(&buttons))
	next := m.cur.Next()
	if next == nil || next.Name() != NameStandby {
		t.Fatalf("expected transition to Standby, got %v", next)
	}
	m.cur = next
	m.cur.Enter()

	// Standby -> Ready
	m.cur.HandleInput(released(&buttons))
	m.cur.HandleInput(rDownPress(&buttons))
	if link.resumeCalled != 1 {
		t.Fatalf("expected RequestResume called once, got %d", link.resumeCalled)
	}
	m.cur.HandleInput(released(&buttons))
	m.cur.HandleInput(rDownPress(&buttons))
	next = m.cur.Next()
	if next == nil || next.Name() != NameReady {
		t.Fatalf("expected transition to Ready, got %v", next)
	}
	m.cur = next
	m.cur.Enter()

	// Ready: every input frame sends wrench effort
	m.cur.HandleInput(Input{Joystick: JoystickAxes{LeftX: JoystickAxis{Value: 1000, OK: true}}})
	if len(link.wrenchCalls) != 1 {
		t.Fatalf("expected 1 wrench call, got %d", len(link.wrenchCalls))
	}
}

func TestReadyTransitionsToEmergencyOnLostHeartbeat(t *testing.T) {
	link := &fakeLink{heartbeatOK: false}
	display := &fakeDisplay{}
	log := logrus.NewEntry(logrus.New())
	s := newReadyState(link, display, log)
	s.heartbeatDeadline = time.Now().Add(-time.Millisecond)

	s.Update()
	next := s.Next()
	if next == nil || next.Name() != NameEmergency {
		t.Fatalf("expected transition to Emergency, got %v", next)
	}
}

func TestReadyDoesNotTransitionOnLostControlAlone(t *testing.T) {
	link := &fakeLink{heartbeatOK: true, controlOK: false}
	display := &fakeDisplay{}
	log := logrus.NewEntry(logrus.New())
	s := newReadyState(link, display, log)
	s.heartbeatDeadline = time.Now().Add(-time.Millisecond)

	s.Update()
	if next := s.Next(); next != nil {
		t.Fatalf("losing control alone must not transition Ready, got %v", next)
	}
}

func TestEmergencyIsTerminal(t *testing.T) {
	link := &fakeLink{}
	display := &fakeDisplay{}
	log := logrus.NewEntry(logrus.New())
	s := newEmergencyState(link, display, log)
	s.HandleInput(Input{Buttons: ButtonRDown})
	s.Update()
	if next := s.Next(); next != nil {
		t.Fatalf("Emergency must be terminal, got %v", next)
	}
}

func TestControlHandleResponseReRequestsOnFailure(t *testing.T) {
	link := &fakeLink{controlOK: false}
	display := &fakeDisplay{}
	log := logrus.NewEntry(logrus.New())
	s := newControlState(link, display, log)

	var buttons KeypadButton
	s.HandleInput(rDownPress(&buttons)) // first edge: requests control
	if link.requestCalled != 1 {
		t.Fatalf("expected RequestControl called once after first edge, got %d", link.requestCalled)
	}

	s.HandleResponse() // response arrives, but HasControl is still false
	if link.requestCalled != 2 {
		t.Fatalf("expected RequestControl re-requested on failed response, got %d calls", link.requestCalled)
	}
	if next := s.Next(); next != nil {
		t.Fatalf("expected to stay in Control on failed response, got %v", next)
	}

	link.controlOK = true
	s.HandleResponse()
	if next := s.Next(); next == nil || next.Name() != NameStandby {
		t.Fatalf("expected transition to Standby once control is granted, got %v", next)
	}
}

func TestStandbyHandleResponseReQueriesOnFailure(t *testing.T) {
	link := &fakeLink{readyOK: false}
	display := &fakeDisplay{}
	log := logrus.NewEntry(logrus.New())
	s := newStandbyState(link, display, log)

	var buttons KeypadButton
	s.HandleInput(rDownPress(&buttons)) // first edge: requests resume
	if link.resumeCalled != 1 {
		t.Fatalf("expected RequestResume called once after first edge, got %d", link.resumeCalled)
	}

	s.HandleResponse() // response arrives, but HasReadyState is still false
	if link.queryCalled != 1 {
		t.Fatalf("expected QueryStatus re-queried on failed response, got %d calls", link.queryCalled)
	}
	if next := s.Next(); next != nil {
		t.Fatalf("expected to stay in Standby on failed response, got %v", next)
	}

	link.readyOK = true
	s.HandleResponse()
	if next := s.Next(); next == nil || next.Name() != NameReady {
		t.Fatalf("expected transition to Ready once ready state is granted, got %v", next)
	}
}

func TestNormalizeWrenchEffort(t *testing.T) {
	cases := []struct {
		in   int16
		want float64
	}{
		{0, 0},
		{2047, 100.0},
		{-2047, -100.0},
		{3000, 100.0},  // clamp
		{-3000, -100.0}, // clamp
	}
	for _, c := range cases {
		got := NormalizeWrenchEffort(c.in)
		if got != c.want {
			t.Errorf("NormalizeWrenchEffort(%d) = %v, want %v", c.in, got, c.want)
		}
	}
}
