package vehiclefsm

import (
	"time"

	"github.com/sirupsen/logrus"
)

// --- Initialize ---

type initializeState struct {
	base
	found bool
}

func newInitializeState(link VehicleLink, display Display, log *logrus.Entry) *initializeState {
	return &initializeState{base: base{link: link, display: display, log: log.WithField("state", NameInitialize)}}
}

func (s *initializeState) Name() Name { return NameInitialize }

func (s *initializeState) Enter() {
	s.display.ShowText("Searching", "Press R-Down")
}

func (s *initializeState) HandleInput(in Input) {
	if !s.risingEdge(in.Buttons, ButtonRDown) {
		return
	}
	if s.link.DiscoverVehicle() {
		s.found = true
		s.display.ShowText("Vehicle found", "Press R-Down")
	} else {
		s.display.ShowText("No vehicle", "Try again")
	}
}

func (s *initializeState) HandleResponse() {}
func (s *initializeState) Update()         {}

func (s *initializeState) Next() state {
	if s.found {
		return newControlState(s.link, s.display, s.log)
	}
	return nil
}

// --- Control ---

type controlState struct {
	base
	requested bool
	granted   bool
}

func newControlState(link VehicleLink, display Display, log *logrus.Entry) *controlState {
	return &controlState{base: base{link: link, display: display, log: log.WithField("state", NameControl)}}
}

func (s *controlState) Name() Name { return NameControl }

func (s *controlState) Enter() {
	s.display.ShowText("Control Vehicle", "Press R-Down to Standby")
}

func (s *controlState) HandleInput(in Input) {
	if !s.risingEdge(in.Buttons, ButtonRDown) {
		return
	}
	if !s.requested {
		s.requested = true
		s.link.RequestControl()
		s.display.ShowText("Requesting", "Control...")
	} else if s.link.HasControl() {
		s.granted = true
	}
}

func (s *controlState) HandleResponse() {
	if !s.requested {
		return
	}
	if s.link.HasControl() {
		s.granted = true
	} else {
		s.link.RequestControl()
	}
}

func (s *controlState) Update() {}

func (s *controlState) Next() state {
	if s.granted {
		return newStandbyState(s.link, s.display, s.log)
	}
	return nil
}

// --- Standby ---

type standbyState struct {
	base
	requested bool
	granted   bool
}

func newStandbyState(link VehicleLink, display Display, log *logrus.Entry) *standbyState {
	return &standbyState{base: base{link: link, display: display, log: log.WithField("state", NameStandby)}}
}

func (s *standbyState) Name() Name { return NameStandby }

func (s *standbyState) Enter() {
	s.display.ShowText("Vehicle on Standby", "Press R-Down to Resume")
}

func (s *standbyState) HandleInput(in Input) {
	if !s.risingEdge(in.Buttons, ButtonRDown) {
		return
	}
	if !s.requested {
		s.requested = true
		s.link.RequestResume()
		s.display.ShowText("Requesting", "Resume state...")
	} else if s.link.HasReadyState() {
		s.granted = true
	} else if !s.link.IsRequestPending() {
		s.link.QueryStatus()
	}
}

func (s *standbyState) HandleResponse() {
	if !s.requested {
		return
	}
	if s.link.HasReadyState() {
		s.granted = true
	} else {
		s.link.QueryStatus()
	}
}

func (s *standbyState) Update() {}

func (s *standbyState) Next() state {
	if s.granted {
		return newReadyState(s.link, s.display, s.log)
	}
	return nil
}

// --- Ready ---

type readyState struct {
	base
	heartbeatDeadline time.Time
	emergency         bool
}

const readyHeartbeatPeriod = time.Second

func newReadyState(link VehicleLink, display Display, log *logrus.Entry) *readyState {
	return &readyState{
		base:              base{link: link, display: display, log: log.WithField("state", NameReady)},
		heartbeatDeadline: time.Now().Add(readyHeartbeatPeriod),
	}
}

func (s *readyState) Name() Name { return NameReady }

func (s *readyState) Enter() {
	s.display.ShowText("Ready", "Joystick active")
	s.display.Vibrate(true, true)
}

func (s *readyState) HandleInput(in Input) {
	s.link.SendWrenchEffort(in.Joystick)
}

// HandleResponse is intentionally a no-op: heartbeat and control-loss
// checks happen on the periodic Update tick, not on a per-response basis.
func (s *readyState) HandleResponse() {}

func (s *readyState) Update() {
	if time.Now().Before(s.heartbeatDeadline) {
		return
	}
	s.heartbeatDeadline = time.Now().Add(readyHeartbeatPeriod)

	if !s.link.IsHeartbeatAlive() {
		s.emergency = true
	}

	// Losing control is observed here but intentionally does not trigger
	// a transition back to Standby; see DESIGN.md.
	_ = s.link.HasControl()
}

func (s *readyState) Next() state {
	if s.emergency {
		return newEmergencyState(s.link, s.display, s.log)
	}
	return nil
}

// --- Emergency ---

type emergencyState struct {
	base
}

func newEmergencyState(link VehicleLink, display Display, log *logrus.Entry) *emergencyState {
	return &emergencyState{base: base{link: link, display: display, log: log.WithField("state", NameEmergency)}}
}

func (s *emergencyState) Name() Name          { return NameEmergency }
func (s *emergencyState) Enter()              { s.display.ShowText("EMERGENCY", "Vehicle disabled") }
func (s *emergencyState) HandleInput(_ Input) {}
func (s *emergencyState) HandleResponse()     {}
func (s *emergencyState) Update()             {}
func (s *emergencyState) Next() state         { return nil }
