// Package jausnoop provides a placeholder vehiclefsm.VehicleLink and
// vehiclefsm.Display: the concrete JAUS UDP transport to the vehicle
// controller lives outside this repository's scope, but cmd/fort-agent
// needs something satisfying those interfaces to wire the FSM up and
// run end to end against a real or simulated vehicle later.
//
// Method names mirror original_source's JAUSClient interface
// (JausClient.h) one for one, minus initializeJAUS, which New already
// performs as part of construction.
package jausnoop

import (
	"github.com/sirupsen/logrus"

	"github.com/lobaro/fort-agent-bridge/vehiclefsm"
)

// Link is a no-op VehicleLink: it discovers immediately, grants control
// immediately, and reports a healthy heartbeat forever. It logs each
// command it receives (discover, control and resume requests, status
// query, wrench effort) at debug level so a bridge run against it is still
// observable; the status getters do not log.
type Link struct {
	log *logrus.Entry

	controlled bool
}

// New constructs a Link, the idiomatic equivalent of JAUSClient's
// constructor plus initializeJAUS.
func New(log *logrus.Entry) *Link {
	return &Link{log: log.WithField("component", "jaus")}
}

func (l *Link) DiscoverVehicle() bool {
	l.log.Debug("discoverVehicle")
	return true
}

func (l *Link) RequestControl() bool {
	l.log.Debug("sendRequestControl")
	l.controlled = true
	return true
}

func (l *Link) IsRequestPending() bool {
	return false
}

func (l *Link) HasControl() bool {
	return l.controlled
}

func (l *Link) RequestResume() bool {
	l.log.Debug("sendRequestResume")
	l.controlled = true
	return true
}

func (l *Link) QueryStatus() bool {
	l.log.Debug("queryStatus")
	return true
}

func (l *Link) HasReadyState() bool {
	return true
}

func (l *Link) IsHeartbeatAlive() bool {
	return true
}

func (l *Link) SendWrenchEffort(axes vehiclefsm.JoystickAxes) {
	l.log.WithField("axes", axes).Debug("sendWrenchEffort")
}

func (l *Link) ComponentName() string {
	return "fort-agent-bridge"
}

// Display logs status text and vibrate commands instead of driving real
// handheld hardware.
type Display struct {
	log *logrus.Entry
}

// NewDisplay constructs a Display.
func NewDisplay(log *logrus.Entry) *Display {
	return &Display{log: log.WithField("component", "display")}
}

func (d *Display) ShowText(line1, line2 string) {
	d.log.WithField("line1", line1).WithField("line2", line2).Debug("showText")
}

func (d *Display) Vibrate(left, right bool) {
	d.log.WithField("left", left).WithField("right", right).Debug("vibrate")
}
