package bridge

import (
	"testing"
	"time"

	"github.com/lobaro/fort-agent-bridge/vehiclefsm"
)

func TestConsoleRenderSuppressesWithinMinGap(t *testing.T) {
	c := newConsole()
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	in1 := vehiclefsm.Input{Buttons: vehiclefsm.ButtonMenu}
	_, ok := c.Render(in1)
	if !ok {
		t.Fatal("expected first render to succeed")
	}

	in2 := vehiclefsm.Input{Buttons: vehiclefsm.ButtonPause}
	now = now.Add(10 * time.Millisecond)
	if _, ok := c.Render(in2); ok {
		t.Fatal("expected render within minGap to be suppressed")
	}

	now = now.Add(200 * time.Millisecond)
	text, ok := c.Render(in2)
	if !ok || text == "" {
		t.Fatal("expected render after minGap to succeed")
	}
}

func TestConsoleRenderSuppressesIdenticalFrame(t *testing.T) {
	c := newConsole()
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	in := vehiclefsm.Input{Buttons: vehiclefsm.ButtonRDown}
	if _, ok := c.Render(in); !ok {
		t.Fatal("expected first render to succeed")
	}

	now = now.Add(time.Second)
	if _, ok := c.Render(in); ok {
		t.Fatal("expected identical frame to be suppressed")
	}
}

func TestFormatAxis(t *testing.T) {
	ok := formatAxis(vehiclefsm.JoystickAxis{Value: 5, OK: true})
	if ok != "[OK] 5" {
		t.Fatalf("got %q", ok)
	}
	bad := formatAxis(vehiclefsm.JoystickAxis{Value: -5, OK: false})
	if bad != "[--] -5" {
		t.Fatalf("got %q", bad)
	}
}
