package bridge

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lobaro/fort-agent-bridge/vehiclefsm"
)

var buttonNames = []struct {
	name string
	bit  vehiclefsm.KeypadButton
}{
	{"Menu", vehiclefsm.ButtonMenu},
	{"Pause", vehiclefsm.ButtonPause},
	{"Power", vehiclefsm.ButtonPower},
	{"L-Down", vehiclefsm.ButtonLDown},
	{"L-Right", vehiclefsm.ButtonLRight},
	{"L-Up", vehiclefsm.ButtonLUp},
	{"L-Left", vehiclefsm.ButtonLLeft},
	{"R-Down", vehiclefsm.ButtonRDown},
	{"R-Right", vehiclefsm.ButtonRRight},
	{"R-Up", vehiclefsm.ButtonRUp},
	{"R-Left", vehiclefsm.ButtonRLeft},
}

// console renders the latest combined joystick/keypad frame to a buffer
// for operator diagnostics, throttled and deduplicated so an idle link
// doesn't spam identical frames.
type console struct {
	mu       sync.Mutex
	last     vehiclefsm.Input
	hasLast  bool
	lastFlush time.Time
	minGap   time.Duration
	now      func() time.Time
}

func newConsole() *console {
	return &console{minGap: 100 * time.Millisecond, now: time.Now}
}

// Render returns the formatted frame, or ("", false) if the frame is
// identical to the last one rendered or arrived before minGap elapsed.
func (c *console) Render(in vehiclefsm.Input) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.hasLast && now.Sub(c.lastFlush) < c.minGap {
		return "", false
	}
	if c.hasLast && c.last == in {
		return "", false
	}
	c.last = in
	c.hasLast = true
	c.lastFlush = now

	var b strings.Builder
	b.WriteString("Joystick Status\n")
	fmt.Fprintf(&b, "Left  X: %s\n", formatAxis(in.Joystick.LeftX))
	fmt.Fprintf(&b, "Left  Y: %s\n", formatAxis(in.Joystick.LeftY))
	fmt.Fprintf(&b, "Left  Z: %s\n", formatAxis(in.Joystick.LeftZ))
	fmt.Fprintf(&b, "Right X: %s\n", formatAxis(in.Joystick.RightX))
	fmt.Fprintf(&b, "Right Y: %s\n", formatAxis(in.Joystick.RightY))
	fmt.Fprintf(&b, "Right Z: %s\n", formatAxis(in.Joystick.RightZ))
	b.WriteString("Button Status\n")
	for _, bn := range buttonNames {
		state := "Released"
		if in.Buttons&bn.bit != 0 {
			state = "Pressed"
		}
		fmt.Fprintf(&b, "%-8s: %s\n", bn.name, state)
	}
	return b.String(), true
}

func formatAxis(a vehiclefsm.JoystickAxis) string {
	tag := "[--]"
	if a.OK {
		tag = "[OK]"
	}
	return fmt.Sprintf("%s %d", tag, a.Value)
}
