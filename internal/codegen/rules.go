package codegen

import "strings"

// rule maps a label substring to the code emitted for it.
type rule struct {
	Contains string
	Body     string
}

// rules are checked in order; the first match wins.
//
// "Repeat 10x" opens a loop that is never closed: blocks after it are emitted
// at the top level. Block bodies are identical for every platform.
var rules = []rule{
	{"Move Forward", "motor.run_for_degrees(360, 50)  # Move forward\n"},
	{"Turn Right", "motor.run_for_degrees(90, 50)   # Turn right\n"},
	{"Turn Left", "motor.run_for_degrees(-90, 50)  # Turn left\n"},
	{"Wait for Touch", "while not touch_sensor.is_pressed():\n    time.sleep(0.1)\n"},
	{"Repeat 10x", "for i in range(10):\n    # Repeated actions\n"},
	{"Wait 1 Second", "time.sleep(1.0)  # Wait 1 second\n"},
}

// Body returns the code emitted for a block label, including its trailing
// newline. Unknown labels become a plain comment.
func Body(label string) string {
	for _, r := range rules {
		if strings.Contains(label, r.Contains) {
			return r.Body
		}
	}
	return "# Action: " + label + "\n"
}

// KnownLabels lists the label patterns the generator understands, in
// precedence order.
func KnownLabels() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Contains
	}
	return out
}
