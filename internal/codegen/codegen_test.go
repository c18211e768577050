package codegen

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/livetemplate/legocoder"
	"github.com/livetemplate/legocoder/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedDate = time.Date(2024, time.March, 9, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedDate }

func blocksOf(labels ...string) []workspace.Block {
	s := workspace.NewStore()
	for _, l := range labels {
		s.Append(l)
	}
	return s.List()
}

func TestGenerateEmptyWorkspace(t *testing.T) {
	g := New(fixedClock)
	out, err := g.Generate(legocoder.EV3, nil)
	assert.Empty(t, out)
	assert.True(t, errors.Is(err, ErrEmptyWorkspace))

	_, err = g.Generate(legocoder.SpikePrime, []workspace.Block{})
	assert.ErrorIs(t, err, ErrEmptyWorkspace)
}

func TestGenerateEV3Example(t *testing.T) {
	g := New(fixedClock)
	out, err := g.Generate(legocoder.EV3, blocksOf("Wait 1 Second", "Turn Right"))
	require.NoError(t, err)

	want := "# LEGO EV3 Program\n" +
		"# Generated from block code\n" +
		"# Date: 3/9/2024\n" +
		"\n" +
		"# 1. Wait 1 Second\n" +
		"time.sleep(1.0)  # Wait 1 second\n" +
		"\n" +
		"# 2. Turn Right\n" +
		"motor.run_for_degrees(90, 50)   # Turn right\n" +
		"\n"
	assert.Equal(t, want, out)
}

func TestGenerateUnknownLabel(t *testing.T) {
	out, err := New(fixedClock).Generate(legocoder.SpikePrime, blocksOf("Dance"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "# 1. Dance\n# Action: Dance\n\n"), out)
	assert.True(t, strings.HasPrefix(out, "# LEGO SPIKE Prime Program\n"))
}

func TestBodyRules(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Move Forward", "motor.run_for_degrees(360, 50)  # Move forward\n"},
		{"Turn Right", "motor.run_for_degrees(90, 50)   # Turn right\n"},
		{"Turn Left", "motor.run_for_degrees(-90, 50)  # Turn left\n"},
		{"Wait for Touch", "while not touch_sensor.is_pressed():\n    time.sleep(0.1)\n"},
		{"Repeat 10x", "for i in range(10):\n    # Repeated actions\n"},
		{"Wait 1 Second", "time.sleep(1.0)  # Wait 1 second\n"},
		{"🚗 Move Forward", "motor.run_for_degrees(360, 50)  # Move forward\n"},
		{"move forward", "# Action: move forward\n"},
		{"", "# Action: \n"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, Body(tt.label))
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	assert.Equal(t, Body("Move Forward"), Body("Turn Right then Move Forward"))
	assert.Equal(t, Body("Turn Right"), Body("Turn Right and Turn Left"))
	assert.Equal(t, Body("Wait for Touch"), Body("Wait for Touch, Wait 1 Second"))
}

func TestPlatformOnlyChangesHeader(t *testing.T) {
	g := New(fixedClock)
	blocks := blocksOf("Move Forward", "Repeat 10x", "Turn Left", "Dance")

	ev3, err := g.Generate(legocoder.EV3, blocks)
	require.NoError(t, err)
	spike, err := g.Generate(legocoder.SpikePrime, blocks)
	require.NoError(t, err)

	_, ev3Body, _ := strings.Cut(ev3, "\n\n")
	_, spikeBody, _ := strings.Cut(spike, "\n\n")
	assert.Equal(t, ev3Body, spikeBody)
	assert.NotEqual(t, ev3, spike)
}

func TestGenerateIsDeterministic(t *testing.T) {
	blocks := blocksOf("Move Forward", "Wait for Touch", "Repeat 10x")
	day := 0
	g := New(func() time.Time { day++; return fixedDate.AddDate(0, 0, day) })

	a, err := g.Generate(legocoder.EV3, blocks)
	require.NoError(t, err)
	b, err := g.Generate(legocoder.EV3, blocks)
	require.NoError(t, err)

	stripDate := func(s string) string {
		lines := strings.Split(s, "\n")
		return strings.Join(append(lines[:2:2], lines[3:]...), "\n")
	}
	assert.NotEqual(t, a, b, "date line should differ")
	assert.Equal(t, stripDate(a), stripDate(b))
}

func TestRepeatLoopIsLeftOpen(t *testing.T) {
	out, err := New(fixedClock).Generate(legocoder.EV3, blocksOf("Repeat 10x", "Move Forward"))
	require.NoError(t, err)
	assert.Contains(t, out, "for i in range(10):\n    # Repeated actions\n\n# 2. Move Forward\nmotor.run_for_degrees(360, 50)")
}

func TestGenerateFromText(t *testing.T) {
	g := New(fixedClock)

	for _, blank := range []string{"", "   ", "\n\t\n"} {
		_, err := g.GenerateFromText(legocoder.EV3, blank)
		assert.ErrorIs(t, err, ErrEmptyBuffer)
	}

	out, err := g.GenerateFromText(legocoder.SpikePrime, "motor.run_for_degrees(360)")
	require.NoError(t, err)
	assert.Equal(t, "# LEGO SPIKE Prime Program\n# Generated from Python code\n# Date: 3/9/2024\n\nmotor.run_for_degrees(360)", out)
}

func TestFileName(t *testing.T) {
	at := time.UnixMilli(1710000000123)
	assert.Equal(t, "lego_program_EV3_1710000000123.py", FileName(legocoder.EV3, at))
	assert.Equal(t, "lego_program_SPIKE_Prime_1710000000123.py", FileName(legocoder.SpikePrime, at))
}

func TestKnownLabels(t *testing.T) {
	assert.Equal(t, []string{"Move Forward", "Turn Right", "Turn Left", "Wait for Touch", "Repeat 10x", "Wait 1 Second"}, KnownLabels())
}
