package arena

import (
	"math"
	"strings"
	"testing"
)

func TestValidPositionBounds(t *testing.T) {
	cases := []struct {
		name string
		x, z float64
		ok   bool
	}{
		{"origin", 0, 0, true},
		{"on boundary", PlaneBound, -PlaneBound, true},
		{"x beyond", PlaneBound + 0.1, 0, false},
		{"z beyond", 0, -PlaneBound - 0.1, false},
		{"far out", 1000, 1000, false},
		{"nan x", math.NaN(), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := validPosition(tc.x, tc.z); got != tc.ok {
				t.Fatalf("validPosition(%v, %v) = %v, want %v", tc.x, tc.z, got, tc.ok)
			}
		})
	}
}

func TestValidRadiusBounds(t *testing.T) {
	cases := []struct {
		name   string
		radius float64
		ok     bool
	}{
		{"min", MinRadius, true},
		{"max", MaxRadius, true},
		{"middle", 10, true},
		{"below min", MinRadius - 0.01, false},
		{"above max", MaxRadius + 0.01, false},
		{"zero", 0, false},
		{"negative", -5, false},
		{"nan", math.NaN(), false},
		{"inf", math.Inf(1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := validRadius(tc.radius); got != tc.ok {
				t.Fatalf("validRadius(%v) = %v, want %v", tc.radius, got, tc.ok)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	if got := SanitizeName("  alice  ", 1); got != "alice" {
		t.Fatalf("expected trimmed name, got %q", got)
	}
	if got := SanitizeName("", 3); got != "Player 3" {
		t.Fatalf("expected default name, got %q", got)
	}
	if got := SanitizeName("   ", 7); got != "Player 7" {
		t.Fatalf("expected default for whitespace name, got %q", got)
	}
	long := strings.Repeat("x", 40)
	if got := SanitizeName(long, 1); len([]rune(got)) != MaxNameLen {
		t.Fatalf("expected name capped to %d runes, got %d", MaxNameLen, len([]rune(got)))
	}
}

func TestOutOfBoundsUpdateLeavesStateUnchanged(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	code, _ := reg.CreateRoom(false)
	state, err := reg.JoinRoom(code, "s1", "alice")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	// Establish a known-good position first.
	reg.UpdatePosition(code, "s1", 5, -5, 3)

	rejected := []struct {
		name    string
		x, z, r float64
	}{
		{"x out", 56, 0, 3},
		{"z out", 0, -56, 3},
		{"radius too small", 5, 5, 1.0},
		{"radius too large", 5, 5, 31},
		{"nan radius", 5, 5, math.NaN()},
	}
	for _, tc := range rejected {
		reg.UpdatePosition(code, "s1", tc.x, tc.z, tc.r)
	}

	room := reg.lookup(code)
	room.mu.Lock()
	p := *room.players[state.Player.ID]
	room.mu.Unlock()

	if p.X != 5 || p.Z != -5 || p.Radius != 3 {
		t.Fatalf("rejected updates mutated state: %+v", p)
	}
}

func TestValidUpdateOverwritesState(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	code, _ := reg.CreateRoom(false)
	if _, err := reg.JoinRoom(code, "s1", "alice"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	reg.UpdatePosition(code, "s1", -55, 55, 30)

	room := reg.lookup(code)
	room.mu.Lock()
	p := *room.players["s1"]
	room.mu.Unlock()

	if p.X != -55 || p.Z != 55 || p.Radius != 30 {
		t.Fatalf("boundary update not applied: %+v", p)
	}
}

func TestSetNameSanitizes(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	code, _ := reg.CreateRoom(false)
	reg.JoinRoom(code, "s1", "alice")

	reg.SetName(code, "s1", "  "+strings.Repeat("b", 30))

	room := reg.lookup(code)
	room.mu.Lock()
	name := room.players["s1"].Name
	room.mu.Unlock()

	if name != strings.Repeat("b", MaxNameLen) {
		t.Fatalf("unexpected sanitized name %q", name)
	}
}
