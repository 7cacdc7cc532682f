package roles

import (
	"testing"

	"rey-arena/internal/scene"
)

// TestLookupKnownRoles tests every role has a distinct quadrant
func TestLookupKnownRoles(t *testing.T) {
	seen := make(map[scene.Vec3]string)
	for _, role := range All() {
		g := Lookup(role)
		if g.Role != role {
			t.Errorf("Expected role %s, got %s", role, g.Role)
		}
		if other, dup := seen[g.Quadrant]; dup {
			t.Errorf("%s shares quadrant with %s", role, other)
		}
		seen[g.Quadrant] = role
	}
}

// TestLookupFallback tests unknown roles map to neutral
func TestLookupFallback(t *testing.T) {
	for _, role := range []string{"", "emperador", "  "} {
		if g := Lookup(role); g != Neutral {
			t.Errorf("Expected neutral for %q, got %+v", role, g)
		}
	}
	if Lookup(" REY ").Role != Rey {
		t.Error("Lookup should normalize case and spaces")
	}
}

// TestAxisCorrectionTable pins the joystick convention per role
func TestAxisCorrectionTable(t *testing.T) {
	tests := []struct {
		role   string
		x, y   float64
		wx, wy float64
	}{
		{Rey, 0.5, 0.5, -0.5, 0.5},
		{Reina, 0.5, 0.5, -0.5, 0.5},
		{Principe, 0.5, 0.5, 0.5, -0.5},
		{Mato, 0.5, 0.5, 0.5, -0.5},
		{"", 0.5, 0.5, 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			gx, gy := Lookup(tt.role).Axes.Apply(tt.x, tt.y)
			if gx != tt.wx || gy != tt.wy {
				t.Errorf("Expected (%v,%v), got (%v,%v)", tt.wx, tt.wy, gx, gy)
			}
		})
	}
}

// TestCameraSideMatchesQuadrant tests camera side follows the quadrant's half
func TestCameraSideMatchesQuadrant(t *testing.T) {
	for _, role := range All() {
		g := Lookup(role)
		if (g.Quadrant.Z < 0) != (g.CameraSide < 0) {
			t.Errorf("%s: camera side %v does not match quadrant z %v", role, g.CameraSide, g.Quadrant.Z)
		}
	}
}

// TestParseColor tests hex parsing and fallback
func TestParseColor(t *testing.T) {
	fallback := scene.RGB(1, 2, 3)

	if got := ParseColor("#ff0000", fallback); got != scene.RGB(255, 0, 0) {
		t.Errorf("Expected red, got %+v", got)
	}
	if got := ParseColor("#0f0", fallback); got != scene.RGB(0, 255, 0) {
		t.Errorf("Expected green, got %+v", got)
	}
	for _, bad := range []string{"", "red", "#12345", "#gggggg"} {
		if got := ParseColor(bad, fallback); got != fallback {
			t.Errorf("Expected fallback for %q, got %+v", bad, got)
		}
	}
}

// TestDisplayName tests label text
func TestDisplayName(t *testing.T) {
	if DisplayName("principe") != "Principe" {
		t.Errorf("Unexpected display name %q", DisplayName("principe"))
	}
	if DisplayName("unknown") != "" {
		t.Error("Unknown roles should have no display name")
	}
}
