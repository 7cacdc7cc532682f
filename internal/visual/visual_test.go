package visual

import (
	"strings"
	"testing"
	"unicode/utf8"

	"rey-arena/internal/roles"
	"rey-arena/internal/scene"
)

// TestNewCharacterHandles tests that every named part is wired
func TestNewCharacterHandles(t *testing.T) {
	f := NewFactory(scene.NewAllocator())
	c := f.NewCharacter("p1", "Ana", roles.Rey, scene.RGB(10, 20, 30))

	for _, p := range Parts {
		if c.Part(p) == nil {
			t.Errorf("Part %s should not be nil", p)
		}
	}
	if c.Label == nil || c.Label.Texture == nil {
		t.Fatal("Label should carry a texture")
	}
	if c.LeftFoot.Parent() != c.LeftLeg || c.RightFoot.Parent() != c.RightLeg {
		t.Error("Feet should hang off their legs")
	}
	if c.Backpack.Material.Color != roles.Lookup(roles.Rey).Color {
		t.Error("Backpack should carry the role color")
	}
	if c.Body.Material.Color != scene.RGB(10, 20, 30) {
		t.Error("Body should carry the player color")
	}
	if !c.AtRest() {
		t.Error("New character should be at rest")
	}
}

// TestCharacterDisposeReleasesEverything tests resource release
func TestCharacterDisposeReleasesEverything(t *testing.T) {
	alloc := scene.NewAllocator()
	f := NewFactory(alloc)
	c := f.NewCharacter("p1", "Ana", roles.Mato, scene.RGB(1, 2, 3))

	if alloc.Live() == 0 {
		t.Fatal("Character should allocate resources")
	}

	c.Dispose()

	if alloc.Live() != 0 {
		t.Errorf("Expected 0 live resources, got %d", alloc.Live())
	}
	if c.Alive() {
		t.Error("Disposed character should not be alive")
	}
}

// TestRebuildLabelSwapsTexture tests label regeneration frees the old texture
func TestRebuildLabelSwapsTexture(t *testing.T) {
	alloc := scene.NewAllocator()
	f := NewFactory(alloc)
	c := f.NewCharacter("p1", "Ana", roles.Mato, scene.RGB(1, 2, 3))

	old := c.Label
	before := alloc.LiveByKind(scene.KindTexture)

	c.Role = roles.Rey
	f.RebuildLabel(c)

	if old.Alive() {
		t.Error("Old label should be disposed")
	}
	if c.Label == old {
		t.Error("Label should be replaced")
	}
	if got := alloc.LiveByKind(scene.KindTexture); got != before {
		t.Errorf("Expected %d live textures, got %d", before, got)
	}
	if alloc.Stats().DoubleFrees != 0 {
		t.Error("Rebuild should not double free")
	}
}

// TestResetPose tests returning parts to rest
func TestResetPose(t *testing.T) {
	f := NewFactory(scene.NewAllocator())
	c := f.NewCharacter("p1", "Ana", roles.Reina, scene.RGB(1, 2, 3))

	c.RightLeg.Rotation.X = 1.2
	c.Body.Position.Y += 0.3
	if c.AtRest() {
		t.Fatal("Character should not be at rest after moving parts")
	}

	c.ResetPose()
	if !c.AtRest() {
		t.Error("Character should be at rest after ResetPose")
	}
}

// TestCourtOverlays tests one overlay per role with restorable base state
func TestCourtOverlays(t *testing.T) {
	f := NewFactory(scene.NewAllocator())
	court := f.NewCourt()

	for _, role := range roles.All() {
		o := court.Overlay(role)
		if o == nil {
			t.Fatalf("Missing overlay for %s", role)
		}
		o.Node.Material.Color = scene.RGB(255, 0, 0)
		o.Node.Material.Opacity = 0.9
		o.Restore()
		if o.Node.Material.Color != o.BaseColor || o.Node.Material.Opacity != o.BaseOpacity {
			t.Errorf("Overlay %s did not restore", role)
		}
	}
	if court.Overlay("nobody") != nil {
		t.Error("Unknown role should have no overlay")
	}
}

// TestRenderLabelSize tests label image dimensions
func TestRenderLabelSize(t *testing.T) {
	img := RenderLabel("a very long nickname indeed", roles.Principe)
	if img.Bounds().Dx() != labelWidth || img.Bounds().Dy() != labelHeight {
		t.Errorf("Unexpected label size %v", img.Bounds())
	}
}

func TestTruncateNickKeepsRunes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Ana  ", "Ana"},
		{strings.Repeat("x", maxNickLen+4), strings.Repeat("x", maxNickLen)},
		{"a" + strings.Repeat("ñ", 20), "a" + strings.Repeat("ñ", maxNickLen-1)},
	}

	for _, tt := range tests {
		got := truncateNick(tt.in)
		if got != tt.want {
			t.Errorf("truncateNick(%q): Expected %q, got %q", tt.in, tt.want, got)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateNick(%q): Expected valid UTF-8, got %q", tt.in, got)
		}
	}
}
