package scene

import (
	"math"
	"testing"
)

// TestDisposeReleasesSubtreeOnce tests resource release on tree disposal
func TestDisposeReleasesSubtreeOnce(t *testing.T) {
	alloc := NewAllocator()

	root := NewNode("root")
	root.Mesh = alloc.NewMesh(ShapeBox, V(1, 1, 1))
	root.Material = alloc.NewMaterial(RGB(255, 0, 0))

	child := NewNode("child")
	child.Mesh = alloc.NewMesh(ShapeSphere, V(1, 1, 1))
	child.Material = alloc.NewMaterial(RGB(0, 255, 0))
	root.Add(child)

	if alloc.Live() != 4 {
		t.Fatalf("Expected 4 live resources, got %d", alloc.Live())
	}

	root.Dispose()
	root.Dispose()
	child.Dispose()

	stats := alloc.Stats()
	if stats.Live != 0 {
		t.Errorf("Expected 0 live resources, got %d", stats.Live)
	}
	if stats.DoubleFrees != 0 {
		t.Errorf("Expected no double frees, got %d", stats.DoubleFrees)
	}
	if root.Alive() || child.Alive() {
		t.Error("Disposed nodes should not be alive")
	}
}

// TestDisposeDetachesFromParent tests that a disposed child leaves its parent
func TestDisposeDetachesFromParent(t *testing.T) {
	root := NewNode("root")
	child := NewNode("child")
	root.Add(child)

	child.Dispose()

	if len(root.Children) != 0 {
		t.Errorf("Expected no children, got %d", len(root.Children))
	}
	if !root.Alive() {
		t.Error("Parent should stay alive")
	}
}

// TestDoubleDisposeCounted tests that direct double dispose is observable
func TestDoubleDisposeCounted(t *testing.T) {
	alloc := NewAllocator()
	m := alloc.NewMaterial(Black)

	m.Dispose()
	m.Dispose()

	if alloc.Stats().DoubleFrees != 1 {
		t.Errorf("Expected 1 double free, got %d", alloc.Stats().DoubleFrees)
	}
}

// TestLocalToWorld tests parent transforms
func TestLocalToWorld(t *testing.T) {
	root := NewNode("root")
	root.Position = V(10, 0, 0)
	root.Rotation = V(0, math.Pi/2, 0)

	child := NewNode("child")
	child.Position = V(0, 0, 1)
	root.Add(child)

	got := child.WorldPosition()
	want := V(11, 0, 0)
	if got.Sub(want).Len() > 1e-9 {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// TestColorRGBA tests conversion and clamping
func TestColorRGBA(t *testing.T) {
	c := Color{R: 1.5, G: 0.5, B: -1}.RGBA(1)
	if c.R != 255 || c.G != 128 || c.B != 0 || c.A != 255 {
		t.Errorf("Unexpected conversion: %+v", c)
	}
}
