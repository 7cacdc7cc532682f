package render

import (
	"image/color"
	"path/filepath"
	"testing"

	"rey-arena/internal/camera"
	"rey-arena/internal/scene"
	"rey-arena/internal/visual"
)

func testFrame(root *scene.Node) Frame {
	cam := camera.NewController(camera.DefaultConfig())
	return Frame{
		Camera: cam.Pose(),
		Items:  Collect(root),
		HUD:    []string{"Role: Rey", "Connected"},
	}
}

// TestCollectSkipsHiddenAndDisposed tests flattening rules
func TestCollectSkipsHiddenAndDisposed(t *testing.T) {
	alloc := scene.NewAllocator()
	f := visual.NewFactory(alloc)

	root := scene.NewNode("root")
	court := f.NewCourt()
	root.Add(court.Root)
	ball := f.NewBall()
	root.Add(ball)

	all := len(Collect(root))
	if all != 7 {
		t.Fatalf("Expected ground, 4 overlays, lines and ball, got %d items", all)
	}

	ball.Visible = false
	if got := len(Collect(root)); got != all-1 {
		t.Errorf("Hidden ball should be skipped, got %d items", got)
	}

	court.Dispose()
	if got := len(Collect(root)); got != 0 {
		t.Errorf("Expected nothing after dispose, got %d items", got)
	}
}

// TestCollectWorldSpace tests centers and corners follow parents
func TestCollectWorldSpace(t *testing.T) {
	alloc := scene.NewAllocator()
	f := visual.NewFactory(alloc)

	c := f.NewCharacter("p", "Ana", "rey", scene.RGB(200, 10, 10))
	c.Root.Position = scene.V(3, 0, -2)

	var body *Item
	items := Collect(c.Root)
	for i := range items {
		if items[i].Name == c.Body.Name {
			body = &items[i]
		}
	}
	if body == nil {
		t.Fatal("Expected the body in the collected items")
	}
	want := c.Body.WorldPosition()
	if body.Center != want {
		t.Errorf("Expected center %+v, got %+v", want, body.Center)
	}
	if body.Center.X != 3 || body.Center.Z != -2 {
		t.Errorf("Body should follow the root, got %+v", body.Center)
	}

	for _, it := range items {
		if it.Shape == scene.ShapeBillboard && it.Image == nil {
			t.Error("Label billboard should carry its texture image")
		}
	}
}

// TestRenderSizeAndGround tests output dimensions and that the court is drawn
func TestRenderSizeAndGround(t *testing.T) {
	alloc := scene.NewAllocator()
	f := visual.NewFactory(alloc)
	root := scene.NewNode("root")
	root.Add(f.NewCourt().Root)

	r := NewRenderer(Config{Width: 320, Height: 180, FOV: 50})
	img := r.Render(testFrame(root))

	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 180 {
		t.Fatalf("Expected 320x180, got %dx%d", b.Dx(), b.Dy())
	}

	// The default camera looks at the court center.
	center := img.RGBAAt(160, 90)
	sky := color.RGBA{12, 12, 28, 255}
	if center == sky {
		t.Error("Expected the court under the image center")
	}
	if r.Frames() != 1 {
		t.Errorf("Expected 1 frame, got %d", r.Frames())
	}
}

// TestRenderEmptyFrame tests an empty frame and a degenerate camera
func TestRenderEmptyFrame(t *testing.T) {
	r := NewRenderer(Config{})
	w, h := r.Size()
	if w != 1280 || h != 720 {
		t.Errorf("Expected default size, got %dx%d", w, h)
	}

	img := r.Render(Frame{})
	if img.Bounds().Dx() != w {
		t.Error("Unexpected image width")
	}
}

// TestRenderCharacters tests solids and labels draw without panicking
func TestRenderCharacters(t *testing.T) {
	alloc := scene.NewAllocator()
	f := visual.NewFactory(alloc)
	root := scene.NewNode("root")
	root.Add(f.NewCourt().Root)
	for i, role := range []string{"rey", "reina", "principe", "mato"} {
		c := f.NewCharacter(role, "P"+role, role, scene.RGB(uint8(60*i), 100, 200))
		root.Add(c.Root)
	}
	root.Add(f.NewBall())

	r := NewRenderer(Config{Width: 200, Height: 120})
	r.Render(testFrame(root))

	path := filepath.Join(t.TempDir(), "frame.png")
	if err := r.SavePNG(path); err != nil {
		t.Errorf("SavePNG failed: %v", err)
	}
}

// TestProjectBehindCamera tests near-plane rejection
func TestProjectBehindCamera(t *testing.T) {
	p := newProjector(scene.V(0, 0, 10), scene.V(0, 0, 0), DefaultConfig())

	if _, ok := p.project(scene.V(0, 0, 20)); ok {
		t.Error("Point behind the camera should be rejected")
	}
	pt, ok := p.project(scene.V(0, 0, 0))
	if !ok {
		t.Fatal("Point in front should project")
	}
	if pt.X != 640 || pt.Y != 360 {
		t.Errorf("Expected screen center, got (%v, %v)", pt.X, pt.Y)
	}
}
