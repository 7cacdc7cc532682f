package input

// PointerPhase is the stage of a pointer gesture.
type PointerPhase int

const (
	PointerDown PointerPhase = iota
	PointerMove
	PointerUp
)

// PointerEvent is a mouse or touch event in screen pixels.
type PointerEvent struct {
	ID    int
	Phase PointerPhase
	X, Y  float64
}

// Acquirer turns pointer events into a continuous vector. It returns the
// current vector and whether a gesture is active.
type Acquirer interface {
	Pointer(ev PointerEvent) (Vector, bool)
	Reset()
}

// DefaultDragRadius is the drag distance in pixels for full deflection.
const DefaultDragRadius = 80.0

// DragAcquirer tracks a single pointer. The vector is the offset from where
// the drag began, scaled by Radius.
type DragAcquirer struct {
	Radius float64

	active           bool
	id               int
	originX, originY float64
	current          Vector
}

// NewDragAcquirer creates a drag strategy.
func NewDragAcquirer(radius float64) *DragAcquirer {
	if radius <= 0 {
		radius = DefaultDragRadius
	}
	return &DragAcquirer{Radius: radius}
}

func (d *DragAcquirer) Pointer(ev PointerEvent) (Vector, bool) {
	switch ev.Phase {
	case PointerDown:
		if d.active {
			break
		}
		d.active, d.id = true, ev.ID
		d.originX, d.originY = ev.X, ev.Y
		d.current = Vector{}
	case PointerMove:
		if d.active && ev.ID == d.id {
			d.current = offset(d.originX, d.originY, ev.X, ev.Y, d.Radius)
		}
	case PointerUp:
		if d.active && ev.ID == d.id {
			d.Reset()
		}
	}
	return d.current, d.active
}

func (d *DragAcquirer) Reset() {
	d.active = false
	d.current = Vector{}
}

// Zone is a screen rectangle in pixels.
type Zone struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether (x,y) is inside the zone.
func (z Zone) Contains(x, y float64) bool {
	return x >= z.MinX && x <= z.MaxX && y >= z.MinY && y <= z.MaxY
}

func (z Zone) center() (float64, float64) {
	return (z.MinX + z.MaxX) / 2, (z.MinY + z.MaxY) / 2
}

func (z Zone) radius() float64 {
	w, h := z.MaxX-z.MinX, z.MaxY-z.MinY
	if w < h {
		return w / 2
	}
	return h / 2
}

// CaptureAcquirer is an on-screen joystick for multi-touch. The first
// pointer that goes down inside Zone is captured until it lifts, even if it
// leaves the zone; every other pointer is ignored so buttons stay usable.
type CaptureAcquirer struct {
	Zone Zone

	captured bool
	id       int
	current  Vector
}

// NewCaptureAcquirer creates a joystick strategy for zone.
func NewCaptureAcquirer(zone Zone) *CaptureAcquirer {
	return &CaptureAcquirer{Zone: zone}
}

func (c *CaptureAcquirer) Pointer(ev PointerEvent) (Vector, bool) {
	switch ev.Phase {
	case PointerDown:
		if c.captured || !c.Zone.Contains(ev.X, ev.Y) {
			break
		}
		c.captured, c.id = true, ev.ID
		c.current = c.vectorAt(ev.X, ev.Y)
	case PointerMove:
		if c.captured && ev.ID == c.id {
			c.current = c.vectorAt(ev.X, ev.Y)
		}
	case PointerUp:
		if c.captured && ev.ID == c.id {
			c.Reset()
		}
	}
	return c.current, c.captured
}

// Captured reports whether a pointer is held and its id.
func (c *CaptureAcquirer) Captured() (int, bool) {
	return c.id, c.captured
}

func (c *CaptureAcquirer) Reset() {
	c.captured = false
	c.current = Vector{}
}

func (c *CaptureAcquirer) vectorAt(x, y float64) Vector {
	cx, cy := c.Zone.center()
	return offset(cx, cy, x, y, c.Zone.radius())
}

// offset maps a screen displacement to a vector. Screen Y grows downward.
func offset(ox, oy, x, y, radius float64) Vector {
	if radius <= 0 {
		return Vector{}
	}
	return Vector{X: (x - ox) / radius, Y: -(y - oy) / radius}.Clamp()
}
