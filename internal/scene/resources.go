package scene

import (
	"image"
	"sync"
	"sync/atomic"
)

// ResourceKind classifies GPU-owned allocations.
type ResourceKind int

const (
	KindMesh ResourceKind = iota
	KindMaterial
	KindTexture
)

func (k ResourceKind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindMaterial:
		return "material"
	case KindTexture:
		return "texture"
	default:
		return "unknown"
	}
}

// Allocator issues resource handles and tracks which are still live.
type Allocator struct {
	mu     sync.Mutex
	nextID uint64
	live   map[uint64]ResourceKind

	// Stats
	allocated   int64 // atomic
	released    int64 // atomic
	doubleFrees int64 // atomic
}

// AllocatorStats is a point-in-time copy of allocator counters.
type AllocatorStats struct {
	Live        int
	Allocated   int64
	Released    int64
	DoubleFrees int64
}

// NewAllocator creates an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{live: make(map[uint64]ResourceKind)}
}

func (a *Allocator) alloc(kind ResourceKind) handle {
	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.live[id] = kind
	a.mu.Unlock()

	atomic.AddInt64(&a.allocated, 1)
	return handle{alloc: a, id: id}
}

func (a *Allocator) release(id uint64) {
	a.mu.Lock()
	_, ok := a.live[id]
	delete(a.live, id)
	a.mu.Unlock()

	if !ok {
		atomic.AddInt64(&a.doubleFrees, 1)
		return
	}
	atomic.AddInt64(&a.released, 1)
}

// Live returns the number of resources not yet disposed.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// LiveByKind returns the live count for one resource kind.
func (a *Allocator) LiveByKind(kind ResourceKind) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, k := range a.live {
		if k == kind {
			n++
		}
	}
	return n
}

// Stats returns allocator statistics.
func (a *Allocator) Stats() AllocatorStats {
	return AllocatorStats{
		Live:        a.Live(),
		Allocated:   atomic.LoadInt64(&a.allocated),
		Released:    atomic.LoadInt64(&a.released),
		DoubleFrees: atomic.LoadInt64(&a.doubleFrees),
	}
}

// handle is the shared dispose-once part of every resource.
type handle struct {
	alloc    *Allocator
	id       uint64
	disposed bool
}

// Dispose releases the resource. A second call is counted as a double free
// and otherwise ignored.
func (h *handle) Dispose() {
	if h.alloc == nil {
		return
	}
	if h.disposed {
		atomic.AddInt64(&h.alloc.doubleFrees, 1)
		return
	}
	h.disposed = true
	h.alloc.release(h.id)
}

// Disposed reports whether Dispose has run.
func (h *handle) Disposed() bool {
	return h.disposed
}

// Shape is the primitive a mesh draws.
type Shape int

const (
	ShapeBox Shape = iota
	ShapeCapsule
	ShapeSphere
	ShapePlane
	ShapeRing
	ShapeBillboard
	ShapeLine
)

// Mesh is geometry held on the GPU. Size is the primitive's extent.
type Mesh struct {
	handle
	Shape Shape
	Size  Vec3
}

// NewMesh allocates a mesh.
func (a *Allocator) NewMesh(shape Shape, size Vec3) *Mesh {
	return &Mesh{handle: a.alloc(KindMesh), Shape: shape, Size: size}
}

// Material describes surface color. Opacity 1 is fully opaque.
type Material struct {
	handle
	Color    Color
	Emissive Color
	Opacity  float64
}

// NewMaterial allocates an opaque material with no emission.
func (a *Allocator) NewMaterial(c Color) *Material {
	return &Material{handle: a.alloc(KindMaterial), Color: c, Opacity: 1}
}

// Texture is an uploaded image, used for labels.
type Texture struct {
	handle
	Image *image.RGBA
}

// NewTexture allocates a texture backed by img.
func (a *Allocator) NewTexture(img *image.RGBA) *Texture {
	return &Texture{handle: a.alloc(KindTexture), Image: img}
}
