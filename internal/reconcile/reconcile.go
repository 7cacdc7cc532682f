// Package reconcile keeps the local set of player renderables consistent with
// authoritative snapshots. It is the only owner allowed to create or destroy
// entities; animations and the camera only touch existing ones.
package reconcile

import (
	"math"
	"sort"
	"time"

	"rey-arena/internal/effects"
	"rey-arena/internal/protocol"
	"rey-arena/internal/roles"
	"rey-arena/internal/scene"
	"rey-arena/internal/visual"
)

// DefaultGlowDuration is how long the role-change glow lasts.
const DefaultGlowDuration = 1200 * time.Millisecond

// Options configures a Reconciler.
type Options struct {
	// World is the parent node for every entity root. A fresh node is
	// created when nil.
	World *scene.Node

	GlowDuration time.Duration

	// Listener hooks, called synchronously during Apply.
	OnCreate func(c *visual.Character)
	OnRemove func(id string)
}

// Diff is the outcome of one Apply. The three id sets are disjoint and
// sorted. RoleChanged is a subset of Updated.
type Diff struct {
	Created     []string
	Updated     []string
	Removed     []string
	RoleChanged []string
}

// Empty reports whether the diff changed nothing.
func (d Diff) Empty() bool {
	return len(d.Created) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// Reconciler owns the id to character map.
// Not safe for concurrent use; the owner serializes access.
type Reconciler struct {
	factory   *visual.Factory
	scheduler *effects.Scheduler
	opts      Options
	world     *scene.Node

	entities map[string]*visual.Character

	// Stats
	created     uint64
	removed     uint64
	roleChanges uint64
	applies     uint64
}

// New creates an empty reconciler. Glow effects on role change are added to
// scheduler.
func New(f *visual.Factory, scheduler *effects.Scheduler, opts Options) *Reconciler {
	if opts.GlowDuration <= 0 {
		opts.GlowDuration = DefaultGlowDuration
	}
	world := opts.World
	if world == nil {
		world = scene.NewNode("players")
	}
	return &Reconciler{
		factory:   f,
		scheduler: scheduler,
		opts:      opts,
		world:     world,
		entities:  make(map[string]*visual.Character),
	}
}

// World returns the parent node of every entity.
func (r *Reconciler) World() *scene.Node {
	return r.world
}

// Apply reconciles the entity map against snap: creates new ids, updates
// persisting ones in place, then destroys the ones that are gone.
func (r *Reconciler) Apply(snap *protocol.Snapshot, now time.Time) Diff {
	r.applies++
	var d Diff

	var players map[string]protocol.PlayerState
	if snap != nil {
		players = snap.Players
	}

	for id := range players {
		if _, ok := r.entities[id]; ok {
			d.Updated = append(d.Updated, id)
		} else {
			d.Created = append(d.Created, id)
		}
	}
	for id := range r.entities {
		if _, ok := players[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Strings(d.Created)
	sort.Strings(d.Updated)
	sort.Strings(d.Removed)

	for _, id := range d.Created {
		r.create(id, players[id])
	}
	for _, id := range d.Updated {
		if r.update(r.entities[id], players[id], now) {
			d.RoleChanged = append(d.RoleChanged, id)
		}
	}
	for _, id := range d.Removed {
		r.destroy(id)
	}

	return d
}

func (r *Reconciler) create(id string, p protocol.PlayerState) {
	body := roles.ParseColor(p.Color, roles.Neutral.Color)
	c := r.factory.NewCharacter(id, p.Nickname, p.Role, body)
	place(c, p)
	r.world.Add(c.Root)
	r.entities[id] = c
	r.created++

	if r.opts.OnCreate != nil {
		r.opts.OnCreate(c)
	}
}

// update snaps pose and material state. It reports whether the role changed.
func (r *Reconciler) update(c *visual.Character, p protocol.PlayerState, now time.Time) bool {
	place(c, p)

	body := roles.ParseColor(p.Color, c.Color)
	if body != c.Color {
		c.Color = body
		for _, n := range []*scene.Node{c.Body, c.LeftLeg, c.RightLeg} {
			n.Material.Color = body
		}
	}

	role := roles.Normalize(p.Role)
	roleChanged := role != c.Role
	nickChanged := p.Nickname != c.Nickname

	if roleChanged {
		c.Role = role
		c.Backpack.Material.Color = c.RoleColor()
	}
	c.Nickname = p.Nickname
	if roleChanged || nickChanged {
		r.factory.RebuildLabel(c)
	}

	if !roleChanged {
		return false
	}
	r.roleChanges++
	glow := effects.NewGlowPulse(r.factory, c, c.RoleColor(), now, r.opts.GlowDuration)
	r.scheduler.Add(GlowKey(c.ID), glow)
	return true
}

func (r *Reconciler) destroy(id string) {
	c, ok := r.entities[id]
	if !ok {
		return
	}
	c.Dispose()
	delete(r.entities, id)
	r.removed++

	if r.opts.OnRemove != nil {
		r.opts.OnRemove(id)
	}
}

// place writes the authoritative transform directly, never interpolated.
func place(c *visual.Character, p protocol.PlayerState) {
	c.Root.Position = scene.V(finite(p.X), finite(p.Y), finite(p.Z))
	c.Root.Rotation = scene.V(0, finite(p.RotY), 0)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// GlowKey is the scheduler key of an entity's role-change glow.
func GlowKey(id string) string {
	return "glow:" + id
}

// Get returns the character for id.
func (r *Reconciler) Get(id string) (*visual.Character, bool) {
	c, ok := r.entities[id]
	return c, ok
}

// IDs returns every entity id, sorted.
func (r *Reconciler) IDs() []string {
	ids := make([]string, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of entities.
func (r *Reconciler) Len() int {
	return len(r.entities)
}

// Each calls fn for every entity in id order.
func (r *Reconciler) Each(fn func(c *visual.Character)) {
	for _, id := range r.IDs() {
		fn(r.entities[id])
	}
}

// Clear destroys every entity. Used on teardown.
func (r *Reconciler) Clear() {
	for _, id := range r.IDs() {
		r.destroy(id)
	}
}

// GetStats returns reconciler statistics
func (r *Reconciler) GetStats() map[string]uint64 {
	return map[string]uint64{
		"applies":     r.applies,
		"created":     r.created,
		"removed":     r.removed,
		"roleChanges": r.roleChanges,
		"live":        uint64(len(r.entities)),
	}
}
