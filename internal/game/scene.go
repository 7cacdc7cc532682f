// Package game ties the presentation components into one scene driven by
// network callbacks and a frame loop.
package game

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"rey-arena/internal/anim"
	"rey-arena/internal/camera"
	"rey-arena/internal/config"
	"rey-arena/internal/effects"
	"rey-arena/internal/input"
	"rey-arena/internal/metrics"
	"rey-arena/internal/protocol"
	"rey-arena/internal/reconcile"
	"rey-arena/internal/render"
	"rey-arena/internal/roles"
	"rey-arena/internal/scene"
	"rey-arena/internal/visual"
)

const (
	ballPulseKey       = "pulse:ball"
	ballPulseAmplitude = 0.35
)

// FlashKey returns the scheduler key of a quadrant highlight. One flash per
// quadrant runs at a time.
func FlashKey(role string) string {
	return "flash:" + role
}

// HUD is the state-change notification exposed to the surrounding UI.
type HUD struct {
	CurrentRole     string  `json:"currentRole"`
	TimeAsRey       float64 `json:"timeAsRey"`
	MatchTime       float64 `json:"matchTime"`
	Connected       bool    `json:"connected"`
	WaitingForServe bool    `json:"waitingForServe"`
	CurrentServer   string  `json:"currentServer"`
}

// Options configures a Scene.
type Options struct {
	Effects config.EffectConfig
	Camera  camera.Config

	// Sampler receives the local player's role for axis correction. Optional.
	Sampler *input.Sampler

	// Clock stamps network arrivals. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultOptions returns options with the tuned effect timings and camera.
func DefaultOptions() Options {
	return Options{
		Effects: config.DefaultEffects(),
		Camera:  camera.DefaultConfig(),
	}
}

// Scene owns every renderable and the components that mutate them.
// Network callbacks and the frame loop run on different goroutines; a
// single mutex covers one diff-apply or one frame tick. Listener callbacks
// always run after the mutex is released.
type Scene struct {
	mu sync.Mutex

	alloc   *scene.Allocator
	factory *visual.Factory
	root    *scene.Node
	court   *visual.Court
	ball    *scene.Node

	players   *reconcile.Reconciler
	anims     *anim.Machine
	scheduler *effects.Scheduler
	cam       *camera.Controller
	sampler   *input.Sampler

	board   *Leaderboard
	journal *Journal

	cfg   config.EffectConfig
	clock func() time.Time

	localID     string
	connected   bool
	closed      bool
	snap        *protocol.Snapshot
	lastToucher string
	hud         HUD
	hudSent     bool

	// Event callbacks
	onHUD             func(HUD)
	onMatchEnd        func([]protocol.Standing)
	onConnectionError func(msg string)
	onRolesRotated    func(roles map[string]string)

	// Stats
	states   uint64 // atomic
	messages uint64 // atomic
	ignored  uint64 // atomic
	frames   uint64 // atomic
}

// NewScene builds the court and ball and an empty player set.
func NewScene(opts Options) *Scene {
	def := DefaultOptions()
	if opts.Effects == (config.EffectConfig{}) {
		opts.Effects = def.Effects
	}
	if opts.Camera == (camera.Config{}) {
		opts.Camera = def.Camera
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	alloc := scene.NewAllocator()
	factory := visual.NewFactory(alloc)
	sched := effects.NewScheduler()

	s := &Scene{
		alloc:     alloc,
		factory:   factory,
		root:      scene.NewNode("scene"),
		court:     factory.NewCourt(),
		ball:      factory.NewBall(),
		anims:     anim.NewMachine(anim.Config{KickDuration: opts.Effects.KickDuration, HeadDuration: opts.Effects.HeadDuration}),
		scheduler: sched,
		cam:       camera.NewController(opts.Camera),
		sampler:   opts.Sampler,
		board:     NewLeaderboard(),
		journal:   NewJournal(),
		cfg:       opts.Effects,
		clock:     opts.Clock,
	}

	world := scene.NewNode("players")
	s.players = reconcile.New(factory, sched, reconcile.Options{
		World:        world,
		GlowDuration: opts.Effects.GlowDuration,
		OnCreate: func(c *visual.Character) {
			s.journal.Record(s.clock(), "join", c.ID, c.Nickname)
		},
		OnRemove: func(id string) {
			s.journal.Record(s.clock(), "leave", id, "")
		},
	})

	s.root.Add(s.court.Root)
	s.root.Add(world)
	s.root.Add(s.ball)
	return s
}

// OnHUD sets the callback for HUD changes
func (s *Scene) OnHUD(fn func(HUD)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onHUD = fn
}

// OnMatchEnd sets the callback for the final leaderboard
func (s *Scene) OnMatchEnd(fn func([]protocol.Standing)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMatchEnd = fn
}

// OnConnectionError sets the callback for connection failures
func (s *Scene) OnConnectionError(fn func(msg string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnectionError = fn
}

// OnRolesRotated sets the callback for role rotation events. The map is
// nil when the server did not include the new assignment.
func (s *Scene) OnRolesRotated(fn func(roles map[string]string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRolesRotated = fn
}

// SetLocalID records the id the session was assigned on join.
func (s *Scene) SetLocalID(id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.localID = id
	if c, ok := s.players.Get(id); ok && s.sampler != nil {
		s.sampler.SetRole(c.Role)
	}
	notify := s.refreshHUD()
	s.mu.Unlock()
	notify()
}

// LocalID returns the local player's id.
func (s *Scene) LocalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localID
}

// SetConnected updates the connection flag shown on the HUD.
func (s *Scene) SetConnected(ok bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.connected = ok
	notify := s.refreshHUD()
	s.mu.Unlock()
	notify()
}

// HandleDisconnect marks the scene disconnected and reports err. There is
// no automatic reconnect.
func (s *Scene) HandleDisconnect(err error) {
	msg := "connection lost"
	if err != nil {
		msg = err.Error()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.connected = false
	s.journal.Record(s.clock(), "disconnect", "", msg)
	notify := s.refreshHUD()
	onErr := s.onConnectionError
	s.mu.Unlock()

	notify()
	if onErr != nil {
		onErr(msg)
	}
}

// HandleState applies an authoritative snapshot.
func (s *Scene) HandleState(snap *protocol.Snapshot) {
	if snap == nil {
		return
	}
	start := time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	now := s.clock()
	d := s.players.Apply(snap, now)
	s.snap = snap
	s.board.Sync(snap)
	s.updateBall(snap.Ball, now)
	if c, ok := s.players.Get(s.localID); ok && s.sampler != nil {
		s.sampler.SetRole(c.Role)
	}
	for _, id := range d.RoleChanged {
		if c, ok := s.players.Get(id); ok {
			s.journal.Record(now, "role", id, c.Role)
		}
	}
	notify := s.refreshHUD()
	s.mu.Unlock()

	atomic.AddUint64(&s.states, 1)
	metrics.RecordApply(time.Since(start), len(d.Created), len(d.Updated), len(d.Removed))
	notify()
}

// updateBall snaps the ball and pulses it when a new player touches it.
// Caller holds s.mu.
func (s *Scene) updateBall(b protocol.BallState, now time.Time) {
	s.ball.Position = scene.V(finite(b.X), finite(b.Y), finite(b.Z))
	if b.LastTouchedBy != "" && b.LastTouchedBy != s.lastToucher {
		s.scheduler.Add(ballPulseKey, effects.NewScalePulse(s.ball, ballPulseAmplitude, now, s.cfg.PulseDuration))
		s.journal.Record(now, "touch", b.LastTouchedBy, "")
	}
	s.lastToucher = b.LastTouchedBy
}

// HandleMessage processes a discrete server message. Unknown kinds and
// messages about missing entities are ignored.
func (s *Scene) HandleMessage(kind string, data json.RawMessage) {
	atomic.AddUint64(&s.messages, 1)

	switch kind {
	case protocol.KindPlayerAnimation:
		pa, err := protocol.DecodePlayerAnimation(data)
		if err != nil {
			s.drop(kind, err)
			return
		}
		s.handleAnimation(pa)

	case protocol.KindEvent:
		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			s.drop(kind, err)
			return
		}
		s.handleEvent(ev)

	case protocol.KindError:
		em, err := protocol.DecodeError(data)
		if err != nil {
			s.drop(kind, err)
			return
		}
		s.reportError(em.Message)

	default:
		atomic.AddUint64(&s.ignored, 1)
	}
}

func (s *Scene) drop(kind string, err error) {
	atomic.AddUint64(&s.ignored, 1)
	metrics.RecordDecodeError()
	log.Printf("⚠️ Dropping %s message: %v", kind, err)
}

func (s *Scene) handleAnimation(pa *protocol.PlayerAnimation) {
	s.triggerAnimation(pa.PlayerID, pa.Action, false)
}

// TriggerLocal starts the pose for a locally pressed action right away. The
// server's echo of the same action finds it in flight and is ignored.
func (s *Scene) TriggerLocal(action string) bool {
	return s.triggerAnimation("", action, true)
}

func (s *Scene) triggerAnimation(id, action string, local bool) bool {
	kind, ok := anim.ParseKind(action)
	if !ok {
		// serve and friends have no pose
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if local {
		id = s.localID
	}
	c, ok := s.players.Get(id)
	if !ok {
		if !local {
			atomic.AddUint64(&s.ignored, 1)
		}
		return false
	}
	now := s.clock()
	if !s.anims.Trigger(c, kind, now) {
		return false
	}
	s.journal.Record(now, string(kind), id, "")
	return true
}

func (s *Scene) handleEvent(ev *protocol.Event) {
	switch ev.Type {
	case protocol.EventQuadrantHighlight:
		s.flashQuadrant(ev.Role, ev.Color)

	case protocol.EventMatchEnd:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		rows := append([]protocol.Standing(nil), ev.Leaderboard...)
		if len(rows) == 0 {
			rows = s.board.Standings()
		}
		SortStandings(rows)
		s.journal.Record(s.clock(), "matchEnd", "", fmt.Sprintf("%d players", len(rows)))
		fn := s.onMatchEnd
		s.mu.Unlock()

		log.Printf("🏆 Match ended (%d players)", len(rows))
		if fn != nil {
			fn(rows)
		}

	case protocol.EventRolesRotated:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.journal.Record(s.clock(), "rolesRotated", "", "")
		fn := s.onRolesRotated
		s.mu.Unlock()

		if fn != nil {
			fn(ev.Roles)
		}

	default:
		atomic.AddUint64(&s.ignored, 1)
	}
}

// flashQuadrant highlights role's overlay. A flash already running on the
// same quadrant is replaced; other quadrants are untouched.
func (s *Scene) flashQuadrant(role, hex string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	o := s.court.Overlay(role)
	if o == nil {
		atomic.AddUint64(&s.ignored, 1)
		return
	}
	col := roles.ParseColor(hex, roles.Lookup(o.Role).Color)
	now := s.clock()
	s.scheduler.Add(FlashKey(o.Role), effects.NewQuadrantFlash(o, col, now, s.cfg.FlashDuration))
	s.journal.Record(now, "highlight", o.Role, hex)
}

func (s *Scene) reportError(msg string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.journal.Record(s.clock(), "error", "", msg)
	fn := s.onConnectionError
	s.mu.Unlock()

	log.Printf("⚠️ Server error: %s", msg)
	if fn != nil {
		fn(msg)
	}
}

// Frame advances animations, effects and the camera to now and returns
// everything needed to draw. After Close it returns an empty frame.
func (s *Scene) Frame(now time.Time) render.Frame {
	start := time.Now()

	s.mu.Lock()
	if s.closed {
		pose := s.cam.Pose()
		s.mu.Unlock()
		return render.Frame{Camera: pose}
	}

	s.anims.Tick(now, s.players.Get)
	s.scheduler.Tick(now)

	var target *camera.Target
	if c, ok := s.players.Get(s.localID); ok {
		target = &camera.Target{Position: c.Root.Position, Role: c.Role}
	}
	f := render.Frame{
		Camera: s.cam.Update(target),
		Items:  render.Collect(s.root),
		HUD:    hudLines(s.hud, s.connected),
	}

	entities, fx, animations, live := s.players.Len(), s.scheduler.Len(), s.anims.Len(), s.alloc.Live()
	s.mu.Unlock()

	atomic.AddUint64(&s.frames, 1)
	metrics.RecordFrame(time.Since(start))
	metrics.UpdateScene(entities, fx, animations, live)
	return f
}

// refreshHUD recomputes the HUD and returns a function that publishes it
// if it changed. Caller holds s.mu and runs the result after unlocking.
func (s *Scene) refreshHUD() func() {
	h := HUD{Connected: s.connected}
	if s.snap != nil {
		h.MatchTime = s.snap.MatchTime
		h.WaitingForServe = s.snap.WaitingForServe
		h.CurrentServer = s.snap.CurrentServer
		if p, ok := s.snap.Players[s.localID]; ok {
			h.CurrentRole = roles.Normalize(p.Role)
			h.TimeAsRey = p.TimeAsRey
		}
	}
	if s.hudSent && h == s.hud {
		return func() {}
	}
	s.hud = h
	s.hudSent = true

	fn := s.onHUD
	return func() {
		if fn != nil {
			fn(h)
		}
	}
}

// HUD returns the last computed HUD.
func (s *Scene) HUD() HUD {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hud
}

func hudLines(h HUD, connected bool) []string {
	lines := []string{}
	if h.CurrentRole != "" {
		lines = append(lines, "Role: "+roles.DisplayName(h.CurrentRole))
	}
	lines = append(lines,
		fmt.Sprintf("Time as Rey: %.1fs", h.TimeAsRey),
		fmt.Sprintf("Match: %s", matchClock(h.MatchTime)),
	)
	if h.WaitingForServe {
		server := h.CurrentServer
		if server == "" {
			server = "?"
		}
		lines = append(lines, "Waiting for serve: "+server)
	}
	if !connected {
		lines = append(lines, "Disconnected")
	}
	return lines
}

func matchClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Close discards every animation and effect and releases every resource
// exactly once. Later calls, callbacks and frames are no-ops.
func (s *Scene) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	s.scheduler.Clear()
	s.anims.Clear()
	s.players.Clear()
	s.ball.Dispose()
	s.court.Dispose()
	s.board.Clear()
	s.snap = nil

	metrics.UpdateScene(0, 0, 0, s.alloc.Live())
	log.Printf("🧹 Scene closed (live resources: %d)", s.alloc.Live())
}

// EntityInfo describes one player renderable for the debug API.
type EntityInfo struct {
	ID        string     `json:"id"`
	Nickname  string     `json:"nickname"`
	Role      string     `json:"role"`
	Position  [3]float64 `json:"position"`
	Animation string     `json:"animation,omitempty"`
	Local     bool       `json:"local,omitempty"`
}

// StateView is a point-in-time summary of the scene.
type StateView struct {
	HUD        HUD          `json:"hud"`
	LocalID    string       `json:"localId"`
	Closed     bool         `json:"closed"`
	Entities   []EntityInfo `json:"entities"`
	Effects    int          `json:"effects"`
	Animations int          `json:"animations"`
	Resources  int          `json:"resources"`
}

// State returns a summary of the scene, entities sorted by id.
func (s *Scene) State() StateView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := StateView{
		HUD:        s.hud,
		LocalID:    s.localID,
		Closed:     s.closed,
		Entities:   []EntityInfo{},
		Effects:    s.scheduler.Len(),
		Animations: s.anims.Len(),
		Resources:  s.alloc.Live(),
	}
	for _, id := range s.players.IDs() {
		c, _ := s.players.Get(id)
		p := c.Root.Position
		info := EntityInfo{
			ID:       id,
			Nickname: c.Nickname,
			Role:     c.Role,
			Position: [3]float64{p.X, p.Y, p.Z},
			Local:    id == s.localID,
		}
		if k, ok := s.anims.Active(id); ok {
			info.Animation = string(k)
		}
		v.Entities = append(v.Entities, info)
	}
	return v
}

// Closed reports whether Close has run.
func (s *Scene) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Allocator returns the scene's resource allocator.
func (s *Scene) Allocator() *scene.Allocator {
	return s.alloc
}

// Journal returns the recent-events log.
func (s *Scene) Journal() *Journal {
	return s.journal
}

// Leaderboard returns the live ranking by time as rey.
func (s *Scene) Leaderboard() *Leaderboard {
	return s.board
}

// GetStats returns scene statistics
func (s *Scene) GetStats() map[string]uint64 {
	s.mu.Lock()
	live := uint64(s.alloc.Live())
	entities := uint64(s.players.Len())
	fx := uint64(s.scheduler.Len())
	s.mu.Unlock()

	return map[string]uint64{
		"states":   atomic.LoadUint64(&s.states),
		"messages": atomic.LoadUint64(&s.messages),
		"ignored":  atomic.LoadUint64(&s.ignored),
		"frames":   atomic.LoadUint64(&s.frames),
		"entities": entities,
		"effects":  fx,
		"live":     live,
	}
}
