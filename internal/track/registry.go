package track

import (
	"math"
	"sort"

	"github.com/beysion/beytracker/internal/detect"
)

// Config holds the registry's matching and retention parameters.
type Config struct {
	// MaxDisplacement is the largest frame-to-frame move that still keeps an
	// identity.
	MaxDisplacement float64
	// RecentFrames is how far back match candidates are drawn from.
	RecentFrames int
	// Retention is the consecutive-miss count past which an entity is
	// retired for good.
	Retention int
	// HitRadius is the largest distance between a collision centroid and an
	// entity for that entity to be credited with the hit.
	HitRadius float64
	// HitWindow is how many frames a bey pair's collision stays
	// deduplicated. Window is the total history depth kept.
	HitWindow int
	Window    int
}

// DefaultConfig returns the tuned registry parameters.
func DefaultConfig() Config {
	return Config{
		MaxDisplacement: 1000,
		RecentFrames:    3,
		Retention:       10,
		HitRadius:       40,
		HitWindow:       10,
		Window:          20,
	}
}

// HitEvent is a collision with best-effort identity attribution. ID1/ID2 are
// zero when the contributing beys could not be resolved.
type HitEvent struct {
	X, Y  int
	Frame int64
	ID1   int64
	ID2   int64
}

// resolved reports whether both contributing beys are known.
func (h HitEvent) resolved() bool {
	return h.ID1 != 0 && h.ID2 != 0
}

// tag is the order-independent pair key used for deduplication.
func (h HitEvent) tag() [2]int64 {
	if h.ID1 < h.ID2 {
		return [2]int64{h.ID1, h.ID2}
	}
	return [2]int64{h.ID2, h.ID1}
}

// Registry assigns and retires stable identities. It owns its history
// exclusively; the pipeline is its only caller.
type Registry struct {
	cfg    Config
	nextID int64

	// live holds every entity not yet retired, matched this frame or not.
	live map[int64]*Entity

	// hitTags is the rolling window of per-frame collision pair keys.
	hitTags [][][2]int64

	// history is the rolling window of per-frame entity snapshots, oldest
	// first, for trail rendering and diagnostics.
	history [][]Entity

	// current is the snapshot of entities matched or created in the most
	// recent completed cycle, in detection order.
	current []Entity
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:  cfg,
		live: make(map[int64]*Entity),
	}
}

// candidate is one (shape, entity) pairing considered by the greedy matcher.
type candidate struct {
	dist     float64
	shapeIdx int
	id       int64
}

// Update matches one frame's shapes against the registry, creating and
// retiring identities, and returns the frame's entity snapshot plus its new
// (deduplicated) collision events.
//
// Matching is greedy nearest-neighbor over all (shape, recent entity) pairs
// sorted by distance — not a globally optimal assignment. The downstream
// renderer was tuned against exactly this behavior, ID swaps on crossing
// trajectories included.
func (r *Registry) Update(shapes []detect.Shape, hits []detect.Hit, frame int64) ([]Entity, []HitEvent) {
	singles := make([]detect.Shape, 0, len(shapes))
	for _, s := range shapes {
		if s.Kind == detect.SingleObject {
			singles = append(singles, s)
		}
	}

	matched := r.match(singles, frame)

	// Unmatched live entities accumulate misses; past Retention they are
	// gone and their IDs with them.
	for id, e := range r.live {
		if e.LastSeen == frame {
			continue
		}
		e.Misses++
		if e.Misses >= r.cfg.Retention {
			delete(r.live, id)
		}
	}

	r.current = r.current[:0]
	for _, id := range matched {
		r.current = append(r.current, *r.live[id])
	}

	snapshot := append([]Entity(nil), r.current...)
	r.history = append(r.history, snapshot)
	if len(r.history) > r.cfg.Window {
		r.history = r.history[1:]
	}

	events := r.judgeHits(hits, frame)
	return snapshot, events
}

// History returns the retained per-frame snapshots, oldest first. The caller
// must not mutate them.
func (r *Registry) History() [][]Entity {
	return r.history
}

// match assigns shapes to entities and returns the entity ID for each shape,
// in shape order.
func (r *Registry) match(singles []detect.Shape, frame int64) []int64 {
	// Candidates: every shape against every entity seen recently enough.
	var candidates []candidate
	for i, s := range singles {
		for id, e := range r.live {
			if frame-e.LastSeen > int64(r.cfg.RecentFrames) {
				continue
			}
			d := math.Hypot(float64(s.X-e.X), float64(s.Y-e.Y))
			candidates = append(candidates, candidate{dist: d, shapeIdx: i, id: id})
		}
	}

	// Nearest first; ties go to the lower existing ID, then detection order,
	// keeping the assignment deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.id != b.id {
			return a.id < b.id
		}
		return a.shapeIdx < b.shapeIdx
	})

	assigned := make([]int64, len(singles))
	taken := make(map[int64]bool)
	claimed := 0
	for _, c := range candidates {
		if claimed == len(singles) {
			break
		}
		if c.dist >= r.cfg.MaxDisplacement {
			break
		}
		if assigned[c.shapeIdx] != 0 || taken[c.id] {
			continue
		}
		s := singles[c.shapeIdx]
		r.live[c.id].step(s.X, s.Y, s.W, s.H, frame)
		assigned[c.shapeIdx] = c.id
		taken[c.id] = true
		claimed++
	}

	// Whatever could not be matched is a brand-new bey.
	for i, s := range singles {
		if assigned[i] != 0 {
			continue
		}
		r.nextID++
		e := &Entity{
			ID:       r.nextID,
			X:        s.X,
			Y:        s.Y,
			W:        s.W,
			H:        s.H,
			LastSeen: frame,
		}
		r.live[e.ID] = e
		assigned[i] = e.ID
	}

	return assigned
}

// judgeHits attributes collision centroids to their nearest entities and
// suppresses pairs already reported within the hit window.
func (r *Registry) judgeHits(hits []detect.Hit, frame int64) []HitEvent {
	recent := make(map[[2]int64]bool)
	for _, tags := range r.hitTags {
		for _, t := range tags {
			recent[t] = true
		}
	}

	var frameTags [][2]int64
	var events []HitEvent
	for _, h := range hits {
		ev := HitEvent{X: h.X, Y: h.Y, Frame: frame}
		ev.ID1, ev.ID2 = r.nearestPair(h)

		if ev.resolved() {
			frameTags = append(frameTags, ev.tag())
			if recent[ev.tag()] {
				continue
			}
		}
		events = append(events, ev)
	}

	r.hitTags = append(r.hitTags, frameTags)
	if len(r.hitTags) > r.cfg.HitWindow {
		r.hitTags = r.hitTags[1:]
	}

	return events
}

// nearestPair finds the two current-frame entities closest to the hit, both
// within HitRadius. Anything less definite stays unresolved.
func (r *Registry) nearestPair(h detect.Hit) (int64, int64) {
	type near struct {
		dist float64
		id   int64
	}
	var nears []near
	for _, e := range r.current {
		d := math.Hypot(float64(h.X-e.X), float64(h.Y-e.Y))
		if d <= r.cfg.HitRadius {
			nears = append(nears, near{dist: d, id: e.ID})
		}
	}
	if len(nears) < 2 {
		return 0, 0
	}
	sort.Slice(nears, func(i, j int) bool {
		if nears[i].dist != nears[j].dist {
			return nears[i].dist < nears[j].dist
		}
		return nears[i].id < nears[j].id
	})
	return nears[0].id, nears[1].id
}

// Live returns the number of entities not yet retired.
func (r *Registry) Live() int {
	return len(r.live)
}

// NextID returns the highest ID handed out so far.
func (r *Registry) NextID() int64 {
	return r.nextID
}
