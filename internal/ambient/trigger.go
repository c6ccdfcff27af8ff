package ambient

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/papercrane/scrapbook/internal/scrapbook"
)

// Sampling ranges for the decorative falling effect. Values are uniform
// within each range; nothing here is physically modeled.
const (
	minStartXPercent = 0.0
	maxStartXPercent = 100.0
	minFall          = 4 * time.Second
	maxFall          = 8 * time.Second
	maxDelay         = 2 * time.Second
	minScale         = 0.6
	maxScale         = 1.2
	maxTilt          = 180.0
)

// Instance is one transient falling sticker. Identifiers are monotonically
// increasing, never derived from wall-clock time, so rapid spawns cannot
// collide.
type Instance struct {
	ID             int64
	EntryID        string
	Src            string
	StartXPct      float64
	Delay          time.Duration
	Fall           time.Duration
	Scale          float64
	InitialTiltDeg float64
}

// Trigger observes timeline entry visibility and owns the active set of
// falling instances. An entry transitions Unseen -> Visible exactly once;
// re-scrolling into view never replays the effect.
type Trigger struct {
	mu     sync.Mutex
	rng    *rand.Rand
	nextID int64
	seen   map[string]struct{}
	active map[int64]Instance
}

// NewTrigger returns a trigger seeded from the provided source. A nil
// source falls back to a time-seeded one.
func NewTrigger(source rand.Source) *Trigger {
	if source == nil {
		source = rand.NewSource(time.Now().UnixNano())
	}
	return &Trigger{
		rng:    rand.New(source),
		seen:   make(map[string]struct{}),
		active: make(map[int64]Instance),
	}
}

// EntryVisible records that a timeline entry crossed the visibility
// threshold and, on the first crossing only, spawns one instance per
// overlay. The returned slice holds the newly spawned instances; repeat
// calls return nil.
func (t *Trigger) EntryVisible(entryID string, overlays []scrapbook.Overlay) []Instance {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[entryID]; ok {
		return nil
	}
	t.seen[entryID] = struct{}{}

	if len(overlays) == 0 {
		return nil
	}

	spawned := make([]Instance, 0, len(overlays))
	for _, overlay := range overlays {
		t.nextID++
		instance := Instance{
			ID:             t.nextID,
			EntryID:        entryID,
			Src:            overlay.Src,
			StartXPct:      t.sample(minStartXPercent, maxStartXPercent),
			Delay:          time.Duration(t.rng.Int63n(int64(maxDelay) + 1)),
			Fall:           minFall + time.Duration(t.rng.Int63n(int64(maxFall-minFall)+1)),
			Scale:          t.sample(minScale, maxScale),
			InitialTiltDeg: t.sample(-maxTilt, maxTilt),
		}
		t.active[instance.ID] = instance
		spawned = append(spawned, instance)
	}
	return spawned
}

// Complete handles the end-of-animation signal for one instance. Unknown
// identifiers are ignored; completion is fire-and-forget.
func (t *Trigger) Complete(instanceID int64) {
	t.mu.Lock()
	delete(t.active, instanceID)
	t.mu.Unlock()
}

// Active returns the live instances ordered by identity.
func (t *Trigger) Active() []Instance {
	t.mu.Lock()
	defer t.mu.Unlock()

	instances := make([]Instance, 0, len(t.active))
	for _, instance := range t.active {
		instances = append(instances, instance)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })
	return instances
}

// Seen reports whether the entry has already crossed the threshold.
func (t *Trigger) Seen(entryID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[entryID]
	return ok
}

func (t *Trigger) sample(min, max float64) float64 {
	return min + t.rng.Float64()*(max-min)
}
