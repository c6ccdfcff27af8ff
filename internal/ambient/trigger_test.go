package ambient

import (
	"math/rand"
	"testing"
	"time"

	"github.com/papercrane/scrapbook/internal/scrapbook"
)

func testOverlays(n int) []scrapbook.Overlay {
	overlays := make([]scrapbook.Overlay, 0, n)
	for i := 0; i < n; i++ {
		overlays = append(overlays, scrapbook.Overlay{ID: "s", Src: "/images/s.png", Scale: 1})
	}
	return overlays
}

func TestEntryVisibleSpawnsOnePerOverlay(t *testing.T) {
	trigger := NewTrigger(rand.NewSource(1))

	spawned := trigger.EntryVisible("entry-1", testOverlays(3))
	if len(spawned) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(spawned))
	}
	if len(trigger.Active()) != 3 {
		t.Fatalf("expected 3 active instances, got %d", len(trigger.Active()))
	}
	if !trigger.Seen("entry-1") {
		t.Fatalf("entry must be marked seen")
	}
}

func TestEntryVisibleNeverReTriggers(t *testing.T) {
	trigger := NewTrigger(rand.NewSource(1))

	trigger.EntryVisible("entry-1", testOverlays(2))
	if again := trigger.EntryVisible("entry-1", testOverlays(2)); again != nil {
		t.Fatalf("re-scrolling into view must not respawn, got %d", len(again))
	}
	if len(trigger.Active()) != 2 {
		t.Fatalf("active set must not grow on re-trigger, got %d", len(trigger.Active()))
	}
}

func TestEntryWithoutOverlaysSpawnsNothingButIsSeen(t *testing.T) {
	trigger := NewTrigger(rand.NewSource(1))

	if spawned := trigger.EntryVisible("entry-1", nil); spawned != nil {
		t.Fatalf("expected no instances, got %d", len(spawned))
	}
	if !trigger.Seen("entry-1") {
		t.Fatalf("threshold crossing is one-way even without overlays")
	}
}

func TestCompleteRemovesInstance(t *testing.T) {
	trigger := NewTrigger(rand.NewSource(1))

	spawned := trigger.EntryVisible("entry-1", testOverlays(2))
	trigger.Complete(spawned[0].ID)

	active := trigger.Active()
	if len(active) != 1 || active[0].ID != spawned[1].ID {
		t.Fatalf("expected only the second instance to remain, got %+v", active)
	}

	// Unknown and repeated completions are ignored.
	trigger.Complete(spawned[0].ID)
	trigger.Complete(999)
	if len(trigger.Active()) != 1 {
		t.Fatalf("stray completions must not disturb the active set")
	}
}

func TestActiveSetDrainsToEmpty(t *testing.T) {
	trigger := NewTrigger(rand.NewSource(1))

	for i := 0; i < 20; i++ {
		entry := string(rune('a' + i))
		for _, instance := range trigger.EntryVisible(entry, testOverlays(2)) {
			trigger.Complete(instance.ID)
		}
	}
	if len(trigger.Active()) != 0 {
		t.Fatalf("completed instances must never accumulate, got %d", len(trigger.Active()))
	}
}

func TestInstanceIdentitiesAreUniqueAndMonotonic(t *testing.T) {
	trigger := NewTrigger(rand.NewSource(1))

	var last int64
	for i := 0; i < 50; i++ {
		entry := string(rune('a'+i%26)) + string(rune('a'+i/26))
		for _, instance := range trigger.EntryVisible(entry, testOverlays(4)) {
			if instance.ID <= last {
				t.Fatalf("ids must increase monotonically: %d after %d", instance.ID, last)
			}
			last = instance.ID
		}
	}
}

func TestSampledAttributesStayInRange(t *testing.T) {
	trigger := NewTrigger(rand.NewSource(42))

	spawned := trigger.EntryVisible("entry-1", testOverlays(200))
	for _, instance := range spawned {
		if instance.StartXPct < 0 || instance.StartXPct > 100 {
			t.Fatalf("start x out of range: %f", instance.StartXPct)
		}
		if instance.Fall < 4*time.Second || instance.Fall > 8*time.Second {
			t.Fatalf("fall duration out of range: %v", instance.Fall)
		}
		if instance.Delay < 0 || instance.Delay > 2*time.Second {
			t.Fatalf("delay out of range: %v", instance.Delay)
		}
		if instance.Scale < 0.6 || instance.Scale > 1.2 {
			t.Fatalf("scale out of range: %f", instance.Scale)
		}
		if instance.InitialTiltDeg < -180 || instance.InitialTiltDeg > 180 {
			t.Fatalf("tilt out of range: %f", instance.InitialTiltDeg)
		}
	}
}
