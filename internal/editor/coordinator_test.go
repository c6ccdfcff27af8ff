package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/papercrane/scrapbook/internal/drag"
	"github.com/papercrane/scrapbook/internal/geometry"
	"github.com/papercrane/scrapbook/internal/scrapbook"
)

type fakeStore struct {
	cards map[string]scrapbook.Card

	listErr   error
	updateErr error
	createErr error
	deleteErr error

	updates []scrapbook.Card
	creates int
	deletes int
}

func newFakeStore(cards ...scrapbook.Card) *fakeStore {
	store := &fakeStore{cards: make(map[string]scrapbook.Card)}
	for _, card := range cards {
		store.cards[card.ID] = card
	}
	return store
}

func (f *fakeStore) ListCards(_ context.Context, kind scrapbook.CardKind) ([]scrapbook.Card, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	cards := make([]scrapbook.Card, 0)
	for _, card := range f.cards {
		if card.Kind == kind {
			cards = append(cards, card)
		}
	}
	return cards, nil
}

func (f *fakeStore) CreateCard(_ context.Context, kind scrapbook.CardKind, _ string) (scrapbook.Card, error) {
	f.creates++
	if f.createErr != nil {
		return scrapbook.Card{}, f.createErr
	}
	card := scrapbook.Card{ID: "created-1", Kind: kind, CreatedAt: time.Unix(1700000000, 0).UTC()}
	f.cards[card.ID] = card
	return card, nil
}

func (f *fakeStore) UpdateCard(_ context.Context, card scrapbook.Card) (scrapbook.Card, error) {
	f.updates = append(f.updates, card)
	if f.updateErr != nil {
		return scrapbook.Card{}, f.updateErr
	}
	f.cards[card.ID] = card
	return card, nil
}

func (f *fakeStore) DeleteCard(_ context.Context, _ scrapbook.CardKind, cardID string) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.cards, cardID)
	return nil
}

func (f *fakeStore) RegenerateOverlays(_ context.Context, cardID string) (scrapbook.Card, error) {
	card := f.cards[cardID]
	card.Overlays = []scrapbook.Overlay{{ID: "regen-1", Src: "/images/regen.png", Scale: 1}}
	f.cards[cardID] = card
	return card, nil
}

type recordingReporter struct {
	messages []string
}

func (r *recordingReporter) Report(message string, _ error) {
	r.messages = append(r.messages, message)
}

func polaroidCard(id string) scrapbook.Card {
	return scrapbook.Card{
		ID:        id,
		Kind:      scrapbook.KindPolaroid,
		Src:       "https://img/" + id + ".jpg",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		Overlays: []scrapbook.Overlay{
			{ID: "sticker-1", Src: "/images/s1.png", X: 100, Y: 50, Scale: 1},
		},
	}
}

func newTestCoordinator(t *testing.T, store Store, reporter Reporter) *Coordinator {
	t.Helper()
	coordinator, err := NewCoordinator(Config{Store: store, Reporter: reporter})
	if err != nil {
		t.Fatalf("failed to build coordinator: %v", err)
	}
	return coordinator
}

func TestLoadFailureFallsBackToEmptyCollection(t *testing.T) {
	store := newFakeStore(polaroidCard("card-1"))
	store.listErr = errors.New("network down")
	reporter := &recordingReporter{}
	coordinator := newTestCoordinator(t, store, reporter)

	coordinator.Load(context.Background())

	if len(coordinator.Cards()) != 0 {
		t.Fatalf("expected empty collection, got %d cards", len(coordinator.Cards()))
	}
	if len(reporter.messages) != 0 {
		t.Fatalf("fetch failures must not surface to the user, got %v", reporter.messages)
	}
}

func TestDraftMutationsStayLocalUntilTrigger(t *testing.T) {
	store := newFakeStore(polaroidCard("card-1"))
	coordinator := newTestCoordinator(t, store, nil)
	coordinator.Load(context.Background())
	ctx := context.Background()

	if err := coordinator.BeginEdit("card-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := coordinator.SetDescription("card-1", "beach day"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := coordinator.SetNote("card-1", "sand everywhere"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := coordinator.MoveOverlay("card-1", "sticker-1", geometry.Point{X: 160, Y: 50}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("mutations must not hit the store before a trigger, got %d updates", len(store.updates))
	}

	if err := coordinator.EndEdit(ctx, "card-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.updates) != 1 {
		t.Fatalf("expected exactly one save, got %d", len(store.updates))
	}
	sent := store.updates[0]
	if sent.Description != "beach day" || sent.Note != "sand everywhere" {
		t.Fatalf("snapshot must carry all staged fields: %+v", sent)
	}
	if sent.Overlays[0].X != 160 {
		t.Fatalf("snapshot must carry overlay moves: %+v", sent.Overlays[0])
	}
	if coordinator.IsEditing("card-1") {
		t.Fatalf("expected edit mode to close after EndEdit")
	}
}

func TestSaveTriggersAreIdempotent(t *testing.T) {
	store := newFakeStore(polaroidCard("card-1"))
	coordinator := newTestCoordinator(t, store, nil)
	coordinator.Load(context.Background())
	ctx := context.Background()

	// No draft open: both triggers are no-ops.
	if err := coordinator.SaveNow(ctx, "card-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := coordinator.EndEdit(ctx, "card-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("triggers without a draft must not save, got %d", len(store.updates))
	}
}

func TestFailedSaveKeepsDraftAndResendsVerbatim(t *testing.T) {
	store := newFakeStore(polaroidCard("card-1"))
	reporter := &recordingReporter{}
	coordinator := newTestCoordinator(t, store, reporter)
	coordinator.Load(context.Background())
	ctx := context.Background()

	coordinator.BeginEdit("card-1")
	coordinator.SetDescription("card-1", "first light")

	store.updateErr = errors.New("save rejected")
	if err := coordinator.EndEdit(ctx, "card-1"); err == nil {
		t.Fatalf("expected save failure to propagate")
	}
	if len(reporter.messages) != 1 {
		t.Fatalf("expected one user-visible report, got %v", reporter.messages)
	}
	if !coordinator.IsEditing("card-1") {
		t.Fatalf("draft must survive a failed save")
	}
	card, _ := coordinator.Card("card-1")
	if card.Description != "first light" {
		t.Fatalf("local edit must remain visible, got %q", card.Description)
	}

	store.updateErr = nil
	if err := coordinator.EndEdit(ctx, "card-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.updates) != 2 {
		t.Fatalf("expected a retry, got %d updates", len(store.updates))
	}
	if store.updates[1].Description != "first light" {
		t.Fatalf("retry must resend the snapshot verbatim, got %q", store.updates[1].Description)
	}
}

func TestSettleDragSavesOnceAndStaysInEditMode(t *testing.T) {
	store := newFakeStore(polaroidCard("card-1"))
	coordinator := newTestCoordinator(t, store, nil)
	coordinator.Load(context.Background())
	ctx := context.Background()

	coordinator.BeginEdit("card-1")
	if err := coordinator.SettleDrag(ctx, drag.Settle{
		OverlayID: "sticker-1",
		Position:  geometry.Point{X: 160, Y: 50},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.updates) != 1 {
		t.Fatalf("drag settle must save exactly once, got %d", len(store.updates))
	}
	if store.updates[0].Overlays[0].X != 160 || store.updates[0].Overlays[0].Y != 50 {
		t.Fatalf("settle position not persisted: %+v", store.updates[0].Overlays[0])
	}
	if !coordinator.IsEditing("card-1") {
		t.Fatalf("drag settle must not leave edit mode")
	}

	// A second gesture in the same session autosaves again.
	if err := coordinator.SettleDrag(ctx, drag.Settle{
		OverlayID: "sticker-1",
		Position:  geometry.Point{X: 10, Y: 20},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.updates) != 2 {
		t.Fatalf("expected continuous autosave, got %d updates", len(store.updates))
	}
}

func TestSettleDragRejectsOverlayWithoutEditingCard(t *testing.T) {
	store := newFakeStore(polaroidCard("card-1"))
	coordinator := newTestCoordinator(t, store, nil)
	coordinator.Load(context.Background())

	err := coordinator.SettleDrag(context.Background(), drag.Settle{OverlayID: "sticker-1"})
	if !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("expected ErrUnknownCard, got %v", err)
	}
}

func TestCreateIsPessimistic(t *testing.T) {
	store := newFakeStore()
	reporter := &recordingReporter{}
	coordinator := newTestCoordinator(t, store, reporter)
	ctx := context.Background()

	store.createErr = errors.New("upload failed")
	if _, err := coordinator.Create(ctx, scrapbook.KindPolaroid, "data:image/png;base64,AQID"); err == nil {
		t.Fatalf("expected create failure to propagate")
	}
	if len(coordinator.Cards()) != 0 {
		t.Fatalf("no partial card may be added on failure")
	}
	if len(reporter.messages) != 1 {
		t.Fatalf("expected a user-visible report, got %v", reporter.messages)
	}

	store.createErr = nil
	card, err := coordinator.Create(ctx, scrapbook.KindPolaroid, "data:image/png;base64,AQID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cards := coordinator.Cards()
	if len(cards) != 1 || cards[0].ID != card.ID {
		t.Fatalf("confirmed card must join the collection: %+v", cards)
	}
}

func TestDeleteIsPessimistic(t *testing.T) {
	store := newFakeStore(polaroidCard("card-1"))
	reporter := &recordingReporter{}
	coordinator := newTestCoordinator(t, store, reporter)
	coordinator.Load(context.Background())
	ctx := context.Background()

	store.deleteErr = errors.New("remote refused")
	if err := coordinator.Delete(ctx, scrapbook.KindPolaroid, "card-1"); err == nil {
		t.Fatalf("expected delete failure to propagate")
	}
	if len(coordinator.Cards()) != 1 {
		t.Fatalf("local collection must be unchanged on failed delete")
	}

	store.deleteErr = nil
	if err := coordinator.Delete(ctx, scrapbook.KindPolaroid, "card-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(coordinator.Cards()) != 0 {
		t.Fatalf("confirmed delete must remove the card")
	}
}

func TestToggleFacePersistsAcrossSaves(t *testing.T) {
	store := newFakeStore(polaroidCard("card-1"))
	coordinator := newTestCoordinator(t, store, nil)
	coordinator.Load(context.Background())
	ctx := context.Background()

	if err := coordinator.ToggleFace("card-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coordinator.BeginEdit("card-1")
	if err := coordinator.SaveNow(ctx, "card-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	card, _ := coordinator.Card("card-1")
	if !card.ShowBack {
		t.Fatalf("face state must survive a confirmed save snapshot")
	}
}

func TestRegenerateAppliesReturnedSnapshot(t *testing.T) {
	store := newFakeStore(polaroidCard("card-1"))
	coordinator := newTestCoordinator(t, store, nil)
	coordinator.Load(context.Background())

	if err := coordinator.Regenerate(context.Background(), "card-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	card, _ := coordinator.Card("card-1")
	if len(card.Overlays) != 1 || card.Overlays[0].ID != "regen-1" {
		t.Fatalf("expected regenerated overlay set, got %+v", card.Overlays)
	}
}
