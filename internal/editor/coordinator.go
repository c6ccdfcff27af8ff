package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/papercrane/scrapbook/internal/drag"
	"github.com/papercrane/scrapbook/internal/geometry"
	"github.com/papercrane/scrapbook/internal/scrapbook"
	"go.uber.org/zap"
)

var (
	errMissingStore = errors.New("store is required")
	noOpLogger      = zap.NewNop()

	// ErrNotEditing indicates a draft mutation on a card that is not in edit mode.
	ErrNotEditing = errors.New("editor: card is not in edit mode")
	// ErrUnknownCard indicates an operation on a card missing from the local collection.
	ErrUnknownCard = errors.New("editor: unknown card")
)

// Store is the remote collaborator the coordinator persists through. It is
// reachable at a fixed base address and treats cards as opaque snapshots.
type Store interface {
	ListCards(ctx context.Context, kind scrapbook.CardKind) ([]scrapbook.Card, error)
	CreateCard(ctx context.Context, kind scrapbook.CardKind, imageDataURL string) (scrapbook.Card, error)
	UpdateCard(ctx context.Context, card scrapbook.Card) (scrapbook.Card, error)
	DeleteCard(ctx context.Context, kind scrapbook.CardKind, cardID string) error
	RegenerateOverlays(ctx context.Context, cardID string) (scrapbook.Card, error)
}

// Reporter surfaces remote failures to the user. Failures never crash the
// interaction loop; worst case is a stale or unsaved local edit.
type Reporter interface {
	Report(message string, err error)
}

// ReporterFunc adapts a plain function to the Reporter interface.
type ReporterFunc func(message string, err error)

// Report calls the wrapped function.
func (f ReporterFunc) Report(message string, err error) {
	f(message, err)
}

// Config wires the coordinator's collaborators.
type Config struct {
	Store    Store
	Reporter Reporter
	Logger   *zap.Logger
}

// Coordinator reconciles optimistic local card mutations with the remote
// store. Edits accumulate in per-card drafts and are committed only on a
// save trigger: leaving edit mode, or a drag settling. Updates are
// optimistic (local draft survives a failed save and is resent verbatim on
// the next trigger); create and delete are pessimistic (the collection
// changes only after remote confirmation).
//
// The coordinator is driven from a single event loop and is not safe for
// concurrent use. Saves go out in trigger order; nothing reorders responses,
// so a slow earlier save may land after a later one (accepted last-write-wins
// race for this single-user tool).
type Coordinator struct {
	store    Store
	reporter Reporter
	logger   *zap.Logger

	cards  []scrapbook.Card
	drafts map[string]*scrapbook.Card
}

// NewCoordinator validates the configuration and returns an empty coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = ReporterFunc(func(string, error) {})
	}
	return &Coordinator{
		store:    cfg.Store,
		reporter: reporter,
		logger:   logger,
		drafts:   make(map[string]*scrapbook.Card),
	}, nil
}

// Load fetches the full collection. A failed fetch degrades silently to an
// empty collection for that kind; the failure is logged, never surfaced.
func (c *Coordinator) Load(ctx context.Context) {
	loaded := make([]scrapbook.Card, 0)
	for _, kind := range []scrapbook.CardKind{scrapbook.KindPolaroid, scrapbook.KindWatermelon} {
		cards, err := c.store.ListCards(ctx, kind)
		if err != nil {
			c.logger.Warn("card list fetch failed",
				zap.String("kind", string(kind)),
				zap.Error(err))
			continue
		}
		loaded = append(loaded, cards...)
	}
	c.cards = loaded
	c.drafts = make(map[string]*scrapbook.Card)
}

// Cards returns the local collection with any in-progress drafts substituted.
func (c *Coordinator) Cards() []scrapbook.Card {
	cards := make([]scrapbook.Card, 0, len(c.cards))
	for _, card := range c.cards {
		if draft, ok := c.drafts[card.ID]; ok {
			cards = append(cards, draft.Clone())
			continue
		}
		cards = append(cards, card)
	}
	return cards
}

// Timeline projects the collection into the chronological browse view.
func (c *Coordinator) Timeline() []scrapbook.TimelineEntry {
	return scrapbook.BuildTimeline(c.Cards())
}

// Card returns the draft for an editing card, or the stored card otherwise.
func (c *Coordinator) Card(cardID string) (scrapbook.Card, bool) {
	if draft, ok := c.drafts[cardID]; ok {
		return draft.Clone(), true
	}
	for _, card := range c.cards {
		if card.ID == cardID {
			return card, true
		}
	}
	return scrapbook.Card{}, false
}

// BeginEdit opens a draft for the card. Re-entering edit mode on an already
// editing card keeps the existing draft.
func (c *Coordinator) BeginEdit(cardID string) error {
	if _, ok := c.drafts[cardID]; ok {
		return nil
	}
	index := c.findCard(cardID)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}
	draft := c.cards[index].Clone()
	draft.SetEditing(true)
	c.drafts[cardID] = &draft
	return nil
}

// IsEditing reports whether the card has an open draft.
func (c *Coordinator) IsEditing(cardID string) bool {
	_, ok := c.drafts[cardID]
	return ok
}

// SetDescription stages new description text on the draft.
func (c *Coordinator) SetDescription(cardID, text string) error {
	return c.mutateDraft(cardID, func(draft *scrapbook.Card) error {
		draft.Description = text
		return nil
	})
}

// SetNote stages new diary text on the draft.
func (c *Coordinator) SetNote(cardID, text string) error {
	return c.mutateDraft(cardID, func(draft *scrapbook.Card) error {
		draft.Note = text
		return nil
	})
}

// SetDate stages a new creation date on the draft.
func (c *Coordinator) SetDate(cardID string, createdAt time.Time) error {
	return c.mutateDraft(cardID, func(draft *scrapbook.Card) error {
		draft.CreatedAt = createdAt
		return nil
	})
}

// SetRatings stages both tasters' scores on the draft.
func (c *Coordinator) SetRatings(cardID string, rachy, davey scrapbook.Ratings) error {
	return c.mutateDraft(cardID, func(draft *scrapbook.Card) error {
		draft.Rachy = rachy
		draft.Davey = davey
		return nil
	})
}

// MoveOverlay stages a new parent-relative position for one overlay.
func (c *Coordinator) MoveOverlay(cardID, overlayID string, position geometry.Point) error {
	return c.mutateDraft(cardID, func(draft *scrapbook.Card) error {
		return draft.SetOverlayPosition(overlayID, position)
	})
}

// FlipOverlay stages moving one overlay to the card's other face.
func (c *Coordinator) FlipOverlay(cardID, overlayID string) error {
	return c.mutateDraft(cardID, func(draft *scrapbook.Card) error {
		return draft.FlipOverlay(overlayID)
	})
}

// ToggleFace flips which face of the card is shown. Face state is local
// display state, orthogonal to edit mode, and is never persisted.
func (c *Coordinator) ToggleFace(cardID string) error {
	if draft, ok := c.drafts[cardID]; ok {
		draft.ToggleFace()
		return nil
	}
	index := c.findCard(cardID)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}
	c.cards[index].ToggleFace()
	return nil
}

// SettleDrag applies a finished drag gesture to the owning draft and fires
// the save trigger without leaving edit mode. This is the continuous
// autosave path for multi-drag editing sessions.
func (c *Coordinator) SettleDrag(ctx context.Context, settled drag.Settle) error {
	for cardID, draft := range c.drafts {
		if _, err := draft.FindOverlay(settled.OverlayID); err != nil {
			continue
		}
		if err := draft.SetOverlayPosition(settled.OverlayID, settled.Position); err != nil {
			return err
		}
		return c.SaveNow(ctx, cardID)
	}
	return fmt.Errorf("%w: no editing card owns overlay %s", ErrUnknownCard, settled.OverlayID)
}

// SaveNow persists the full draft snapshot and stays in edit mode. Calling
// it on a card without a draft is a no-op, which keeps the two save
// triggers idempotent and order-independent.
func (c *Coordinator) SaveNow(ctx context.Context, cardID string) error {
	draft, ok := c.drafts[cardID]
	if !ok {
		return nil
	}
	return c.push(ctx, draft)
}

// EndEdit persists the full draft snapshot and closes the draft. On failure
// the draft survives so the next trigger resends the same snapshot.
func (c *Coordinator) EndEdit(ctx context.Context, cardID string) error {
	draft, ok := c.drafts[cardID]
	if !ok {
		return nil
	}
	if err := c.push(ctx, draft); err != nil {
		return err
	}
	delete(c.drafts, cardID)
	if index := c.findCard(cardID); index >= 0 {
		c.cards[index].SetEditing(false)
	}
	return nil
}

// Create uploads a new card image and appends the confirmed card. Nothing
// is added locally if the remote create fails.
func (c *Coordinator) Create(ctx context.Context, kind scrapbook.CardKind, imageDataURL string) (scrapbook.Card, error) {
	card, err := c.store.CreateCard(ctx, kind, imageDataURL)
	if err != nil {
		c.reporter.Report("could not create the entry", err)
		return scrapbook.Card{}, err
	}
	c.cards = append([]scrapbook.Card{card}, c.cards...)
	return card, nil
}

// Delete removes a card remotely, then locally. The local collection is
// untouched if the remote delete fails.
func (c *Coordinator) Delete(ctx context.Context, kind scrapbook.CardKind, cardID string) error {
	if err := c.store.DeleteCard(ctx, kind, cardID); err != nil {
		c.reporter.Report("could not delete the entry", err)
		return err
	}
	delete(c.drafts, cardID)
	if index := c.findCard(cardID); index >= 0 {
		c.cards = append(c.cards[:index], c.cards[index+1:]...)
	}
	return nil
}

// Regenerate asks the enrichment pipeline for a fresh overlay set and
// applies the returned snapshot to the local card (and its draft, if open).
func (c *Coordinator) Regenerate(ctx context.Context, cardID string) error {
	card, err := c.store.RegenerateOverlays(ctx, cardID)
	if err != nil {
		c.reporter.Report("could not regenerate stickers", err)
		return err
	}
	c.applySnapshot(card)
	return nil
}

func (c *Coordinator) push(ctx context.Context, draft *scrapbook.Card) error {
	saved, err := c.store.UpdateCard(ctx, draft.Clone())
	if err != nil {
		c.reporter.Report("could not save your changes", err)
		c.logger.Warn("card save failed",
			zap.String("card_id", draft.ID),
			zap.Error(err))
		return err
	}
	c.applySnapshot(saved)
	return nil
}

// applySnapshot folds a confirmed server snapshot into the collection while
// preserving local display state.
func (c *Coordinator) applySnapshot(saved scrapbook.Card) {
	index := c.findCard(saved.ID)
	if index < 0 {
		return
	}
	saved.Editing = c.cards[index].Editing
	saved.ShowBack = c.cards[index].ShowBack
	c.cards[index] = saved
	if draft, ok := c.drafts[saved.ID]; ok {
		draft.Overlays = make([]scrapbook.Overlay, len(saved.Overlays))
		copy(draft.Overlays, saved.Overlays)
		draft.Src = saved.Src
	}
}

func (c *Coordinator) findCard(cardID string) int {
	for i := range c.cards {
		if c.cards[i].ID == cardID {
			return i
		}
	}
	return -1
}

func (c *Coordinator) mutateDraft(cardID string, mutate func(*scrapbook.Card) error) error {
	draft, ok := c.drafts[cardID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotEditing, cardID)
	}
	return mutate(draft)
}
