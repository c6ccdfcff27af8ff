package scrapbook

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papercrane/scrapbook/internal/geometry"
)

// CardKind tags the two card variants carried on the timeline.
type CardKind string

const (
	// KindPolaroid is a photo entry with a description, a diary note and
	// decorative overlays.
	KindPolaroid CardKind = "polaroid"
	// KindWatermelon is a tasting entry scored by both keepers of the book.
	KindWatermelon CardKind = "watermelon"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidCardID indicates that a card identifier is empty or exceeds storage bounds.
	ErrInvalidCardID = errors.New("scrapbook: invalid card id")
	// ErrUnknownOverlay indicates that an overlay identifier does not belong to the card.
	ErrUnknownOverlay = errors.New("scrapbook: unknown overlay")
	// ErrInvalidKind indicates an unrecognized card kind.
	ErrInvalidKind = errors.New("scrapbook: invalid card kind")
)

// CardID represents a validated card identifier.
type CardID string

// NewCardID validates raw input and returns a CardID.
func NewCardID(rawInput string) (CardID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCardID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidCardID, maxIdentifierLength)
	}
	return CardID(trimmed), nil
}

// String returns the underlying string identifier.
func (id CardID) String() string {
	return string(id)
}

// ParseKind validates a raw card kind value.
func ParseKind(raw string) (CardKind, error) {
	switch CardKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindPolaroid:
		return KindPolaroid, nil
	case KindWatermelon:
		return KindWatermelon, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
}

// Ratings scores one taster's impression of a watermelon, 0-100 per axis.
type Ratings struct {
	Texture   int `json:"texture"`
	Juiciness int `json:"juiciness"`
	Sweetness int `json:"sweetness"`
}

// DefaultRatings returns the neutral midpoint scores used for new entries.
func DefaultRatings() Ratings {
	return Ratings{Texture: 50, Juiciness: 50, Sweetness: 50}
}

// Overlay is a movable sticker attached to a card. X and Y are pixels
// relative to the owning card surface's top-left corner; an overlay never
// stores viewport coordinates and is invalid without an owning card.
type Overlay struct {
	ID       string  `json:"id"`
	Src      string  `json:"src"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Scale    float64 `json:"scale"`
	OnBack   bool    `json:"onBack"`
}

// Placement exposes the overlay's transform in the coordinate model.
func (o Overlay) Placement() geometry.Placement {
	return geometry.Placement{
		Position: geometry.Point{X: o.X, Y: o.Y},
		Rotation: o.Rotation,
		Scale:    o.Scale,
	}
}

// Card is a single scrapbook entry. Overlays is ordered by insertion, which
// is also the display stacking order. Editing and ShowBack are interaction
// state and are never persisted or sent over the wire.
type Card struct {
	ID          string    `json:"id"`
	Kind        CardKind  `json:"kind"`
	Src         string    `json:"src"`
	CreatedAt   time.Time `json:"createdAt"`
	Description string    `json:"description"`
	Note        string    `json:"note"`
	Overlays    []Overlay `json:"stickers"`
	Rachy       Ratings   `json:"rachy"`
	Davey       Ratings   `json:"davey"`

	Editing  bool `json:"-"`
	ShowBack bool `json:"-"`
}

// Clone returns a deep copy of the card so drafts can be mutated without
// aliasing the shared collection.
func (c Card) Clone() Card {
	copied := c
	copied.Overlays = make([]Overlay, len(c.Overlays))
	copy(copied.Overlays, c.Overlays)
	return copied
}

// FindOverlay returns the index of the overlay with the given identifier.
func (c Card) FindOverlay(overlayID string) (int, error) {
	for i := range c.Overlays {
		if c.Overlays[i].ID == overlayID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownOverlay, overlayID)
}

// SetOverlayPosition writes a new parent-relative position for one overlay.
// The write is unclamped; overlays may overflow the parent surface.
func (c *Card) SetOverlayPosition(overlayID string, position geometry.Point) error {
	index, err := c.FindOverlay(overlayID)
	if err != nil {
		return err
	}
	c.Overlays[index].X = position.X
	c.Overlays[index].Y = position.Y
	return nil
}
