package drag

import (
	"errors"

	"github.com/papercrane/scrapbook/internal/geometry"
	"go.uber.org/zap"
)

var (
	// ErrNotEditing indicates a press on an overlay whose card is not in edit mode.
	ErrNotEditing = errors.New("drag: card is not in edit mode")
	// ErrGestureActive indicates a press while another gesture holds the capture.
	ErrGestureActive = errors.New("drag: another gesture is in progress")

	noOpLogger = zap.NewNop()
)

// State enumerates the gesture lifecycle.
type State int

const (
	// StateIdle means no gesture is in progress.
	StateIdle State = iota
	// StateArmed means the pointer is captured but has not moved yet.
	StateArmed
	// StateDragging means the captured pointer has produced at least one move.
	StateDragging
	// StateSettled means the last gesture ended and its save was emitted.
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateDragging:
		return "dragging"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Pointer is one input event position tagged with the pointer identity that
// produced it.
type Pointer struct {
	ID       int64
	Position geometry.Point
}

// Session is the explicit value object for a single gesture. The offset is
// frozen at capture time so the overlay never re-centers under the cursor,
// and the parent rect is a snapshot of the owning surface's bounding box.
type Session struct {
	OverlayID string
	PointerID int64
	Offset    geometry.Point
	Parent    geometry.Rect
	Position  geometry.Point
	Moves     int
}

// Settle is emitted exactly once per gesture, on release or capture loss.
// It carries the final parent-relative position; intermediate moves are
// never surfaced for persistence.
type Settle struct {
	OverlayID string
	Position  geometry.Point
	Moves     int
}

// Config wires the controller's collaborators.
type Config struct {
	Logger   *zap.Logger
	OnSettle func(Settle)
}

// Controller owns the interaction state machine for overlay dragging. It is
// driven from a single event loop; pointer capture in the input substrate is
// the mutual-exclusion primitive, mirrored here by rejecting a second press
// while a gesture is active.
type Controller struct {
	logger   *zap.Logger
	onSettle func(Settle)
	state    State
	session  Session
}

// NewController returns an idle controller.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Controller{
		logger:   logger,
		onSettle: cfg.OnSettle,
		state:    StateIdle,
	}
}

// State returns the current gesture state.
func (c *Controller) State() State {
	return c.state
}

// Session returns the active session value. The second return is false
// unless a gesture holds the capture.
func (c *Controller) Session() (Session, bool) {
	if c.state != StateArmed && c.state != StateDragging {
		return Session{}, false
	}
	return c.session, true
}

// Press arms the controller for the given overlay. overlayTopLeft and the
// parent rect are viewport-space measurements taken at the moment of
// capture; the offset between pointer and overlay corner is frozen for the
// whole gesture.
func (c *Controller) Press(pointer Pointer, overlayID string, overlayTopLeft geometry.Point, parent geometry.Rect, editing bool) error {
	if c.state == StateArmed || c.state == StateDragging {
		return ErrGestureActive
	}
	if !editing {
		return ErrNotEditing
	}

	c.session = Session{
		OverlayID: overlayID,
		PointerID: pointer.ID,
		Offset:    pointer.Position.Sub(overlayTopLeft),
		Parent:    parent,
		Position:  overlayTopLeft.Sub(parent.Origin),
	}
	c.state = StateArmed
	c.logger.Debug("drag armed",
		zap.String("overlay_id", overlayID),
		zap.Int64("pointer_id", pointer.ID))
	return nil
}

// Move advances the gesture with a new pointer position. Events from a
// pointer that does not hold the capture are ignored. The returned position
// is parent-relative and unclamped; overlays may leave the parent surface.
func (c *Controller) Move(pointer Pointer) (geometry.Point, bool) {
	if c.state != StateArmed && c.state != StateDragging {
		return geometry.Point{}, false
	}
	if pointer.ID != c.session.PointerID {
		return geometry.Point{}, false
	}

	position := pointer.Position.Sub(c.session.Parent.Origin).Sub(c.session.Offset)
	c.session.Position = position
	c.session.Moves++
	c.state = StateDragging
	return position, true
}

// Release settles the gesture and emits the single save for it. A release
// from a pointer that does not hold the capture is ignored.
func (c *Controller) Release(pointer Pointer) (Settle, bool) {
	if c.state != StateArmed && c.state != StateDragging {
		return Settle{}, false
	}
	if pointer.ID != c.session.PointerID {
		return Settle{}, false
	}
	if _, ok := c.Move(pointer); !ok {
		return Settle{}, false
	}
	// The final move above already folded the release position in; it is
	// not counted as an extra gesture move.
	c.session.Moves--
	return c.settle(), true
}

// LoseCapture settles the gesture at its last known position when the input
// substrate revokes pointer capture.
func (c *Controller) LoseCapture(pointerID int64) (Settle, bool) {
	if c.state != StateArmed && c.state != StateDragging {
		return Settle{}, false
	}
	if pointerID != c.session.PointerID {
		return Settle{}, false
	}
	return c.settle(), true
}

func (c *Controller) settle() Settle {
	settled := Settle{
		OverlayID: c.session.OverlayID,
		Position:  c.session.Position,
		Moves:     c.session.Moves,
	}
	c.state = StateSettled
	c.logger.Debug("drag settled",
		zap.String("overlay_id", settled.OverlayID),
		zap.Float64("x", settled.Position.X),
		zap.Float64("y", settled.Position.Y),
		zap.Int("moves", settled.Moves))
	if c.onSettle != nil {
		c.onSettle(settled)
	}
	return settled
}
