package scrapbook

// Face controller: a card has exactly two mutually exclusive faces. Which
// face an overlay lives on is the overlay's OnBack flag; which face the card
// shows is the card's ShowBack flag. Visibility is the pure function
// OnBack == ShowBack, so toggling a face never changes overlay membership or
// any overlay attribute.

// ToggleFace flips the card between its front and back face. Calling it
// twice restores the original face. Face and edit mode are orthogonal
// toggles; neither forces the other.
func (c *Card) ToggleFace() {
	c.ShowBack = !c.ShowBack
}

// SetEditing switches mutation on or off without touching the visible face.
func (c *Card) SetEditing(editing bool) {
	c.Editing = editing
}

// FlipOverlay moves a single overlay to the opposite face. Position,
// rotation and scale are untouched, as is every other overlay.
func (c *Card) FlipOverlay(overlayID string) error {
	index, err := c.FindOverlay(overlayID)
	if err != nil {
		return err
	}
	c.Overlays[index].OnBack = !c.Overlays[index].OnBack
	return nil
}

// VisibleOverlays returns the overlays rendered on the currently shown face,
// in insertion order.
func (c Card) VisibleOverlays() []Overlay {
	visible := make([]Overlay, 0, len(c.Overlays))
	for _, overlay := range c.Overlays {
		if overlay.OnBack == c.ShowBack {
			visible = append(visible, overlay)
		}
	}
	return visible
}

// RenderOrder returns the visible overlays in stacking order: insertion
// order, except that an actively dragged overlay is promoted to the top.
// The promotion is transient; nothing about the card changes.
func (c Card) RenderOrder(draggedOverlayID string) []Overlay {
	visible := c.VisibleOverlays()
	if draggedOverlayID == "" {
		return visible
	}
	ordered := make([]Overlay, 0, len(visible))
	var dragged *Overlay
	for i := range visible {
		if visible[i].ID == draggedOverlayID {
			dragged = &visible[i]
			continue
		}
		ordered = append(ordered, visible[i])
	}
	if dragged != nil {
		ordered = append(ordered, *dragged)
	}
	return ordered
}
