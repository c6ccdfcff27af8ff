package scrapbook

// Persistence shapes for gorm. Cards and overlays live in separate tables;
// overlay rows carry an insertion sequence so the display stacking order
// survives round-trips.

type ratingsColumns struct {
	Texture   int `gorm:"column:texture;not null;default:50"`
	Juiciness int `gorm:"column:juiciness;not null;default:50"`
	Sweetness int `gorm:"column:sweetness;not null;default:50"`
}

// CardRecord is the persisted card row.
type CardRecord struct {
	CardID           string         `gorm:"column:card_id;primaryKey;size:190;not null"`
	Kind             string         `gorm:"column:kind;size:32;not null;index:idx_cards_kind_created,priority:1"`
	Src              string         `gorm:"column:src;type:text;not null"`
	CreatedAtSeconds int64          `gorm:"column:created_at_s;not null;index:idx_cards_kind_created,priority:2"`
	Description      string         `gorm:"column:description;type:text;not null;default:''"`
	Note             string         `gorm:"column:note;type:text;not null;default:''"`
	Rachy            ratingsColumns `gorm:"embedded;embeddedPrefix:rachy_"`
	Davey            ratingsColumns `gorm:"embedded;embeddedPrefix:davey_"`
}

// TableName provides the explicit table binding for GORM.
func (CardRecord) TableName() string {
	return "cards"
}

// OverlayRecord is one persisted sticker row owned by exactly one card.
type OverlayRecord struct {
	OverlayID string  `gorm:"column:overlay_id;primaryKey;size:190;not null"`
	CardID    string  `gorm:"column:card_id;size:190;not null;index:idx_overlays_card_seq,priority:1"`
	Seq       int64   `gorm:"column:seq;not null;index:idx_overlays_card_seq,priority:2"`
	Src       string  `gorm:"column:src;type:text;not null"`
	X         float64 `gorm:"column:x;not null;default:0"`
	Y         float64 `gorm:"column:y;not null;default:0"`
	Rotation  float64 `gorm:"column:rotation;not null;default:0"`
	Scale     float64 `gorm:"column:scale;not null;default:1"`
	OnBack    bool    `gorm:"column:on_back;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (OverlayRecord) TableName() string {
	return "card_overlays"
}

func (r CardRecord) toCard(overlayRows []OverlayRecord) Card {
	card := Card{
		ID:          r.CardID,
		Kind:        CardKind(r.Kind),
		Src:         r.Src,
		CreatedAt:   secondsToTime(r.CreatedAtSeconds),
		Description: r.Description,
		Note:        r.Note,
		Rachy:       Ratings(r.Rachy),
		Davey:       Ratings(r.Davey),
		Overlays:    make([]Overlay, 0, len(overlayRows)),
	}
	for _, row := range overlayRows {
		card.Overlays = append(card.Overlays, Overlay{
			ID:       row.OverlayID,
			Src:      row.Src,
			X:        row.X,
			Y:        row.Y,
			Rotation: row.Rotation,
			Scale:    row.Scale,
			OnBack:   row.OnBack,
		})
	}
	return card
}

func overlayRows(cardID string, overlays []Overlay) []OverlayRecord {
	rows := make([]OverlayRecord, 0, len(overlays))
	for i, overlay := range overlays {
		rows = append(rows, OverlayRecord{
			OverlayID: overlay.ID,
			CardID:    cardID,
			Seq:       int64(i),
			Src:       overlay.Src,
			X:         overlay.X,
			Y:         overlay.Y,
			Rotation:  overlay.Rotation,
			Scale:     overlay.Scale,
			OnBack:    overlay.OnBack,
		})
	}
	return rows
}
