package scrapbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrCardNotFound indicates that no card exists for the requested identifier.
	ErrCardNotFound = errors.New("scrapbook: card not found")
)

// ServiceError carries an operation-scoped failure code alongside its cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the machine-readable failure code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew      = "scrapbook.service.new"
	opListCards       = "scrapbook.list_cards"
	opGetCard         = "scrapbook.get_card"
	opCreateCard      = "scrapbook.create_card"
	opUpdateCard      = "scrapbook.update_card"
	opDeleteCard      = "scrapbook.delete_card"
	opReplaceOverlays = "scrapbook.replace_overlays"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues unique identifiers for cards and overlays.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig wires the card service's dependencies.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns card and overlay persistence.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and returns a card service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ListCards returns every card of the given kind, newest first, with
// overlays in insertion order.
func (s *Service) ListCards(ctx context.Context, kind CardKind) ([]Card, error) {
	if s.db == nil {
		s.logError(opListCards, "missing_database", errMissingDatabase)
		return nil, newServiceError(opListCards, "missing_database", errMissingDatabase)
	}

	var rows []CardRecord
	if err := s.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("created_at_s DESC").
		Find(&rows).Error; err != nil {
		s.logError(opListCards, "query_failed", err, zap.String("kind", string(kind)))
		return nil, newServiceError(opListCards, "query_failed", err)
	}

	cards := make([]Card, 0, len(rows))
	for _, row := range rows {
		overlays, err := s.loadOverlays(ctx, row.CardID)
		if err != nil {
			s.logError(opListCards, "overlay_query_failed", err, zap.String("card_id", row.CardID))
			return nil, newServiceError(opListCards, "overlay_query_failed", err)
		}
		cards = append(cards, row.toCard(overlays))
	}
	return cards, nil
}

// GetCard returns one card by identifier.
func (s *Service) GetCard(ctx context.Context, cardID CardID) (Card, error) {
	var row CardRecord
	err := s.db.WithContext(ctx).Where("card_id = ?", cardID.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Card{}, newServiceError(opGetCard, "not_found", ErrCardNotFound)
	}
	if err != nil {
		s.logError(opGetCard, "query_failed", err, zap.String("card_id", cardID.String()))
		return Card{}, newServiceError(opGetCard, "query_failed", err)
	}
	overlays, err := s.loadOverlays(ctx, row.CardID)
	if err != nil {
		s.logError(opGetCard, "overlay_query_failed", err, zap.String("card_id", row.CardID))
		return Card{}, newServiceError(opGetCard, "overlay_query_failed", err)
	}
	return row.toCard(overlays), nil
}

// CreateCardParams describes a new card. The image has already been stored;
// Src is its public URL.
type CreateCardParams struct {
	Kind        CardKind
	Src         string
	Description string
}

// CreateCard inserts a card stamped with the service clock. Watermelon cards
// start with neutral ratings for both tasters.
func (s *Service) CreateCard(ctx context.Context, params CreateCardParams) (Card, error) {
	cardID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateCard, "id_generation_failed", err)
		return Card{}, newServiceError(opCreateCard, "id_generation_failed", err)
	}

	record := CardRecord{
		CardID:           cardID,
		Kind:             string(params.Kind),
		Src:              params.Src,
		CreatedAtSeconds: s.clock().UTC().Unix(),
		Description:      params.Description,
		Rachy:            ratingsColumns(DefaultRatings()),
		Davey:            ratingsColumns(DefaultRatings()),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opCreateCard, "insert_failed", err, zap.String("card_id", cardID))
		return Card{}, newServiceError(opCreateCard, "insert_failed", err)
	}

	return record.toCard(nil), nil
}

// UpdateCardParams is the full client snapshot applied on save. The overlay
// list replaces the stored set wholesale; its order is the new z-order.
type UpdateCardParams struct {
	CardID      CardID
	CreatedAt   time.Time
	Description string
	Note        string
	Overlays    []Overlay
	Rachy       Ratings
	Davey       Ratings
}

// UpdateCard applies a full snapshot to an existing card. Last write wins;
// there is no version check by design for this single-user tool.
func (s *Service) UpdateCard(ctx context.Context, params UpdateCardParams) (Card, error) {
	var updated Card
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record CardRecord
		err := tx.Where("card_id = ?", params.CardID.String()).Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opUpdateCard, "not_found", ErrCardNotFound)
		}
		if err != nil {
			s.logError(opUpdateCard, "card_select_failed", err, zap.String("card_id", params.CardID.String()))
			return newServiceError(opUpdateCard, "card_select_failed", err)
		}

		record.CreatedAtSeconds = params.CreatedAt.UTC().Unix()
		record.Description = params.Description
		record.Note = params.Note
		record.Rachy = ratingsColumns(params.Rachy)
		record.Davey = ratingsColumns(params.Davey)

		if err := tx.Save(&record).Error; err != nil {
			s.logError(opUpdateCard, "card_save_failed", err, zap.String("card_id", record.CardID))
			return newServiceError(opUpdateCard, "card_save_failed", err)
		}

		overlays, err := s.replaceOverlayRows(tx, record.CardID, params.Overlays)
		if err != nil {
			s.logError(opUpdateCard, "overlay_replace_failed", err, zap.String("card_id", record.CardID))
			return newServiceError(opUpdateCard, "overlay_replace_failed", err)
		}

		updated = record.toCard(overlays)
		return nil
	})
	if txErr != nil {
		return Card{}, txErr
	}
	return updated, nil
}

// ReplaceOverlays swaps a card's overlay set, assigning fresh identifiers to
// overlays that arrive without one. Used when the enrichment pipeline
// delivers a generated sticker batch.
func (s *Service) ReplaceOverlays(ctx context.Context, cardID CardID, overlays []Overlay) (Card, error) {
	stamped := make([]Overlay, len(overlays))
	copy(stamped, overlays)
	for i := range stamped {
		if stamped[i].ID != "" {
			continue
		}
		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opReplaceOverlays, "id_generation_failed", err, zap.String("card_id", cardID.String()))
			return Card{}, newServiceError(opReplaceOverlays, "id_generation_failed", err)
		}
		stamped[i].ID = id
	}

	var updated Card
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record CardRecord
		err := tx.Where("card_id = ?", cardID.String()).Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opReplaceOverlays, "not_found", ErrCardNotFound)
		}
		if err != nil {
			s.logError(opReplaceOverlays, "card_select_failed", err, zap.String("card_id", cardID.String()))
			return newServiceError(opReplaceOverlays, "card_select_failed", err)
		}

		rows, err := s.replaceOverlayRows(tx, record.CardID, stamped)
		if err != nil {
			s.logError(opReplaceOverlays, "overlay_replace_failed", err, zap.String("card_id", record.CardID))
			return newServiceError(opReplaceOverlays, "overlay_replace_failed", err)
		}

		updated = record.toCard(rows)
		return nil
	})
	if txErr != nil {
		return Card{}, txErr
	}
	return updated, nil
}

// DeleteCard removes a card and its overlay rows, returning the deleted
// snapshot so callers can clean up stored image blobs.
func (s *Service) DeleteCard(ctx context.Context, cardID CardID) (Card, error) {
	var deleted Card
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record CardRecord
		err := tx.Where("card_id = ?", cardID.String()).Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opDeleteCard, "not_found", ErrCardNotFound)
		}
		if err != nil {
			s.logError(opDeleteCard, "card_select_failed", err, zap.String("card_id", cardID.String()))
			return newServiceError(opDeleteCard, "card_select_failed", err)
		}

		var rows []OverlayRecord
		if err := tx.Where("card_id = ?", record.CardID).Order("seq ASC").Find(&rows).Error; err != nil {
			s.logError(opDeleteCard, "overlay_query_failed", err, zap.String("card_id", record.CardID))
			return newServiceError(opDeleteCard, "overlay_query_failed", err)
		}

		if err := tx.Where("card_id = ?", record.CardID).Delete(&OverlayRecord{}).Error; err != nil {
			s.logError(opDeleteCard, "overlay_delete_failed", err, zap.String("card_id", record.CardID))
			return newServiceError(opDeleteCard, "overlay_delete_failed", err)
		}
		if err := tx.Where("card_id = ?", record.CardID).Delete(&CardRecord{}).Error; err != nil {
			s.logError(opDeleteCard, "card_delete_failed", err, zap.String("card_id", record.CardID))
			return newServiceError(opDeleteCard, "card_delete_failed", err)
		}

		deleted = record.toCard(rows)
		return nil
	})
	if txErr != nil {
		return Card{}, txErr
	}
	return deleted, nil
}

func (s *Service) loadOverlays(ctx context.Context, cardID string) ([]OverlayRecord, error) {
	var rows []OverlayRecord
	err := s.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("seq ASC").
		Find(&rows).Error
	return rows, err
}

func (s *Service) replaceOverlayRows(tx *gorm.DB, cardID string, overlays []Overlay) ([]OverlayRecord, error) {
	if err := tx.Where("card_id = ?", cardID).Delete(&OverlayRecord{}).Error; err != nil {
		return nil, err
	}
	rows := overlayRows(cardID, overlays)
	if len(rows) == 0 {
		return rows, nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func secondsToTime(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("scrapbook service error", attrs...)
}
