package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/papercrane/scrapbook/internal/enrich"
	"github.com/papercrane/scrapbook/internal/scrapbook"
	"github.com/papercrane/scrapbook/internal/storage"
)

const (
	heartbeatInterval  = 25 * time.Second
	enrichmentDeadline = 5 * time.Minute
)

var (
	errMissingCardService = errors.New("card service dependency required")
	errMissingImageStore  = errors.New("image store dependency required")
)

// ImageStore is the blob side of card persistence. Satisfied by
// storage.S3Store.
type ImageStore interface {
	UploadImage(ctx context.Context, keyPrefix string, image storage.Image) (string, error)
	DownloadByURL(ctx context.Context, rawURL string) (storage.Image, error)
	DeleteByURL(ctx context.Context, rawURL string) error
}

// Enricher analyzes uploaded photos and renders sticker overlays. Satisfied
// by enrich.Pipeline; nil disables enrichment and cards are created bare.
type Enricher interface {
	Describe(ctx context.Context, image storage.Image) (enrich.Analysis, error)
	GenerateOverlays(ctx context.Context, analysis enrich.Analysis) []scrapbook.Overlay
}

type Dependencies struct {
	Cards    *scrapbook.Service
	Images   ImageStore
	Enricher Enricher
	Realtime *RealtimeDispatcher
	Clock    func() time.Time
	Logger   *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Cards == nil {
		return nil, errMissingCardService
	}
	if deps.Images == nil {
		return nil, errMissingImageStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		cards:    deps.Cards,
		images:   deps.Images,
		enricher: deps.Enricher,
		realtime: realtime,
		clock:    clock,
		logger:   logger,
	}

	router.GET("/polaroids", handler.handleList(scrapbook.KindPolaroid))
	router.POST("/polaroids", handler.handleCreate(scrapbook.KindPolaroid))
	router.PUT("/polaroids/:id", handler.handleUpdate(scrapbook.KindPolaroid))
	router.DELETE("/polaroids/:id", handler.handleDelete(scrapbook.KindPolaroid))
	router.POST("/polaroids/:id/stickers", handler.handleRegenerateStickers)

	router.GET("/watermelons", handler.handleList(scrapbook.KindWatermelon))
	router.POST("/watermelons", handler.handleCreate(scrapbook.KindWatermelon))
	router.PUT("/watermelons/:id", handler.handleUpdate(scrapbook.KindWatermelon))
	router.DELETE("/watermelons/:id", handler.handleDelete(scrapbook.KindWatermelon))

	router.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	cards    *scrapbook.Service
	images   ImageStore
	enricher Enricher
	realtime *RealtimeDispatcher
	clock    func() time.Time
	logger   *zap.Logger
}

func kindKeyPrefix(kind scrapbook.CardKind) string {
	return "images/" + string(kind) + "s"
}

func (h *httpHandler) handleList(kind scrapbook.CardKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		cards, err := h.cards.ListCards(c.Request.Context(), kind)
		if err != nil {
			h.renderServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, cards)
	}
}

type createRequestPayload struct {
	ImageBase64 string `json:"image_base64"`
}

func (h *httpHandler) handleCreate(kind scrapbook.CardKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request createRequestPayload
		if err := c.ShouldBindJSON(&request); err != nil || request.ImageBase64 == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}

		image, err := storage.DecodeImageDataURL(request.ImageBase64)
		if errors.Is(err, storage.ErrUnsupportedImageFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_format"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_image"})
			return
		}

		src, err := h.images.UploadImage(c.Request.Context(), kindKeyPrefix(kind), image)
		if err != nil {
			h.logger.Error("image upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
			return
		}

		var analysis enrich.Analysis
		if kind == scrapbook.KindPolaroid && h.enricher != nil {
			analysis, err = h.enricher.Describe(c.Request.Context(), image)
			if err != nil {
				// Enrichment is best effort; the card is still created.
				h.logger.Warn("photo analysis failed", zap.Error(err))
				analysis = enrich.Analysis{}
			}
		}

		card, err := h.cards.CreateCard(c.Request.Context(), scrapbook.CreateCardParams{
			Kind:        kind,
			Src:         src,
			Description: analysis.ShortTitle,
		})
		if err != nil {
			h.renderServiceError(c, err)
			return
		}

		if len(analysis.StickerTasks) > 0 {
			go h.generateStickers(card.ID, kind, analysis)
		}

		h.publishCardChange(kind, card.ID)
		c.JSON(http.StatusCreated, card)
	}
}

// generateStickers runs after the create response. It renders every planned
// sticker, attaches the batch to the card and announces the change so
// connected clients refresh.
func (h *httpHandler) generateStickers(cardID string, kind scrapbook.CardKind, analysis enrich.Analysis) {
	ctx, cancel := context.WithTimeout(context.Background(), enrichmentDeadline)
	defer cancel()

	overlays := h.enricher.GenerateOverlays(ctx, analysis)
	if len(overlays) == 0 {
		h.logger.Warn("no stickers generated", zap.String("card_id", cardID))
		return
	}

	validatedID, err := scrapbook.NewCardID(cardID)
	if err != nil {
		h.logger.Error("invalid card id for sticker batch", zap.String("card_id", cardID), zap.Error(err))
		return
	}
	if _, err := h.cards.ReplaceOverlays(ctx, validatedID, overlays); err != nil {
		h.logger.Error("failed to attach sticker batch", zap.String("card_id", cardID), zap.Error(err))
		return
	}

	h.logger.Info("sticker batch attached",
		zap.String("card_id", cardID),
		zap.Int("stickers", len(overlays)))
	h.publishCardChange(kind, cardID)
}

type updateRequestPayload struct {
	CreatedAt   string              `json:"createdAt"`
	Description string              `json:"description"`
	Note        string              `json:"note"`
	Stickers    []scrapbook.Overlay `json:"stickers"`
	Rachy       scrapbook.Ratings   `json:"rachy"`
	Davey       scrapbook.Ratings   `json:"davey"`
}

func (h *httpHandler) handleUpdate(kind scrapbook.CardKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		cardID, err := scrapbook.NewCardID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_card_id"})
			return
		}

		var request updateRequestPayload
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		createdAt, err := time.Parse(time.RFC3339, request.CreatedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_timestamp"})
			return
		}

		card, err := h.cards.UpdateCard(c.Request.Context(), scrapbook.UpdateCardParams{
			CardID:      cardID,
			CreatedAt:   createdAt,
			Description: request.Description,
			Note:        request.Note,
			Overlays:    request.Stickers,
			Rachy:       request.Rachy,
			Davey:       request.Davey,
		})
		if err != nil {
			h.renderServiceError(c, err)
			return
		}

		h.publishCardChange(kind, card.ID)
		c.JSON(http.StatusOK, card)
	}
}

func (h *httpHandler) handleDelete(kind scrapbook.CardKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		cardID, err := scrapbook.NewCardID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_card_id"})
			return
		}

		deleted, err := h.cards.DeleteCard(c.Request.Context(), cardID)
		if err != nil {
			h.renderServiceError(c, err)
			return
		}

		// Blob cleanup is best effort; a stale object never blocks the delete.
		h.deleteBlob(c.Request.Context(), deleted.Src)
		for _, overlay := range deleted.Overlays {
			h.deleteBlob(c.Request.Context(), overlay.Src)
		}

		h.publishCardChange(kind, deleted.ID)
		c.Status(http.StatusNoContent)
	}
}

func (h *httpHandler) deleteBlob(ctx context.Context, rawURL string) {
	if rawURL == "" {
		return
	}
	if err := h.images.DeleteByURL(ctx, rawURL); err != nil {
		h.logger.Warn("blob cleanup failed", zap.String("url", rawURL), zap.Error(err))
	}
}

func (h *httpHandler) handleRegenerateStickers(c *gin.Context) {
	cardID, err := scrapbook.NewCardID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_card_id"})
		return
	}
	if h.enricher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "enrichment_unavailable"})
		return
	}

	card, err := h.cards.GetCard(c.Request.Context(), cardID)
	if err != nil {
		h.renderServiceError(c, err)
		return
	}

	image, err := h.images.DownloadByURL(c.Request.Context(), card.Src)
	if err != nil {
		h.logger.Error("photo download failed", zap.String("card_id", card.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "photo_unavailable"})
		return
	}

	analysis, err := h.enricher.Describe(c.Request.Context(), image)
	if err != nil {
		h.logger.Error("photo analysis failed", zap.String("card_id", card.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis_failed"})
		return
	}

	overlays := h.enricher.GenerateOverlays(c.Request.Context(), analysis)
	updated, err := h.cards.ReplaceOverlays(c.Request.Context(), cardID, overlays)
	if err != nil {
		h.renderServiceError(c, err)
		return
	}

	h.publishCardChange(scrapbook.KindPolaroid, updated.ID)
	c.JSON(http.StatusOK, updated)
}

type eventPayload struct {
	Kind      string   `json:"kind"`
	CardIDs   []string `json:"cardIds"`
	Timestamp string   `json:"timestamp"`
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	stream, cancelSubscription := h.realtime.Subscribe(c.Request.Context())
	defer cancelSubscription()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			h.writeEvent(c, message.EventType, eventPayload{
				Kind:      message.Kind,
				CardIDs:   message.CardIDs,
				Timestamp: message.Timestamp.UTC().Format(time.RFC3339),
			})
		case <-heartbeat.C:
			h.writeEvent(c, realtimeEventHeartbeat, eventPayload{
				Timestamp: h.clock().UTC().Format(time.RFC3339),
			})
		}
	}
}

func (h *httpHandler) writeEvent(c *gin.Context, eventType string, payload eventPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode event payload", zap.Error(err))
		return
	}
	if _, err := c.Writer.WriteString("event: " + eventType + "\ndata: " + string(data) + "\n\n"); err != nil {
		return
	}
	c.Writer.Flush()
}

func (h *httpHandler) publishCardChange(kind scrapbook.CardKind, cardID string) {
	h.realtime.Publish(RealtimeMessage{
		EventType: RealtimeEventCardChanged,
		Kind:      string(kind),
		CardIDs:   []string{cardID},
		Timestamp: h.clock().UTC(),
	})
}

func (h *httpHandler) renderServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, scrapbook.ErrCardNotFound) {
		status = http.StatusNotFound
	}

	var serviceErr *scrapbook.ServiceError
	if errors.As(err, &serviceErr) {
		c.JSON(status, gin.H{"code": serviceErr.Code()})
		return
	}
	c.JSON(status, gin.H{"error": "internal_error"})
}
