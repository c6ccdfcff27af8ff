package enrich

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercrane/scrapbook/internal/scrapbook"
	"github.com/papercrane/scrapbook/internal/storage"
)

const stickerKeyPrefix = "images/stickers"

// ImageUploader stores a rendered sticker and returns its public URL.
// Satisfied by storage.S3Store.
type ImageUploader interface {
	UploadImage(ctx context.Context, keyPrefix string, image storage.Image) (string, error)
}

// PipelineConfig wires the analysis and generation providers together.
type PipelineConfig struct {
	Analyzer  Analyzer
	Generator StickerGenerator
	Uploader  ImageUploader
	Logger    *zap.Logger
}

// Pipeline turns one photograph into a caption and a set of sticker
// overlays. Individual sticker failures are logged and skipped so one bad
// generation never loses the rest.
type Pipeline struct {
	analyzer  Analyzer
	generator StickerGenerator
	uploader  ImageUploader
	logger    *zap.Logger
}

func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Analyzer == nil {
		return nil, errors.New("enrich: analyzer is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("enrich: generator is required")
	}
	if cfg.Uploader == nil {
		return nil, errors.New("enrich: uploader is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		analyzer:  cfg.Analyzer,
		generator: cfg.Generator,
		uploader:  cfg.Uploader,
		logger:    logger,
	}, nil
}

// Describe analyzes the photo and returns its caption plus the sticker plan.
func (p *Pipeline) Describe(ctx context.Context, image storage.Image) (Analysis, error) {
	analysis, err := p.analyzer.AnalyzePhoto(ctx, image)
	if err != nil {
		return Analysis{}, fmt.Errorf("enrich: photo analysis failed: %w", err)
	}
	return analysis, nil
}

// GenerateOverlays renders every planned sticker and uploads the results.
// The returned overlays carry no identifiers; the card service assigns them
// on persist. Overlays start on the photo front at the origin with neutral
// rotation and scale.
func (p *Pipeline) GenerateOverlays(ctx context.Context, analysis Analysis) []scrapbook.Overlay {
	overlays := make([]scrapbook.Overlay, 0, len(analysis.StickerTasks))
	for _, task := range analysis.StickerTasks {
		data, err := p.generator.GenerateSticker(ctx, task.Prompt)
		if err != nil {
			p.logger.Warn("sticker generation failed",
				zap.String("character", task.Character),
				zap.Error(err))
			continue
		}
		url, err := p.uploader.UploadImage(ctx, stickerKeyPrefix, storage.Image{
			MediaType: "image/png",
			Extension: "png",
			Data:      data,
		})
		if err != nil {
			p.logger.Warn("sticker upload failed",
				zap.String("character", task.Character),
				zap.Error(err))
			continue
		}
		overlays = append(overlays, scrapbook.Overlay{Src: url, Scale: 1})
	}
	return overlays
}
