package enrich

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"

	"github.com/papercrane/scrapbook/internal/storage"
)

const (
	defaultAnalysisModel = "claude-haiku-4-5-20251001"
	analysisMaxTokens    = 1024
)

// Analyzer produces a structured description of one photograph.
type Analyzer interface {
	AnalyzePhoto(ctx context.Context, image storage.Image) (Analysis, error)
}

// StickerGenerator renders one sticker image from a text prompt and returns
// the PNG bytes.
type StickerGenerator interface {
	GenerateSticker(ctx context.Context, prompt string) ([]byte, error)
}

// AnthropicAnalyzer asks a Claude vision model to describe the photo and
// plan sticker drawings.
type AnthropicAnalyzer struct {
	client anthropicclient.Client
	model  string
}

// NewAnthropicAnalyzer builds an analyzer for the given API key. An empty
// model falls back to a small vision-capable default.
func NewAnthropicAnalyzer(apiKey, model string) (*AnthropicAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("enrich: anthropic api key is empty")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultAnalysisModel
	}
	return &AnthropicAnalyzer{
		client: anthropicclient.NewClient(anthropicoption.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (a *AnthropicAnalyzer) AnalyzePhoto(ctx context.Context, image storage.Image) (Analysis, error) {
	encoded := base64.StdEncoding.EncodeToString(image.Data)
	message, err := a.client.Messages.New(ctx, anthropicclient.MessageNewParams{
		Model:     anthropicclient.Model(a.model),
		MaxTokens: analysisMaxTokens,
		System: []anthropicclient.TextBlockParam{
			{Text: analysisSystemPrompt},
		},
		Messages: []anthropicclient.MessageParam{
			anthropicclient.NewUserMessage(
				anthropicclient.NewImageBlockBase64(image.MediaType, encoded),
				anthropicclient.NewTextBlock("Describe this photo and plan the stickers."),
			),
		},
	})
	if err != nil {
		return Analysis{}, err
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return parseAnalysis(text.String())
}

// OpenAIStickerGenerator renders sticker drawings with the images API.
type OpenAIStickerGenerator struct {
	client openaiclient.Client
}

func NewOpenAIStickerGenerator(apiKey string) (*OpenAIStickerGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("enrich: openai api key is empty")
	}
	return &OpenAIStickerGenerator{
		client: openaiclient.NewClient(openaioption.WithAPIKey(apiKey)),
	}, nil
}

func (g *OpenAIStickerGenerator) GenerateSticker(ctx context.Context, prompt string) ([]byte, error) {
	result, err := g.client.Images.Generate(ctx, openaiclient.ImageGenerateParams{
		Prompt: prompt,
		Model:  openaiclient.ImageModelGPTImage1,
		Size:   openaiclient.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Data) == 0 || result.Data[0].B64JSON == "" {
		return nil, errors.New("enrich: image generation returned no data")
	}
	return base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
}
