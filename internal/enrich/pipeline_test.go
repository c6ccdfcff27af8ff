package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/papercrane/scrapbook/internal/storage"
)

type stubGenerator struct {
	failOn map[string]struct{}
	calls  []string
}

func (g *stubGenerator) GenerateSticker(_ context.Context, prompt string) ([]byte, error) {
	g.calls = append(g.calls, prompt)
	if _, ok := g.failOn[prompt]; ok {
		return nil, errors.New("render failed")
	}
	return []byte{0x89, 0x50}, nil
}

type stubUploader struct {
	uploads []storage.Image
	err     error
}

func (u *stubUploader) UploadImage(_ context.Context, keyPrefix string, image storage.Image) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploads = append(u.uploads, image)
	return fmt.Sprintf("https://cdn.example/%s/%d.png", keyPrefix, len(u.uploads)), nil
}

type stubAnalyzer struct {
	analysis Analysis
	err      error
}

func (a *stubAnalyzer) AnalyzePhoto(context.Context, storage.Image) (Analysis, error) {
	return a.analysis, a.err
}

func newTestPipeline(t *testing.T, generator StickerGenerator, uploader ImageUploader) *Pipeline {
	t.Helper()
	pipeline, err := NewPipeline(PipelineConfig{
		Analyzer:  &stubAnalyzer{},
		Generator: generator,
		Uploader:  uploader,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return pipeline
}

func TestParseAnalysis(t *testing.T) {
	raw := "```json\n{\"short_title\": \"Picnic by the lake\", \"sticker_tasks\": [{\"character\": \"girl\", \"action\": \"waving\", \"prompt\": \"chibi girl waving\"}]}\n```"
	analysis, err := parseAnalysis(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.ShortTitle != "Picnic by the lake" {
		t.Fatalf("unexpected title: %q", analysis.ShortTitle)
	}
	if len(analysis.StickerTasks) != 1 || analysis.StickerTasks[0].Prompt != "chibi girl waving" {
		t.Fatalf("unexpected tasks: %+v", analysis.StickerTasks)
	}
}

func TestParseAnalysisRejectsGarbage(t *testing.T) {
	if _, err := parseAnalysis(""); !errors.Is(err, ErrNoAnalysis) {
		t.Fatalf("expected ErrNoAnalysis, got %v", err)
	}
	if _, err := parseAnalysis("sorry, I cannot help with that"); err == nil {
		t.Fatalf("expected error for non-JSON reply")
	}
	if _, err := parseAnalysis("{}"); !errors.Is(err, ErrNoAnalysis) {
		t.Fatalf("expected ErrNoAnalysis for empty object, got %v", err)
	}
}

func TestGenerateOverlaysUploadsEachSticker(t *testing.T) {
	generator := &stubGenerator{}
	uploader := &stubUploader{}
	pipeline := newTestPipeline(t, generator, uploader)

	overlays := pipeline.GenerateOverlays(context.Background(), Analysis{
		StickerTasks: []StickerTask{
			{Character: "a", Prompt: "chibi a"},
			{Character: "b", Prompt: "chibi b"},
		},
	})
	if len(overlays) != 2 {
		t.Fatalf("expected 2 overlays, got %d", len(overlays))
	}
	for _, overlay := range overlays {
		if overlay.ID != "" {
			t.Fatalf("pipeline must not assign identifiers, got %q", overlay.ID)
		}
		if overlay.Scale != 1 || overlay.OnBack {
			t.Fatalf("unexpected default placement: %+v", overlay)
		}
		if overlay.Src == "" {
			t.Fatalf("overlay src must point at the uploaded object")
		}
	}
	if len(uploader.uploads) != 2 || uploader.uploads[0].MediaType != "image/png" {
		t.Fatalf("unexpected uploads: %+v", uploader.uploads)
	}
}

func TestGenerateOverlaysSkipsFailedStickers(t *testing.T) {
	generator := &stubGenerator{failOn: map[string]struct{}{"chibi b": {}}}
	uploader := &stubUploader{}
	pipeline := newTestPipeline(t, generator, uploader)

	overlays := pipeline.GenerateOverlays(context.Background(), Analysis{
		StickerTasks: []StickerTask{
			{Character: "a", Prompt: "chibi a"},
			{Character: "b", Prompt: "chibi b"},
			{Character: "c", Prompt: "chibi c"},
		},
	})
	if len(overlays) != 2 {
		t.Fatalf("one failed render must not lose the others, got %d overlays", len(overlays))
	}
	if len(generator.calls) != 3 {
		t.Fatalf("every task must be attempted, got %d calls", len(generator.calls))
	}
}

func TestGenerateOverlaysSkipsFailedUploads(t *testing.T) {
	generator := &stubGenerator{}
	uploader := &stubUploader{err: errors.New("bucket unavailable")}
	pipeline := newTestPipeline(t, generator, uploader)

	overlays := pipeline.GenerateOverlays(context.Background(), Analysis{
		StickerTasks: []StickerTask{{Character: "a", Prompt: "chibi a"}},
	})
	if len(overlays) != 0 {
		t.Fatalf("expected no overlays when uploads fail, got %d", len(overlays))
	}
}
