// Package enrich derives a short description and a set of decorative
// sticker overlays from an uploaded photograph. Analysis and image
// generation run behind narrow interfaces so the card service never sees a
// model provider.
package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoAnalysis indicates that the model returned nothing usable.
var ErrNoAnalysis = errors.New("enrich: empty analysis result")

// StickerTask is one generation instruction produced by photo analysis.
type StickerTask struct {
	Character string `json:"character"`
	Action    string `json:"action"`
	Prompt    string `json:"prompt"`
}

// Analysis is the structured result of analyzing one photograph.
type Analysis struct {
	ShortTitle   string        `json:"short_title"`
	StickerTasks []StickerTask `json:"sticker_tasks"`
}

const analysisSystemPrompt = `You are a scrapbook assistant. Given a photo, reply with a single JSON object and nothing else:
{"short_title": "...", "sticker_tasks": [{"character": "...", "action": "...", "prompt": "..."}]}
short_title is a warm caption of at most eight words.
Create one sticker_task per clearly visible person, plus one group task when
several people appear together. Each prompt must describe a cute pastel
chibi drawing of that person, their simplified clothing from the photo, a
fun positive action, a thin white border, and a transparent background.`

// parseAnalysis extracts the JSON object from a model reply, tolerating
// markdown fences around it.
func parseAnalysis(raw string) (Analysis, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Analysis{}, ErrNoAnalysis
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(trimmed), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("enrich: malformed analysis payload: %w", err)
	}
	if analysis.ShortTitle == "" && len(analysis.StickerTasks) == 0 {
		return Analysis{}, ErrNoAnalysis
	}
	return analysis, nil
}
