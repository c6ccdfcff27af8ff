package scrapbook

import "sort"

// TimelineEntry is a read-only projection of one card for the chronological
// browse view. Left alternates layout sides and is derived once from the
// entry's timestamp parity so the view needs no running counter.
type TimelineEntry struct {
	Kind CardKind
	Card Card
	Left bool
}

// BuildTimeline merges cards of both kinds into one list ordered newest
// first. The input slice is not modified.
func BuildTimeline(cards []Card) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(cards))
	for _, card := range cards {
		entries = append(entries, TimelineEntry{
			Kind: card.Kind,
			Card: card,
			Left: card.CreatedAt.Unix()%2 == 0,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Card.CreatedAt.After(entries[j].Card.CreatedAt)
	})
	return entries
}
