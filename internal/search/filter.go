package search

import (
	"pickhelper/internal/domain"
	"strings"
)

// Apply keeps entries whose opponent name contains text, ignoring case.
// Order is preserved and the input is never modified; empty text returns
// entries as-is.
func Apply(entries []domain.EnrichedMatchupEntry, text string) []domain.EnrichedMatchupEntry {
	if text == "" {
		return entries
	}
	needle := strings.ToLower(text)
	out := make([]domain.EnrichedMatchupEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.OpponentName), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Characters applies the same rule to roster names, for the champion picker.
func Characters(characters []domain.Character, text string) []domain.Character {
	if text == "" {
		return characters
	}
	needle := strings.ToLower(text)
	out := make([]domain.Character, 0, len(characters))
	for _, ch := range characters {
		if strings.Contains(strings.ToLower(ch.Name), needle) {
			out = append(out, ch)
		}
	}
	return out
}
