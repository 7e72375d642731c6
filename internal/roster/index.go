package roster

import "pickhelper/internal/domain"

// Index is a name-keyed view of the roster. Names are matched exactly,
// case included.
type Index struct {
	byName map[string]domain.Character
	order  []string
}

// Build indexes characters by name. A later duplicate overwrites an earlier one
// but keeps the position of the first occurrence.
func Build(characters []domain.Character) *Index {
	idx := &Index{
		byName: make(map[string]domain.Character, len(characters)),
		order:  make([]string, 0, len(characters)),
	}
	for _, ch := range characters {
		if _, seen := idx.byName[ch.Name]; !seen {
			idx.order = append(idx.order, ch.Name)
		}
		idx.byName[ch.Name] = ch
	}
	return idx
}

func (idx *Index) Lookup(name string) (domain.Character, bool) {
	if idx == nil {
		return domain.Character{}, false
	}
	ch, ok := idx.byName[name]
	return ch, ok
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.order)
}

func (idx *Index) Characters() []domain.Character {
	if idx == nil {
		return nil
	}
	out := make([]domain.Character, 0, len(idx.order))
	for _, name := range idx.order {
		out = append(out, idx.byName[name])
	}
	return out
}

// Join enriches matchups with roster metadata, keeping their order. Opponents
// missing from the roster get a nil Character.
func Join(idx *Index, matchups []domain.MatchupEntry) []domain.EnrichedMatchupEntry {
	out := make([]domain.EnrichedMatchupEntry, 0, len(matchups))
	for _, m := range matchups {
		entry := domain.EnrichedMatchupEntry{MatchupEntry: m}
		if ch, ok := idx.Lookup(m.OpponentName); ok {
			entry.Character = &ch
		}
		out = append(out, entry)
	}
	return out
}
