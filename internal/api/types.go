package api

import (
	"fmt"
	"pickhelper/internal/domain"
	"strconv"
	"strings"
)

type MatchupsPayload struct {
	Patch         string
	PatchUpdating bool
	Matchups      []domain.MatchupEntry
}

type RosterResponse struct {
	Champions []ChampionItem `json:"champions"`
	Error     string         `json:"error"`
}

type ChampionItem struct {
	Name      string `json:"Name"`
	AvatarURL string `json:"AvatarURL"`
}

type MatchupsResponse struct {
	Patch    string        `json:"patch"`
	Matchups []MatchupItem `json:"matchups"`
	Error    string        `json:"error"`
}

// MatchupItem accepts WinRate and SampleSize either as JSON numbers or as
// numeric strings ("48.50", "1,000"); the stats service has shipped both.
type MatchupItem struct {
	Champion   string     `json:"Champion"`
	WinRate    flexNumber `json:"WinRate"`
	SampleSize flexNumber `json:"SampleSize"`
}

func (m MatchupItem) toEntry() domain.MatchupEntry {
	return domain.MatchupEntry{
		OpponentName:   m.Champion,
		WinRatePercent: float64(m.WinRate),
		SampleSize:     int(m.SampleSize),
	}
}

type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", b, err)
	}
	*n = flexNumber(v)
	return nil
}
