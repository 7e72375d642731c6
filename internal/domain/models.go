package domain

import (
	"fmt"
	"strings"
)

type Character struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type MatchupEntry struct {
	OpponentName   string  `json:"opponent_name"`
	WinRatePercent float64 `json:"win_rate_percent"`
	SampleSize     int     `json:"sample_size"`
}

// EnrichedMatchupEntry is a matchup joined with the roster. Character is nil
// when the opponent is missing from the roster.
type EnrichedMatchupEntry struct {
	MatchupEntry
	Character *Character `json:"character,omitempty"`
}

func (e EnrichedMatchupEntry) AvatarURL() string {
	if e.Character == nil {
		return ""
	}
	return e.Character.AvatarURL
}

type Role string

const (
	RoleTop     Role = "top"
	RoleJungle  Role = "jungle"
	RoleMid     Role = "mid"
	RoleADC     Role = "adc"
	RoleSupport Role = "support"
)

var AllRoles = []Role{RoleTop, RoleJungle, RoleMid, RoleADC, RoleSupport}

func (r Role) IsValid() bool {
	switch r {
	case RoleTop, RoleJungle, RoleMid, RoleADC, RoleSupport:
		return true
	}
	return false
}

func (r Role) DisplayName() string {
	switch r {
	case RoleTop:
		return "Top"
	case RoleJungle:
		return "Jungle"
	case RoleMid:
		return "Mid"
	case RoleADC:
		return "ADC"
	case RoleSupport:
		return "Support"
	default:
		return string(r)
	}
}

// ParseRole lowercases user input and maps common lane aliases onto the
// service's role names.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "top":
		return RoleTop, nil
	case "jungle", "jg", "jung":
		return RoleJungle, nil
	case "mid", "middle":
		return RoleMid, nil
	case "adc", "bot", "bottom":
		return RoleADC, nil
	case "support", "supp", "sup", "utility":
		return RoleSupport, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type QueryKey struct {
	Character string `json:"character"`
	Role      string `json:"role"`
}

func (k QueryKey) IsZero() bool {
	return k.Character == "" && k.Role == ""
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindNetworkFailure ErrorKind = "network_failure"
	ErrorKindBadResponse    ErrorKind = "bad_response"
	ErrorKindServiceError   ErrorKind = "service_error"
)
