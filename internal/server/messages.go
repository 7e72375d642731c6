package server

import (
	"pickhelper/internal/domain"
	"pickhelper/internal/session"
)

type CreateSessionRequest struct{}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

type SubmitQueryRequest struct {
	SessionID string `json:"session_id"`
	Champion  string `json:"champion"`
	Role      string `json:"role"`
	// Wait makes the call return only once the query has settled.
	Wait bool `json:"wait"`
}

type SubmitQueryResponse struct {
	Started bool         `json:"started"`
	View    session.View `json:"view"`
}

type GetViewRequest struct {
	SessionID string `json:"session_id"`
}

type SetSearchTextRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type ViewResponse struct {
	View session.View `json:"view"`
}

type ListChampionsRequest struct {
	Text string `json:"text"`
}

type ListChampionsResponse struct {
	Champions []domain.Character `json:"champions"`
}

type RefreshRosterRequest struct{}

type RefreshRosterResponse struct {
	Count int `json:"count"`
}

type TopCountersRequest struct {
	Champion string `json:"champion"`
	Role     string `json:"role"`
	Limit    int    `json:"limit"`
}

type TopCountersResponse struct {
	Patch         string                        `json:"patch"`
	PatchUpdating bool                          `json:"patch_updating"`
	Entries       []domain.EnrichedMatchupEntry `json:"entries"`
}

type CloseSessionRequest struct {
	SessionID string `json:"session_id"`
}

type CloseSessionResponse struct{}
