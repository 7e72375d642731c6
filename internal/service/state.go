package service

import (
	"pickhelper/internal/api"
	"pickhelper/internal/constants"
	"pickhelper/internal/domain"
)

// State is a snapshot of a controller. Entries is shared between snapshots
// and must be treated as read-only.
type State struct {
	Status        domain.Status                 `json:"status"`
	Key           domain.QueryKey               `json:"key"`
	Entries       []domain.EnrichedMatchupEntry `json:"entries,omitempty"`
	Patch         string                        `json:"patch,omitempty"`
	PatchUpdating bool                          `json:"patch_updating,omitempty"`
	ErrorKind     domain.ErrorKind              `json:"error_kind,omitempty"`
	Message       string                        `json:"message,omitempty"`
	Detail        string                        `json:"detail,omitempty"`
	Generation    uint64                        `json:"generation"`
}

// Empty reports a successful query that returned no matchups.
func (s State) Empty() bool {
	return s.Status == domain.StatusLoaded && len(s.Entries) == 0
}

func idleState() State {
	return State{Status: domain.StatusIdle}
}

func loadingState(key domain.QueryKey, gen uint64) State {
	return State{Status: domain.StatusLoading, Key: key, Generation: gen}
}

func loadedState(key domain.QueryKey, gen uint64, payload *api.MatchupsPayload, entries []domain.EnrichedMatchupEntry) State {
	return State{
		Status:        domain.StatusLoaded,
		Key:           key,
		Entries:       entries,
		Patch:         payload.Patch,
		PatchUpdating: payload.PatchUpdating,
		Generation:    gen,
	}
}

func failedState(key domain.QueryKey, gen uint64, err error) State {
	kind := api.KindOf(err)
	msg := constants.GenericErrorMessage
	if kind == domain.ErrorKindServiceError {
		msg = constants.ServiceErrorMessage
	}
	return State{
		Status:     domain.StatusFailed,
		Key:        key,
		ErrorKind:  kind,
		Message:    msg,
		Detail:     err.Error(),
		Generation: gen,
	}
}
