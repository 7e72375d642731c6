package server

import (
	"context"
	"errors"
	"fmt"
	"pickhelper/internal/api"
	"pickhelper/internal/constants"
	"pickhelper/internal/domain"
	"pickhelper/internal/roster"
	"pickhelper/internal/search"
	"pickhelper/internal/session"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const ServiceName = "pickhelper.v1.PickHelper"

const (
	CreateSessionProcedure = "/" + ServiceName + "/CreateSession"
	SubmitQueryProcedure   = "/" + ServiceName + "/SubmitQuery"
	GetViewProcedure       = "/" + ServiceName + "/GetView"
	SetSearchTextProcedure = "/" + ServiceName + "/SetSearchText"
	ListChampionsProcedure = "/" + ServiceName + "/ListChampions"
	RefreshRosterProcedure = "/" + ServiceName + "/RefreshRoster"
	TopCountersProcedure   = "/" + ServiceName + "/TopCounters"
	CloseSessionProcedure  = "/" + ServiceName + "/CloseSession"
)

type TopMatchupsFetcher interface {
	FetchTopMatchups(ctx context.Context, character, role string, limit int) (*api.MatchupsPayload, error)
}

type PickHelperServer struct {
	sessions *session.Registry
	roster   *roster.Cache
	top      TopMatchupsFetcher
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewPickHelperServer(sessions *session.Registry, rosterCache *roster.Cache, top TopMatchupsFetcher, timeout time.Duration, logger zerolog.Logger) *PickHelperServer {
	return &PickHelperServer{
		sessions: sessions,
		roster:   rosterCache,
		top:      top,
		timeout:  timeout,
		logger:   logger.With().Str("component", "server").Logger(),
	}
}

func (s *PickHelperServer) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (*connect.Response[CreateSessionResponse], error) {
	sess, err := s.sessions.Create()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&CreateSessionResponse{SessionID: sess.ID}), nil
}

func (s *PickHelperServer) SubmitQuery(ctx context.Context, req *connect.Request[SubmitQueryRequest]) (*connect.Response[SubmitQueryResponse], error) {
	sess, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	// An empty champion or role is the disabled search button: nothing starts.
	role := ""
	if req.Msg.Role != "" {
		parsed, err := domain.ParseRole(req.Msg.Role)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		role = string(parsed)
	}

	started := sess.SubmitQuery(ctx, req.Msg.Champion, role)

	view := sess.View()
	if req.Msg.Wait {
		waitCtx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
		defer cancel()
		view, err = sess.Wait(waitCtx)
		if err != nil {
			return nil, connect.NewError(connect.CodeDeadlineExceeded, err)
		}
	}

	return connect.NewResponse(&SubmitQueryResponse{Started: started, View: view}), nil
}

func (s *PickHelperServer) GetView(ctx context.Context, req *connect.Request[GetViewRequest]) (*connect.Response[ViewResponse], error) {
	sess, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&ViewResponse{View: sess.View()}), nil
}

func (s *PickHelperServer) SetSearchText(ctx context.Context, req *connect.Request[SetSearchTextRequest]) (*connect.Response[ViewResponse], error) {
	sess, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&ViewResponse{View: sess.SetSearchText(req.Msg.Text)}), nil
}

func (s *PickHelperServer) ListChampions(ctx context.Context, req *connect.Request[ListChampionsRequest]) (*connect.Response[ListChampionsResponse], error) {
	idx, err := s.roster.Get(ctx)
	if err != nil {
		return nil, fetchError(err)
	}

	champions := search.Characters(idx.Characters(), req.Msg.Text)
	if champions == nil {
		champions = []domain.Character{}
	}
	return connect.NewResponse(&ListChampionsResponse{Champions: champions}), nil
}

func (s *PickHelperServer) RefreshRoster(ctx context.Context, req *connect.Request[RefreshRosterRequest]) (*connect.Response[RefreshRosterResponse], error) {
	idx, err := s.roster.Refresh(ctx)
	if err != nil {
		return nil, fetchError(err)
	}
	s.logger.Info().Int("count", idx.Len()).Msg("roster refreshed")
	return connect.NewResponse(&RefreshRosterResponse{Count: idx.Len()}), nil
}

func (s *PickHelperServer) TopCounters(ctx context.Context, req *connect.Request[TopCountersRequest]) (*connect.Response[TopCountersResponse], error) {
	if req.Msg.Champion == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("champion is required"))
	}
	role, err := domain.ParseRole(req.Msg.Role)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	limit := req.Msg.Limit
	if limit <= 0 {
		limit = constants.DefaultTopCountersLimit
	}
	if limit > constants.MaxTopCountersLimit {
		limit = constants.MaxTopCountersLimit
	}

	apiCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := s.top.FetchTopMatchups(apiCtx, req.Msg.Champion, string(role), limit)
	if err != nil {
		s.logger.Warn().Err(err).Str("champion", req.Msg.Champion).Str("role", string(role)).Msg("failed to fetch top counters")
		return nil, fetchError(err)
	}
	idx, err := s.roster.Get(apiCtx)
	if err != nil {
		return nil, fetchError(err)
	}

	return connect.NewResponse(&TopCountersResponse{
		Patch:         payload.Patch,
		PatchUpdating: payload.PatchUpdating,
		Entries:       roster.Join(idx, payload.Matchups),
	}), nil
}

func (s *PickHelperServer) CloseSession(ctx context.Context, req *connect.Request[CloseSessionRequest]) (*connect.Response[CloseSessionResponse], error) {
	if !s.sessions.Close(req.Msg.SessionID) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}
	return connect.NewResponse(&CloseSessionResponse{}), nil
}

func (s *PickHelperServer) session(id string) (*session.Session, error) {
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("session_id is required"))
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return sess, nil
}

func fetchError(err error) error {
	switch api.KindOf(err) {
	case domain.ErrorKindServiceError:
		return connect.NewError(connect.CodeNotFound, err)
	case domain.ErrorKindBadResponse:
		return connect.NewError(connect.CodeInternal, err)
	default:
		return connect.NewError(connect.CodeUnavailable, err)
	}
}
