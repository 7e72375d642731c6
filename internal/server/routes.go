package server

import (
	"context"
	"net/http"
	"pickhelper/internal/config"
	"pickhelper/internal/middleware"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// NewRouter mounts the RPC procedures, the watch stream and a health check,
// wrapped in CORS and request-ID middleware.
func NewRouter(s *PickHelperServer, cfg *config.Config, logger zerolog.Logger) http.Handler {
	router := mux.NewRouter()

	opts := []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(loggingInterceptor()),
	}

	router.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, s.CreateSession, opts...))
	router.Handle(SubmitQueryProcedure, connect.NewUnaryHandler(SubmitQueryProcedure, s.SubmitQuery, opts...))
	router.Handle(GetViewProcedure, connect.NewUnaryHandler(GetViewProcedure, s.GetView, opts...))
	router.Handle(SetSearchTextProcedure, connect.NewUnaryHandler(SetSearchTextProcedure, s.SetSearchText, opts...))
	router.Handle(ListChampionsProcedure, connect.NewUnaryHandler(ListChampionsProcedure, s.ListChampions, opts...))
	router.Handle(RefreshRosterProcedure, connect.NewUnaryHandler(RefreshRosterProcedure, s.RefreshRoster, opts...))
	router.Handle(TopCountersProcedure, connect.NewUnaryHandler(TopCountersProcedure, s.TopCounters, opts...))
	router.Handle(CloseSessionProcedure, connect.NewUnaryHandler(CloseSessionProcedure, s.CloseSession, opts...))

	watch := &watchHandler{sessions: s.sessions, allowedOrigins: cfg.AllowedOrigins, logger: s.logger}
	router.Handle("/sessions/{id}/watch", watch).Methods(http.MethodGet)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID", "Grpc-Status", "Grpc-Message"},
		AllowCredentials: true,
	})

	return middleware.RequestID(logger)(c.Handler(router))
}

func loggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)

			logger := zerolog.Ctx(ctx)
			event := logger.Debug()
			if err != nil {
				event = logger.Warn().Err(err).Str("code", connect.CodeOf(err).String())
			}
			event.
				Str("procedure", req.Spec().Procedure).
				Dur("duration", time.Since(start)).
				Msg("rpc handled")
			return res, err
		}
	}
}
