package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"pickhelper/internal/config"
	"pickhelper/internal/constants"
	"pickhelper/internal/domain"
	"pickhelper/internal/middleware"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

type Client struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
	logger  zerolog.Logger
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.APIBaseURL,
		timeout: cfg.ExternalAPITimeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:        constants.ClientMaxConnsPerHost,
			ReadTimeout:            cfg.ExternalAPITimeout,
			WriteTimeout:           cfg.ExternalAPITimeout,
			MaxIdleConnDuration:    constants.ClientMaxIdleConnDuration,
			DisablePathNormalizing: true,
		},
		logger: logger.With().Str("component", "api").Logger(),
	}
}

func (c *Client) FetchRoster(ctx context.Context) ([]domain.Character, error) {
	res, err := c.get(ctx, "/champions")
	if err != nil {
		return nil, err
	}
	if !isSuccess(res.status) {
		return nil, badResponse(res.status, fmt.Errorf("unexpected status %d", res.status))
	}

	var body RosterResponse
	if err := json.Unmarshal(res.body, &body); err != nil {
		return nil, badResponse(res.status, fmt.Errorf("failed to decode roster: %w", err))
	}

	characters := make([]domain.Character, 0, len(body.Champions))
	for _, ch := range body.Champions {
		characters = append(characters, domain.Character{Name: ch.Name, AvatarURL: ch.AvatarURL})
	}

	c.logger.Debug().Int("count", len(characters)).Msg("roster fetched")
	return characters, nil
}

func (c *Client) FetchMatchups(ctx context.Context, character, role string) (*MatchupsPayload, error) {
	path := fmt.Sprintf("/matchups/%s/%s/all", url.PathEscape(character), role)
	return c.fetchMatchups(ctx, path)
}

func (c *Client) FetchTopMatchups(ctx context.Context, character, role string, limit int) (*MatchupsPayload, error) {
	path := fmt.Sprintf("/matchups/%s/%s?limit=%d", url.PathEscape(character), role, limit)
	return c.fetchMatchups(ctx, path)
}

func (c *Client) fetchMatchups(ctx context.Context, path string) (*MatchupsPayload, error) {
	res, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var body MatchupsResponse
	decodeErr := json.Unmarshal(res.body, &body)

	// The service answers 404 with an error body when it has no data for the pair.
	if res.status == fasthttp.StatusNotFound && decodeErr == nil && body.Error != "" {
		return nil, serviceError(res.status, body.Error)
	}
	if !isSuccess(res.status) {
		return nil, badResponse(res.status, fmt.Errorf("unexpected status %d", res.status))
	}
	if decodeErr != nil {
		return nil, badResponse(res.status, fmt.Errorf("failed to decode matchups: %w", decodeErr))
	}
	if body.Error != "" {
		return nil, serviceError(res.status, body.Error)
	}

	payload := &MatchupsPayload{
		Patch:         body.Patch,
		PatchUpdating: res.patchUpdating,
		Matchups:      make([]domain.MatchupEntry, 0, len(body.Matchups)),
	}
	for _, m := range body.Matchups {
		payload.Matchups = append(payload.Matchups, m.toEntry())
	}

	c.logger.Debug().
		Str("path", path).
		Str("patch", payload.Patch).
		Int("count", len(payload.Matchups)).
		Msg("matchups fetched")
	return payload, nil
}

type response struct {
	status        int
	body          []byte
	patchUpdating bool
}

func (c *Client) get(ctx context.Context, path string) (*response, error) {
	if err := ctx.Err(); err != nil {
		return nil, networkFailure(err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Str("request_id", requestID).Msg("request failed")
		return nil, networkFailure(err)
	}

	// resp is released on return, so the body has to be copied out.
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())

	return &response{
		status:        resp.StatusCode(),
		body:          body,
		patchUpdating: string(resp.Header.Peek("X-Patch-Updating")) == "true",
	}, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
