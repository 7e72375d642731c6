package service

import (
	"context"
	"errors"
	"pickhelper/internal/api"
	"pickhelper/internal/constants"
	"pickhelper/internal/domain"
	"pickhelper/internal/roster"
	"pickhelper/internal/search"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponse struct {
	gate         chan struct{}
	ignoreCancel bool
	payload      *api.MatchupsPayload
	err          error
}

type fakeMatchups struct {
	mu        sync.Mutex
	responses map[string]*fakeResponse
	calls     map[string]int
	returned  chan string
	deadline  time.Duration
}

func newFakeMatchups() *fakeMatchups {
	return &fakeMatchups{
		responses: make(map[string]*fakeResponse),
		calls:     make(map[string]int),
		returned:  make(chan string, 16),
	}
}

func (f *fakeMatchups) set(character string, r *fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[character] = r
}

func (f *fakeMatchups) callCount(character string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[character]
}

func (f *fakeMatchups) FetchMatchups(ctx context.Context, character, role string) (*api.MatchupsPayload, error) {
	f.mu.Lock()
	f.calls[character]++
	r := f.responses[character]
	if d, ok := ctx.Deadline(); ok {
		f.deadline = time.Until(d)
	}
	f.mu.Unlock()
	defer func() { f.returned <- character }()

	if r == nil {
		return &api.MatchupsPayload{Matchups: []domain.MatchupEntry{}}, nil
	}
	if r.gate != nil {
		if r.ignoreCancel {
			<-r.gate
		} else {
			select {
			case <-r.gate:
			case <-ctx.Done():
				return nil, &api.FetchError{Kind: domain.ErrorKindNetworkFailure, Err: ctx.Err()}
			}
		}
	}
	return r.payload, r.err
}

type fakeRoster struct {
	index *roster.Index
	err   error
}

func (f *fakeRoster) Get(ctx context.Context) (*roster.Index, error) {
	return f.index, f.err
}

func testRoster() *fakeRoster {
	return &fakeRoster{index: roster.Build([]domain.Character{
		{Name: "Ashe", AvatarURL: "ashe.png"},
		{Name: "Zyra", AvatarURL: "zyra.png"},
	})}
}

func payload(patch string, entries ...domain.MatchupEntry) *api.MatchupsPayload {
	if entries == nil {
		entries = []domain.MatchupEntry{}
	}
	return &api.MatchupsPayload{Patch: patch, Matchups: entries}
}

func waitSettled(t *testing.T, c *MatchupController) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := c.Wait(ctx)
	require.NoError(t, err)
	return st
}

func waitReturned(t *testing.T, f *fakeMatchups, character string) {
	t.Helper()
	for {
		select {
		case got := <-f.returned:
			if got == character {
				// Give run() a moment to take the lock and decide.
				time.Sleep(20 * time.Millisecond)
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("fetch for %s never returned", character)
		}
	}
}

func TestSubmitQueryLoads(t *testing.T) {
	matchups := newFakeMatchups()
	matchups.set("Ashe", &fakeResponse{payload: payload("14.1",
		domain.MatchupEntry{OpponentName: "Ashe", WinRatePercent: 55.5, SampleSize: 120},
		domain.MatchupEntry{OpponentName: "Zyra", WinRatePercent: 44.0, SampleSize: 80},
	)})
	c := NewMatchupController(matchups, testRoster(), time.Second, zerolog.Nop())
	defer c.Close()

	assert.Equal(t, domain.StatusIdle, c.State().Status)
	require.True(t, c.SubmitQuery(context.Background(), "Ashe", "support"))

	st := waitSettled(t, c)
	require.Equal(t, domain.StatusLoaded, st.Status)
	assert.Equal(t, domain.QueryKey{Character: "Ashe", Role: "support"}, st.Key)
	assert.Equal(t, "14.1", st.Patch)
	require.Len(t, st.Entries, 2)
	assert.Equal(t, "Ashe", st.Entries[0].OpponentName)
	assert.Equal(t, 55.5, st.Entries[0].WinRatePercent)
	assert.Equal(t, 120, st.Entries[0].SampleSize)
	assert.Equal(t, "ashe.png", st.Entries[0].AvatarURL())
	assert.Equal(t, "Zyra", st.Entries[1].OpponentName)
	assert.Equal(t, "zyra.png", st.Entries[1].AvatarURL())
	assert.False(t, st.Empty())
	assert.Equal(t, domain.ErrorKindNone, st.ErrorKind)
}

func TestJoinWithPartialRosterThenSearch(t *testing.T) {
	matchups := newFakeMatchups()
	matchups.set("Ashe", &fakeResponse{payload: payload("14.1",
		domain.MatchupEntry{OpponentName: "Ashe", WinRatePercent: 55.5, SampleSize: 120},
		domain.MatchupEntry{OpponentName: "Zyra", WinRatePercent: 44.0, SampleSize: 80},
	)})
	rosterSource := &fakeRoster{index: roster.Build([]domain.Character{{Name: "Ashe", AvatarURL: "a.png"}})}
	c := NewMatchupController(matchups, rosterSource, time.Second, zerolog.Nop())
	defer c.Close()

	require.True(t, c.SubmitQuery(context.Background(), "Ashe", "support"))
	st := waitSettled(t, c)
	require.Equal(t, domain.StatusLoaded, st.Status)
	require.Len(t, st.Entries, 2)

	assert.Equal(t, "Ashe", st.Entries[0].OpponentName)
	assert.Equal(t, "a.png", st.Entries[0].AvatarURL())
	assert.Equal(t, "Zyra", st.Entries[1].OpponentName)
	assert.Nil(t, st.Entries[1].Character)

	filtered := search.Apply(st.Entries, "zy")
	require.Len(t, filtered, 1)
	assert.Equal(t, "Zyra", filtered[0].OpponentName)
}

func TestSubmitQueryIgnoresEmptyInput(t *testing.T) {
	c := NewMatchupController(newFakeMatchups(), testRoster(), time.Second, zerolog.Nop())
	defer c.Close()

	assert.False(t, c.SubmitQuery(context.Background(), "", "mid"))
	assert.False(t, c.SubmitQuery(context.Background(), "Ahri", ""))
	assert.Equal(t, domain.StatusIdle, c.State().Status)
	assert.Equal(t, uint64(0), c.State().Generation)
}

func TestLatestQueryWinsWhenOlderResolvesLast(t *testing.T) {
	matchups := newFakeMatchups()
	gateA, gateB := make(chan struct{}), make(chan struct{})
	matchups.set("A", &fakeResponse{gate: gateA, ignoreCancel: true, payload: payload("1", domain.MatchupEntry{OpponentName: "FromA"})})
	matchups.set("B", &fakeResponse{gate: gateB, ignoreCancel: true, payload: payload("1", domain.MatchupEntry{OpponentName: "FromB"})})
	c := NewMatchupController(matchups, testRoster(), time.Second, zerolog.Nop())
	defer c.Close()

	require.True(t, c.SubmitQuery(context.Background(), "A", "mid"))
	require.True(t, c.SubmitQuery(context.Background(), "B", "mid"))

	close(gateB)
	st := waitSettled(t, c)
	require.Equal(t, domain.StatusLoaded, st.Status)
	assert.Equal(t, "B", st.Key.Character)

	close(gateA)
	waitReturned(t, matchups, "A")

	st = c.State()
	assert.Equal(t, domain.StatusLoaded, st.Status)
	assert.Equal(t, "B", st.Key.Character)
	require.Len(t, st.Entries, 1)
	assert.Equal(t, "FromB", st.Entries[0].OpponentName)
}

func TestLatestQueryWinsWhenOlderResolvesFirst(t *testing.T) {
	matchups := newFakeMatchups()
	gateA, gateB := make(chan struct{}), make(chan struct{})
	matchups.set("A", &fakeResponse{gate: gateA, ignoreCancel: true, payload: payload("1", domain.MatchupEntry{OpponentName: "FromA"})})
	matchups.set("B", &fakeResponse{gate: gateB, ignoreCancel: true, payload: payload("1", domain.MatchupEntry{OpponentName: "FromB"})})
	c := NewMatchupController(matchups, testRoster(), time.Second, zerolog.Nop())
	defer c.Close()

	require.True(t, c.SubmitQuery(context.Background(), "A", "mid"))
	require.True(t, c.SubmitQuery(context.Background(), "B", "mid"))

	close(gateA)
	waitReturned(t, matchups, "A")
	st := c.State()
	assert.Equal(t, domain.StatusLoading, st.Status)
	assert.Equal(t, "B", st.Key.Character)

	close(gateB)
	st = waitSettled(t, c)
	assert.Equal(t, domain.StatusLoaded, st.Status)
	assert.Equal(t, "B", st.Key.Character)
}

func TestSupersededQueryIsCancelled(t *testing.T) {
	matchups := newFakeMatchups()
	matchups.set("A", &fakeResponse{gate: make(chan struct{})})
	c := NewMatchupController(matchups, testRoster(), time.Second, zerolog.Nop())
	defer c.Close()

	require.True(t, c.SubmitQuery(context.Background(), "A", "mid"))
	require.True(t, c.SubmitQuery(context.Background(), "B", "mid"))

	// A's gate is never opened, so it can only return through cancellation.
	waitReturned(t, matchups, "A")
	st := waitSettled(t, c)
	assert.Equal(t, "B", st.Key.Character)
	assert.Equal(t, domain.StatusLoaded, st.Status)
}

func TestFailedQueryKinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    domain.ErrorKind
		message string
	}{
		{
			name:    "service error",
			err:     &api.FetchError{Kind: domain.ErrorKindServiceError, Status: 404, Message: "No matchups found"},
			kind:    domain.ErrorKindServiceError,
			message: constants.ServiceErrorMessage,
		},
		{
			name:    "network failure",
			err:     &api.FetchError{Kind: domain.ErrorKindNetworkFailure, Err: errors.New("connection refused")},
			kind:    domain.ErrorKindNetworkFailure,
			message: constants.GenericErrorMessage,
		},
		{
			name:    "bad response",
			err:     &api.FetchError{Kind: domain.ErrorKindBadResponse, Status: 500},
			kind:    domain.ErrorKindBadResponse,
			message: constants.GenericErrorMessage,
		},
		{
			name:    "untyped error",
			err:     errors.New("boom"),
			kind:    domain.ErrorKindNetworkFailure,
			message: constants.GenericErrorMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matchups := newFakeMatchups()
			matchups.set("Ahri", &fakeResponse{err: tt.err})
			c := NewMatchupController(matchups, testRoster(), time.Second, zerolog.Nop())
			defer c.Close()

			require.True(t, c.SubmitQuery(context.Background(), "Ahri", "mid"))
			st := waitSettled(t, c)

			assert.Equal(t, domain.StatusFailed, st.Status)
			assert.Equal(t, tt.kind, st.ErrorKind)
			assert.Equal(t, tt.message, st.Message)
			assert.NotEmpty(t, st.Detail)
			assert.Empty(t, st.Entries)
		})
	}
}

func TestEmptyMatchupsIsLoaded(t *testing.T) {
	matchups := newFakeMatchups()
	matchups.set("Ahri", &fakeResponse{payload: payload("14.1")})
	c := NewMatchupController(matchups, testRoster(), time.Second, zerolog.Nop())
	defer c.Close()

	require.True(t, c.SubmitQuery(context.Background(), "Ahri", "mid"))
	st := waitSettled(t, c)

	assert.Equal(t, domain.StatusLoaded, st.Status)
	assert.True(t, st.Empty())
	assert.Equal(t, domain.ErrorKindNone, st.ErrorKind)
}

func TestMatchupErrorTakesPrecedenceOverRoster(t *testing.T) {
	matchups := newFakeMatchups()
	matchups.set("Ahri", &fakeResponse{err: &api.FetchError{Kind: domain.ErrorKindBadResponse, Status: 500}})
	rosterSource := &fakeRoster{err: &api.FetchError{Kind: domain.ErrorKindNetworkFailure, Err: errors.New("refused")}}
	c := NewMatchupController(matchups, rosterSource, time.Second, zerolog.Nop())
	defer c.Close()

	require.True(t, c.SubmitQuery(context.Background(), "Ahri", "mid"))
	st := waitSettled(t, c)

	assert.Equal(t, domain.StatusFailed, st.Status)
	assert.Equal(t, domain.ErrorKindBadResponse, st.ErrorKind)
}

func TestRosterFailureFailsQuery(t *testing.T) {
	matchups := newFakeMatchups()
	matchups.set("Ahri", &fakeResponse{payload: payload("14.1", domain.MatchupEntry{OpponentName: "Zed"})})
	rosterSource := &fakeRoster{err: &api.FetchError{Kind: domain.ErrorKindNetworkFailure, Err: errors.New("refused")}}
	c := NewMatchupController(matchups, rosterSource, time.Second, zerolog.Nop())
	defer c.Close()

	require.True(t, c.SubmitQuery(context.Background(), "Ahri", "mid"))
	st := waitSettled(t, c)

	assert.Equal(t, domain.StatusFailed, st.Status)
	assert.Equal(t, domain.ErrorKindNetworkFailure, st.ErrorKind)
}

func TestDuplicateSubmitWhileLoadingIsNoop(t *testing.T) {
	matchups := newFakeMatchups()
	gate := make(chan struct{})
	matchups.set("Ahri", &fakeResponse{gate: gate, payload: payload("14.1")})
	c := NewMatchupController(matchups, testRoster(), time.Second, zerolog.Nop())
	defer c.Close()

	require.True(t, c.SubmitQuery(context.Background(), "Ahri", "mid"))
	gen := c.State().Generation
	assert.False(t, c.SubmitQuery(context.Background(), "Ahri", "mid"))
	assert.Equal(t, gen, c.State().Generation)

	close(gate)
	st := waitSettled(t, c)
	assert.Equal(t, domain.StatusLoaded, st.Status)
	assert.Equal(t, 1, matchups.callCount("Ahri"))

	// Once settled the same key can be fetched again.
	require.True(t, c.SubmitQuery(context.Background(), "Ahri", "mid"))
	waitSettled(t, c)
	assert.Equal(t, 2, matchups.callCount("Ahri"))
}

func TestSubmitterCancellationDoesNotAbortFetch(t *testing.T) {
	matchups := newFakeMatchups()
	gate := make(chan struct{})
	matchups.set("Ahri", &fakeResponse{gate: gate, payload: payload("14.1", domain.MatchupEntry{OpponentName: "Zed"})})
	c := NewMatchupController(matchups, testRoster(), time.Second, zerolog.Nop())
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, c.SubmitQuery(ctx, "Ahri", "mid"))
	cancel()
	close(gate)

	st := waitSettled(t, c)
	assert.Equal(t, domain.StatusLoaded, st.Status)
	assert.Len(t, st.Entries, 1)
}

func TestFetchDeadlineFollowsTimeout(t *testing.T) {
	matchups := newFakeMatchups()
	c := NewMatchupController(matchups, testRoster(), time.Minute, zerolog.Nop())
	defer c.Close()

	require.True(t, c.SubmitQuery(context.Background(), "Ahri", "mid"))
	waitSettled(t, c)

	matchups.mu.Lock()
	defer matchups.mu.Unlock()
	assert.InDelta(t, time.Minute.Seconds(), matchups.deadline.Seconds(), 5)
}

func TestSubscribe(t *testing.T) {
	matchups := newFakeMatchups()
	matchups.set("Ahri", &fakeResponse{payload: payload("14.1", domain.MatchupEntry{OpponentName: "Zed"})})
	c := NewMatchupController(matchups, testRoster(), time.Second, zerolog.Nop())
	defer c.Close()

	updates, unsubscribe := c.Subscribe()
	first := <-updates
	assert.Equal(t, domain.StatusIdle, first.Status)

	require.True(t, c.SubmitQuery(context.Background(), "Ahri", "mid"))

	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-updates:
			if st.Status == domain.StatusLoaded {
				assert.Equal(t, "Ahri", st.Key.Character)
				unsubscribe()
				unsubscribe()
				_, ok := <-updates
				assert.False(t, ok)
				return
			}
			assert.Equal(t, domain.StatusLoading, st.Status)
		case <-timeout:
			t.Fatal("never saw the loaded state")
		}
	}
}

func TestClose(t *testing.T) {
	matchups := newFakeMatchups()
	matchups.set("Ahri", &fakeResponse{gate: make(chan struct{})})
	c := NewMatchupController(matchups, testRoster(), time.Second, zerolog.Nop())

	updates, _ := c.Subscribe()
	<-updates

	require.True(t, c.SubmitQuery(context.Background(), "Ahri", "mid"))

	waitErr := make(chan error, 1)
	go func() {
		_, err := c.Wait(context.Background())
		waitErr <- err
	}()

	c.Close()
	c.Close()

	select {
	case err := <-waitErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Close")
	}

	for range updates {
	}
	waitReturned(t, matchups, "Ahri")

	assert.False(t, c.SubmitQuery(context.Background(), "Zed", "mid"))
	late, _ := c.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
}
