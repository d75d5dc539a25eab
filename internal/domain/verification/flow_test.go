package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reelgate/reelgate/internal/adapter/outbound/memory"
	"github.com/reelgate/reelgate/internal/domain/event"
)

type mockChallengeAPI struct {
	mock.Mock
}

func (m *mockChallengeAPI) FetchChallenge(ctx context.Context) (ServerChallenge, error) {
	args := m.Called(ctx)
	return args.Get(0).(ServerChallenge), args.Error(1)
}

func (m *mockChallengeAPI) Solve(ctx context.Context, challengeID, answer string) (SolveResult, error) {
	args := m.Called(ctx, challengeID, answer)
	return args.Get(0).(SolveResult), args.Error(1)
}

type recorder struct {
	events []event.Event
}

func (r *recorder) Emit(_ context.Context, e event.Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []event.Kind {
	out := make([]event.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func newTestFlow(api ChallengeAPI, maxAttempts int) (*Flow, *ClearanceStore, *recorder) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewClearanceStore(memory.NewKVStore(), clock)
	rec := &recorder{}
	return NewFlow(api, store, rec, FlowConfig{MaxAttempts: maxAttempts, Now: clock}), store, rec
}

func TestFlow_BeginIsSingleFlight(t *testing.T) {
	f, _, _ := newTestFlow(&mockChallengeAPI{}, 3)

	id1, started1 := f.Begin()
	id2, started2 := f.Begin()

	assert.True(t, started1)
	assert.False(t, started2)
	assert.Equal(t, id1, id2)

	c, ok := f.Current()
	require.True(t, ok)
	assert.Equal(t, StatusLoading, c.Status)
	assert.Equal(t, 3, c.AttemptsRemaining)
}

func TestFlow_SolveGrantsClearance(t *testing.T) {
	ctx := context.Background()
	api := &mockChallengeAPI{}
	api.On("FetchChallenge", mock.Anything).Return(ServerChallenge{ID: "srv-1", Prompt: "2+2"}, nil).Once()
	api.On("Solve", mock.Anything, "srv-1", "4").Return(SolveResult{Status: "verified"}, nil).Once()

	f, store, rec := newTestFlow(api, 3)
	id, _ := f.Begin()

	c, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, c.Status)
	assert.Equal(t, "2+2", c.Prompt)

	c, err = f.Submit(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, c.Status)
	assert.Equal(t, id, c.ID)

	_, err = store.Get(ctx)
	assert.NoError(t, err, "clearance must be stored on verification")
	assert.Equal(t, []event.Kind{event.VerificationGranted}, rec.kinds())
	assert.False(t, f.Active())

	// A verified challenge no longer blocks a new flow.
	newID, started := f.Begin()
	assert.True(t, started)
	assert.NotEqual(t, id, newID)
	api.AssertExpectations(t)
}

func TestFlow_WrongAnswerRegeneratesPuzzle(t *testing.T) {
	ctx := context.Background()
	api := &mockChallengeAPI{}
	api.On("FetchChallenge", mock.Anything).Return(ServerChallenge{ID: "srv-1", Prompt: "p1"}, nil).Once()
	api.On("FetchChallenge", mock.Anything).Return(ServerChallenge{ID: "srv-2", Prompt: "p2"}, nil).Once()
	api.On("Solve", mock.Anything, "srv-1", "wrong").Return(SolveResult{Status: "failed"}, nil).Once()

	f, store, rec := newTestFlow(api, 3)
	id, _ := f.Begin()
	_, err := f.Load(ctx)
	require.NoError(t, err)

	c, err := f.Submit(ctx, "wrong")
	require.NoError(t, err)
	assert.Equal(t, id, c.ID, "flow identity survives a regenerated puzzle")
	assert.Equal(t, "srv-2", c.ServerID, "old puzzle must not be reused")
	assert.Equal(t, StatusReady, c.Status)
	assert.Equal(t, 2, c.AttemptsRemaining)

	require.Len(t, rec.events, 1)
	assert.Equal(t, event.ChallengeFailed, rec.events[0].Kind)
	assert.Equal(t, 2, rec.events[0].AttemptsRemaining)

	_, err = store.Get(ctx)
	assert.True(t, errors.Is(err, ErrNoClearance))
	api.AssertExpectations(t)
}

func TestFlow_ExhaustedAfterTwoFailures(t *testing.T) {
	ctx := context.Background()
	api := &mockChallengeAPI{}
	api.On("FetchChallenge", mock.Anything).Return(ServerChallenge{ID: "srv-1", Prompt: "p1"}, nil).Once()
	api.On("FetchChallenge", mock.Anything).Return(ServerChallenge{ID: "srv-2", Prompt: "p2"}, nil).Once()
	api.On("Solve", mock.Anything, mock.Anything, "wrong").Return(SolveResult{Status: "failed"}, nil).Twice()

	f, _, rec := newTestFlow(api, 2)
	f.Begin()
	_, err := f.Load(ctx)
	require.NoError(t, err)

	_, err = f.Submit(ctx, "wrong")
	require.NoError(t, err)

	c, err := f.Submit(ctx, "wrong")
	assert.True(t, errors.Is(err, ErrVerificationExhausted))
	assert.Equal(t, StatusFailed, c.Status)
	assert.Equal(t, 0, c.AttemptsRemaining)

	require.Len(t, rec.events, 2)
	assert.Equal(t, 0, rec.events[1].AttemptsRemaining)

	// Terminal: no automatic regeneration and no further transitions.
	_, err = f.Load(ctx)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	_, started := f.Begin()
	assert.False(t, started, "an exhausted challenge stays current until reset")

	api.AssertNumberOfCalls(t, "FetchChallenge", 2)

	f.Reset()
	_, started = f.Begin()
	assert.True(t, started)
}

func TestFlow_ServerAttemptCountWins(t *testing.T) {
	ctx := context.Background()
	zero := 0
	api := &mockChallengeAPI{}
	api.On("FetchChallenge", mock.Anything).Return(ServerChallenge{ID: "srv-1"}, nil).Once()
	api.On("Solve", mock.Anything, "srv-1", "x").Return(SolveResult{Status: "failed", AttemptsRemaining: &zero}, nil).Once()

	f, _, _ := newTestFlow(api, 5)
	f.Begin()
	_, err := f.Load(ctx)
	require.NoError(t, err)

	_, err = f.Submit(ctx, "x")
	assert.True(t, errors.Is(err, ErrVerificationExhausted))
}

func TestFlow_TransportErrorKeepsPuzzle(t *testing.T) {
	ctx := context.Background()
	api := &mockChallengeAPI{}
	api.On("FetchChallenge", mock.Anything).Return(ServerChallenge{ID: "srv-1"}, nil).Once()
	api.On("Solve", mock.Anything, "srv-1", "4").Return(SolveResult{}, errors.New("connection reset")).Once()
	api.On("Solve", mock.Anything, "srv-1", "4").Return(SolveResult{Status: "verified"}, nil).Once()

	f, _, rec := newTestFlow(api, 3)
	f.Begin()
	_, err := f.Load(ctx)
	require.NoError(t, err)

	c, err := f.Submit(ctx, "4")
	require.Error(t, err)
	assert.Equal(t, StatusReady, c.Status)
	assert.Equal(t, 3, c.AttemptsRemaining)
	assert.Empty(t, rec.events)

	c, err = f.Submit(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, c.Status)
}

func TestFlow_FetchErrorStaysLoading(t *testing.T) {
	ctx := context.Background()
	api := &mockChallengeAPI{}
	api.On("FetchChallenge", mock.Anything).Return(ServerChallenge{}, errors.New("timeout")).Once()
	api.On("FetchChallenge", mock.Anything).Return(ServerChallenge{ID: "srv-1"}, nil).Once()

	f, _, _ := newTestFlow(api, 3)
	f.Begin()

	c, err := f.Load(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusLoading, c.Status)

	c, err = f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, c.Status)
}

func TestFlow_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFlow(&mockChallengeAPI{}, 3)

	_, err := f.Load(ctx)
	assert.True(t, errors.Is(err, ErrNoChallenge))
	_, err = f.Submit(ctx, "x")
	assert.True(t, errors.Is(err, ErrNoChallenge))

	f.Begin()
	_, err = f.Submit(ctx, "x")
	assert.True(t, errors.Is(err, ErrInvalidTransition), "cannot submit while loading")
}
