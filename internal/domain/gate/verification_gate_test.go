package gate

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgate/reelgate/internal/domain/event"
	"github.com/reelgate/reelgate/internal/domain/verification"
)

func TestVerificationGate_PassesWhenNotRequired(t *testing.T) {
	h := newHarness(t)

	resp, err := h.chain.Do(context.Background(), get("/videos"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, h.queue.Len())
}

func TestVerificationGate_PassesWithLiveClearance(t *testing.T) {
	h := newHarness(t)
	h.requireVerification()
	require.NoError(t, h.clearances.Set(context.Background(), verification.NewClearance(h.now)))

	_, err := h.chain.Do(context.Background(), get("/videos"))
	require.NoError(t, err)
	assert.Equal(t, 1, h.net.count("GET /videos"))
}

func TestVerificationGate_BlocksWithoutTraffic(t *testing.T) {
	h := newHarness(t)
	h.requireVerification()

	ctx, cancel := context.WithCancel(context.Background())
	done := h.goCall(ctx, get("/videos"))
	h.waitQueued(1, 1)
	h.waitEvents(event.VerificationRequired, 1)

	assert.Equal(t, 0, h.net.count("GET /videos"), "blocked call must not reach the network")
	e, ok := h.events.first(event.VerificationRequired)
	require.True(t, ok)
	assert.Equal(t, 1, e.PendingCount)
	assert.True(t, h.flow.Active())

	cancel()
	r := await(t, done)
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Equal(t, 0, h.queue.Len(), "abandoned call leaves the queue")
}

func TestVerificationGate_SingleFlightChallenge(t *testing.T) {
	h := newHarness(t)
	h.requireVerification()

	const k = 6
	var chans []<-chan result
	for i := 0; i < k; i++ {
		chans = append(chans, h.goCall(context.Background(), get(fmt.Sprintf("/videos/%d", i))))
	}
	h.waitQueued(k, k)
	h.waitEvents(event.VerificationRequired, 1)

	assert.Equal(t, 1, h.events.count(event.VerificationRequired))

	h.solve()
	for _, ch := range chans {
		r := await(t, ch)
		require.NoError(t, r.err)
	}
	h.coord.Wait()
}

func TestVerificationGate_ExemptRoutesPass(t *testing.T) {
	h := newHarness(t)
	h.requireVerification()

	for _, call := range []*Call{
		get("/verification/check-required"),
		get("/verification/challenge"),
		post("/verification/solve", `{"challengeId":"x","answer":"y"}`),
	} {
		_, err := h.chain.Do(context.Background(), call)
		require.NoError(t, err, call.Route())
	}
	assert.Equal(t, 0, h.queue.Len())
	assert.Equal(t, 0, h.events.count(event.VerificationRequired))
}

func TestVerificationGate_ServerSignalSuspends(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.clearances.Set(context.Background(), verification.NewClearance(h.now)))

	var mu sync.Mutex
	demand := true
	h.net.setHandler(func(_ context.Context, call *Call) (*Response, error) {
		mu.Lock()
		defer mu.Unlock()
		if demand {
			return status(http.StatusPreconditionRequired), nil
		}
		return ok("videos"), nil
	})

	done := h.goCall(context.Background(), get("/videos"))
	h.waitQueued(1, 1)
	h.waitEvents(event.VerificationRequired, 1)

	assert.True(t, h.verify.Required())
	_, err := h.clearances.Get(context.Background())
	assert.ErrorIs(t, err, verification.ErrNoClearance, "a server demand revokes the clearance")
	assert.Equal(t, 1, h.events.count(event.VerificationRequired))

	mu.Lock()
	demand = false
	mu.Unlock()
	h.solve()

	r := await(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, "videos", string(r.resp.Body))
	assert.Equal(t, 2, h.net.count("GET /videos"), "first attempt plus one replay")
	h.coord.Wait()
}

func TestVerificationGate_HeaderSignal(t *testing.T) {
	sig := StatusSignal(http.StatusPreconditionRequired, DefaultSignalHeader)

	withHeader := ok("")
	withHeader.Header.Set(DefaultSignalHeader, "true")
	falseHeader := ok("")
	falseHeader.Header.Set(DefaultSignalHeader, "0")

	assert.True(t, sig(withHeader))
	assert.True(t, sig(status(http.StatusPreconditionRequired)))
	assert.False(t, sig(falseHeader))
	assert.False(t, sig(status(http.StatusForbidden)))
	assert.False(t, StatusSignal(0, "")(status(http.StatusPreconditionRequired)))
}

func TestVerificationGate_InFlightCallNotBlocked(t *testing.T) {
	h := newHarness(t)

	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	h.net.setHandler(func(_ context.Context, call *Call) (*Response, error) {
		switch call.Path {
		case "/slow":
			close(slowStarted)
			<-releaseSlow
			return ok("slow"), nil
		case "/abuse":
			return status(http.StatusPreconditionRequired), nil
		}
		return ok(""), nil
	})

	slow := h.goCall(context.Background(), get("/slow"))
	<-slowStarted

	// A concurrent response reveals that verification is now required.
	abuse := h.goCall(context.Background(), get("/abuse"))
	h.waitQueued(1, 1)

	close(releaseSlow)
	r := await(t, slow)
	require.NoError(t, r.err, "a call already sent completes normally")
	assert.Equal(t, "slow", string(r.resp.Body))

	// Calls not yet dispatched are blocked.
	later := h.goCall(context.Background(), get("/later"))
	h.waitQueued(2, 2)
	assert.Equal(t, 0, h.net.count("GET /later"))

	h.net.setHandler(nil)
	h.solve()
	require.NoError(t, await(t, abuse).err)
	require.NoError(t, await(t, later).err)
	h.coord.Wait()
}

func TestVerificationGate_ExpiredClearanceBlocksAgain(t *testing.T) {
	h := newHarness(t)
	h.requireVerification()
	require.NoError(t, h.clearances.Set(context.Background(), verification.NewClearance(h.now)))
	h.now = h.now.Add(verification.ClearanceTTL + time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := h.goCall(ctx, get("/videos"))
	h.waitQueued(1, 1)
	assert.Equal(t, 0, h.net.count("GET /videos"))

	cancel()
	await(t, done)
}

func TestVerificationGate_CallDuringCancelLandsAfterPurge(t *testing.T) {
	h := newHarness(t)
	h.requireVerification()

	first := h.goCall(context.Background(), get("/videos"))
	h.waitQueued(1, 1)
	h.waitEvents(event.VerificationRequired, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var late <-chan result
	n := h.queue.PurgeWith(ErrCancelledByPurge, func() {
		h.flow.Reset()
		late = h.goCall(ctx, get("/collections"))
		// The late call must wait for the purge instead of slipping between
		// the reset and the drain.
		time.Sleep(20 * time.Millisecond)
		assert.False(t, h.flow.Active(), "no challenge may start while cancelling")
	})
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, await(t, first).err, ErrCancelledByPurge)

	h.waitQueued(1, 1)
	h.waitEvents(event.VerificationRequired, 2)
	assert.True(t, h.flow.Active(), "the late call starts a fresh challenge for itself")

	cancel()
	assert.ErrorIs(t, await(t, late).err, context.Canceled)
}
