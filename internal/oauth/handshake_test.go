package oauth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExchanger struct {
	calls atomic.Int32
	err   error
	delay time.Duration

	mu        sync.Mutex
	gotCode   string
	gotState  string
	onSuccess func()
}

func (e *countingExchanger) HandleGoogleCallback(_ context.Context, code, state string) error {
	e.calls.Add(1)
	time.Sleep(e.delay)
	e.mu.Lock()
	e.gotCode, e.gotState = code, state
	e.mu.Unlock()
	if e.err == nil && e.onSuccess != nil {
		e.onSuccess()
	}
	return e.err
}

type fakeSessions struct{ active atomic.Bool }

func (s *fakeSessions) HasSession() bool { return s.active.Load() }

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func fast() HandshakeOption { return WithDelays(5*time.Millisecond, 5*time.Millisecond) }

func TestTransitionTable(t *testing.T) {
	legal := map[State]map[event]State{
		Idle:       {evDetect: Detected},
		Detected:   {evBegin: Processing, evDismiss: Dismissed},
		Processing: {evSucceed: Succeeded, evFail: Failed},
	}
	states := []State{Idle, Detected, Processing, Succeeded, Failed, Dismissed}
	events := []event{evDetect, evBegin, evDismiss, evSucceed, evFail}

	for _, s := range states {
		for _, e := range events {
			next, err := transition(s, e)
			if want, ok := legal[s][e]; ok {
				assert.NoError(t, err, "%s on %s", e, s)
				assert.Equal(t, want, next)
				continue
			}
			assert.ErrorIs(t, err, ErrIllegalTransition, "%s on %s", e, s)
			assert.Equal(t, s, next)
		}
	}
}

func TestSuccessfulExchange(t *testing.T) {
	ex := &countingExchanger{}
	h := NewHandshake(ex, &fakeSessions{}, fast())

	require.True(t, h.Detect(mustURL(t, "http://127.0.0.1:8089/?code=abc&state=xyz")))
	assert.Equal(t, Detected, h.State())
	assert.False(t, h.HasProcessed())

	out := h.Run(context.Background())
	assert.Equal(t, Succeeded, out.State)
	assert.NoError(t, out.Err)
	assert.False(t, out.Canceled)
	assert.True(t, h.HasProcessed())
	assert.Equal(t, "abc", ex.gotCode)
	assert.Equal(t, "xyz", ex.gotState)
}

func TestExchangeRunsAtMostOnce(t *testing.T) {
	ex := &countingExchanger{delay: 20 * time.Millisecond}
	h := NewHandshake(ex, &fakeSessions{}, fast())
	u := mustURL(t, "http://127.0.0.1:8089/?code=abc")

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Detect(u)
			outcomes[i] = h.Run(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ex.calls.Load())
	skipped := 0
	for _, out := range outcomes {
		if out.Skipped {
			skipped++
		}
	}
	assert.Equal(t, len(outcomes)-1, skipped)

	// a later run of the same handshake reports the settled result
	again := h.Run(context.Background())
	assert.True(t, again.Skipped)
	assert.Equal(t, Succeeded, again.State)
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestFailureCauses(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		exErr   error
		check   func(t *testing.T, err error)
		exCalls int32
	}{
		{
			name: "provider error",
			raw:  "http://127.0.0.1:8089/?error=access_denied&error_description=User+cancelled",
			check: func(t *testing.T, err error) {
				var pe *ProviderError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, "access_denied", pe.Code)
				assert.Equal(t, "Google sign-in failed: User cancelled (access_denied)", err.Error())
			},
		},
		{
			name:    "exchange error",
			raw:     "http://127.0.0.1:8089/?code=used",
			exErr:   errors.New("invalid_grant"),
			exCalls: 1,
			check: func(t *testing.T, err error) {
				assert.Equal(t, "invalid_grant", err.Error())
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex := &countingExchanger{err: tc.exErr}
			h := NewHandshake(ex, &fakeSessions{}, fast())
			require.True(t, h.Detect(mustURL(t, tc.raw)))

			out := h.Run(context.Background())
			assert.Equal(t, Failed, out.State)
			require.Error(t, out.Err)
			tc.check(t, out.Err)
			assert.Equal(t, tc.exCalls, ex.calls.Load())
		})
	}
}

func TestMissingCodeFails(t *testing.T) {
	h := NewHandshake(&countingExchanger{}, &fakeSessions{}, fast())
	h.state = Detected
	h.params = url.Values{"state": {"xyz"}}

	out := h.Run(context.Background())
	assert.Equal(t, Failed, out.State)
	assert.ErrorIs(t, out.Err, ErrMissingCode)
}

func TestExistingSessionSkipsDetection(t *testing.T) {
	sessions := &fakeSessions{}
	sessions.active.Store(true)
	h := NewHandshake(&countingExchanger{}, sessions, fast())

	assert.False(t, h.Detect(mustURL(t, "http://127.0.0.1:8089/?code=abc")))
	assert.Equal(t, Idle, h.State())
	assert.False(t, h.Detect(mustURL(t, "http://127.0.0.1:8089/lessons")))
}

func TestSessionDuringSettleDismisses(t *testing.T) {
	ex := &countingExchanger{}
	sessions := &fakeSessions{}
	h := NewHandshake(ex, sessions, WithDelays(30*time.Millisecond, 0))
	require.True(t, h.Detect(mustURL(t, "http://127.0.0.1:8089/?code=abc")))

	sessions.active.Store(true)
	out := h.Run(context.Background())
	assert.Equal(t, Dismissed, out.State)
	assert.Equal(t, int32(0), ex.calls.Load())
	assert.False(t, h.HasProcessed())
}

func TestCancelBeforeSettleDoesNotExchange(t *testing.T) {
	ex := &countingExchanger{}
	h := NewHandshake(ex, &fakeSessions{}, WithDelays(time.Second, 0))
	require.True(t, h.Detect(mustURL(t, "http://127.0.0.1:8089/?code=abc")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := h.Run(ctx)
	assert.True(t, out.Canceled)
	assert.Equal(t, Detected, out.State)
	assert.Equal(t, int32(0), ex.calls.Load())
}

func TestCancelDuringPropagationSuppressesDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ex := &countingExchanger{onSuccess: cancel}
	h := NewHandshake(ex, &fakeSessions{}, WithDelays(0, time.Second))
	require.True(t, h.Detect(mustURL(t, "http://127.0.0.1:8089/?code=abc")))

	start := time.Now()
	out := h.Run(ctx)
	assert.True(t, out.Canceled)
	assert.Equal(t, Succeeded, out.State)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestScrubURL(t *testing.T) {
	u := mustURL(t, "http://127.0.0.1:8089/lessons?code=abc&state=xyz&scope=email&authuser=0&prompt=none&tab=2")
	got := ScrubURL(u)
	assert.Equal(t, "/lessons?tab=2", got.RequestURI())
	assert.Equal(t, "code=abc&state=xyz&scope=email&authuser=0&prompt=none&tab=2", u.RawQuery)

	failed := mustURL(t, "http://127.0.0.1:8089/?error=access_denied&error_description=no")
	assert.Equal(t, "/", ScrubURL(failed).RequestURI())
}
